package entities

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BOMStatus represents the lifecycle state of a bill of materials
type BOMStatus string

const (
	BOMDraft    BOMStatus = "draft"
	BOMActive   BOMStatus = "active"
	BOMObsolete BOMStatus = "obsolete"
	BOMPending  BOMStatus = "pending"
)

var hundred = decimal.NewFromInt(100)

// ScrapFactor converts a scrap percentage into the multiplier applied to a quantity
func ScrapFactor(scrapPercentage decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Add(scrapPercentage.Div(hundred))
}

// StringList is a list of IDs persisted as a comma separated column
type StringList []string

// Value implements driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	return strings.Join(l, ","), nil
}

// Scan implements sql.Scanner
func (l *StringList) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
	if raw == "" {
		*l = nil
		return nil
	}
	*l = strings.Split(raw, ",")
	return nil
}

// BillOfMaterials is the recipe that produces YieldQuantity units of ProductID
type BillOfMaterials struct {
	ID                  string          `db:"id" json:"id"`
	TenantID            string          `db:"tenant_id" json:"tenant_id"`
	ProductID           string          `db:"product_id" json:"product_id"`
	Version             string          `db:"version" json:"version"`
	Status              BOMStatus       `db:"status" json:"status"`
	YieldQuantity       decimal.Decimal `db:"yield_quantity" json:"yield_quantity"`
	ScrapPercentage     decimal.Decimal `db:"scrap_percentage" json:"scrap_percentage"`
	EffectiveDate       time.Time       `db:"effective_date" json:"effective_date"`
	ExpiryDate          *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	IsDefault           bool            `db:"is_default" json:"is_default"`
	AlternateComponents StringList      `db:"alternate_components" json:"alternate_components,omitempty"`
	ApprovedBy          string          `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt          *time.Time      `db:"approved_at" json:"approved_at,omitempty"`
	Notes               string          `db:"notes" json:"notes,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// NewBillOfMaterials creates a validated draft BOM
func NewBillOfMaterials(
	tenantID, productID, version string,
	yieldQuantity, scrapPercentage decimal.Decimal,
	effectiveDate time.Time,
) (*BillOfMaterials, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant cannot be empty", ErrInvalidBOM)
	}
	if productID == "" {
		return nil, fmt.Errorf("%w: product cannot be empty", ErrInvalidBOM)
	}
	if version == "" {
		return nil, fmt.Errorf("%w: version cannot be empty", ErrInvalidBOM)
	}
	if !yieldQuantity.IsPositive() {
		return nil, fmt.Errorf("%w: yield quantity must be positive, got %s", ErrInvalidBOM, yieldQuantity)
	}
	if scrapPercentage.IsNegative() {
		return nil, fmt.Errorf("%w: scrap percentage cannot be negative, got %s", ErrInvalidBOM, scrapPercentage)
	}
	if effectiveDate.IsZero() {
		effectiveDate = time.Now().UTC()
	}

	now := time.Now().UTC()
	return &BillOfMaterials{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		ProductID:       productID,
		Version:         version,
		Status:          BOMDraft,
		YieldQuantity:   yieldQuantity,
		ScrapPercentage: scrapPercentage,
		EffectiveDate:   effectiveDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// IsEffective reports whether the BOM is active and inside its validity window at t
func (b *BillOfMaterials) IsEffective(t time.Time) bool {
	if b.Status != BOMActive {
		return false
	}
	if b.EffectiveDate.After(t) {
		return false
	}
	return b.ExpiryDate == nil || b.ExpiryDate.After(t)
}

// Activate moves a draft or pending BOM to active. componentCount is the
// number of components currently attached.
func (b *BillOfMaterials) Activate(approver string, componentCount int, at time.Time) error {
	if b.Status != BOMDraft && b.Status != BOMPending {
		return fmt.Errorf("%w: cannot activate BOM %s in status %s", ErrInvalidState, b.ID, b.Status)
	}
	if componentCount == 0 {
		return fmt.Errorf("%w: BOM %s has no components", ErrInvalidBOM, b.ID)
	}
	b.Status = BOMActive
	b.ApprovedBy = approver
	approvedAt := at
	b.ApprovedAt = &approvedAt
	b.UpdatedAt = at
	return nil
}

// MarkObsolete soft-deactivates the BOM. It stays readable for history.
func (b *BillOfMaterials) MarkObsolete(at time.Time) error {
	if b.Status == BOMObsolete {
		return fmt.Errorf("%w: BOM %s is already obsolete", ErrInvalidState, b.ID)
	}
	b.Status = BOMObsolete
	b.IsDefault = false
	b.UpdatedAt = at
	return nil
}

// BOMComponent is one line of a bill of materials
type BOMComponent struct {
	ID              string          `db:"id" json:"id"`
	BOMID           string          `db:"bom_id" json:"bom_id"`
	ComponentID     string          `db:"component_id" json:"component_id"`
	Quantity        decimal.Decimal `db:"quantity" json:"quantity"`
	ScrapPercentage decimal.Decimal `db:"scrap_percentage" json:"scrap_percentage"`
	Sequence        int             `db:"sequence" json:"sequence"`
	IsPhantom       bool            `db:"is_phantom" json:"is_phantom"`
	IsRequired      bool            `db:"is_required" json:"is_required"`
	UnitCost        decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	Notes           string          `db:"notes" json:"notes,omitempty"`

	// Product is the joined component product, filled in by repositories on read
	Product *Product `db:"-" json:"product,omitempty"`
}

// NewBOMComponent creates a validated BOMComponent
func NewBOMComponent(
	bomID, componentID string,
	quantity, scrapPercentage decimal.Decimal,
	sequence int,
) (*BOMComponent, error) {
	if bomID == "" {
		return nil, fmt.Errorf("%w: BOM cannot be empty", ErrInvalidBOM)
	}
	if componentID == "" {
		return nil, fmt.Errorf("%w: component cannot be empty", ErrInvalidBOM)
	}
	if quantity.IsNegative() {
		return nil, fmt.Errorf("%w: component quantity cannot be negative, got %s", ErrInvalidBOM, quantity)
	}
	if scrapPercentage.IsNegative() {
		return nil, fmt.Errorf("%w: component scrap percentage cannot be negative, got %s", ErrInvalidBOM, scrapPercentage)
	}

	return &BOMComponent{
		ID:              uuid.NewString(),
		BOMID:           bomID,
		ComponentID:     componentID,
		Quantity:        quantity,
		ScrapPercentage: scrapPercentage,
		Sequence:        sequence,
		IsRequired:      true,
	}, nil
}

// RequiredFor returns the quantity of this component needed for parentQty
// units of the BOM's product: quantity × parentQty × (1 + scrap/100) / yield.
func (c *BOMComponent) RequiredFor(parentQty, yieldQuantity decimal.Decimal) decimal.Decimal {
	return c.Quantity.Mul(parentQty).Mul(ScrapFactor(c.ScrapPercentage)).Div(yieldQuantity)
}

// EffectiveUnitCost returns the snapshot cost, falling back to the joined product's cost
func (c *BOMComponent) EffectiveUnitCost() decimal.Decimal {
	if !c.UnitCost.IsZero() || c.Product == nil {
		return c.UnitCost
	}
	return c.Product.UnitCost
}
