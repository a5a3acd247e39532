package entities

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Sentinel errors. Typed errors below unwrap to one of these so callers can
// use errors.Is without caring about the detail.
var (
	ErrNotFound        = errors.New("not found")
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	ErrBOMNotFound     = fmt.Errorf("bill of materials %w", ErrNotFound)
	ErrLotNotFound     = fmt.Errorf("inventory lot %w", ErrNotFound)

	ErrCircularDependency     = errors.New("circular dependency")
	ErrMaxLevelExceeded       = errors.New("maximum BOM level exceeded")
	ErrInsufficientMaterials  = errors.New("insufficient materials")
	ErrInsufficientInventory  = errors.New("insufficient inventory")
	ErrInvalidBOM             = errors.New("invalid bill of materials")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidState           = errors.New("invalid state")
	ErrDuplicateVersion       = errors.New("duplicate BOM version")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrInvalidReference       = errors.New("invalid reference")
)

// CircularReferenceError reports a cycle in the BOM graph. Path starts and
// ends with the same product.
type CircularReferenceError struct {
	Path []string
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Path, " -> "))
}

func (e *CircularReferenceError) Unwrap() error {
	return ErrCircularDependency
}

// MaxLevelExceededError is returned when an explosion descends past its depth guard.
type MaxLevelExceededError struct {
	ProductID string
	Level     int
	MaxLevel  int
}

func (e *MaxLevelExceededError) Error() string {
	return fmt.Sprintf("BOM explosion of %s reached level %d, maximum is %d", e.ProductID, e.Level, e.MaxLevel)
}

func (e *MaxLevelExceededError) Unwrap() error {
	return ErrMaxLevelExceeded
}

// Shortage describes the quantity of a product that could not be covered.
type Shortage struct {
	ProductID         string          `json:"product_id" yaml:"product_id"`
	WarehouseCode     string          `json:"warehouse_code,omitempty" yaml:"warehouse_code,omitempty"`
	RequiredQuantity  decimal.Decimal `json:"required_quantity" yaml:"required_quantity"`
	AvailableQuantity decimal.Decimal `json:"available_quantity" yaml:"available_quantity"`
	ShortageQuantity  decimal.Decimal `json:"shortage_quantity" yaml:"shortage_quantity"`
}

func (s Shortage) String() string {
	return fmt.Sprintf("%s: required %s, available %s, short %s",
		s.ProductID, s.RequiredQuantity, s.AvailableQuantity, s.ShortageQuantity)
}

// InsufficientMaterialsError carries every shortage found while validating a consumption.
type InsufficientMaterialsError struct {
	Shortages []Shortage
}

func (e *InsufficientMaterialsError) Error() string {
	return fmt.Sprintf("insufficient materials: %s", joinShortages(e.Shortages))
}

func (e *InsufficientMaterialsError) Unwrap() error {
	return ErrInsufficientMaterials
}

// InsufficientInventoryError carries every reservation line that no single lot could satisfy.
type InsufficientInventoryError struct {
	Shortages []Shortage
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory: %s", joinShortages(e.Shortages))
}

func (e *InsufficientInventoryError) Unwrap() error {
	return ErrInsufficientInventory
}

func joinShortages(shortages []Shortage) string {
	parts := make([]string, 0, len(shortages))
	for _, s := range shortages {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, "; ")
}
