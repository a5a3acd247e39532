package bom

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/repositories"
)

// DefaultMaxLevel bounds explosions when no explicit limit is given
const DefaultMaxLevel = 10

// Structure is the active BOM of a product with its components
type Structure struct {
	BOM        *entities.BillOfMaterials
	Components []*entities.BOMComponent
}

// LoadStructure returns the active BOM of productID at time at, or nil when
// the product has none.
func LoadStructure(ctx context.Context, repos repositories.Repositories, tenantID, productID string, at time.Time) (*Structure, error) {
	bom, err := repos.BOMs().GetActiveBOM(ctx, tenantID, productID, at)
	if err != nil {
		if errors.Is(err, entities.ErrBOMNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active BOM of %s: %w", productID, err)
	}
	components, err := repos.BOMs().GetComponents(ctx, bom.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get components of BOM %s: %w", bom.ID, err)
	}
	return &Structure{BOM: bom, Components: components}, nil
}

// NodeContext describes the node being visited during a traversal
type NodeContext struct {
	Product *entities.Product

	// Component is the BOM line that led to this node, nil at the root
	Component *entities.BOMComponent

	// Quantity is the propagated quantity of the node: the requested quantity
	// at the root, the scrap and yield adjusted requirement below it.
	Quantity decimal.Decimal
	Level    int
	Path     []string

	// Structure is the node's own active BOM, nil when it has none
	Structure *Structure
}

// Visitor processes nodes during a traversal
type Visitor[T any] interface {
	// VisitNode is called before the children of a node. Returning false
	// stops the descent at this node.
	VisitNode(ctx context.Context, node NodeContext) (descend bool, err error)

	// ProcessChildren is called with the results of the node's children
	// (nil when the traversal did not descend).
	ProcessChildren(ctx context.Context, node NodeContext, children []T) (T, error)
}

// Traverser walks the active BOM graph depth first. Structures are loaded
// once per product and traversal, so shared sub-assemblies are read once.
type Traverser struct {
	repos    repositories.Repositories
	tenantID string
	at       time.Time
	maxLevel int
	cache    map[string]*Structure
	products map[string]*entities.Product
}

// NewTraverser creates a single-use traverser. maxLevel <= 0 means DefaultMaxLevel.
func NewTraverser(repos repositories.Repositories, tenantID string, at time.Time, maxLevel int) *Traverser {
	if maxLevel <= 0 {
		maxLevel = DefaultMaxLevel
	}
	return &Traverser{
		repos:    repos,
		tenantID: tenantID,
		at:       at,
		maxLevel: maxLevel,
		cache:    make(map[string]*Structure),
		products: make(map[string]*entities.Product),
	}
}

// MaxLevel returns the depth guard in effect
func (t *Traverser) MaxLevel() int {
	return t.maxLevel
}

// Structure returns the cached active structure of productID
func (t *Traverser) Structure(ctx context.Context, productID string) (*Structure, error) {
	if s, ok := t.cache[productID]; ok {
		return s, nil
	}
	s, err := LoadStructure(ctx, t.repos, t.tenantID, productID, t.at)
	if err != nil {
		return nil, err
	}
	t.cache[productID] = s
	return s, nil
}

func (t *Traverser) product(ctx context.Context, productID string, joined *entities.Product) (*entities.Product, error) {
	if joined != nil {
		return joined, nil
	}
	if p, ok := t.products[productID]; ok {
		return p, nil
	}
	p, err := t.repos.Products().GetProduct(ctx, t.tenantID, productID)
	if err != nil {
		return nil, err
	}
	t.products[productID] = p
	return p, nil
}

// Traverse walks the graph rooted at productID for quantity units
func Traverse[T any](ctx context.Context, t *Traverser, productID string, quantity decimal.Decimal, v Visitor[T]) (T, error) {
	var zero T
	root, err := t.product(ctx, productID, nil)
	if err != nil {
		return zero, err
	}
	return walk(ctx, t, NodeContext{
		Product:  root,
		Quantity: quantity,
		Level:    0,
		Path:     []string{productID},
	}, v)
}

func walk[T any](ctx context.Context, t *Traverser, node NodeContext, v Visitor[T]) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	structure, err := t.Structure(ctx, node.Product.ID)
	if err != nil {
		return zero, err
	}
	node.Structure = structure

	descend, err := v.VisitNode(ctx, node)
	if err != nil {
		return zero, err
	}
	if !descend || structure == nil {
		return v.ProcessChildren(ctx, node, nil)
	}

	children := make([]T, 0, len(structure.Components))
	for _, c := range structure.Components {
		if onPath(node.Path, c.ComponentID) {
			return zero, &entities.CircularReferenceError{Path: appendPath(node.Path, c.ComponentID)}
		}
		level := node.Level + 1
		if level > t.maxLevel {
			return zero, &entities.MaxLevelExceededError{ProductID: c.ComponentID, Level: level, MaxLevel: t.maxLevel}
		}

		product, err := t.product(ctx, c.ComponentID, c.Product)
		if err != nil {
			return zero, fmt.Errorf("component %s of BOM %s: %w", c.ComponentID, structure.BOM.ID, err)
		}

		result, err := walk(ctx, t, NodeContext{
			Product:   product,
			Component: c,
			Quantity:  c.RequiredFor(node.Quantity, structure.BOM.YieldQuantity),
			Level:     level,
			Path:      appendPath(node.Path, c.ComponentID),
		}, v)
		if err != nil {
			return zero, err
		}
		children = append(children, result)
	}
	return v.ProcessChildren(ctx, node, children)
}

func onPath(path []string, productID string) bool {
	for _, id := range path {
		if id == productID {
			return true
		}
	}
	return false
}

// appendPath copies path so sibling branches never share a backing array
func appendPath(path []string, productID string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, productID)
}
