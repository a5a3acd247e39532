package services

import (
	"fmt"
	"sort"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
)

// BOMValidator audits the structure of a complete set of bills of materials
type BOMValidator struct{}

// NewBOMValidator creates a new BOM validator
func NewBOMValidator() *BOMValidator {
	return &BOMValidator{}
}

// ValidationResult contains the results of BOM validation
type ValidationResult struct {
	HasCycles      bool
	CyclePaths     [][]string
	DuplicateLines []*entities.BOMComponent
	EmptyBOMs      []string
	Errors         []string
}

// IsValid reports whether no problem was found
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// ValidateGraph checks the active BOMs for cycles, duplicate component lines
// and BOMs without components. components is keyed by BOM ID.
func (v *BOMValidator) ValidateGraph(
	boms []*entities.BillOfMaterials,
	components map[string][]*entities.BOMComponent,
) *ValidationResult {
	result := &ValidationResult{
		CyclePaths:     make([][]string, 0),
		DuplicateLines: make([]*entities.BOMComponent, 0),
		EmptyBOMs:      make([]string, 0),
		Errors:         make([]string, 0),
	}

	// Build adjacency map for cycle detection
	adjacencyMap := v.buildAdjacencyMap(boms, components)

	cycles := v.detectCycles(adjacencyMap)
	result.HasCycles = len(cycles) > 0
	result.CyclePaths = cycles

	for _, bom := range boms {
		lines := components[bom.ID]
		if len(lines) == 0 {
			result.EmptyBOMs = append(result.EmptyBOMs, bom.ID)
		}
		result.DuplicateLines = append(result.DuplicateLines, v.detectDuplicateLines(lines)...)
	}

	for _, cycle := range result.CyclePaths {
		result.Errors = append(result.Errors, fmt.Sprintf("BOM cycle detected: %v", cycle))
	}
	if len(result.DuplicateLines) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("Found %d duplicate BOM lines", len(result.DuplicateLines)))
	}
	for _, id := range result.EmptyBOMs {
		result.Errors = append(result.Errors, fmt.Sprintf("Active BOM %s has no components", id))
	}

	return result
}

// buildAdjacencyMap creates a map of product -> component products
func (v *BOMValidator) buildAdjacencyMap(
	boms []*entities.BillOfMaterials,
	components map[string][]*entities.BOMComponent,
) map[string][]string {
	adjacencyMap := make(map[string][]string)

	for _, bom := range boms {
		for _, line := range components[bom.ID] {
			children := adjacencyMap[bom.ProductID]

			// Avoid duplicate children in adjacency list
			found := false
			for _, child := range children {
				if child == line.ComponentID {
					found = true
					break
				}
			}
			if !found {
				adjacencyMap[bom.ProductID] = append(children, line.ComponentID)
			}
		}
	}

	return adjacencyMap
}

// detectCycles uses DFS to find cycles in the BOM structure
func (v *BOMValidator) detectCycles(adjacencyMap map[string][]string) [][]string {
	visited := make(map[string]bool)
	recursionStack := make(map[string]bool)
	cycles := make([][]string, 0)

	parents := make([]string, 0, len(adjacencyMap))
	for parent := range adjacencyMap {
		parents = append(parents, parent)
	}
	sort.Strings(parents)

	for _, parent := range parents {
		if !visited[parent] {
			v.dfsDetectCycle(parent, adjacencyMap, visited, recursionStack, nil, &cycles)
		}
	}

	return cycles
}

// dfsDetectCycle performs depth-first search to detect cycles
func (v *BOMValidator) dfsDetectCycle(
	current string,
	adjacencyMap map[string][]string,
	visited map[string]bool,
	recursionStack map[string]bool,
	path []string,
	cycles *[][]string,
) {
	visited[current] = true
	recursionStack[current] = true
	path = append(path, current)

	for _, child := range adjacencyMap[current] {
		if !visited[child] {
			v.dfsDetectCycle(child, adjacencyMap, visited, recursionStack, path, cycles)
		} else if recursionStack[child] {
			// Found a cycle - extract the cycle path
			for i, part := range path {
				if part == child {
					cycle := make([]string, 0, len(path)-i+1)
					cycle = append(cycle, path[i:]...)
					cycle = append(cycle, child) // Close the cycle
					*cycles = append(*cycles, cycle)
					break
				}
			}
		}
	}

	recursionStack[current] = false
}

// detectDuplicateLines finds lines of one BOM that reference the same component
func (v *BOMValidator) detectDuplicateLines(lines []*entities.BOMComponent) []*entities.BOMComponent {
	seen := make(map[string]*entities.BOMComponent)
	duplicates := make([]*entities.BOMComponent, 0)

	for _, line := range lines {
		if existing, exists := seen[line.ComponentID]; exists {
			duplicates = append(duplicates, line, existing)
		} else {
			seen[line.ComponentID] = line
		}
	}

	return duplicates
}

// ValidateSKUUniqueness validates that SKUs are unique across products
func (v *BOMValidator) ValidateSKUUniqueness(products []*entities.Product) *ValidationResult {
	result := &ValidationResult{
		Errors: make([]string, 0),
	}

	seen := make(map[string]bool)
	duplicates := make([]string, 0)

	for _, product := range products {
		if seen[product.SKU] {
			duplicates = append(duplicates, product.SKU)
		} else {
			seen[product.SKU] = true
		}
	}

	if len(duplicates) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("Duplicate SKUs found: %v", duplicates))
	}

	return result
}
