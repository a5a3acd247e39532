package bom

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/application/services/servicetest"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
)

func TestCycleGuard_SelfReference(t *testing.T) {
	f := servicetest.NewFixture(t)
	a := f.Product("A", entities.Component, "0", 0)

	err := NewCycleGuard().Validate(f.Ctx(), f.Store, servicetest.TenantID, a.ID, []string{a.ID})
	var cycle *entities.CircularReferenceError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{a.ID, a.ID}, cycle.Path)
}

func TestCycleGuard_IndirectCycle(t *testing.T) {
	f := servicetest.NewFixture(t)
	a := f.Product("A", entities.Component, "0", 0)
	b := f.Product("B", entities.Component, "0", 0)
	c := f.Product("C", entities.Component, "0", 0)
	f.ActiveBOM(a, "1", servicetest.Line{Component: b, Quantity: "1"})
	f.ActiveBOM(b, "1", servicetest.Line{Component: c, Quantity: "1"})

	// C -> A would close A -> B -> C -> A
	err := NewCycleGuard().Validate(f.Ctx(), f.Store, servicetest.TenantID, c.ID, []string{a.ID})
	require.ErrorIs(t, err, entities.ErrCircularDependency)
	var cycle *entities.CircularReferenceError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{c.ID, a.ID, b.ID, c.ID}, cycle.Path)
}

func TestCycleGuard_DiamondAllowed(t *testing.T) {
	f := servicetest.NewFixture(t)
	fg := f.Product("FG", entities.FinishedGood, "0", 0)
	a := f.Product("A", entities.Component, "0", 0)
	b := f.Product("B", entities.Component, "0", 0)
	r := f.Product("R", entities.RawMaterial, "0", 0)
	f.ActiveBOM(a, "1", servicetest.Line{Component: r, Quantity: "1"})
	f.ActiveBOM(b, "1", servicetest.Line{Component: r, Quantity: "1"})

	err := NewCycleGuard().Validate(f.Ctx(), f.Store, servicetest.TenantID, fg.ID, []string{a.ID, b.ID})
	require.NoError(t, err)
}

func TestCycleGuard_IgnoresInactiveBOMs(t *testing.T) {
	f := servicetest.NewFixture(t)
	a := f.Product("A", entities.Component, "0", 0)
	b := f.Product("B", entities.Component, "0", 0)
	f.BOM(a, "draft", "1", entities.BOMDraft, servicetest.Line{Component: b, Quantity: "1"})

	err := NewCycleGuard().Validate(f.Ctx(), f.Store, servicetest.TenantID, b.ID, []string{a.ID})
	require.NoError(t, err)
}

func TestCycleGuard_WalksNonDefaultActiveBOMs(t *testing.T) {
	f := servicetest.NewFixture(t)
	a := f.Product("A", entities.Component, "0", 0)
	b := f.Product("B", entities.Component, "0", 0)
	r := f.Product("R", entities.RawMaterial, "0", 0)
	f.ActiveBOM(a, "1", servicetest.Line{Component: r, Quantity: "1"})
	alt := f.BOM(a, "v2", "1", entities.BOMActive, servicetest.Line{Component: b, Quantity: "1"})
	alt.IsDefault = false
	require.NoError(t, f.Store.BOMs().UpdateBOM(f.Ctx(), alt))

	// B -> A closes A -> B -> A through the non-default v2
	err := NewCycleGuard().Validate(f.Ctx(), f.Store, servicetest.TenantID, b.ID, []string{a.ID})
	var cycle *entities.CircularReferenceError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{b.ID, a.ID, b.ID}, cycle.Path)
}

func TestCycleGuard_WalksFutureDatedBOMs(t *testing.T) {
	f := servicetest.NewFixture(t)
	a := f.Product("A", entities.Component, "0", 0)
	b := f.Product("B", entities.Component, "0", 0)
	future := f.ActiveBOM(a, "1", servicetest.Line{Component: b, Quantity: "1"})
	future.EffectiveDate = f.Now.Add(24 * time.Hour)
	require.NoError(t, f.Store.BOMs().UpdateBOM(f.Ctx(), future))

	err := NewCycleGuard().Validate(f.Ctx(), f.Store, servicetest.TenantID, b.ID, []string{a.ID})
	require.ErrorIs(t, err, entities.ErrCircularDependency)
}
