package bom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/application/services/servicetest"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/events"
)

func newService(t *testing.T, f *servicetest.Fixture) (*Service, *events.InMemoryEventStore) {
	bus := events.NewInMemoryEventStore(zaptest.NewLogger(t))
	return NewService(f.Store, bus, zaptest.NewLogger(t)), bus
}

func lines(t *testing.T, components ...*entities.Product) []ComponentInput {
	inputs := make([]ComponentInput, 0, len(components))
	for _, c := range components {
		inputs = append(inputs, ComponentInput{ComponentID: c.ID, Quantity: dec(t, "1")})
	}
	return inputs
}

func TestService_CreateBOM(t *testing.T) {
	f := servicetest.NewFixture(t)
	fg := f.Product("FG", entities.FinishedGood, "0", 0)
	steel := f.Product("STEEL", entities.RawMaterial, "4.5", 0)
	svc, bus := newService(t, f)

	created, err := svc.CreateBOM(f.Ctx(), CreateBOMInput{
		ProductID:     fg.ID,
		Version:       "v1",
		YieldQuantity: dec(t, "1"),
		Components: []ComponentInput{
			{ComponentID: steel.ID, Quantity: dec(t, "2"), ScrapPercentage: dec(t, "5")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, entities.BOMDraft, created.BOM.Status)
	require.Len(t, created.Components, 1)
	assert.True(t, created.Components[0].UnitCost.Equal(dec(t, "4.5")), "cost snapshot taken")
	assert.Equal(t, 10, created.Components[0].Sequence)
	assert.True(t, created.Components[0].IsRequired)

	stored, err := svc.GetBOM(f.Ctx(), created.BOM.ID)
	require.NoError(t, err)
	require.Len(t, stored.Components, 1)
	assert.Equal(t, steel.ID, stored.Components[0].ComponentID)

	published, err := bus.ReadAllEvents(0)
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, events.BOMCreatedEvent, published[0].Type())
}

func TestService_CreateBOMValidation(t *testing.T) {
	f := servicetest.NewFixture(t)
	fg := f.Product("FG", entities.FinishedGood, "0", 0)
	steel := f.Product("STEEL", entities.RawMaterial, "1", 0)
	svc, _ := newService(t, f)

	_, err := svc.CreateBOM(f.Ctx(), CreateBOMInput{ProductID: fg.ID, Version: "v1", YieldQuantity: dec(t, "1")})
	require.NoError(t, err)

	expiry := time.Now().Add(-time.Hour)
	tests := []struct {
		name  string
		input CreateBOMInput
		want  error
	}{
		{"unknown product", CreateBOMInput{ProductID: "missing", Version: "v1", YieldQuantity: dec(t, "1")}, entities.ErrProductNotFound},
		{"duplicate version", CreateBOMInput{ProductID: fg.ID, Version: "v1", YieldQuantity: dec(t, "1")}, entities.ErrDuplicateVersion},
		{"zero yield", CreateBOMInput{ProductID: fg.ID, Version: "v2", YieldQuantity: dec(t, "0")}, entities.ErrInvalidBOM},
		{"expiry before effective", CreateBOMInput{ProductID: fg.ID, Version: "v2", YieldQuantity: dec(t, "1"), EffectiveDate: time.Now(), ExpiryDate: &expiry}, entities.ErrInvalidBOM},
		{"unknown component", CreateBOMInput{ProductID: fg.ID, Version: "v2", YieldQuantity: dec(t, "1"),
			Components: []ComponentInput{{ComponentID: "missing", Quantity: dec(t, "1")}}}, entities.ErrProductNotFound},
		{"duplicate component", CreateBOMInput{ProductID: fg.ID, Version: "v2", YieldQuantity: dec(t, "1"),
			Components: lines(t, steel, steel)}, entities.ErrInvalidBOM},
		{"negative quantity", CreateBOMInput{ProductID: fg.ID, Version: "v2", YieldQuantity: dec(t, "1"),
			Components: []ComponentInput{{ComponentID: steel.ID, Quantity: dec(t, "-1")}}}, entities.ErrInvalidBOM},
		{"self reference", CreateBOMInput{ProductID: fg.ID, Version: "v2", YieldQuantity: dec(t, "1"),
			Components: lines(t, fg)}, entities.ErrCircularDependency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateBOM(f.Ctx(), tt.input)
			require.ErrorIs(t, err, tt.want)
		})
	}

	// nothing from the rejected writes was kept
	boms, err := svc.ListBOMs(f.Ctx(), fg.ID)
	require.NoError(t, err)
	assert.Len(t, boms, 1)
}

func TestService_CycleRejectedOnCreate(t *testing.T) {
	f := servicetest.NewFixture(t)
	a := f.Product("A", entities.Component, "0", 0)
	b := f.Product("B", entities.Component, "0", 0)
	f.ActiveBOM(a, "1", servicetest.Line{Component: b, Quantity: "1"})
	svc, _ := newService(t, f)

	_, err := svc.CreateBOM(f.Ctx(), CreateBOMInput{
		ProductID:     b.ID,
		Version:       "v1",
		YieldQuantity: dec(t, "1"),
		Components:    lines(t, a),
	})
	require.ErrorIs(t, err, entities.ErrCircularDependency)

	boms, err := svc.ListBOMs(f.Ctx(), b.ID)
	require.NoError(t, err)
	assert.Empty(t, boms, "rolled back")
}

func TestService_ActivateRechecksCycles(t *testing.T) {
	f := servicetest.NewFixture(t)
	a := f.Product("A", entities.Component, "0", 0)
	b := f.Product("B", entities.Component, "0", 0)
	svc, _ := newService(t, f)

	// both drafts pass on their own
	draftA, err := svc.CreateBOM(f.Ctx(), CreateBOMInput{ProductID: a.ID, Version: "v1", YieldQuantity: dec(t, "1"), Components: lines(t, b)})
	require.NoError(t, err)
	draftB, err := svc.CreateBOM(f.Ctx(), CreateBOMInput{ProductID: b.ID, Version: "v1", YieldQuantity: dec(t, "1"), Components: lines(t, a)})
	require.NoError(t, err)

	_, err = svc.Activate(f.Ctx(), draftB.BOM.ID, "qa", true)
	require.NoError(t, err)

	_, err = svc.Activate(f.Ctx(), draftA.BOM.ID, "qa", true)
	require.ErrorIs(t, err, entities.ErrCircularDependency)

	stored, err := svc.GetBOM(f.Ctx(), draftA.BOM.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.BOMDraft, stored.BOM.Status)
}

func TestService_ActivateDefaultHandling(t *testing.T) {
	f := servicetest.NewFixture(t)
	fg := f.Product("FG", entities.FinishedGood, "0", 0)
	c := f.Product("C", entities.RawMaterial, "1", 0)
	svc, bus := newService(t, f)

	v1, err := svc.CreateBOM(f.Ctx(), CreateBOMInput{ProductID: fg.ID, Version: "v1", YieldQuantity: dec(t, "1"), Components: lines(t, c)})
	require.NoError(t, err)
	v2, err := svc.CreateBOM(f.Ctx(), CreateBOMInput{ProductID: fg.ID, Version: "v2", YieldQuantity: dec(t, "1"), Components: lines(t, c)})
	require.NoError(t, err)

	first, err := svc.Activate(f.Ctx(), v1.BOM.ID, "alice", true)
	require.NoError(t, err)
	assert.True(t, first.IsDefault)
	assert.Equal(t, "alice", first.ApprovedBy)
	require.NotNil(t, first.ApprovedAt)

	_, err = svc.Activate(f.Ctx(), v2.BOM.ID, "bob", true)
	require.NoError(t, err)

	got1, err := svc.GetBOM(f.Ctx(), v1.BOM.ID)
	require.NoError(t, err)
	got2, err := svc.GetBOM(f.Ctx(), v2.BOM.ID)
	require.NoError(t, err)
	assert.False(t, got1.BOM.IsDefault)
	assert.True(t, got2.BOM.IsDefault)

	_, err = svc.Activate(f.Ctx(), v1.BOM.ID, "alice", false)
	require.ErrorIs(t, err, entities.ErrInvalidState, "already active")

	activated, err := bus.ReadEvents("bom-"+fg.ID, 0)
	require.NoError(t, err)
	assert.Len(t, activated, 4, "two created, two activated")
}

func TestService_ActivateRequiresComponents(t *testing.T) {
	f := servicetest.NewFixture(t)
	fg := f.Product("FG", entities.FinishedGood, "0", 0)
	svc, _ := newService(t, f)

	empty, err := svc.CreateBOM(f.Ctx(), CreateBOMInput{ProductID: fg.ID, Version: "v1", YieldQuantity: dec(t, "1")})
	require.NoError(t, err)

	_, err = svc.Activate(f.Ctx(), empty.BOM.ID, "qa", false)
	require.ErrorIs(t, err, entities.ErrInvalidBOM)
}

func TestService_ObsoleteLifecycle(t *testing.T) {
	f := servicetest.NewFixture(t)
	fg := f.Product("FG", entities.FinishedGood, "0", 0)
	c := f.Product("C", entities.RawMaterial, "1", 0)
	svc, _ := newService(t, f)

	created, err := svc.CreateBOM(f.Ctx(), CreateBOMInput{ProductID: fg.ID, Version: "v1", YieldQuantity: dec(t, "1"), Components: lines(t, c)})
	require.NoError(t, err)
	_, err = svc.Activate(f.Ctx(), created.BOM.ID, "qa", true)
	require.NoError(t, err)

	_, err = svc.ReplaceComponents(f.Ctx(), created.BOM.ID, nil)
	require.ErrorIs(t, err, entities.ErrInvalidBOM, "active BOMs keep at least one component")

	obsolete, err := svc.MarkObsolete(f.Ctx(), created.BOM.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.BOMObsolete, obsolete.Status)
	assert.False(t, obsolete.IsDefault)

	_, err = svc.MarkObsolete(f.Ctx(), created.BOM.ID)
	require.ErrorIs(t, err, entities.ErrInvalidState)

	_, err = svc.ReplaceComponents(f.Ctx(), created.BOM.ID, lines(t, c))
	require.ErrorIs(t, err, entities.ErrInvalidState)

	_, err = NewResolver(f.Store, Config{}, nil).Explode(f.Ctx(), fg.ID, dec(t, "1"), 0)
	require.ErrorIs(t, err, entities.ErrBOMNotFound, "obsolete BOMs are never selected")
}

func TestService_ReplaceComponents(t *testing.T) {
	f := servicetest.NewFixture(t)
	fg := f.Product("FG", entities.FinishedGood, "0", 0)
	a := f.Product("A", entities.RawMaterial, "1", 0)
	b := f.Product("B", entities.RawMaterial, "2", 0)
	svc, _ := newService(t, f)

	created, err := svc.CreateBOM(f.Ctx(), CreateBOMInput{ProductID: fg.ID, Version: "v1", YieldQuantity: dec(t, "1"), Components: lines(t, a)})
	require.NoError(t, err)

	replaced, err := svc.ReplaceComponents(f.Ctx(), created.BOM.ID, []ComponentInput{
		{ComponentID: b.ID, Quantity: dec(t, "3"), Sequence: 5, IsOptional: true},
	})
	require.NoError(t, err)
	require.Len(t, replaced.Components, 1)

	stored, err := svc.GetBOM(f.Ctx(), created.BOM.ID)
	require.NoError(t, err)
	require.Len(t, stored.Components, 1)
	assert.Equal(t, b.ID, stored.Components[0].ComponentID)
	assert.Equal(t, 5, stored.Components[0].Sequence)
	assert.False(t, stored.Components[0].IsRequired)
}

func TestService_CycleThroughNonDefaultSibling(t *testing.T) {
	f := servicetest.NewFixture(t)
	a := f.Product("A", entities.Component, "0", 0)
	b := f.Product("B", entities.Component, "0", 0)
	r := f.Product("R", entities.RawMaterial, "1", 0)
	svc, _ := newService(t, f)

	v1, err := svc.CreateBOM(f.Ctx(), CreateBOMInput{ProductID: a.ID, Version: "v1", YieldQuantity: dec(t, "1"), Components: lines(t, r)})
	require.NoError(t, err)
	_, err = svc.Activate(f.Ctx(), v1.BOM.ID, "qa", true)
	require.NoError(t, err)
	v2, err := svc.CreateBOM(f.Ctx(), CreateBOMInput{ProductID: a.ID, Version: "v2", YieldQuantity: dec(t, "1"), Components: lines(t, b)})
	require.NoError(t, err)
	_, err = svc.Activate(f.Ctx(), v2.BOM.ID, "qa", false)
	require.NoError(t, err)

	_, err = svc.CreateBOM(f.Ctx(), CreateBOMInput{ProductID: b.ID, Version: "v1", YieldQuantity: dec(t, "1"), Components: lines(t, a)})
	require.ErrorIs(t, err, entities.ErrCircularDependency)

	// retiring the default leaves v2 in charge, and it explodes cleanly
	_, err = svc.MarkObsolete(f.Ctx(), v1.BOM.ID)
	require.NoError(t, err)
	_, err = NewResolver(f.Store, Config{}, nil).Explode(f.Ctx(), a.ID, dec(t, "1"), 0)
	require.NoError(t, err)
}

func TestService_CycleThroughFutureDatedBOM(t *testing.T) {
	f := servicetest.NewFixture(t)
	a := f.Product("A", entities.Component, "0", 0)
	b := f.Product("B", entities.Component, "0", 0)
	svc, _ := newService(t, f)

	// drafted before A -> B exists, so creation passes
	draftB, err := svc.CreateBOM(f.Ctx(), CreateBOMInput{ProductID: b.ID, Version: "v1", YieldQuantity: dec(t, "1"), Components: lines(t, a)})
	require.NoError(t, err)

	tomorrow := time.Now().UTC().Add(24 * time.Hour)
	futureA, err := svc.CreateBOM(f.Ctx(), CreateBOMInput{ProductID: a.ID, Version: "v1", YieldQuantity: dec(t, "1"), EffectiveDate: tomorrow, Components: lines(t, b)})
	require.NoError(t, err)
	_, err = svc.Activate(f.Ctx(), futureA.BOM.ID, "qa", true)
	require.NoError(t, err)

	_, err = svc.Activate(f.Ctx(), draftB.BOM.ID, "qa", true)
	require.ErrorIs(t, err, entities.ErrCircularDependency)

	_, err = svc.CreateBOM(f.Ctx(), CreateBOMInput{ProductID: b.ID, Version: "v2", YieldQuantity: dec(t, "1"), Components: lines(t, a)})
	require.ErrorIs(t, err, entities.ErrCircularDependency)
}

func TestService_DraftDefaultAppliedOnActivate(t *testing.T) {
	f := servicetest.NewFixture(t)
	fg := f.Product("FG", entities.FinishedGood, "0", 0)
	c := f.Product("C", entities.RawMaterial, "1", 0)
	svc, _ := newService(t, f)

	v1, err := svc.CreateBOM(f.Ctx(), CreateBOMInput{ProductID: fg.ID, Version: "v1", YieldQuantity: dec(t, "1"), Components: lines(t, c)})
	require.NoError(t, err)
	_, err = svc.Activate(f.Ctx(), v1.BOM.ID, "qa", true)
	require.NoError(t, err)

	v2, err := svc.CreateBOM(f.Ctx(), CreateBOMInput{ProductID: fg.ID, Version: "v2", YieldQuantity: dec(t, "1"), IsDefault: true, Components: lines(t, c)})
	require.NoError(t, err)

	got1, err := svc.GetBOM(f.Ctx(), v1.BOM.ID)
	require.NoError(t, err)
	assert.True(t, got1.BOM.IsDefault, "an active default survives a default draft")
	active, err := f.Store.BOMs().GetActiveBOM(f.Ctx(), servicetest.TenantID, fg.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, v1.BOM.ID, active.ID)

	_, err = svc.Activate(f.Ctx(), v2.BOM.ID, "qa", false)
	require.NoError(t, err)

	got1, err = svc.GetBOM(f.Ctx(), v1.BOM.ID)
	require.NoError(t, err)
	got2, err := svc.GetBOM(f.Ctx(), v2.BOM.ID)
	require.NoError(t, err)
	assert.False(t, got1.BOM.IsDefault)
	assert.True(t, got2.BOM.IsDefault)
}
