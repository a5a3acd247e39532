package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
)

func TestInMemoryEventStore_StreamVersions(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryEventStore(zaptest.NewLogger(t))

	require.NoError(t, store.Publish(ctx,
		NewEvent(BOMCreatedEvent, "acme", "bom-FG", nil),
		NewEvent(BOMActivatedEvent, "acme", "bom-FG", nil),
		NewEvent(LotReceivedEvent, "acme", "lot-1", nil),
	))

	stream, err := store.ReadEvents("bom-FG", 0)
	require.NoError(t, err)
	require.Len(t, stream, 2)
	assert.Equal(t, 1, stream[0].Version())
	assert.Equal(t, 2, stream[1].Version())
	assert.Equal(t, "acme", stream[1].TenantID())

	tail, err := store.ReadEvents("bom-FG", 2)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, BOMActivatedEvent, tail[0].Type())

	all, err := store.ReadAllEvents(1)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := store.ReadEvents("missing", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInMemoryEventStore_Subscribers(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryEventStore(zaptest.NewLogger(t))

	var consumed, everything []string
	consumedHandler := &HandlerFunc{
		Types: []string{MaterialsConsumedEvent},
		Fn: func(ctx context.Context, e Event) error {
			consumed = append(consumed, e.StreamID())
			return nil
		},
	}
	failing := &HandlerFunc{Fn: func(ctx context.Context, e Event) error {
		everything = append(everything, e.Type())
		return errors.New("handler down")
	}}
	require.NoError(t, store.Subscribe([]string{MaterialsConsumedEvent}, consumedHandler))
	require.NoError(t, store.Subscribe([]string{AllEvents}, failing))

	lot, err := entities.NewInventoryLot("acme", "P1", "WH1", "", "L1", decimal.NewFromInt(5), decimal.NewFromInt(2), time.Now())
	require.NoError(t, err)
	issue := entities.NewLotTransaction(lot, entities.TxIssue, decimal.NewFromInt(5), entities.Reference{Type: "wo", ID: "1"}, "", time.Now())

	ref := entities.Reference{Type: "wo", ID: "1"}
	require.NoError(t, store.Publish(ctx, NewLedgerMovementEvent(MaterialsConsumedEvent, "acme", ref, []*entities.InventoryTransaction{issue})))
	require.NoError(t, store.Publish(ctx, NewLotReceivedEvent(lot, issue)))

	assert.Equal(t, []string{"reference-wo-1"}, consumed)
	assert.Equal(t, []string{MaterialsConsumedEvent, LotReceivedEvent}, everything)

	require.NoError(t, store.Unsubscribe(failing))
	require.NoError(t, store.Publish(ctx, NewLotReceivedEvent(lot, issue)))
	assert.Len(t, everything, 2)

	events, err := store.ReadEvents("reference-wo-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	movement := events[0].Data().(LedgerMovement)
	assert.True(t, movement.TotalCost.Equal(decimal.NewFromInt(10)))
}

func TestInMemoryEventStore_SubscribeRejectsBadInput(t *testing.T) {
	store := NewInMemoryEventStore(zaptest.NewLogger(t))
	handler := &HandlerFunc{Fn: func(ctx context.Context, e Event) error { return nil }}

	tests := []struct {
		name    string
		types   []string
		handler EventHandler
	}{
		{"nil handler", []string{AllEvents}, nil},
		{"no types", nil, handler},
		{"empty type", []string{LotReceivedEvent, ""}, handler},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, store.Subscribe(tt.types, tt.handler))
		})
	}

	require.NoError(t, store.Publish(context.Background(), NewEvent(LotReceivedEvent, "acme", "lot-1", nil)))
	all, err := store.ReadAllEvents(0)
	require.NoError(t, err)
	assert.Len(t, all, 1, "rejected subscriptions leave the store usable")
}
