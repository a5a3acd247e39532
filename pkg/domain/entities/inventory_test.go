package entities

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestInventoryLot_Validation(t *testing.T) {
	received := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	lot, err := NewInventoryLot("t1", "PART123", "WH1", "A-01", "LOT001", dec(10), dec(3), received)
	if err != nil {
		t.Fatalf("Expected valid lot creation to succeed: %v", err)
	}
	if !lot.QuantityAvailable.Equal(dec(10)) || !lot.QuantityOnHand.Equal(dec(10)) {
		t.Errorf("Expected 10 on hand and available, got %s/%s", lot.QuantityOnHand, lot.QuantityAvailable)
	}
	if err := lot.Validate(); err != nil {
		t.Errorf("Expected new lot to satisfy invariant: %v", err)
	}

	testCases := []struct {
		name        string
		productID   string
		warehouse   string
		lotNumber   string
		quantity    decimal.Decimal
		expectError string
	}{
		{"empty product", "", "WH1", "LOT001", dec(10), "product cannot be empty"},
		{"empty warehouse", "PART123", "", "LOT001", dec(10), "warehouse cannot be empty"},
		{"empty lot number", "PART123", "WH1", "", dec(10), "lot number cannot be empty"},
		{"negative quantity", "PART123", "WH1", "LOT001", dec(-5), "invalid quantity: quantity cannot be negative, got -5"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewInventoryLot("t1", tc.productID, tc.warehouse, "A-01", tc.lotNumber, tc.quantity, dec(1), received)
			if err == nil {
				t.Fatalf("Expected error for %s, but got none", tc.name)
			}
			if err.Error() != tc.expectError {
				t.Errorf("Expected error '%s', got '%s'", tc.expectError, err.Error())
			}
		})
	}
}

func TestInventoryLot_Movements(t *testing.T) {
	now := time.Now()
	lot, err := NewInventoryLot("t1", "PART123", "WH1", "A-01", "LOT001", dec(15), dec(10), now)
	if err != nil {
		t.Fatalf("NewInventoryLot failed: %v", err)
	}

	if err := lot.Reserve(dec(5), now); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if !lot.QuantityAvailable.Equal(dec(10)) || !lot.QuantityReserved.Equal(dec(5)) || !lot.QuantityOnHand.Equal(dec(15)) {
		t.Errorf("Unexpected quantities after reserve: %+v", lot)
	}

	if err := lot.Consume(dec(10), now); err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if !lot.QuantityAvailable.IsZero() || !lot.QuantityOnHand.Equal(dec(5)) {
		t.Errorf("Unexpected quantities after consume: %+v", lot)
	}

	if err := lot.Consume(dec(1), now); !errors.Is(err, ErrInsufficientInventory) {
		t.Errorf("Expected consuming reserved stock to fail, got %v", err)
	}

	if err := lot.Release(dec(6), now); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("Expected over-release to fail, got %v", err)
	}

	if err := lot.Release(dec(5), now); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if !lot.QuantityAvailable.Equal(dec(5)) || !lot.QuantityReserved.IsZero() {
		t.Errorf("Unexpected quantities after release: %+v", lot)
	}

	if err := lot.Adjust(dec(-6), now); !errors.Is(err, ErrInsufficientInventory) {
		t.Errorf("Expected adjustment below zero to fail, got %v", err)
	}
	if err := lot.Adjust(dec(3), now); err != nil {
		t.Fatalf("Adjust failed: %v", err)
	}
	if !lot.QuantityOnHand.Equal(dec(8)) {
		t.Errorf("Expected 8 on hand after adjustment, got %s", lot.QuantityOnHand)
	}

	if err := lot.Validate(); err != nil {
		t.Errorf("Invariant broken after movements: %v", err)
	}
}

func TestInventoryLot_ValidateDetectsDrift(t *testing.T) {
	lot := &InventoryLot{
		ID:                "L1",
		QuantityOnHand:    dec(10),
		QuantityAvailable: dec(6),
		QuantityReserved:  dec(3),
	}
	if err := lot.Validate(); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("Expected invariant violation, got %v", err)
	}
}

func TestNewLotTransaction(t *testing.T) {
	now := time.Now()
	lot, _ := NewInventoryLot("t1", "PART123", "WH1", "A-01", "LOT001", dec(15), dec(12), now)

	issue := NewLotTransaction(lot, TxIssue, dec(4), Reference{Type: "work_order", ID: "WO-1"}, "", now)
	if !issue.TotalCost.Equal(dec(48)) {
		t.Errorf("Expected total cost 48, got %s", issue.TotalCost)
	}
	if issue.FromLocation != "A-01" || issue.ToLocation != "" {
		t.Errorf("Expected issue to move stock out of A-01, got from=%q to=%q", issue.FromLocation, issue.ToLocation)
	}

	receipt := NewLotTransaction(lot, TxReceipt, dec(15), Reference{}, "", now)
	if receipt.ToLocation != "A-01" {
		t.Errorf("Expected receipt into A-01, got %q", receipt.ToLocation)
	}
}

func TestSumLots(t *testing.T) {
	now := time.Now()
	a, _ := NewInventoryLot("t1", "P", "WH1", "A", "L1", dec(10), dec(1), now)
	b, _ := NewInventoryLot("t1", "P", "WH1", "B", "L2", dec(5), dec(1), now)
	_ = b.Reserve(dec(2), now)

	balance := SumLots("P", "WH1", []*InventoryLot{a, b})
	if !balance.QuantityOnHand.Equal(dec(15)) || !balance.QuantityAvailable.Equal(dec(13)) || !balance.QuantityReserved.Equal(dec(2)) {
		t.Errorf("Unexpected balance: %+v", balance)
	}
	if balance.LotCount != 2 {
		t.Errorf("Expected 2 lots, got %d", balance.LotCount)
	}
}
