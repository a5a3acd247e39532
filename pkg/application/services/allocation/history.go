package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/application/dto"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/repositories"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/tenant"
)

// HistoryQuery filters issue entries. Zero values mean unbounded.
type HistoryQuery struct {
	ProductID     string
	WarehouseCode string
	From          time.Time
	To            time.Time
	Limit         int
}

// ConsumptionHistory returns issue transactions, newest first
func (e *Engine) ConsumptionHistory(ctx context.Context, q HistoryQuery) ([]*entities.InventoryTransaction, error) {
	txs, err := e.store.Inventory().FindTransactions(ctx, repositories.TransactionQuery{
		TenantID:      tenant.FromContext(ctx),
		ProductID:     q.ProductID,
		Types:         []entities.TransactionType{entities.TxIssue},
		WarehouseCode: q.WarehouseCode,
		From:          q.From,
		To:            q.To,
		Limit:         q.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load consumption history: %w", err)
	}
	return txs, nil
}

// ConsumptionRate averages the quantity of productID issued per day over the
// last days days.
func (e *Engine) ConsumptionRate(ctx context.Context, productID string, days int) (*dto.ConsumptionRate, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive, got %d", entities.ErrInvalidQuantity, days)
	}
	to := e.now()
	from := to.AddDate(0, 0, -days)

	txs, err := e.ConsumptionHistory(ctx, HistoryQuery{ProductID: productID, From: from, To: to.Add(time.Nanosecond)})
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Quantity)
	}
	return &dto.ConsumptionRate{
		ProductID:        productID,
		Days:             days,
		From:             from,
		To:               to,
		TotalConsumed:    total,
		AveragePerDay:    total.DivRound(decimal.NewFromInt(int64(days)), 4),
		TransactionCount: len(txs),
	}, nil
}
