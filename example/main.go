package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/application/services/allocation"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/application/services/mrp"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/domain/entities"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/infrastructure/config"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/interfaces/cli/commands"
	"github.com/kcstrada/manufacturing-execution-system-sub001/pkg/interfaces/cli/output"
)

func main() {
	dir := "example/bicycle"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	cfg := config.LoadEnv()
	cfg.Store.Driver = config.StoreMemory
	cfg.Lock.Backend = config.LockMemory

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	app, err := commands.NewApp(ctx, cfg, dir, logger)
	if err != nil {
		log.Fatalf("loading scenario: %v", err)
	}
	defer app.Close()
	ctx = app.Context(ctx)

	bike, err := app.ResolveProduct(ctx, "BIKE")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("BOM explosion for 2 bicycles:")
	tree, err := app.Resolver.Explode(ctx, bike.ID, decimal.NewFromInt(2), 0)
	if err != nil {
		log.Fatal(err)
	}
	output.ExplosionTree(os.Stdout, tree)

	fmt.Println("\nMaterial requirements for 2 bicycles:")
	req, err := app.Planner.CalculateRequirements(ctx, mrp.RequirementRequest{
		ProductID:            bike.ID,
		Quantity:             decimal.NewFromInt(2),
		IncludeSubComponents: true,
	})
	if err != nil {
		log.Fatal(err)
	}
	output.Requirements(os.Stdout, req)

	// Only the direct components are issued, wheels come from stock
	direct, err := app.Planner.CalculateRequirements(ctx, mrp.RequirementRequest{
		ProductID: bike.ID,
		Quantity:  decimal.NewFromInt(2),
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("\nIssuing components for work order WO-1001:")
	result, err := app.Engine.Consume(ctx, allocation.ConsumeRequest{
		Requirements:  direct.Components,
		ReferenceType: "work_order",
		ReferenceID:   "WO-1001",
	})
	var short *entities.InsufficientMaterialsError
	switch {
	case errors.As(err, &short):
		output.Shortages(os.Stdout, short.Shortages)
	case err != nil:
		log.Fatal(err)
	default:
		output.Consumption(os.Stdout, result)
	}
}
