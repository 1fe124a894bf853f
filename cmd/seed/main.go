// Package main provides a CLI tool for seeding the database with initial data.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/entity"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/auth"
	"tillpoint/internal/domain/catalogs/item"
	"tillpoint/internal/domain/ledger"
	"tillpoint/internal/domain/promo"
	"tillpoint/internal/infrastructure/storage/postgres"
	"tillpoint/internal/infrastructure/storage/postgres/auth_repo"
	"tillpoint/internal/infrastructure/storage/postgres/catalog_repo"
	"tillpoint/internal/infrastructure/storage/postgres/register_repo"
	"tillpoint/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	poolCfg := postgres.DefaultPoolConfig(dbURL)
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txManager := postgres.NewTxManager(pool)

	if err := seedManagerOperator(ctx, txManager, log); err != nil {
		log.Fatalw("failed to seed manager operator", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedDemoData(ctx, txManager, log); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

// seedManagerOperator creates the bootstrap manager account. Every other
// operator is registered through the API by a manager, so without this one
// a fresh install cannot log in at all.
func seedManagerOperator(ctx context.Context, txManager *postgres.TxManager, log *logger.Logger) error {
	operators := auth_repo.NewOperatorRepo(txManager)

	code := os.Getenv("MANAGER_CODE")
	if code == "" {
		code = "manager"
	}

	pin := os.Getenv("MANAGER_PIN")
	if pin == "" {
		pin = "0000"
	}

	existing, err := operators.GetByCode(ctx, code)
	if err == nil {
		log.Infow("manager operator already exists", "code", code, "operator_id", existing.ID)
		return nil
	}
	if !apperror.IsNotFound(err) {
		return fmt.Errorf("check manager exists: %w", err)
	}

	pinHash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}

	op := auth.NewOperator(code, "Store Manager", auth.RoleManager, string(pinHash))
	if err := operators.Create(ctx, op); err != nil {
		return fmt.Errorf("insert manager operator: %w", err)
	}

	log.Infow("manager operator created", "code", code, "operator_id", op.ID)
	return nil
}

func seedDemoData(ctx context.Context, txManager *postgres.TxManager, log *logger.Logger) error {
	itemRepo := catalog_repo.NewItemRepo(txManager)
	ledgerRepo := register_repo.NewLedgerRepo(txManager)
	promotionRepo := catalog_repo.NewPromotionRepo(txManager)

	ledgerService := ledger.NewService(ledgerRepo, itemRepo)
	items := item.NewService(itemRepo, ledgerService, txManager)

	goods := []struct {
		code, name, barcode string
		salePrice, unitCost string
		stock               float64
	}{
		{"ESP-001", "Espresso Beans 1kg", "4006381333931", "18.50", "11.20", 40},
		{"MLK-001", "Whole Milk 1L", "4006381333948", "1.80", "1.05", 120},
		{"CUP-012", "Paper Cup 12oz", "4006381333955", "0.20", "0.08", 500},
	}

	for _, g := range goods {
		if _, err := itemRepo.GetByBarcode(ctx, g.barcode); err == nil {
			log.Infow("demo item already exists", "code", g.code)
			continue
		} else if !apperror.IsNotFound(err) {
			return fmt.Errorf("check item %s: %w", g.code, err)
		}

		it := item.NewStockItem(g.code, g.name, item.TypeGoods)
		barcode := g.barcode
		it.Barcode = &barcode
		it.SalePrice = types.MustMoney(g.salePrice)
		it.UnitCost = types.MustMoney(g.unitCost)

		if err := items.Create(ctx, it); err != nil {
			return fmt.Errorf("create item %s: %w", g.code, err)
		}
		if _, err := items.Adjust(ctx, it.ID, types.NewQuantityFromFloat64(g.stock), "initial stock", "seed"); err != nil {
			return fmt.Errorf("stock item %s: %w", g.code, err)
		}
		log.Infow("demo item created", "code", g.code, "stock", g.stock)
	}

	promoCode := "WELCOME10"
	def := &promo.Definition{
		Catalog:       entity.NewCatalog(promoCode, "10% off orders over 20"),
		Type:          promo.TypePercentage,
		Value:         types.MustMoney("10"),
		MinimumAmount: types.MustMoney("20"),
		Combinable:    true,
		Priority:      100,
		ValidFrom:     time.Now().UTC(),
		ValidTo:       time.Now().UTC().AddDate(1, 0, 0),
	}
	if err := def.Validate(ctx); err != nil {
		return fmt.Errorf("validate promotion: %w", err)
	}
	if err := promotionRepo.Create(ctx, def); err != nil {
		if apperror.IsDuplicate(err) {
			log.Infow("demo promotion already exists", "code", promoCode)
			return nil
		}
		return fmt.Errorf("create promotion: %w", err)
	}
	log.Infow("demo promotion created", "code", promoCode)

	return nil
}
