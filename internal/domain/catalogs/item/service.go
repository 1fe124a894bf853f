package item

import (
	"context"
	"fmt"
	"time"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/tx"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/ledger"
	"tillpoint/pkg/logger"
)

// Service provides business operations for the item catalog.
type Service struct {
	repo      Repository
	ledger    *ledger.Service
	txManager tx.Manager
}

// NewService creates a new item catalog service.
func NewService(repo Repository, ledgerSvc *ledger.Service, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledgerSvc,
		txManager: txManager,
	}
}

// Create creates a new stock item.
func (s *Service) Create(ctx context.Context, it *StockItem) error {
	if err := it.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, it); err != nil {
			return fmt.Errorf("create item: %w", err)
		}
		if it.IsService() && len(it.Materials) > 0 {
			if err := s.repo.SaveMaterials(ctx, it.ID, it.Materials); err != nil {
				return fmt.Errorf("save materials: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "stock item created", "id", it.ID, "code", it.Code, "type", it.Type)
	return nil
}

// Update updates a stock item. Stock quantity is not updated here: all
// quantity changes go through the ledger.
func (s *Service) Update(ctx context.Context, it *StockItem) error {
	if err := it.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, it); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		if it.IsService() {
			if err := s.repo.SaveMaterials(ctx, it.ID, it.Materials); err != nil {
				return fmt.Errorf("save materials: %w", err)
			}
		}
		return nil
	})
}

// GetByID retrieves an item with its material requirements.
func (s *Service) GetByID(ctx context.Context, itemID id.ID) (*StockItem, error) {
	return s.repo.GetByID(ctx, itemID)
}

// GetByBarcode resolves a scanned barcode. The device boundary calls this
// and then Cart.AddLine; it never touches pricing or stock directly.
func (s *Service) GetByBarcode(ctx context.Context, barcode string) (*StockItem, error) {
	if barcode == "" {
		return nil, apperror.NewValidation("barcode is required")
	}
	return s.repo.GetByBarcode(ctx, barcode)
}

// List retrieves items with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*StockItem, error) {
	return s.repo.List(ctx, filter)
}

// Adjust records a manual stock correction. The change and its ledger
// entry commit atomically.
func (s *Service) Adjust(ctx context.Context, itemID id.ID, delta types.Quantity, reason, actor string) (ledger.StockMovement, error) {
	if delta.IsZero() {
		return ledger.StockMovement{}, apperror.NewValidation("adjustment delta must be non-zero")
	}

	var movement ledger.StockMovement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		movement, err = s.ledger.Apply(ctx, ledger.Apply{
			ItemID:        itemID,
			Kind:          ledger.KindAdjustment,
			Delta:         delta,
			ReferenceID:   itemID,
			ReferenceType: "StockAdjustment",
			Reference:     reason,
			Actor:         actor,
			Period:        time.Now().UTC(),
		})
		return err
	})
	if err != nil {
		return ledger.StockMovement{}, err
	}

	logger.Info(ctx, "stock adjusted",
		"item_id", itemID,
		"delta", delta,
		"reason", reason,
	)
	return movement, nil
}

// Delete soft-deletes an item. Remaining stock is zeroed with a
// logical-deletion movement so the ledger still reconciles.
func (s *Service) Delete(ctx context.Context, itemID id.ID, actor string) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		it, err := s.repo.GetForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if it.DeletionMark {
			return nil
		}

		if it.Quantity.IsPositive() {
			_, err = s.ledger.Apply(ctx, ledger.Apply{
				ItemID:        itemID,
				Kind:          ledger.KindLogicalDeletion,
				Delta:         it.Quantity.Neg(),
				ReferenceID:   itemID,
				ReferenceType: "ItemDeletion",
				Actor:         actor,
				Period:        time.Now().UTC(),
			})
			if err != nil {
				return err
			}
		}

		it.MarkDeleted()
		it.ForSale = false
		if err := s.repo.Update(ctx, it); err != nil {
			return fmt.Errorf("mark deleted: %w", err)
		}

		logger.Info(ctx, "stock item deleted", "id", itemID)
		return nil
	})
}
