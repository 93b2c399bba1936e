package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom-backend/internal/inventory"
	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the shopper's cart. Cart rows are soft reservations: they
// shape the availability numbers everyone sees, but only order placement is
// allowed to touch real stock.
type Service interface {
	AddItem(ctx context.Context, userID, productID uuid.UUID, delta int) (*View, error)
	SetQuantity(ctx context.Context, userID, itemID uuid.UUID, qty int) (*View, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
	GetCart(ctx context.Context, userID uuid.UUID) (*View, error)
}

type service struct {
	tx        txRunner
	repo      *Repository
	inventory *inventory.Repository
}

// NewService builds the cart service.
func NewService(tx txRunner, repo *Repository, inventoryRepo *inventory.Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if inventoryRepo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{tx: tx, repo: repo, inventory: inventoryRepo}, nil
}

func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, delta int) (*View, error) {
	if delta == 0 {
		delta = 1
	}
	if delta < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		invRepo := s.inventory.WithTx(tx)

		available, err := invRepo.AvailableStock(ctx, productID)
		if err != nil {
			return err
		}

		record, err := repo.FindByUser(ctx, userID)
		if err != nil {
			return err
		}

		var existing int
		if record != nil {
			item, err := repo.FindItem(ctx, record.ID, productID)
			if err != nil {
				return err
			}
			if item != nil {
				existing = item.Quantity
			}
		}

		if available <= 0 {
			return pkgerrors.New(pkgerrors.CodeStock, "out of stock")
		}
		// available already subtracts this user's own reservation; add it
		// back so the cap is against everyone else's reservations only.
		availableExcludingOwn := available + existing
		if existing+delta > availableExcludingOwn {
			return pkgerrors.New(pkgerrors.CodeStock, "stock limit reached")
		}

		if record == nil {
			record, err = repo.EnsureForUser(ctx, userID)
			if err != nil {
				return err
			}
		}

		item, err := repo.FindItem(ctx, record.ID, productID)
		if err != nil {
			return err
		}
		if item == nil {
			err = repo.CreateItem(ctx, &models.CartItem{
				CartID:    record.ID,
				ProductID: productID,
				Quantity:  delta,
			})
		} else {
			err = repo.SetItemQuantity(ctx, item.ID, item.Quantity+delta)
		}
		if err != nil {
			return err
		}

		view, err = s.loadView(ctx, repo, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) SetQuantity(ctx context.Context, userID, itemID uuid.UUID, qty int) (*View, error) {
	if qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	var view *View
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := repo.FindItemForUser(ctx, itemID, userID)
		if err != nil {
			return err
		}
		if err := repo.SetItemQuantity(ctx, item.ID, qty); err != nil {
			return err
		}

		view, err = s.loadView(ctx, repo, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// RemoveItem is idempotent: deleting an item that is already gone succeeds.
func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	return s.repo.DeleteItemForUser(ctx, itemID, userID)
}

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*View, error) {
	return s.loadView(ctx, s.repo, userID)
}

func (s *service) loadView(ctx context.Context, repo *Repository, userID uuid.UUID) (*View, error) {
	record, err := repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return emptyView(), nil
	}
	items, err := repo.ListItems(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	return buildView(items), nil
}
