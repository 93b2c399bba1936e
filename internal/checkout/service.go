package checkout

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom-backend/internal/cart"
	"github.com/stockroomhq/stockroom-backend/internal/inventory"
	"github.com/stockroomhq/stockroom-backend/internal/orders"
	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Address is the shipping destination captured on the order.
type Address struct {
	Line1      string  `json:"address_line1" validate:"required"`
	Line2      *string `json:"address_line2"`
	City       string  `json:"city" validate:"required"`
	State      string  `json:"state" validate:"required"`
	PostalCode string  `json:"postal_code" validate:"required"`
}

// Service converts a cart into an order. The whole conversion runs in one
// transaction: the conditional stock decrement is the only stock check, so
// a failed decrement rolls back every other write.
type Service interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, address Address) (*models.Order, error)
}

type service struct {
	tx        txRunner
	cartRepo  *cart.Repository
	orderRepo *orders.Repository
	inventory *inventory.Repository
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	cartRepo *cart.Repository,
	orderRepo *orders.Repository,
	inventoryRepo *inventory.Repository,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if inventoryRepo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{
		tx:        tx,
		cartRepo:  cartRepo,
		orderRepo: orderRepo,
		inventory: inventoryRepo,
	}, nil
}

func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, address Address) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if err := validateAddress(address); err != nil {
		return nil, err
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)
		invRepo := s.inventory.WithTx(tx)

		record, err := cartRepo.FindByUser(ctx, userID)
		if err != nil {
			return err
		}
		if record == nil {
			return pkgerrors.New(pkgerrors.CodeStock, "cart is empty")
		}
		items, err := cartRepo.ListItems(ctx, record.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeStock, "cart is empty")
		}

		// Fixed decrement order keeps row locks ordered the same way for
		// every concurrent placement.
		sort.Slice(items, func(i, j int) bool {
			return strings.Compare(items[i].ProductID.String(), items[j].ProductID.String()) < 0
		})

		total := decimal.Zero
		lines := make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			if item.Product == nil {
				return pkgerrors.New(pkgerrors.CodeDependency, "cart item missing product")
			}
			if err := invRepo.Decrement(ctx, item.ProductID, item.Quantity); err != nil {
				if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStock {
					return pkgerrors.New(pkgerrors.CodeStock,
						fmt.Sprintf("insufficient stock for %s", item.Product.StockCode))
				}
				return err
			}
			lineTotal := item.Product.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
			total = total.Add(lineTotal)
			lines = append(lines, models.OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.Product.UnitPrice,
			})
		}

		order := &models.Order{
			UserID:       userID,
			Status:       enums.OrderStatusPlaced,
			Total:        total,
			AddressLine1: address.Line1,
			AddressLine2: address.Line2,
			City:         address.City,
			State:        address.State,
			PostalCode:   address.PostalCode,
			Items:        lines,
		}
		if err := orderRepo.Create(ctx, order); err != nil {
			return err
		}

		if err := cartRepo.Destroy(ctx, record.ID); err != nil {
			return err
		}

		result, err = orderRepo.FindByID(ctx, order.ID)
		return err
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order placement failed")
		}
		return nil, err
	}
	return result, nil
}

func validateAddress(address Address) error {
	missing := []string{}
	if strings.TrimSpace(address.Line1) == "" {
		missing = append(missing, "address_line1")
	}
	if strings.TrimSpace(address.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(address.State) == "" {
		missing = append(missing, "state")
	}
	if strings.TrimSpace(address.PostalCode) == "" {
		missing = append(missing, "postal_code")
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("missing address fields: %s", strings.Join(missing, ", ")))
	}
	return nil
}
