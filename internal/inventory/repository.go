package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
)

// AvailabilityExpr is the authoritative availability projection: total stock
// minus every quantity currently sitting in any cart. It is recomputed on
// every read and never persisted; catalog listings and the cart store must
// use this exact fragment so they can never disagree.
const AvailabilityExpr = "products.stock_qty - COALESCE((SELECT SUM(ci.quantity) FROM cart_items ci WHERE ci.product_id = products.id), 0)"

// Repository owns stock reads and the conditional decrement used by order
// placement.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx rebinds the repository to an open transaction handle.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// TotalStock returns the raw on-hand quantity, ignoring cart reservations.
func (r *Repository) TotalStock(ctx context.Context, productID uuid.UUID) (int, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Select("stock_qty").
		First(&product, "id = ?", productID).Error
	if err == gorm.ErrRecordNotFound {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product stock")
	}
	return product.StockQty, nil
}

// AvailableStock returns total stock minus all live cart reservations. The
// result can be negative when carts collectively hold more than is on hand.
func (r *Repository) AvailableStock(ctx context.Context, productID uuid.UUID) (int, error) {
	var available int
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select(AvailabilityExpr).
		Where("products.id = ?", productID).
		Scan(&available).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "compute available stock")
	}

	var exists int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", productID).Count(&exists).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if exists == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return available, nil
}

// Decrement atomically takes amount units off a product's stock. The WHERE
// clause is the stock check: zero rows affected means the product is gone or
// short, and nothing was written. Callers inside a placement transaction
// rebind via WithTx so the decrement shares their transaction.
func (r *Repository) Decrement(ctx context.Context, productID uuid.UUID, amount int) error {
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "decrement amount must be positive")
	}

	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_qty >= ?", productID, amount).
		Update("stock_qty", gorm.Expr("stock_qty - ?", amount))
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "decrement stock")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStock, "insufficient stock")
	}
	return nil
}

// InUse reports whether any cart still holds the product. Product deletion
// is refused while this is true.
func (r *Repository) InUse(ctx context.Context, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("product_id = ?", productID).
		Count(&count).Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count cart references")
	}
	return count > 0, nil
}

// ClearReservations drops every cart item referencing the product. Product
// updates call this so carts never hold rows priced or sized against stale
// listings.
func (r *Repository) ClearReservations(ctx context.Context, productID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Delete(&models.CartItem{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart reservations")
	}
	return nil
}
