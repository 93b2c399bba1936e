package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(&models.User{}, &models.Category{}, &models.Product{}, &models.Cart{}, &models.CartItem{})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func seedProduct(t *testing.T, conn *gorm.DB, stock int) *models.Product {
	t.Helper()
	category := &models.Category{ID: uuid.New(), Name: "widgets-" + uuid.NewString()[:8]}
	if err := conn.Create(category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	product := &models.Product{
		ID:          uuid.New(),
		StockCode:   "SKU-" + uuid.NewString()[:8],
		Description: "a widget",
		UnitPrice:   decimal.NewFromFloat(9.99),
		StockQty:    stock,
		CategoryID:  category.ID,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func seedCartWithItem(t *testing.T, conn *gorm.DB, productID uuid.UUID, qty int) *models.Cart {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		LoginID:      "user-" + uuid.NewString()[:8],
		Email:        uuid.NewString()[:8] + "@example.com",
		PasswordHash: "x",
		Role:         enums.UserRoleUser,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	cart := &models.Cart{ID: uuid.New(), UserID: user.ID}
	if err := conn.Create(cart).Error; err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	item := &models.CartItem{ID: uuid.New(), CartID: cart.ID, ProductID: productID, Quantity: qty}
	if err := conn.Create(item).Error; err != nil {
		t.Fatalf("seed cart item: %v", err)
	}
	return cart
}

func TestDecrementTakesStock(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	product := seedProduct(t, conn, 10)

	if err := repo.Decrement(context.Background(), product.ID, 4); err != nil {
		t.Fatalf("decrement: %v", err)
	}

	total, err := repo.TotalStock(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("total stock: %v", err)
	}
	if total != 6 {
		t.Fatalf("expected 6 remaining, got %d", total)
	}
}

func TestDecrementToZeroSucceeds(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	product := seedProduct(t, conn, 3)

	if err := repo.Decrement(context.Background(), product.ID, 3); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	total, _ := repo.TotalStock(context.Background(), product.ID)
	if total != 0 {
		t.Fatalf("expected 0 remaining, got %d", total)
	}
}

func TestDecrementInsufficientStockWritesNothing(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	product := seedProduct(t, conn, 2)

	err := repo.Decrement(context.Background(), product.ID, 3)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStock {
		t.Fatalf("expected stock error, got %v", err)
	}

	total, _ := repo.TotalStock(context.Background(), product.ID)
	if total != 2 {
		t.Fatalf("stock must be untouched, got %d", total)
	}
}

func TestDecrementUnknownProduct(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)

	err := repo.Decrement(context.Background(), uuid.New(), 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStock {
		t.Fatalf("expected stock error for missing product, got %v", err)
	}
}

func TestAvailableStockSubtractsAllCarts(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	product := seedProduct(t, conn, 10)

	seedCartWithItem(t, conn, product.ID, 3)
	seedCartWithItem(t, conn, product.ID, 2)

	available, err := repo.AvailableStock(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("available stock: %v", err)
	}
	if available != 5 {
		t.Fatalf("expected 5 available, got %d", available)
	}

	total, err := repo.TotalStock(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("total stock: %v", err)
	}
	if total != 10 {
		t.Fatalf("reservations must not touch total stock, got %d", total)
	}
}

func TestAvailableStockNoReservations(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	product := seedProduct(t, conn, 7)

	available, err := repo.AvailableStock(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("available stock: %v", err)
	}
	if available != 7 {
		t.Fatalf("expected 7 available, got %d", available)
	}
}

func TestAvailableStockUnknownProduct(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)

	_, err := repo.AvailableStock(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInUseAndClearReservations(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	product := seedProduct(t, conn, 10)

	inUse, err := repo.InUse(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("in use: %v", err)
	}
	if inUse {
		t.Fatal("expected no references yet")
	}

	seedCartWithItem(t, conn, product.ID, 2)
	inUse, err = repo.InUse(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("in use: %v", err)
	}
	if !inUse {
		t.Fatal("expected product to be referenced")
	}

	if err := repo.ClearReservations(context.Background(), product.ID); err != nil {
		t.Fatalf("clear reservations: %v", err)
	}
	inUse, _ = repo.InUse(context.Background(), product.ID)
	if inUse {
		t.Fatal("expected references cleared")
	}
}
