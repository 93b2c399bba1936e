package checkout

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom-backend/internal/cart"
	"github.com/stockroomhq/stockroom-backend/internal/inventory"
	"github.com/stockroomhq/stockroom-backend/internal/orders"
	"github.com/stockroomhq/stockroom-backend/pkg/db"
	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(
		&models.User{}, &models.Category{}, &models.Product{},
		&models.Cart{}, &models.CartItem{},
		&models.Order{}, &models.OrderItem{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

type fixture struct {
	conn     *gorm.DB
	checkout Service
	carts    cart.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := newTestDB(t)
	runner := db.NewFromConn(conn)
	cartRepo := cart.NewRepository(conn)
	invRepo := inventory.NewRepository(conn)

	cartSvc, err := cart.NewService(runner, cartRepo, invRepo)
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}
	checkoutSvc, err := NewService(runner, cartRepo, orders.NewRepository(conn), invRepo)
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}
	return &fixture{conn: conn, checkout: checkoutSvc, carts: cartSvc}
}

func (f *fixture) seedUser(t *testing.T) uuid.UUID {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		LoginID:      "user-" + uuid.NewString()[:8],
		Email:        uuid.NewString()[:8] + "@example.com",
		PasswordHash: "x",
		Role:         enums.UserRoleUser,
	}
	if err := f.conn.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user.ID
}

func (f *fixture) seedProduct(t *testing.T, stock int, price string) *models.Product {
	t.Helper()
	category := &models.Category{ID: uuid.New(), Name: "widgets-" + uuid.NewString()[:8]}
	if err := f.conn.Create(category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	product := &models.Product{
		ID:          uuid.New(),
		StockCode:   "SKU-" + uuid.NewString()[:8],
		Description: "a widget",
		UnitPrice:   decimal.RequireFromString(price),
		StockQty:    stock,
		CategoryID:  category.ID,
	}
	if err := f.conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func (f *fixture) stockOf(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := f.conn.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return product.StockQty
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var count int64
	if err := f.conn.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return count
}

func testAddress() Address {
	return Address{
		Line1:      "1 Main St",
		City:       "Springfield",
		State:      "IL",
		PostalCode: "62701",
	}
}

func TestPlaceOrderHappyPath(t *testing.T) {
	f := newFixture(t)
	userID := f.seedUser(t)
	product := f.seedProduct(t, 5, "10.00")

	ctx := context.Background()
	if _, err := f.carts.AddItem(ctx, userID, product.ID, 3); err != nil {
		t.Fatalf("add item: %v", err)
	}

	order, err := f.checkout.PlaceOrder(ctx, userID, testAddress())
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if order.Status != enums.OrderStatusPlaced {
		t.Fatalf("expected placed, got %s", order.Status)
	}
	if !order.Total.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("expected total 30.00, got %s", order.Total)
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 3 {
		t.Fatalf("unexpected items %+v", order.Items)
	}
	if !order.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("expected unit price snapshot 10.00, got %s", order.Items[0].UnitPrice)
	}

	if got := f.stockOf(t, product.ID); got != 2 {
		t.Fatalf("expected stock 2 after placement, got %d", got)
	}
	if f.count(t, &models.Cart{}) != 0 || f.count(t, &models.CartItem{}) != 0 {
		t.Fatal("expected cart fully cleared")
	}
}

func TestPlaceOrderWithoutCart(t *testing.T) {
	f := newFixture(t)
	userID := f.seedUser(t)

	_, err := f.checkout.PlaceOrder(context.Background(), userID, testAddress())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStock {
		t.Fatalf("expected stock error, got %v", err)
	}
	if typed.Message() != "cart is empty" {
		t.Fatalf("unexpected message %q", typed.Message())
	}
	if f.count(t, &models.Order{}) != 0 {
		t.Fatal("expected no writes")
	}
}

func TestPlaceOrderValidatesAddress(t *testing.T) {
	f := newFixture(t)
	userID := f.seedUser(t)
	product := f.seedProduct(t, 5, "10.00")

	ctx := context.Background()
	if _, err := f.carts.AddItem(ctx, userID, product.ID, 1); err != nil {
		t.Fatalf("add item: %v", err)
	}

	address := testAddress()
	address.City = "  "
	_, err := f.checkout.PlaceOrder(ctx, userID, address)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := f.stockOf(t, product.ID); got != 5 {
		t.Fatalf("stock must be untouched, got %d", got)
	}
}

func TestPlaceOrderRollsBackWhenAnyItemIsShort(t *testing.T) {
	f := newFixture(t)
	userID := f.seedUser(t)
	plenty := f.seedProduct(t, 10, "5.00")
	scarce := f.seedProduct(t, 5, "2.00")

	ctx := context.Background()
	if _, err := f.carts.AddItem(ctx, userID, plenty.ID, 2); err != nil {
		t.Fatalf("add plenty: %v", err)
	}
	if _, err := f.carts.AddItem(ctx, userID, scarce.ID, 3); err != nil {
		t.Fatalf("add scarce: %v", err)
	}

	// Someone buys the scarce product out from under the cart.
	err := f.conn.Model(&models.Product{}).
		Where("id = ?", scarce.ID).
		Update("stock_qty", 1).Error
	if err != nil {
		t.Fatalf("shrink stock: %v", err)
	}

	_, err = f.checkout.PlaceOrder(ctx, userID, testAddress())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStock {
		t.Fatalf("expected stock error, got %v", err)
	}

	if f.count(t, &models.Order{}) != 0 || f.count(t, &models.OrderItem{}) != 0 {
		t.Fatal("expected no order rows")
	}
	if got := f.stockOf(t, plenty.ID); got != 10 {
		t.Fatalf("expected rollback of the first decrement, got %d", got)
	}
	if got := f.stockOf(t, scarce.ID); got != 1 {
		t.Fatalf("expected scarce stock untouched, got %d", got)
	}
	if f.count(t, &models.CartItem{}) != 2 {
		t.Fatal("expected the cart to survive the failed placement")
	}
}

func TestPlaceOrderConservesStock(t *testing.T) {
	f := newFixture(t)
	userID := f.seedUser(t)
	first := f.seedProduct(t, 8, "1.50")
	second := f.seedProduct(t, 6, "3.00")

	ctx := context.Background()
	if _, err := f.carts.AddItem(ctx, userID, first.ID, 5); err != nil {
		t.Fatalf("add first: %v", err)
	}
	if _, err := f.carts.AddItem(ctx, userID, second.ID, 4); err != nil {
		t.Fatalf("add second: %v", err)
	}

	order, err := f.checkout.PlaceOrder(ctx, userID, testAddress())
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	decremented := map[uuid.UUID]int{first.ID: 8 - f.stockOf(t, first.ID), second.ID: 6 - f.stockOf(t, second.ID)}
	for _, item := range order.Items {
		if decremented[item.ProductID] != item.Quantity {
			t.Fatalf("product %s: ordered %d but decremented %d",
				item.ProductID, item.Quantity, decremented[item.ProductID])
		}
	}
	if !order.Total.Equal(decimal.RequireFromString("19.50")) {
		t.Fatalf("expected total 19.50, got %s", order.Total)
	}
}

func TestPlaceOrderSnapshotsUnitPrice(t *testing.T) {
	f := newFixture(t)
	userID := f.seedUser(t)
	product := f.seedProduct(t, 5, "10.00")

	ctx := context.Background()
	if _, err := f.carts.AddItem(ctx, userID, product.ID, 1); err != nil {
		t.Fatalf("add item: %v", err)
	}
	order, err := f.checkout.PlaceOrder(ctx, userID, testAddress())
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	err = f.conn.Model(&models.Product{}).
		Where("id = ?", product.ID).
		Update("unit_price", decimal.RequireFromString("99.00")).Error
	if err != nil {
		t.Fatalf("reprice product: %v", err)
	}

	var stored models.OrderItem
	if err := f.conn.First(&stored, "order_id = ?", order.ID).Error; err != nil {
		t.Fatalf("load order item: %v", err)
	}
	if !stored.UnitPrice.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("snapshot must survive repricing, got %s", stored.UnitPrice)
	}
}

// The concrete contention scenario: stock 5, A holds 3, B is capped at the
// remaining 2, A's placement frees nothing, B completes with 2.
func TestTwoShoppersContendForStock(t *testing.T) {
	f := newFixture(t)
	userA := f.seedUser(t)
	userB := f.seedUser(t)
	product := f.seedProduct(t, 5, "10.00")

	ctx := context.Background()
	if _, err := f.carts.AddItem(ctx, userA, product.ID, 3); err != nil {
		t.Fatalf("A adds 3: %v", err)
	}
	if _, err := f.carts.AddItem(ctx, userB, product.ID, 3); err == nil {
		t.Fatal("B adds 3: expected stock error")
	}

	orderA, err := f.checkout.PlaceOrder(ctx, userA, testAddress())
	if err != nil {
		t.Fatalf("A places order: %v", err)
	}
	if !orderA.Total.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("expected A's total 30.00, got %s", orderA.Total)
	}
	if got := f.stockOf(t, product.ID); got != 2 {
		t.Fatalf("expected stock 2 after A, got %d", got)
	}

	if _, err := f.carts.AddItem(ctx, userB, product.ID, 2); err != nil {
		t.Fatalf("B retries with 2: %v", err)
	}
	if _, err := f.checkout.PlaceOrder(ctx, userB, testAddress()); err != nil {
		t.Fatalf("B places order: %v", err)
	}
	if got := f.stockOf(t, product.ID); got != 0 {
		t.Fatalf("expected stock 0 after B, got %d", got)
	}
}
