package reports

import (
	"context"
	"testing"
	"time"

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
	dsn := "file:reports_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(&models.Category{}, &models.Product{}, &models.Order{}, &models.OrderItem{})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func seedProduct(t *testing.T, conn *gorm.DB, code string) *models.Product {
	t.Helper()
	category := &models.Category{ID: uuid.New(), Name: "widgets-" + uuid.NewString()[:8]}
	if err := conn.Create(category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	product := &models.Product{
		ID:          uuid.New(),
		StockCode:   code,
		Description: "a widget",
		UnitPrice:   decimal.NewFromInt(10),
		StockQty:    100,
		CategoryID:  category.ID,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func seedOrder(t *testing.T, conn *gorm.DB, status enums.OrderStatus, createdAt time.Time, items []models.OrderItem) {
	t.Helper()
	total := decimal.Zero
	for i := range items {
		items[i].ID = uuid.New()
		total = total.Add(items[i].UnitPrice.Mul(decimal.NewFromInt(int64(items[i].Quantity))))
	}
	order := &models.Order{
		ID:           uuid.New(),
		UserID:       uuid.New(),
		Status:       status,
		Total:        total,
		AddressLine1: "1 Main St",
		City:         "Springfield",
		State:        "IL",
		PostalCode:   "62701",
		Items:        items,
		CreatedAt:    createdAt,
	}
	if err := conn.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
}

func TestSalesAggregatesWindow(t *testing.T) {
	conn := newTestDB(t)
	svc, err := NewService(conn)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	widget := seedProduct(t, conn, "SKU-WIDGET")
	gadget := seedProduct(t, conn, "SKU-GADGET")

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	seedOrder(t, conn, enums.OrderStatusPlaced, from.Add(24*time.Hour), []models.OrderItem{
		{ProductID: widget.ID, Quantity: 3, UnitPrice: decimal.RequireFromString("10.00")},
	})
	seedOrder(t, conn, enums.OrderStatusDelivered, from.Add(48*time.Hour), []models.OrderItem{
		{ProductID: widget.ID, Quantity: 1, UnitPrice: decimal.RequireFromString("10.00")},
		{ProductID: gadget.ID, Quantity: 2, UnitPrice: decimal.RequireFromString("7.50")},
	})
	seedOrder(t, conn, enums.OrderStatusCancelled, from.Add(72*time.Hour), []models.OrderItem{
		{ProductID: gadget.ID, Quantity: 4, UnitPrice: decimal.RequireFromString("7.50")},
	})
	// Outside the window.
	seedOrder(t, conn, enums.OrderStatusPlaced, to.Add(24*time.Hour), []models.OrderItem{
		{ProductID: widget.ID, Quantity: 9, UnitPrice: decimal.RequireFromString("10.00")},
	})

	summary, err := svc.Sales(context.Background(), from, to)
	if err != nil {
		t.Fatalf("sales: %v", err)
	}

	if summary.OrderCount != 3 {
		t.Fatalf("expected 3 orders in window, got %d", summary.OrderCount)
	}
	// 30.00 + (10.00 + 15.00); the cancelled order contributes nothing.
	if !summary.Revenue.Equal(decimal.RequireFromString("55.00")) {
		t.Fatalf("expected revenue 55.00, got %s", summary.Revenue)
	}
	if summary.StatusCounts["placed"] != 1 || summary.StatusCounts["delivered"] != 1 || summary.StatusCounts["cancelled"] != 1 {
		t.Fatalf("unexpected status counts %+v", summary.StatusCounts)
	}

	if len(summary.TopProducts) != 2 {
		t.Fatalf("expected two leaderboard rows, got %d", len(summary.TopProducts))
	}
	top := summary.TopProducts[0]
	if top.StockCode != "SKU-WIDGET" || top.Quantity != 4 {
		t.Fatalf("expected widget on top with 4 units, got %+v", top)
	}
	if !top.Revenue.Equal(decimal.RequireFromString("40.00")) {
		t.Fatalf("expected widget revenue 40.00, got %s", top.Revenue)
	}
}

func TestSalesRejectsInvertedWindow(t *testing.T) {
	svc, err := NewService(newTestDB(t))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	now := time.Now().UTC()
	_, err = svc.Sales(context.Background(), now, now.Add(-time.Hour))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
