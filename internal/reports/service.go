package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
)

// topProductLimit caps the product leaderboard in the sales report.
const topProductLimit = 5

// SalesSummary aggregates the order book over a window. Cancelled orders are
// excluded from revenue but still appear in the status breakdown.
type SalesSummary struct {
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	OrderCount   int             `json:"order_count"`
	Revenue      decimal.Decimal `json:"revenue"`
	StatusCounts map[string]int  `json:"status_counts"`
	TopProducts  []ProductSales  `json:"top_products"`
}

// ProductSales is one leaderboard row, priced at the snapshots the orders
// recorded.
type ProductSales struct {
	ProductID uuid.UUID       `json:"product_id"`
	StockCode string          `json:"stock_code"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// Service produces read-only sales aggregations for the admin surface.
type Service interface {
	Sales(ctx context.Context, from, to time.Time) (*SalesSummary, error)
}

type service struct {
	db *gorm.DB
}

// NewService builds the reports service.
func NewService(db *gorm.DB) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle required")
	}
	return &service{db: db}, nil
}

func (s *service) Sales(ctx context.Context, from, to time.Time) (*SalesSummary, error) {
	if !to.After(from) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report window must end after it starts")
	}

	var orders []models.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders for report")
	}

	summary := &SalesSummary{
		From:         from,
		To:           to,
		OrderCount:   len(orders),
		Revenue:      decimal.Zero,
		StatusCounts: map[string]int{},
		TopProducts:  []ProductSales{},
	}

	byProduct := map[uuid.UUID]*ProductSales{}
	for _, order := range orders {
		summary.StatusCounts[order.Status.String()]++
		if order.Status == enums.OrderStatusCancelled {
			continue
		}
		summary.Revenue = summary.Revenue.Add(order.Total)

		for _, item := range order.Items {
			row, ok := byProduct[item.ProductID]
			if !ok {
				row = &ProductSales{ProductID: item.ProductID, Revenue: decimal.Zero}
				if item.Product != nil {
					row.StockCode = item.Product.StockCode
				}
				byProduct[item.ProductID] = row
			}
			row.Quantity += item.Quantity
			lineRevenue := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
			row.Revenue = row.Revenue.Add(lineRevenue)
		}
	}

	for _, row := range byProduct {
		summary.TopProducts = append(summary.TopProducts, *row)
	}
	sort.Slice(summary.TopProducts, func(i, j int) bool {
		if summary.TopProducts[i].Quantity != summary.TopProducts[j].Quantity {
			return summary.TopProducts[i].Quantity > summary.TopProducts[j].Quantity
		}
		return summary.TopProducts[i].StockCode < summary.TopProducts[j].StockCode
	})
	if len(summary.TopProducts) > topProductLimit {
		summary.TopProducts = summary.TopProducts[:topProductLimit]
	}
	return summary, nil
}
