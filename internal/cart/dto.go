package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
)

// ItemView is one cart line priced at the product's live unit price.
type ItemView struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	StockCode   string          `json:"stock_code"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// View is the whole cart as returned to the shopper. A user without a cart
// gets an empty view with a zero total.
type View struct {
	Items []ItemView      `json:"items"`
	Total decimal.Decimal `json:"total"`
}

func emptyView() *View {
	return &View{Items: []ItemView{}, Total: decimal.Zero}
}

func buildView(items []models.CartItem) *View {
	view := emptyView()
	for _, item := range items {
		if item.Product == nil {
			continue
		}
		lineTotal := item.Product.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		view.Items = append(view.Items, ItemView{
			ID:          item.ID,
			ProductID:   item.ProductID,
			StockCode:   item.Product.StockCode,
			Description: item.Product.Description,
			UnitPrice:   item.Product.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   lineTotal,
		})
		view.Total = view.Total.Add(lineTotal)
	}
	return view
}
