package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/pagination"
)

// ProductSummary is the browse-facing product row. AvailableStock is the
// live figure after subtracting every cart reservation; TotalStock is the
// raw on-hand quantity and only appears on admin reads.
type ProductSummary struct {
	ID             uuid.UUID       `json:"id"`
	StockCode      string          `json:"stock_code"`
	Description    string          `json:"description"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	CategoryID     uuid.UUID       `json:"category_id"`
	CategoryName   string          `json:"category_name"`
	ImageURL       *string         `json:"image_url,omitempty"`
	TotalStock     int             `json:"total_stock"`
	AvailableStock int             `json:"available_stock"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ProductListResult is one page of the catalog plus the cursor for the next.
type ProductListResult struct {
	Products   []ProductSummary `json:"products"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// ListProductsInput captures the browse endpoint's filter knobs.
type ListProductsInput struct {
	CategoryID *uuid.UUID
	Query      string
	Pagination pagination.Params
}

// CreateProductInput is the admin create payload.
type CreateProductInput struct {
	StockCode   string          `json:"stock_code" validate:"required,min=2,max=50"`
	Description string          `json:"description" validate:"required,min=3"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"required"`
	StockQty    int             `json:"stock_qty" validate:"gte=0"`
	CategoryID  uuid.UUID       `json:"category_id" validate:"required"`
	ImageURL    *string         `json:"image_url"`
}

// UpdateProductInput is the admin update payload. A nil ImageURL keeps the
// stored image.
type UpdateProductInput struct {
	StockCode   string          `json:"stock_code" validate:"required,min=2,max=50"`
	Description string          `json:"description" validate:"required,min=3"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"required"`
	StockQty    int             `json:"stock_qty" validate:"gte=0"`
	CategoryID  uuid.UUID       `json:"category_id" validate:"required"`
	ImageURL    *string         `json:"image_url"`
}

// CreateCategoryInput is the admin category payload.
type CreateCategoryInput struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}

// CategoryDTO is the public category shape.
type CategoryDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func categoryFromModel(record models.Category) CategoryDTO {
	return CategoryDTO{ID: record.ID, Name: record.Name, CreatedAt: record.CreatedAt}
}

// DashboardCounts backs the admin landing page.
type DashboardCounts struct {
	Products   int64 `json:"products"`
	Categories int64 `json:"categories"`
	Orders     int64 `json:"orders"`
}
