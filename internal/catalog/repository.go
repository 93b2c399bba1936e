package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom-backend/internal/inventory"
	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
	"github.com/stockroomhq/stockroom-backend/pkg/pagination"
)

// Repository reads and writes catalog products. Listing queries carry the
// shared availability projection so browse pages and cart checks always
// agree on what is left.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

type productRecord struct {
	ID             uuid.UUID
	StockCode      string
	Description    string
	UnitPrice      decimal.Decimal
	StockQty       int
	CategoryID     uuid.UUID
	CategoryName   string
	ImageURL       *string
	AvailableStock int
	CreatedAt      time.Time
}

func (record productRecord) toSummary() ProductSummary {
	return ProductSummary{
		ID:             record.ID,
		StockCode:      record.StockCode,
		Description:    record.Description,
		UnitPrice:      record.UnitPrice,
		CategoryID:     record.CategoryID,
		CategoryName:   record.CategoryName,
		ImageURL:       record.ImageURL,
		TotalStock:     record.StockQty,
		AvailableStock: record.AvailableStock,
		CreatedAt:      record.CreatedAt,
	}
}

func (r *Repository) listSelect() []string {
	return []string{
		"products.id",
		"products.stock_code",
		"products.description",
		"products.unit_price",
		"products.stock_qty",
		"products.category_id",
		"products.image_url",
		"products.created_at",
		"categories.name AS category_name",
		inventory.AvailabilityExpr + " AS available_stock",
	}
}

// List returns one catalog page, newest products first.
func (r *Repository) List(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	pageSize := pagination.NormalizeLimit(input.Pagination.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(input.Pagination.Limit)
	if limitWithBuffer <= pageSize {
		limitWithBuffer = pageSize + 1
	}

	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, err
	}

	qb := r.db.WithContext(ctx).
		Table("products").
		Select(strings.Join(r.listSelect(), ", ")).
		Joins("JOIN categories ON categories.id = products.category_id")

	if input.CategoryID != nil {
		qb = qb.Where("products.category_id = ?", *input.CategoryID)
	}
	if search := strings.TrimSpace(input.Query); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("(LOWER(products.stock_code) LIKE ? OR LOWER(products.description) LIKE ?)", pattern, pattern)
	}
	if cursor != nil {
		qb = qb.Where("(products.created_at < ?) OR (products.created_at = ? AND products.id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	qb = qb.Order("products.created_at DESC").Order("products.id DESC").Limit(limitWithBuffer)

	var records []productRecord
	if err := qb.Scan(&records).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	resultRows := records
	nextCursor := ""
	if len(records) > pageSize {
		resultRows = records[:pageSize]
		last := resultRows[len(resultRows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	summaries := make([]ProductSummary, 0, len(resultRows))
	for _, record := range resultRows {
		summaries = append(summaries, record.toSummary())
	}
	return &ProductListResult{Products: summaries, NextCursor: nextCursor}, nil
}

// FindSummaryByID loads a single product with category name and availability.
func (r *Repository) FindSummaryByID(ctx context.Context, id uuid.UUID) (*ProductSummary, error) {
	var record productRecord
	err := r.db.WithContext(ctx).
		Table("products").
		Select(strings.Join(r.listSelect(), ", ")).
		Joins("JOIN categories ON categories.id = products.category_id").
		Where("products.id = ?", id).
		Scan(&record).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if record.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	summary := record.toSummary()
	return &summary, nil
}

// FindByID loads the raw product row.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return &product, nil
}

// FindByStockCode returns the product carrying the code, or nil when unused.
func (r *Repository) FindByStockCode(ctx context.Context, stockCode string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).First(&product, "stock_code = ?", stockCode).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product by stock code")
	}
	return &product, nil
}

// Create inserts a product row.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return nil
}

// Save writes the full product row back.
func (r *Repository) Save(ctx context.Context, product *models.Product) error {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return nil
}

// SetImageURL updates only the stored image location.
func (r *Repository) SetImageURL(ctx context.Context, id uuid.UUID, url string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Update("image_url", url)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "update product image")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

// Delete removes a product row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

// Count returns the number of products; the admin dashboard reads it.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Count(&count).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count products")
	}
	return count, nil
}
