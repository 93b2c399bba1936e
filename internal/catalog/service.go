package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom-backend/internal/inventory"
	"github.com/stockroomhq/stockroom-backend/pkg/db"
	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type imageStore interface {
	ObjectName(name string) string
	Upload(ctx context.Context, object, contentType string, body io.Reader) (string, error)
}

type orderCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Service is the catalog read path plus the admin write path.
type Service interface {
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductSummary, error)
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductSummary, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductSummary, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	UploadProductImage(ctx context.Context, id uuid.UUID, contentType string, body io.Reader) (*ProductSummary, error)
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
	Dashboard(ctx context.Context) (*DashboardCounts, error)
}

// ServiceParams carries the catalog service dependencies.
type ServiceParams struct {
	TxRunner      txRunner
	ProductRepo   *Repository
	CategoryRepo  *CategoryRepository
	InventoryRepo *inventory.Repository
	Images        imageStore
	OrderCounter  orderCounter
}

type service struct {
	tx         txRunner
	products   *Repository
	categories *CategoryRepository
	inventory  *inventory.Repository
	images     imageStore
	orders     orderCounter
}

// NewService builds the catalog service. Images may be nil when no object
// store is configured; image upload then reports a dependency error.
func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.ProductRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.CategoryRepo == nil {
		return nil, fmt.Errorf("category repository required")
	}
	if params.InventoryRepo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.OrderCounter == nil {
		return nil, fmt.Errorf("order counter required")
	}
	return &service{
		tx:         params.TxRunner,
		products:   params.ProductRepo,
		categories: params.CategoryRepo,
		inventory:  params.InventoryRepo,
		images:     params.Images,
		orders:     params.OrderCounter,
	}, nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	if input.CategoryID != nil {
		if _, err := s.categories.FindByID(ctx, *input.CategoryID); err != nil {
			return nil, err
		}
	}
	return s.products.List(ctx, input)
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductSummary, error) {
	return s.products.FindSummaryByID(ctx, id)
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductSummary, error) {
	if err := validateProductInput(input.StockCode, input.Description, input.UnitPrice.IsPositive(), input.StockQty); err != nil {
		return nil, err
	}

	var created *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		products := s.products.WithTx(tx)
		categories := s.categories.WithTx(tx)

		if _, err := categories.FindByID(ctx, input.CategoryID); err != nil {
			return err
		}
		existing, err := products.FindByStockCode(ctx, input.StockCode)
		if err != nil {
			return err
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "stock code already exists")
		}

		created = &models.Product{
			StockCode:   strings.TrimSpace(input.StockCode),
			Description: strings.TrimSpace(input.Description),
			UnitPrice:   input.UnitPrice,
			StockQty:    input.StockQty,
			CategoryID:  input.CategoryID,
			ImageURL:    input.ImageURL,
		}
		if err := products.Create(ctx, created); err != nil {
			if db.IsUniqueViolation(err, "stock_code") {
				return pkgerrors.New(pkgerrors.CodeConflict, "stock code already exists")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.products.FindSummaryByID(ctx, created.ID)
}

// UpdateProduct rewrites the listing and clears every cart reservation that
// referenced it: a changed price or stock figure makes the old reservations
// meaningless. The stored image survives when the payload carries none.
func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductSummary, error) {
	if err := validateProductInput(input.StockCode, input.Description, input.UnitPrice.IsPositive(), input.StockQty); err != nil {
		return nil, err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		products := s.products.WithTx(tx)
		categories := s.categories.WithTx(tx)
		invRepo := s.inventory.WithTx(tx)

		product, err := products.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if _, err := categories.FindByID(ctx, input.CategoryID); err != nil {
			return err
		}
		if input.StockCode != product.StockCode {
			existing, err := products.FindByStockCode(ctx, input.StockCode)
			if err != nil {
				return err
			}
			if existing != nil {
				return pkgerrors.New(pkgerrors.CodeConflict, "stock code already exists")
			}
		}

		product.StockCode = strings.TrimSpace(input.StockCode)
		product.Description = strings.TrimSpace(input.Description)
		product.UnitPrice = input.UnitPrice
		product.StockQty = input.StockQty
		product.CategoryID = input.CategoryID
		if input.ImageURL != nil {
			product.ImageURL = input.ImageURL
		}

		if err := products.Save(ctx, product); err != nil {
			return err
		}
		return invRepo.ClearReservations(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return s.products.FindSummaryByID(ctx, id)
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		products := s.products.WithTx(tx)
		invRepo := s.inventory.WithTx(tx)

		if _, err := products.FindByID(ctx, id); err != nil {
			return err
		}
		inUse, err := invRepo.InUse(ctx, id)
		if err != nil {
			return err
		}
		if inUse {
			return pkgerrors.New(pkgerrors.CodeConflict, "product is in a cart")
		}
		return products.Delete(ctx, id)
	})
}

func (s *service) UploadProductImage(ctx context.Context, id uuid.UUID, contentType string, body io.Reader) (*ProductSummary, error) {
	if s.images == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "image storage not configured")
	}
	if body == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image body required")
	}

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	object := s.images.ObjectName(fmt.Sprintf("%s/%s", product.ID, uuid.NewString()))
	url, err := s.images.Upload(ctx, object, contentType, body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload product image")
	}
	if err := s.products.SetImageURL(ctx, id, url); err != nil {
		return nil, err
	}
	return s.products.FindSummaryByID(ctx, id)
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	records, err := s.categories.List(ctx)
	if err != nil {
		return nil, err
	}
	dtos := make([]CategoryDTO, 0, len(records))
	for _, record := range records {
		dtos = append(dtos, categoryFromModel(record))
	}
	return dtos, nil
}

func (s *service) CreateCategory(ctx context.Context, input CreateCategoryInput) (*CategoryDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name required")
	}
	record := &models.Category{Name: name}
	if err := s.categories.Create(ctx, record); err != nil {
		return nil, err
	}
	dto := categoryFromModel(*record)
	return &dto, nil
}

func (s *service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.categories.Delete(ctx, id)
}

func (s *service) Dashboard(ctx context.Context) (*DashboardCounts, error) {
	products, err := s.products.Count(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := s.categories.Count(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &DashboardCounts{Products: products, Categories: categories, Orders: orders}, nil
}

func validateProductInput(stockCode, description string, pricePositive bool, stockQty int) error {
	code := strings.TrimSpace(stockCode)
	if len(code) < 2 || len(code) > 50 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock code must be 2 to 50 characters")
	}
	if len(strings.TrimSpace(description)) < 3 {
		return pkgerrors.New(pkgerrors.CodeValidation, "description must be at least 3 characters")
	}
	if !pricePositive {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit price must be positive")
	}
	if stockQty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock quantity cannot be negative")
	}
	return nil
}
