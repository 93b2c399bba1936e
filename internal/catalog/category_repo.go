package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom-backend/pkg/db"
	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
)

// CategoryRepository manages the category reference table.
type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(conn *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: conn}
}

// WithTx scopes the repository to the provided transaction.
func (r *CategoryRepository) WithTx(tx *gorm.DB) *CategoryRepository {
	if tx == nil {
		return r
	}
	return &CategoryRepository{db: tx}
}

// List returns every category ordered by name.
func (r *CategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	var records []models.Category
	err := r.db.WithContext(ctx).Order("name ASC").Find(&records).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return records, nil
}

// FindByID loads one category.
func (r *CategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var record models.Category
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	return &record, nil
}

// Create inserts a category; a duplicate name maps to a conflict.
func (r *CategoryRepository) Create(ctx context.Context, record *models.Category) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	err := r.db.WithContext(ctx).Create(record).Error
	if err != nil {
		if db.IsUniqueViolation(err, "name") {
			return pkgerrors.New(pkgerrors.CodeConflict, "category name already exists")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	return nil
}

// Delete removes a category unless products still reference it.
func (r *CategoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var inUse int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("category_id = ?", id).
		Count(&inUse).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count category products")
	}
	if inUse > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "category has products")
	}

	result := r.db.WithContext(ctx).Delete(&models.Category{}, "id = ?", id)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "delete category")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}
	return nil
}

// Count returns the number of categories; the admin dashboard reads it.
func (r *CategoryRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Category{}).Count(&count).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count categories")
	}
	return count, nil
}
