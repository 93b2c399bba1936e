package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockroomhq/stockroom-backend/pkg/enums"
)

// Order is the immutable record created at checkout. Only Status changes
// after creation, and only through an administrative action.
type Order struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status       enums.OrderStatus `gorm:"column:status;not null;default:'placed'"`
	Total        decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	AddressLine1 string            `gorm:"column:address_line1;not null"`
	AddressLine2 *string           `gorm:"column:address_line2"`
	City         string            `gorm:"column:city;not null"`
	State        string            `gorm:"column:state;not null"`
	PostalCode   string            `gorm:"column:postal_code;not null"`
	Items        []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
