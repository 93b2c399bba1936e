package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stockroomhq/stockroom-backend/pkg/enums"
)

// User represents the canonical identity entity. FailedLoginAttempts and
// LockedUntil carry the login lockout state machine: a row is either unlocked
// (LockedUntil nil or in the past) or locked until the recorded instant.
type User struct {
	ID                  uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	LoginID             string         `gorm:"column:login_id;not null;uniqueIndex"`
	Email               string         `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash        string         `gorm:"column:password_hash;not null"`
	Role                enums.UserRole `gorm:"column:role;not null;default:'user'"`
	FailedLoginAttempts int            `gorm:"column:failed_login_attempts;not null;default:0"`
	LockedUntil         *time.Time     `gorm:"column:locked_until"`
	LastLoginAt         *time.Time     `gorm:"column:last_login_at"`
	CreatedAt           time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
