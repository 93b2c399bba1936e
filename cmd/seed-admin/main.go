package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stockroomhq/stockroom-backend/internal/users"
	"github.com/stockroomhq/stockroom-backend/pkg/config"
	"github.com/stockroomhq/stockroom-backend/pkg/db"
	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
	"github.com/stockroomhq/stockroom-backend/pkg/logger"
	"github.com/stockroomhq/stockroom-backend/pkg/security"
)

// seed-admin provisions the bootstrap admin account. It is idempotent: if a
// user with the configured login ID already exists nothing is written.
func main() {
	logg := logger.New(logger.Options{ServiceName: "seed-admin"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "seed-admin",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"login_id": cfg.Seed.AdminLoginID,
	})

	if cfg.Seed.AdminPassword == "" {
		logg.Error(ctx, "seed admin password not set", nil)
		os.Exit(1)
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	repo := users.NewRepository(dbClient.DB())

	existing, err := repo.FindByLoginID(ctx, cfg.Seed.AdminLoginID)
	if err != nil {
		if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeNotFound {
			logg.Error(ctx, "failed to look up admin user", err)
			os.Exit(1)
		}
	}
	if existing != nil {
		logg.Info(ctx, "admin user already exists, nothing to do")
		return
	}

	hash, err := security.HashPassword(cfg.Seed.AdminPassword, cfg.Password)
	if err != nil {
		logg.Error(ctx, "failed to hash admin password", err)
		os.Exit(1)
	}

	admin := &models.User{
		ID:           uuid.New(),
		LoginID:      cfg.Seed.AdminLoginID,
		Email:        cfg.Seed.AdminEmail,
		PasswordHash: hash,
		Role:         enums.UserRoleAdmin,
	}
	if _, err := repo.Create(ctx, admin); err != nil {
		logg.Error(ctx, "failed to create admin user", err)
		os.Exit(1)
	}

	logg.Info(ctx, "admin user created")
}
