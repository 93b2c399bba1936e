package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom-backend/internal/users"
	"github.com/stockroomhq/stockroom-backend/pkg/auth/session"
	"github.com/stockroomhq/stockroom-backend/pkg/config"
	"github.com/stockroomhq/stockroom-backend/pkg/db"
	"github.com/stockroomhq/stockroom-backend/pkg/db/models"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:auth_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate users: %v", err)
	}
	return conn
}

type fakeSessions struct {
	generated map[string]string
	revoked   []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{generated: map[string]string{}}
}

func (f *fakeSessions) Generate(ctx context.Context, accessID string) (string, error) {
	token := "refresh-" + accessID
	f.generated[accessID] = token
	return token, nil
}

func (f *fakeSessions) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := f.generated[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(f.generated, oldAccessID)
	newID := uuid.NewString()
	token := "refresh-" + newID
	f.generated[newID] = token
	return newID, token, nil
}

func (f *fakeSessions) Revoke(ctx context.Context, accessID string) error {
	delete(f.generated, accessID)
	f.revoked = append(f.revoked, accessID)
	return nil
}

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8192,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func newTestService(t *testing.T, conn *gorm.DB) (*service, *fakeSessions) {
	t.Helper()
	sessions := newFakeSessions()
	svc, err := NewService(ServiceParams{
		TxRunner:       db.NewFromConn(conn),
		UserRepo:       users.NewRepository(conn),
		SessionManager: sessions,
		JWTConfig:      config.JWTConfig{Secret: "secret", Issuer: "stockroom", ExpirationMinutes: 15},
		PasswordConfig: testPasswordConfig(),
		LoginConfig:    config.LoginConfig{MaxAttempts: 5, LockDuration: 30 * time.Second},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc.(*service), sessions
}

func registerTestUser(t *testing.T, svc *service) *users.UserDTO {
	t.Helper()
	dto, err := svc.Register(context.Background(), RegisterRequest{
		LoginID:  "shopper",
		Email:    "shopper@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return dto
}

func TestRegisterRejectsDuplicateLoginID(t *testing.T) {
	svc, _ := newTestService(t, newTestDB(t))
	registerTestUser(t, svc)

	_, err := svc.Register(context.Background(), RegisterRequest{
		LoginID:  "shopper",
		Email:    "other@example.com",
		Password: "some-password",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t, newTestDB(t))
	registerTestUser(t, svc)

	_, err := svc.Register(context.Background(), RegisterRequest{
		LoginID:  "other",
		Email:    "shopper@example.com",
		Password: "some-password",
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLoginSuccessIssuesTokenPair(t *testing.T) {
	svc, sessions := newTestService(t, newTestDB(t))
	registerTestUser(t, svc)

	resp, err := svc.Login(context.Background(), LoginRequest{LoginID: "shopper", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected token pair")
	}
	if resp.User == nil || resp.User.LoginID != "shopper" {
		t.Fatalf("unexpected user %+v", resp.User)
	}
	if len(sessions.generated) != 1 {
		t.Fatalf("expected one session, got %d", len(sessions.generated))
	}
}

func TestLoginWrongPasswordIsUnauthorized(t *testing.T) {
	svc, _ := newTestService(t, newTestDB(t))
	registerTestUser(t, svc)

	_, err := svc.Login(context.Background(), LoginRequest{LoginID: "shopper", Password: "wrong"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLoginLocksAfterMaxAttempts(t *testing.T) {
	conn := newTestDB(t)
	svc, _ := newTestService(t, conn)
	registered := registerTestUser(t, svc)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := svc.Login(ctx, LoginRequest{LoginID: "shopper", Password: "wrong"})
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
			t.Fatalf("attempt %d: expected unauthorized, got %v", i+1, err)
		}
	}

	// Fifth failure trips the lock.
	_, err := svc.Login(ctx, LoginRequest{LoginID: "shopper", Password: "wrong"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeAccountLocked {
		t.Fatalf("expected account locked, got %v", err)
	}

	// Even the right password is refused while locked.
	_, err = svc.Login(ctx, LoginRequest{LoginID: "shopper", Password: "correct-horse"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeAccountLocked {
		t.Fatalf("expected account locked for correct password, got %v", err)
	}

	var stored models.User
	if err := conn.First(&stored, "id = ?", registered.ID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if stored.LockedUntil == nil {
		t.Fatal("expected locked_until to be set")
	}
	if stored.FailedLoginAttempts != 0 {
		t.Fatalf("expected counter reset at lock, got %d", stored.FailedLoginAttempts)
	}
}

func TestLoginSucceedsAfterLockExpires(t *testing.T) {
	conn := newTestDB(t)
	svc, _ := newTestService(t, conn)
	registerTestUser(t, svc)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = svc.Login(ctx, LoginRequest{LoginID: "shopper", Password: "wrong"})
	}

	// Move the clock past the lock window.
	svc.now = func() time.Time { return time.Now().UTC().Add(31 * time.Second) }

	resp, err := svc.Login(ctx, LoginRequest{LoginID: "shopper", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("login after lock expiry: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("expected access token")
	}

	var stored models.User
	if err := conn.First(&stored, "login_id = ?", "shopper").Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if stored.LockedUntil != nil || stored.FailedLoginAttempts != 0 {
		t.Fatalf("expected lock state cleared, got %+v", stored)
	}
	if stored.LastLoginAt == nil {
		t.Fatal("expected last_login_at stamped")
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	svc, _ := newTestService(t, newTestDB(t))
	registerTestUser(t, svc)

	ctx := context.Background()
	login, err := svc.Login(ctx, LoginRequest{LoginID: "shopper", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	refreshed, err := svc.Refresh(ctx, RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.AccessToken == "" || refreshed.RefreshToken == "" {
		t.Fatal("expected new token pair")
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Fatal("expected a rotated refresh token")
	}

	// The old pair must no longer rotate.
	_, err = svc.Refresh(ctx, RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized for stale refresh, got %v", err)
	}
}
