package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockroomhq/stockroom-backend/api/controllers"
	"github.com/stockroomhq/stockroom-backend/api/middleware"
	authsvc "github.com/stockroomhq/stockroom-backend/internal/auth"
	cartsvc "github.com/stockroomhq/stockroom-backend/internal/cart"
	"github.com/stockroomhq/stockroom-backend/internal/catalog"
	checkoutsvc "github.com/stockroomhq/stockroom-backend/internal/checkout"
	ordersvc "github.com/stockroomhq/stockroom-backend/internal/orders"
	"github.com/stockroomhq/stockroom-backend/internal/reports"
	"github.com/stockroomhq/stockroom-backend/pkg/config"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	"github.com/stockroomhq/stockroom-backend/pkg/logger"
)

type rateLimiterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type sessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries everything the router wires into handlers. Nil entries
// degrade gracefully: the affected endpoints answer with a typed error.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	DBPinger  pinger
	Redis     rateLimiterStore
	RedisPing pinger
	GCSPing   pinger
	Sessions  sessionChecker
	Auth      authsvc.Service
	Catalog   catalog.Service
	Cart      cartsvc.Service
	Checkout  checkoutsvc.Service
	Orders    ordersvc.Service
	Reports   reports.Service
}

// NewRouter assembles the HTTP surface.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginAccountLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterAccountLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": deps.DBPinger,
			"redis":    deps.RedisPing,
			"storage":  deps.GCSPing,
		}))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, deps.Redis, logg)).
			Post("/register", controllers.AuthRegister(deps.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).
			Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
		r.With(middleware.Auth(cfg.JWT, deps.Sessions, logg)).
			Post("/logout", controllers.AuthLogout(deps.Auth, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public catalog reads.
		r.Get("/products", controllers.ProductsList(deps.Catalog, logg))
		r.Get("/products/{id}", controllers.ProductGet(deps.Catalog, logg))
		r.Get("/categories", controllers.CategoriesList(deps.Catalog, logg))
		r.Get("/categories/{id}/products", controllers.CategoryProducts(deps.Catalog, logg))

		// Shopper surface. Admins manage the catalog and do not shop.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
			r.Use(middleware.RequireRole(string(enums.UserRoleUser), logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(deps.Cart, logg))
				r.Post("/items", controllers.CartAddItem(deps.Cart, logg))
				r.Patch("/items/{itemId}", controllers.CartUpdateItem(deps.Cart, logg))
				r.Delete("/items/{itemId}", controllers.CartRemoveItem(deps.Cart, logg))
			})
			r.Post("/orders", controllers.OrderPlace(deps.Checkout, logg))
			r.Get("/orders", controllers.OrdersList(deps.Orders, logg))
			r.Get("/orders/{id}", controllers.OrderGet(deps.Orders, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
			r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.ProductsList(deps.Catalog, logg))
				r.Post("/", controllers.AdminProductCreate(deps.Catalog, logg))
				r.Put("/{id}", controllers.AdminProductUpdate(deps.Catalog, logg))
				r.Delete("/{id}", controllers.AdminProductDelete(deps.Catalog, logg))
				r.Post("/{id}/image", controllers.AdminProductImageUpload(deps.Catalog, logg))
			})
			r.Route("/categories", func(r chi.Router) {
				r.Get("/", controllers.CategoriesList(deps.Catalog, logg))
				r.Post("/", controllers.AdminCategoryCreate(deps.Catalog, logg))
				r.Delete("/{id}", controllers.AdminCategoryDelete(deps.Catalog, logg))
			})
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminOrdersList(deps.Orders, logg))
				r.Patch("/{id}/status", controllers.AdminOrderUpdateStatus(deps.Orders, logg))
			})
			r.Get("/dashboard", controllers.AdminDashboard(deps.Catalog, logg))
			r.Get("/reports/sales", controllers.AdminSalesReport(deps.Reports, logg))
		})
	})

	return r
}
