package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/health"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/pkg/middleware"
	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/service"
)

const serviceName = "marketplace"

// Services groups the application services the router exposes.
type Services struct {
	Carts    *service.CartService
	Checkout *service.CheckoutService
	Orders   *service.OrderService
	Catalog  *service.CatalogService
}

// RouterConfig holds the network policy of the HTTP surface.
type RouterConfig struct {
	PprofCIDRs  []string
	AdminCIDRs  []string
	CORSOrigins []string

	// CheckoutRPS limits checkout submissions per client IP; 0 disables.
	CheckoutRPS   float64
	CheckoutBurst int
}

// NewRouter creates a chi router with all marketplace routes registered.
func NewRouter(
	svcs Services,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	cartHandler := NewCartHandler(svcs.Carts, logger)
	checkoutHandler := NewCheckoutHandler(svcs.Checkout, logger)
	orderHandler := NewOrderHandler(svcs.Orders, logger)
	productHandler := NewProductHandler(svcs.Catalog, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON(logger))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/merge", cartHandler.MergeCart)

			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{productId}", cartHandler.SetItemQuantity)
			r.Delete("/items/{productId}", cartHandler.RemoveItem)
		})

		r.With(middleware.RateLimit(cfg.CheckoutRPS, cfg.CheckoutBurst, logger)).
			Post("/checkout", checkoutHandler.Checkout)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orderHandler.ListOwnOrders)
			r.Get("/{id}", orderHandler.GetOwnOrder)
		})

		r.With(middleware.CacheControl(30*time.Second)).
			Get("/products/{id}", productHandler.GetProduct)

		r.Route("/admin/orders", func(r chi.Router) {
			r.Use(middleware.IPAllowlist(cfg.AdminCIDRs, logger))

			r.Get("/", orderHandler.ListOrders)
			r.Get("/{id}", orderHandler.GetOrder)
			r.Put("/{id}/status", orderHandler.UpdateStatus)
			r.Post("/{id}/paid", orderHandler.MarkPaid)
			r.Post("/{id}/restore", orderHandler.Restore)
			r.Delete("/{id}", orderHandler.SoftDelete)
			r.Delete("/{id}/purge", orderHandler.HardDelete)
		})
	})

	return r
}
