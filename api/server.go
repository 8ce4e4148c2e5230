/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in logs
  2. RealIP:     Client address behind proxies
  3. Logger:     zap request log (method, path, status, duration)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/health            Liveness + dependency pings (no auth)
  /api/products/*        Catalogue
  /api/sales/*           Sale transactions
  /api/customer-debts/*  Customer debt ledger
  /api/supplier-debts/*  Supplier debt ledger
  /api/inventory/*       Stocktakes
  /api/dev/*             Demo seed (development only)

SECURITY:
  Everything except /api/health requires a bearer token (auth.go). Shop
  scoping is enforced in the domain services, not here.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterOptions toggles environment-dependent parts of the router.
type RouterOptions struct {
	AllowedOrigins  []string
	EnableDevRoutes bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, auth *Authenticator, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.ListProducts)
				r.Post("/", h.CreateProduct)
				r.Get("/low-stock", h.LowStockProducts)
				r.Get("/categories", h.ProductCategories)
				r.Get("/barcode/{barcode}", h.FindProductsByBarcode)
				r.Get("/{id}", h.GetProduct)
				r.Put("/{id}", h.UpdateProduct)
				r.Delete("/{id}", h.DeleteProduct)
			})

			r.Route("/sales", func(r chi.Router) {
				r.Get("/", h.ListSales)
				r.Post("/", h.CreateSale)
				r.Get("/daily", h.DailySales)
				r.Get("/seller/{sellerID}/daily", h.SellerDailySales)
				r.Get("/deleted/statistics", h.DeletedSalesStatistics)
				r.Get("/{id}", h.GetSale)
				r.Delete("/{id}", h.DeleteSale)
			})

			r.Route("/customer-debts", h.debtRoutes(h.svc.CustomerDebts))
			r.Route("/supplier-debts", h.debtRoutes(h.svc.SupplierDebts))

			r.Route("/inventory", func(r chi.Router) {
				r.Get("/", h.ListInventories)
				r.Post("/", h.CreateInventory)
				r.Get("/{id}", h.GetInventory)
				r.Get("/{id}/report", h.InventoryReport)
				r.Patch("/{id}/complete", h.CompleteInventory)
			})

			if opts.EnableDevRoutes {
				r.Route("/dev", func(r chi.Router) {
					r.Get("/scenarios", h.ListScenarios)
					r.Post("/seed", h.Seed)
				})
			}
		})
	})

	return r
}

// requestLogger logs one line per request with chi's request id.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
