package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/distribuida/libreria-backend/api/controllers"
	cartcontrollers "github.com/distribuida/libreria-backend/api/controllers/cart"
	"github.com/distribuida/libreria-backend/api/middleware"
	cartsvc "github.com/distribuida/libreria-backend/internal/cart"
	"github.com/distribuida/libreria-backend/internal/catalog"
	checkoutsvc "github.com/distribuida/libreria-backend/internal/checkout"
	"github.com/distribuida/libreria-backend/pkg/config"
	"github.com/distribuida/libreria-backend/pkg/logger"
	"github.com/distribuida/libreria-backend/pkg/metrics"
	pkgredis "github.com/distribuida/libreria-backend/pkg/redis"
)

// Dependencies bundles everything the HTTP surface needs.
type Dependencies struct {
	Config      *config.Config
	Logger      *logger.Logger
	HTTPMetrics *metrics.HTTPMetrics
	Registry    prometheus.Gatherer

	DB    controllers.Pinger
	Cache controllers.Pinger

	IdempotencyStore pkgredis.IdempotencyStore

	Catalog   catalog.Service
	Customers controllers.CustomerDirectory
	Carts     cartsvc.Service
	Checkout  checkoutsvc.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, controllers.ReadinessSources(deps.DB, deps.Cache)))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	idempotency := middleware.Idempotency(deps.IdempotencyStore, logg, cfg.FeatureFlags.IdempotencyTTL)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/books", func(r chi.Router) {
			r.Get("/", controllers.BookList(deps.Catalog, logg))
			r.With(idempotency).Post("/", controllers.BookCreate(deps.Catalog, logg))
			r.Get("/{bookID}", controllers.BookFetch(deps.Catalog, logg))
			r.Patch("/{bookID}", controllers.BookUpdate(deps.Catalog, logg))
		})

		r.Route("/customers", func(r chi.Router) {
			customerScope := middleware.CustomerScope(logg)

			r.With(idempotency).Post("/", controllers.CustomerRegister(deps.Customers, logg))
			r.With(customerScope).Get("/{customerID}", controllers.CustomerFetch(deps.Customers, logg))

			r.Route("/{customerID}/cart", func(r chi.Router) {
				r.Use(customerScope)
				r.Get("/", cartcontrollers.CustomerCartFetch(deps.Carts, logg))
				r.Delete("/", cartcontrollers.CustomerCartClear(deps.Carts, logg))
				r.Post("/items", cartcontrollers.CustomerCartAddItem(deps.Carts, logg))
				r.Patch("/items/{lineID}", cartcontrollers.CustomerCartUpdateItem(deps.Carts, logg))
				r.Delete("/items/{lineID}", cartcontrollers.CustomerCartRemoveItem(deps.Carts, logg))
			})
		})

		r.Route("/guest", func(r chi.Router) {
			r.Use(middleware.GuestToken(logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.GuestCartFetch(deps.Carts, logg))
				r.Delete("/", cartcontrollers.GuestCartClear(deps.Carts, logg))
				r.Post("/items", cartcontrollers.GuestCartAddItem(deps.Carts, logg))
				r.Patch("/items/{lineID}", cartcontrollers.GuestCartUpdateItem(deps.Carts, logg))
				r.Delete("/items/{lineID}", cartcontrollers.GuestCartRemoveItem(deps.Carts, logg))
			})

			// inline so the replay guard sees the fully matched route
			// pattern and runs after token extraction
			r.With(idempotency).Post("/checkout", controllers.GuestCheckout(deps.Checkout, logg))
		})

		r.Get("/invoices/{invoiceID}", controllers.InvoiceFetch(deps.Checkout, logg))
	})

	return r
}
