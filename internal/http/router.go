package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danirudp/lipos/internal/metrics"
	"github.com/danirudp/lipos/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Checkout       service.CheckoutService
	Admin          CatalogAdmin
	Log            *slog.Logger
	Metrics        *metrics.ServerMetrics
	Gatherer       prometheus.Gatherer // nil disables /metrics
	RequestTimeout time.Duration
	CORSOrigins    []string
}

// NewRouter builds the HTTP surface, wrapped for OpenTelemetry tracing.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	checkoutHandler := NewCheckoutHandler(cfg.Checkout, timeout)
	ordersHandler := NewOrdersHandler(cfg.Admin, timeout, log)
	productHandler := NewProductHandler(cfg.Admin, timeout, log)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(Metrics(cfg.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders: []string{"Location", "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", checkoutHandler.PlaceOrder)
			r.Get("/", ordersHandler.ListOrders)
			r.Get("/{order_id}", ordersHandler.GetOrder)
		})
		r.Route("/customers/{customer_id}", func(r chi.Router) {
			r.Get("/orders", ordersHandler.ListCustomerOrders)
			r.Delete("/", ordersHandler.DeleteCustomer)
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.ListProducts)
			r.Route("/{product_id}", func(r chi.Router) {
				r.Get("/", productHandler.GetProduct)
				r.Delete("/", productHandler.DeleteProduct)
				r.Put("/stock", productHandler.SetStock)
				r.Put("/price", productHandler.SetPrice)
			})
		})
	})

	return otelhttp.NewHandler(r, "lipos.http",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))
}
