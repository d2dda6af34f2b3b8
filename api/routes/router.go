package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/storefrontlabs/storefront-backend/api/controllers"
	webhookcontrollers "github.com/storefrontlabs/storefront-backend/api/controllers/webhooks"
	"github.com/storefrontlabs/storefront-backend/api/middleware"
	"github.com/storefrontlabs/storefront-backend/internal/catalog"
	"github.com/storefrontlabs/storefront-backend/internal/orders"
	"github.com/storefrontlabs/storefront-backend/internal/payments"
	razorpaywebhook "github.com/storefrontlabs/storefront-backend/internal/webhooks/razorpay"
	"github.com/storefrontlabs/storefront-backend/pkg/config"
	"github.com/storefrontlabs/storefront-backend/pkg/db"
	"github.com/storefrontlabs/storefront-backend/pkg/logger"
	"github.com/storefrontlabs/storefront-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	catalogService catalog.Service,
	ordersService orders.Service,
	paymentVerifier *payments.Verifier,
	webhookService *razorpaywebhook.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/products", controllers.ListProducts(catalogService, logg))
		r.Get("/products/{productId}", controllers.GetProduct(catalogService, logg))
		r.Get("/variants/{sku}", controllers.GetVariantAvailability(catalogService, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", webhookcontrollers.RazorpayWebhook(webhookService, logg))
	})

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Post("/verify", controllers.VerifyPayment(paymentVerifier, logg))
	})

	r.Route("/api/admin/v1/orders", func(r chi.Router) {
		r.Get("/{orderId}", controllers.AdminGetOrder(ordersService, logg))
		r.Put("/{orderId}/status", controllers.AdminUpdateOrderStatus(ordersService, logg))
		r.Get("/{orderId}/ledger", controllers.AdminOrderLedger(ordersService, logg))
	})

	return r
}
