package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/marketledger-backend/api/controllers"
	analyticscontrollers "github.com/angelmondragon/marketledger-backend/api/controllers/analytics"
	ordercontrollers "github.com/angelmondragon/marketledger-backend/api/controllers/orders"
	"github.com/angelmondragon/marketledger-backend/api/middleware"
	"github.com/angelmondragon/marketledger-backend/internal/analytics"
	"github.com/angelmondragon/marketledger-backend/internal/cart"
	checkoutsvc "github.com/angelmondragon/marketledger-backend/internal/checkout"
	"github.com/angelmondragon/marketledger-backend/internal/notifications"
	"github.com/angelmondragon/marketledger-backend/internal/orders"
	"github.com/angelmondragon/marketledger-backend/internal/transactions"
	"github.com/angelmondragon/marketledger-backend/internal/wallets"
	"github.com/angelmondragon/marketledger-backend/pkg/config"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
	"github.com/angelmondragon/marketledger-backend/pkg/metrics"
	"github.com/angelmondragon/marketledger-backend/pkg/redis"
)

// Deps carries everything the API routes call into.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	Pingers       map[string]controllers.Pinger
	Idempotency   redis.IdempotencyStore
	Gatherer      prometheus.Gatherer
	HTTPMetrics   *metrics.HTTPMetrics
	Checkout      checkoutsvc.Service
	Cart          cart.Service
	Orders        orders.Service
	OrderCommands ordercontrollers.Commands
	Wallets       wallets.Service
	Funding       controllers.Funding
	Transactions  transactions.Service
	Notifications notifications.Service
	Analytics     analytics.Service
}

func NewRouter(deps Deps) http.Handler {
	logg := deps.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(deps.Config.HTTP.CORSOrigins),
		middleware.Logging(logg, deps.HTTPMetrics),
	)

	r.Get("/health/live", controllers.HealthLive(deps.Config))
	r.Get("/health/ready", controllers.HealthReady(deps.Config, deps.Pingers, logg))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(middleware.Actor(logg))
		v1.Use(middleware.Idempotency(deps.Idempotency, logg))

		customer := middleware.RequireRole(logg, middleware.RoleCustomer)
		staff := middleware.RequireRole(logg, middleware.RoleAdmin, middleware.RoleSystem)

		v1.With(customer).Post("/checkout", controllers.Checkout(deps.Checkout, logg))

		v1.Route("/cart", func(c chi.Router) {
			c.Use(customer)
			c.Post("/items", controllers.AddCartItem(deps.Cart, logg))
			c.Get("/vendors/{cartVendorId}", controllers.GetCartVendor(deps.Cart, logg))
		})

		v1.Route("/orders", func(o chi.Router) {
			o.Get("/", ordercontrollers.List(deps.Orders, logg))
			o.Route("/{orderId}", func(order chi.Router) {
				order.Get("/", ordercontrollers.Detail(deps.Orders, logg))
				order.With(staff).Post("/payment-confirmed", ordercontrollers.PaymentConfirmed(deps.OrderCommands, logg))
				order.With(middleware.RequireRole(logg, middleware.RoleVendor, middleware.RoleAdmin)).
					Post("/dispatch", ordercontrollers.Dispatch(deps.OrderCommands, logg))
				order.With(middleware.RequireRole(logg, middleware.RoleVendor, middleware.RoleDriver, middleware.RoleAdmin, middleware.RoleSystem)).
					Post("/complete", ordercontrollers.Complete(deps.OrderCommands, logg))
				order.With(middleware.RequireRole(logg, middleware.RoleCustomer, middleware.RoleVendor, middleware.RoleAdmin)).
					Post("/cancel", ordercontrollers.Cancel(deps.OrderCommands, logg))
				order.With(middleware.RequireRole(logg, middleware.RoleVendor, middleware.RoleDriver, middleware.RoleAdmin)).
					Post("/advance", ordercontrollers.Advance(deps.OrderCommands, logg))
				order.With(middleware.RequireRole(logg, middleware.RoleDriver)).
					Post("/assign-driver", ordercontrollers.AssignDriver(deps.Orders, logg))
				order.With(middleware.RequireRole(logg, middleware.RoleDriver)).
					Post("/verify-otp", ordercontrollers.VerifyOTP(deps.Orders, logg))
			})
		})

		v1.Route("/wallets", func(wr chi.Router) {
			wr.With(staff).Post("/fundings/{reference}/confirm", controllers.ConfirmFunding(deps.Funding, logg))
			wr.Get("/{userId}", controllers.GetWallet(deps.Wallets, deps.Transactions, logg))
			wr.Post("/{userId}/fund", controllers.FundWallet(deps.Funding, logg))
			wr.With(middleware.RequireRole(logg, middleware.RoleAdmin)).Get("/{userId}/audit", controllers.AuditWallet(deps.Wallets, logg))
		})

		v1.Route("/notifications", func(n chi.Router) {
			n.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			n.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
			n.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
		})

		v1.With(middleware.RequireRole(logg, middleware.RoleVendor, middleware.RoleAdmin)).
			Get("/vendors/{vendorId}/ledger-summary", analyticscontrollers.VendorLedgerSummary(deps.Analytics, logg))
	})

	return r
}
