package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ruralpay/cartable/internal/logging"
	"github.com/ruralpay/cartable/internal/middleware"
	"github.com/ruralpay/cartable/internal/services"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig carries everything NewRouter mounts.
type RouterConfig struct {
	Orders    *services.OrderService
	Approvals *services.ApprovalService
	Accounts  *services.AccountService
	Groups    *services.GroupService
	Exports   *services.ExportService
	Receipts  *services.ReceiptService

	Tokens         *middleware.TokenManager
	Health         Pinger
	Metrics        http.Handler
	Logger         *logging.Logger
	AllowedOrigins []string
	SwaggerURL     string
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	orders := NewOrderHandler(cfg.Orders, cfg.Exports, cfg.Receipts)
	approvals := NewApprovalHandler(cfg.Approvals)
	accounts := NewAccountHandler(cfg.Accounts)
	groups := NewGroupHandler(cfg.Groups)

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(timeout))

	// CORS. An empty origin list serves same-origin callers only.
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Disposition", "X-Request-Id"},
			AllowCredentials: exactOrigins(cfg.AllowedOrigins),
			MaxAge:           86400,
		}))
	}

	r.Get("/health", healthHandler(cfg.Health))
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	swaggerURL := cfg.SwaggerURL
	if swaggerURL == "" {
		swaggerURL = "/swagger/doc.json"
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.Tokens))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orders.ListOrders)
			r.Post("/", orders.CreateOrder)
			r.Get("/export", orders.Export)
			r.Post("/decisions/batch", approvals.DecideBatch)

			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", orders.GetOrder)
				r.Post("/submit", orders.SubmitOrder)
				r.Post("/cancel", orders.CancelOrder)
				r.Post("/dispatch", orders.DispatchOrder)
				r.Post("/manager-approval", orders.ManagerApproval)
				r.Post("/bank-report", orders.BankReport)
				r.Post("/decision", approvals.Decide)
				r.Get("/receipt.png", orders.Receipt)
			})
		})

		r.Post("/otp/request", approvals.RequestOTP)
		r.Post("/otp/resend", approvals.ResendOTP)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", accounts.ListAccounts)
			r.Post("/", accounts.CreateAccount)
			r.Route("/{accountId}", func(r chi.Router) {
				r.Get("/", accounts.GetAccount)
				r.Post("/enable", accounts.EnableAccount)
				r.Post("/disable", accounts.DisableAccount)
				r.Put("/min-signatures", accounts.UpdateMinSignatures)
				r.Get("/signers", accounts.ListSigners)
				r.Post("/signers", accounts.AddSigner)
				r.Post("/signers/{signerId}/{action}", accounts.SignerAction)
			})
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", groups.ListGroups)
			r.Post("/", groups.CreateGroup)
			r.Route("/{groupId}", func(r chi.Router) {
				r.Get("/", groups.GetGroup)
				r.Put("/", groups.UpdateGroup)
				r.Delete("/", groups.DeleteGroup)
				r.Post("/enable", groups.EnableGroup)
				r.Post("/disable", groups.DisableGroup)
				r.Post("/accounts", groups.AddAccount)
				r.Delete("/accounts/{accountId}", groups.RemoveAccount)
			})
		})
	})

	return r
}

// healthHandler godoc
// @Summary Health check
// @Tags Ops
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
// exactOrigins reports whether no origin is a wildcard pattern. Credentials are only
// allowed for an explicit origin list.
func exactOrigins(origins []string) bool {
	for _, o := range origins {
		if strings.Contains(o, "*") {
			return false
		}
	}
	return true
}

func healthHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}
