// Package stubserver is a self-contained development backend for the ledger
// client: the full auth surface plus a couple of permission-gated resource
// routes, speaking the exact wire shapes the client expects.
package stubserver

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"go-ledger-client/internal/config"
	"go-ledger-client/internal/session"
)

func New(cfg *config.Config, log *slog.Logger) (http.Handler, error) {
	if err := cfg.ValidateServer(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	users, err := newUserStore(cfg.UsersFile)
	if err != nil {
		return nil, err
	}

	auth := newAuthService(users, cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	h := &handlers{auth: auth, users: users}

	perms := session.DefaultPermissions()
	if cfg.PermissionsFile != "" {
		perms, err = session.LoadPermissions(cfg.PermissionsFile)
		if err != nil {
			return nil, err
		}
	}

	return newRouter(cfg, log, auth, h, perms), nil
}

func newRouter(cfg *config.Config, log *slog.Logger, auth *authService, h *handlers, perms session.PermissionTable) http.Handler {
	r := chi.NewRouter()

	r.Use(recovery)
	r.Use(requestLogging(log))
	r.Use(corsHandler(cfg.CORSOrigins))
	r.Use(newRateLimiter(cfg.RateLimitRPM, cfg.AuthRateLimitRPM).handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	authn := requireAuth(auth)

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(a chi.Router) {
			a.Post("/login", h.login)
			a.Post("/refresh", h.refresh)
			a.With(authn).Post("/logout", h.logout)
			a.With(authn).Get("/me", h.me)
			a.With(authn).Post("/change-password", h.changePassword)
		})

		api.With(authn, requirePermission(perms, "account_read")).Get("/accounts", h.listAccounts)
		api.With(authn, requirePermission(perms, "journal_read")).Get("/journal-entries", h.listJournalEntries)
	})

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	handler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         3600,
	})

	return handler.Handler
}
