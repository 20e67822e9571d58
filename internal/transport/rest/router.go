package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/tracker-bot/internal/audit"
	"github.com/frahmantamala/tracker-bot/internal/auth"
	"github.com/frahmantamala/tracker-bot/internal/github"
	"github.com/frahmantamala/tracker-bot/internal/report"
	"github.com/frahmantamala/tracker-bot/internal/telegram"
	"github.com/frahmantamala/tracker-bot/internal/transport/middleware"
	"github.com/frahmantamala/tracker-bot/internal/transport/swagger"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Handlers groups everything the router mounts. Nil handlers leave their
// routes unregistered.
type Handlers struct {
	Health   *HealthHandler
	Auth     *auth.Handler
	Report   *report.Handler
	Audit    *audit.Handler
	Policy   *PolicyHandler
	GitHub   *github.Handler
	Telegram *telegram.WebhookHandler
	Spec     *swagger.Spec
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, allowedOrigins string, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.CORS(allowedOrigins))
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.LoggingMiddleware(logger))

	if h.Spec != nil {
		router.Method(http.MethodGet, swagger.SpecURL, h.Spec)
		router.Handle("/swagger/*", swagger.Handler())
	}

	if h.Telegram != nil {
		router.Post("/telegram/webhook", h.Telegram.HandleUpdate)
	}
	if h.GitHub != nil {
		router.Post("/api/github/webhook", h.GitHub.Webhook)
	}

	router.Route("/api/v1", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.Health)
			r.Get("/ping", h.Health.Ping)
		}

		if h.Auth == nil {
			return
		}

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			pr.Get("/me", h.Auth.Me)

			if h.Report != nil {
				pr.Get("/projects", h.Report.ListProjects)
				pr.Get("/projects/{projectKey}/sprints", h.Report.ListSprints)
				pr.Get("/projects/{projectKey}/sprints/{sprintID}/report/{kind}", h.Report.DownloadReport)
			}

			if h.Audit != nil {
				pr.Get("/audit/reports", h.Audit.ListReportRequests)
			}

			if h.Policy != nil {
				pr.Group(func(ar chi.Router) {
					ar.Use(middleware.RequireSuperAdmin(logger))
					ar.Get("/policy", h.Policy.Show)
				})
			}
		})
	})
}

// Routes lists the registered routes as "METHOD /path".
func Routes(router chi.Routes) ([]string, error) {
	var out []string
	err := chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		out = append(out, method+" "+route)
		return nil
	})
	return out, err
}
