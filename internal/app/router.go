package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gridlog/gridlog/internal/audit"
	"github.com/gridlog/gridlog/internal/notifications"
	"github.com/gridlog/gridlog/internal/observability"
	"github.com/gridlog/gridlog/internal/periods"
	"github.com/gridlog/gridlog/internal/reports"
	"github.com/gridlog/gridlog/internal/users"
	"github.com/gridlog/gridlog/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	Resolver             ActorResolver
	Metrics              *observability.Metrics
	UsersHandler         *users.Handler
	PeriodsHandler       *periods.Handler
	ReportsHandler       *reports.Handler
	NotificationsHandler *notifications.Handler
	AuditHandler         *audit.Handler
	JobHandler           *jobs.Handler
}

// NewRouter constructs the chi.Router with Gridlog defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Resolver: params.Resolver,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireActor)
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/periods", params.PeriodsHandler.MountRoutes)
		r.Route("/reports", params.ReportsHandler.MountRoutes)
		r.Route("/notifications", params.NotificationsHandler.MountRoutes)
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
