package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-assist/meridian/internal/cases"
	"github.com/meridian-assist/meridian/internal/companies"
	"github.com/meridian-assist/meridian/internal/invoices"
	"github.com/meridian-assist/meridian/internal/partners"
	"github.com/meridian-assist/meridian/internal/reporting"
	"github.com/meridian-assist/meridian/internal/trash"
	"github.com/meridian-assist/meridian/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	PartnerHandler   *partners.Handler
	CompanyHandler   *companies.Handler
	CaseHandler      *cases.Handler
	InvoiceHandler   *invoices.Handler
	TrashHandler     *trash.Handler
	ReportingHandler *reporting.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with ledger defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/partners", params.PartnerHandler.MountRoutes)
		api.Route("/companies", params.CompanyHandler.MountRoutes)
		api.Route("/cases", params.CaseHandler.MountRoutes)
		api.Route("/invoices", params.InvoiceHandler.MountRoutes)
		api.Route("/trash", params.TrashHandler.MountRoutes)
		api.Route("/reports", params.ReportingHandler.MountRoutes)
		if params.JobHandler != nil {
			api.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
