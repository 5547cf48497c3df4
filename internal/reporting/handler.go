package reporting

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-assist/meridian/internal/platform/httpx"
	"github.com/meridian-assist/meridian/internal/shared"
)

// Handler manages reporting endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers reporting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard", h.dashboard)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	period := shared.ReportPeriod(r.URL.Query().Get("period"))
	if period == "" {
		period = shared.PeriodMonth
	}
	dashboard, err := h.service.Dashboard(r.Context(), period)
	if err != nil {
		h.logger.Error("build dashboard", slog.String("period", string(period)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, dashboard)
}
