package trash

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-assist/meridian/internal/platform/httpx"
	"github.com/meridian-assist/meridian/internal/shared"
)

// Handler manages trash endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers trash routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/{kind}/{id}/restore", h.restore)
	r.Delete("/{kind}/{id}", h.purge)
}

func urlTarget(r *http.Request) (ItemKind, int64, bool) {
	kind := ItemKind(chi.URLParam(r, "kind"))
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return kind, id, err == nil && id > 0
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list trash", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := urlTarget(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid trash target")
		return
	}
	if err := h.service.Restore(r.Context(), kind, id); err != nil {
		h.logger.Error("restore from trash", slog.String("kind", string(kind)), slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) purge(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := urlTarget(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid trash target")
		return
	}
	actor := shared.ActorFromContext(r.Context())
	if err := h.service.Purge(r.Context(), actor, kind, id); err != nil {
		h.logger.Error("purge from trash", slog.String("kind", string(kind)), slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
