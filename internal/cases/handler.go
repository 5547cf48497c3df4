package cases

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-assist/meridian/internal/platform/httpx"
	"github.com/meridian-assist/meridian/internal/shared"
)

const maxDocumentSize = 25 << 20

// Handler manages case endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers case routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)

	r.Get("/{id}/actions", h.listActions)
	r.Post("/{id}/actions", h.addAction)
	r.Put("/{id}/actions/{actionID}", h.updateAction)
	r.Delete("/{id}/actions/{actionID}", h.deleteAction)

	r.Get("/{id}/documents", h.listDocuments)
	r.Post("/{id}/documents", h.uploadDocument)
	r.Delete("/{id}/documents/{docID}", h.deleteDocument)
}

func urlID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	handlerID, _ := strconv.ParseInt(q.Get("handler_id"), 10, 64)
	filter := ListFilter{
		Status:    CaseStatus(q.Get("status")),
		HandlerID: handlerID,
		Search:    q.Get("q"),
		Limit:     100,
	}
	items, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list cases", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"cases": items})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CaseInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	actor := shared.ActorFromContext(r.Context())
	created, err := h.service.Create(r.Context(), actor, input)
	if err != nil {
		h.logger.Error("create case", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid case id")
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid case id")
		return
	}
	var input CaseInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	updated, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.logger.Error("update case", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid case id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "trashed"})
}

func (h *Handler) listActions(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid case id")
		return
	}
	actions, err := h.service.ListActions(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"actions": actions})
}

func (h *Handler) addAction(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid case id")
		return
	}
	var input ActionInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	action, err := h.service.AddAction(r.Context(), id, input)
	if err != nil {
		h.logger.Error("add case action", slog.Any("error", err), slog.Int64("case_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, action)
}

func (h *Handler) updateAction(w http.ResponseWriter, r *http.Request) {
	actionID, ok := urlID(r, "actionID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid action id")
		return
	}
	var input ActionInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	action, err := h.service.UpdateAction(r.Context(), actionID, input)
	if err != nil {
		h.logger.Error("update case action", slog.Any("error", err), slog.Int64("action_id", actionID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, action)
}

func (h *Handler) deleteAction(w http.ResponseWriter, r *http.Request) {
	actionID, ok := urlID(r, "actionID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid action id")
		return
	}
	if err := h.service.DeleteAction(r.Context(), actionID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid case id")
		return
	}
	var categories []DocumentCategory
	if raw := r.URL.Query().Get("categories"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			categories = append(categories, DocumentCategory(strings.TrimSpace(c)))
		}
	}
	docs, err := h.service.ListDocuments(r.Context(), id, categories)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (h *Handler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid case id")
		return
	}
	if err := r.ParseMultipartForm(maxDocumentSize); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_ERROR", "document file missing")
		return
	}
	defer func() {
		_ = file.Close()
	}()
	data, err := io.ReadAll(io.LimitReader(file, maxDocumentSize))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_ERROR", "unreadable document file")
		return
	}

	actor := shared.ActorFromContext(r.Context())
	category := DocumentCategory(r.FormValue("category"))
	doc, err := h.service.UploadDocument(r.Context(), actor, id, category, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		h.logger.Error("upload case document", slog.Any("error", err), slog.Int64("case_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	docID, ok := urlID(r, "docID")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid document id")
		return
	}
	if err := h.service.DeleteDocument(r.Context(), docID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
