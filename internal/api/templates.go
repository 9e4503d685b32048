package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"doc-approval-engine/internal/domain"
	"doc-approval-engine/internal/templates"
)

type duplicateRequest struct {
	CreatedBy string `json:"created_by" validate:"required"`
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	activeOnly, _ := strconv.ParseBool(q.Get("active_only"))
	items, err := h.templates.List(r.Context(), templates.Filter{
		Department:   domain.Department(q.Get("department")),
		DocumentType: q.Get("document_type"),
		ActiveOnly:   activeOnly,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var t domain.WorkflowTemplate
	if !h.decodeTemplate(w, r, &t) {
		return
	}
	created, err := h.templates.Create(r.Context(), t)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request, templateID string) {
	t, err := h.templates.Get(r.Context(), templateID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request, templateID string) {
	var t domain.WorkflowTemplate
	if !h.decodeTemplate(w, r, &t) {
		return
	}
	t.ID = templateID
	updated, err := h.templates.Update(r.Context(), t)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request, templateID string) {
	if err := h.templates.Delete(r.Context(), templateID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DuplicateTemplate(w http.ResponseWriter, r *http.Request, templateID string) {
	var req duplicateRequest
	if !h.decode(w, r, &req) {
		return
	}
	dup, err := h.templates.Duplicate(r.Context(), templateID, req.CreatedBy)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dup)
}

func (h *Handler) SetTemplateActive(w http.ResponseWriter, r *http.Request, templateID string, active bool) {
	t, err := h.templates.SetActive(r.Context(), templateID, active)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// decodeTemplate leaves rule checks to the store so that errors name the
// offending stage.
func (h *Handler) decodeTemplate(w http.ResponseWriter, r *http.Request, t *domain.WorkflowTemplate) bool {
	body, ok := h.readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, t); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}
