package api

import (
	"net/http"

	"doc-approval-engine/internal/domain"
	"doc-approval-engine/internal/lifecycle"
)

type actorRequest struct {
	Actor domain.ActorRef `json:"actor"`
}

type rejectRequest struct {
	Actor  domain.ActorRef `json:"actor"`
	Reason string          `json:"reason" validate:"required"`
}

type revisionRequest struct {
	Actor domain.ActorRef `json:"actor"`
	Notes string          `json:"notes"`
}

func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := domain.DocumentStatus(q.Get("status")).Normalize()
	if status != "" && !status.Valid() {
		writeProblem(w, r, http.StatusBadRequest, "unknown status "+string(status))
		return
	}
	items, err := h.engine.List(r.Context(), lifecycle.ListFilter{
		Status:   status,
		Assignee: q.Get("assignee"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.CreateRequest
	if !h.decode(w, r, &req) {
		return
	}
	doc, err := h.engine.CreateReport(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request, documentID string) {
	doc, err := h.engine.Get(r.Context(), documentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request, documentID string) {
	if h.plans == nil {
		writeProblem(w, r, http.StatusNotFound, "no plans are stored")
		return
	}
	plan, err := h.plans.GetPlan(r.Context(), documentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request, documentID string) {
	if h.audit == nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": []any{}})
		return
	}
	entries, err := h.audit.ListAudit(r.Context(), documentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

// Act dispatches a lifecycle action posted to /documents/{id}/{action}.
func (h *Handler) Act(w http.ResponseWriter, r *http.Request, documentID, action string) {
	ctx := r.Context()
	var (
		doc domain.Report
		err error
	)
	switch action {
	case "submit":
		var req lifecycle.SubmitRequest
		if !h.decode(w, r, &req) {
			return
		}
		doc, err = h.engine.Submit(ctx, documentID, req)
	case "begin-review":
		var req actorRequest
		if !h.decode(w, r, &req) {
			return
		}
		doc, err = h.engine.BeginReview(ctx, documentID, req.Actor)
	case "review":
		var req lifecycle.ReviewRequest
		if !h.decode(w, r, &req) {
			return
		}
		doc, err = h.engine.ActOnReview(ctx, documentID, req)
	case "delegate":
		var req lifecycle.DelegateRequest
		if !h.decode(w, r, &req) {
			return
		}
		doc, err = h.engine.Delegate(ctx, documentID, req)
	case "approve":
		var req lifecycle.ApproveRequest
		if !h.decode(w, r, &req) {
			return
		}
		doc, err = h.engine.Approve(ctx, documentID, req)
	case "reject":
		var req rejectRequest
		if !h.decode(w, r, &req) {
			return
		}
		doc, err = h.engine.Reject(ctx, documentID, req.Actor, req.Reason)
	case "revision":
		var req revisionRequest
		if !h.decode(w, r, &req) {
			return
		}
		doc, err = h.engine.RequestRevision(ctx, documentID, req.Actor, req.Notes)
	case "publish":
		var req actorRequest
		if !h.decode(w, r, &req) {
			return
		}
		doc, err = h.engine.Publish(ctx, documentID, req.Actor)
	default:
		writeProblem(w, r, http.StatusNotFound, "unknown action "+action)
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
