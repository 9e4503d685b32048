package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"doc-approval-engine/internal/domain"
	"doc-approval-engine/internal/review"
)

type CreateRequest struct {
	ID            string            `json:"id,omitempty"`
	Title         string            `json:"title" validate:"required"`
	FileName      string            `json:"file_name"`
	FileKind      string            `json:"file_kind,omitempty"`
	Department    domain.Department `json:"department,omitempty"`
	TemplateID    string            `json:"template_id,omitempty"`
	ApprovalPages int               `json:"approval_pages,omitempty" validate:"gte=0"`
	CreatedBy     domain.ActorRef   `json:"created_by"`
}

func (e *Engine) CreateReport(ctx context.Context, req CreateRequest) (domain.Report, error) {
	if strings.TrimSpace(req.Title) == "" {
		return domain.Report{}, domain.NewValidationError("title", "title is required")
	}
	id := req.ID
	if id == "" {
		id = e.newID()
	} else if _, err := e.repo.GetReport(ctx, id); err == nil {
		return domain.Report{}, domain.NewValidationError("id", fmt.Sprintf("document %s already exists", id))
	} else if !domain.IsNotFound(err) {
		return domain.Report{}, err
	}

	pages := req.ApprovalPages
	if pages < 1 {
		pages = 1
	}
	now := e.now().UTC()
	r := domain.Report{
		ID:            id,
		Title:         req.Title,
		FileName:      req.FileName,
		FileKind:      req.FileKind,
		Department:    req.Department,
		TemplateID:    req.TemplateID,
		Status:        domain.StatusPending,
		ApprovalPages: pages,
		CreatedBy:     req.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastActedAt:   now,
	}
	if err := e.repo.SaveReport(ctx, r); err != nil {
		return domain.Report{}, fmt.Errorf("save document %s: %w", id, err)
	}
	e.logger.Info("document created", "document_id", id, "template_id", req.TemplateID)
	return r, nil
}

type SubmitRequest struct {
	Actor      domain.ActorRef   `json:"actor"`
	Reviewers  []domain.ActorRef `json:"reviewers,omitempty" validate:"dive"`
	TemplateID string            `json:"template_id,omitempty"`
	Priority   domain.Priority   `json:"priority,omitempty" validate:"omitempty,oneof=low normal high urgent"`
	Comments   string            `json:"comments,omitempty"`
}

// Submit starts a review round from pending or needs-revision. The
// assignment is seeded from a template's stages or from an explicit
// reviewer sequence; with neither it is exhausted at once and waits for
// Approve.
func (e *Engine) Submit(ctx context.Context, documentID string, req SubmitRequest) (domain.Report, error) {
	if err := requireActor(req.Actor); err != nil {
		return domain.Report{}, err
	}
	if len(req.Reviewers) > 0 && req.TemplateID != "" {
		return domain.Report{}, domain.NewValidationError("reviewers", "choose either reviewers or a template")
	}

	var (
		stages    []domain.WorkflowStage
		reviewers []domain.ActorRef
	)
	templateID := req.TemplateID
	if len(req.Reviewers) == 0 {
		if templateID == "" {
			r, err := e.repo.GetReport(ctx, documentID)
			if err != nil {
				return domain.Report{}, err
			}
			templateID = r.TemplateID
		}
		if templateID != "" {
			tpl, err := e.template(ctx, templateID)
			if err != nil {
				return domain.Report{}, err
			}
			stages = tpl.Stages
		}
	} else {
		for i, a := range req.Reviewers {
			if a.ID == "" {
				return domain.Report{}, domain.NewValidationError(fmt.Sprintf("reviewers[%d].id", i), "reviewer id is required")
			}
		}
		templateID = ""
		reviewers = req.Reviewers
	}

	return e.apply(ctx, "Submit", documentID, domain.EventSubmit, func(r *domain.Report, now time.Time) (effect, error) {
		r.Round++
		r.ApprovalPage = 0
		r.RevisionNotes = ""
		sub := review.Submission{
			TemplateID:  templateID,
			Round:       r.Round,
			Priority:    req.Priority,
			Comments:    req.Comments,
			SubmittedBy: req.Actor,
			At:          now,
		}
		if len(reviewers) > 0 {
			r.Assignment = review.FromSequence(reviewers, sub)
		} else {
			r.Assignment = review.NewAssignment(stages, sub)
		}
		r.Status = domain.StatusSubmitted
		return effect{actor: req.Actor, comments: req.Comments}, nil
	})
}

func (e *Engine) template(ctx context.Context, id string) (domain.WorkflowTemplate, error) {
	if e.templates == nil {
		return domain.WorkflowTemplate{}, domain.NewNotFoundError("template", id)
	}
	tpl, err := e.templates.Get(ctx, id)
	if err != nil {
		return domain.WorkflowTemplate{}, err
	}
	if !tpl.Active {
		return domain.WorkflowTemplate{}, domain.NewValidationError("template_id", fmt.Sprintf("template %s is not active", id))
	}
	return tpl, nil
}

// BeginReview marks that the current assignee has picked the document up.
func (e *Engine) BeginReview(ctx context.Context, documentID string, actor domain.ActorRef) (domain.Report, error) {
	return e.apply(ctx, "BeginReview", documentID, domain.EventBeginReview, func(r *domain.Report, _ time.Time) (effect, error) {
		if _, _, ok := review.Resolve(r.Assignment, actor); !ok {
			return effect{}, invalid(*r, domain.EventBeginReview, "actor is not assigned to the current stage", domain.ErrNotAssigned)
		}
		if r.Status == domain.StatusSubmitted {
			r.Status = domain.StatusInitialReview
		} else {
			r.Status = domain.StatusReviewProcess
		}
		return effect{actor: actor}, nil
	})
}

type ReviewRequest struct {
	Actor     domain.ActorRef `json:"actor"`
	Verdict   domain.Verdict  `json:"verdict" validate:"required,oneof=reviewed revision rejected"`
	Comments  string          `json:"comments,omitempty"`
	Signature string          `json:"signature,omitempty"`
}

// ActOnReview applies a participant's verdict. An approving verdict counts
// toward the current stage's quorum; it yields approved only when an
// approver clears the final stage.
func (e *Engine) ActOnReview(ctx context.Context, documentID string, req ReviewRequest) (domain.Report, error) {
	if err := requireActor(req.Actor); err != nil {
		return domain.Report{}, err
	}
	if !req.Verdict.Valid() {
		return domain.Report{}, domain.NewValidationError("verdict", fmt.Sprintf("unknown verdict %q", req.Verdict))
	}
	ev := req.Verdict.Event()

	return e.apply(ctx, "ActOnReview", documentID, ev, func(r *domain.Report, now time.Time) (effect, error) {
		a := r.Assignment
		stage := a.Current()
		if !a.Open() || stage == nil {
			return effect{}, invalid(*r, ev, "no reviewer is pending", domain.ErrNotAssigned)
		}
		if stage.RequireComments && strings.TrimSpace(req.Comments) == "" {
			return effect{}, domain.NewStageValidationError(stage.ID, "comments", "comments are required")
		}
		eff := effect{actor: req.Actor, comments: req.Comments}

		switch req.Verdict {
		case domain.VerdictRevision, domain.VerdictRejected:
			if !isParticipant(a, req.Actor) {
				return effect{}, invalid(*r, ev, "actor is not a participant in this review", domain.ErrNotAssigned)
			}
			review.Close(a)
			if req.Verdict == domain.VerdictRejected {
				reason := req.Comments
				r.RejectedReason = &reason
				r.Status = domain.StatusRejected
			} else {
				r.RevisionNotes = req.Comments
				r.Status = domain.StatusNeedsRevision
			}
			return eff, nil
		}

		if stage.RequireSignature && strings.TrimSpace(req.Signature) == "" {
			return effect{}, domain.NewStageValidationError(stage.ID, "signature", "signature is required")
		}
		slot, onBehalfOf, ok := review.Resolve(a, req.Actor)
		if !ok {
			return effect{}, invalid(*r, ev, "actor is not assigned to the current stage", domain.ErrNotAssigned)
		}
		role := req.Actor.Role
		if onBehalfOf != nil || role == "" {
			role = slot.Role
		}
		out, err := review.RecordApproval(a, domain.Approval{
			Actor:     req.Actor,
			Comments:  req.Comments,
			Signature: req.Signature,
			At:        now,
		})
		if domain.IsValidation(err) {
			return effect{}, err
		}
		if err != nil {
			return effect{}, invalid(*r, ev, "actor is not assigned to the current stage", err)
		}
		if out.Exhausted && role.IsApprover() {
			review.Close(a)
			r.Status = domain.StatusApproved
		} else {
			r.Status = domain.StatusReviewed
		}
		return eff, nil
	})
}

type DelegateRequest struct {
	Actor  domain.ActorRef `json:"actor"`
	From   domain.ActorRef `json:"from,omitempty" validate:"-"`
	To     domain.ActorRef `json:"to"`
	Reason string          `json:"reason,omitempty"`
}

// Delegate hands a pending approver's turn to another actor. Admins may
// delegate on someone else's behalf.
func (e *Engine) Delegate(ctx context.Context, documentID string, req DelegateRequest) (domain.Report, error) {
	if err := requireActor(req.Actor); err != nil {
		return domain.Report{}, err
	}
	from := req.From
	if from.ID == "" {
		from = req.Actor
	}
	if from.ID != req.Actor.ID && req.Actor.Role != domain.RoleAdmin {
		return domain.Report{}, domain.NewValidationError("from", "only admins may delegate for another actor")
	}

	return e.apply(ctx, "Delegate", documentID, domain.EventDelegate, func(r *domain.Report, now time.Time) (effect, error) {
		err := review.Delegate(r.Assignment, from, req.To, req.Reason, now)
		if errors.Is(err, domain.ErrNotAssigned) {
			return effect{}, invalid(*r, domain.EventDelegate, fmt.Sprintf("%s has no pending turn", from.ID), err)
		}
		if err != nil {
			return effect{}, err
		}
		return effect{actor: req.Actor, comments: req.Reason}, nil
	})
}

type ApproveRequest struct {
	Actor    domain.ActorRef `json:"actor"`
	Comments string          `json:"comments,omitempty"`
}

// Approve records one page of the final approval. The document becomes
// approved on the last page, and only once no reviewer is pending.
func (e *Engine) Approve(ctx context.Context, documentID string, req ApproveRequest) (domain.Report, error) {
	if err := requireActor(req.Actor); err != nil {
		return domain.Report{}, err
	}
	return e.apply(ctx, "Approve", documentID, domain.EventApprove, func(r *domain.Report, _ time.Time) (effect, error) {
		if !req.Actor.Role.IsApprover() {
			return effect{}, invalid(*r, domain.EventApprove, fmt.Sprintf("role %q cannot approve", req.Actor.Role), domain.ErrNotAssigned)
		}
		if r.Assignment.Open() {
			return effect{}, invalid(*r, domain.EventApprove, "review sequence is not complete", nil)
		}
		r.ApprovalPage++
		if r.ApprovalPage >= r.ApprovalPages {
			review.Close(r.Assignment)
			r.Status = domain.StatusApproved
		}
		return effect{actor: req.Actor, comments: req.Comments}, nil
	})
}

// Reject ends the document from any non-terminal status.
func (e *Engine) Reject(ctx context.Context, documentID string, actor domain.ActorRef, reason string) (domain.Report, error) {
	if err := requireActor(actor); err != nil {
		return domain.Report{}, err
	}
	return e.apply(ctx, "Reject", documentID, domain.EventReject, func(r *domain.Report, _ time.Time) (effect, error) {
		review.Close(r.Assignment)
		r.RejectedReason = &reason
		r.Status = domain.StatusRejected
		return effect{actor: actor, comments: reason}, nil
	})
}

func (e *Engine) RequestRevision(ctx context.Context, documentID string, actor domain.ActorRef, notes string) (domain.Report, error) {
	if err := requireActor(actor); err != nil {
		return domain.Report{}, err
	}
	return e.apply(ctx, "RequestRevision", documentID, domain.EventRequestRevision, func(r *domain.Report, _ time.Time) (effect, error) {
		review.Close(r.Assignment)
		r.RevisionNotes = notes
		r.Status = domain.StatusNeedsRevision
		return effect{actor: actor, comments: notes}, nil
	})
}

// Publish is valid only from approved.
func (e *Engine) Publish(ctx context.Context, documentID string, actor domain.ActorRef) (domain.Report, error) {
	if err := requireActor(actor); err != nil {
		return domain.Report{}, err
	}
	return e.apply(ctx, "Publish", documentID, domain.EventPublish, func(r *domain.Report, now time.Time) (effect, error) {
		r.Status = domain.StatusPublished
		at := now
		by := actor
		r.PublishedAt = &at
		r.PublishedBy = &by
		return effect{actor: actor}, nil
	})
}

func requireActor(a domain.ActorRef) error {
	if strings.TrimSpace(a.ID) == "" {
		return domain.NewValidationError("actor.id", "actor is required")
	}
	if a.Role != "" && !a.Role.Valid() {
		return domain.NewValidationError("actor.role", fmt.Sprintf("unknown role %q", a.Role))
	}
	return nil
}

// isParticipant reports whether actor may return or reject the document:
// anyone in the review sequence, a current delegate, or an admin.
func isParticipant(a *domain.ReviewAssignment, actor domain.ActorRef) bool {
	if actor.Role == domain.RoleAdmin {
		return true
	}
	for _, p := range a.ReviewSequence {
		if p.ID == actor.ID {
			return true
		}
	}
	_, _, ok := review.Resolve(a, actor)
	return ok
}
