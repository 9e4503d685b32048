package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"doc-approval-engine/internal/domain"
	"doc-approval-engine/internal/metrics"
	"doc-approval-engine/internal/review"
)

// ErrNotDue is returned when an escalation fires before its stage deadline.
// Callers retry later.
var ErrNotDue = errors.New("escalation not yet due")

// Escalate fires the timer for one stage instance. It acts at most once per
// key: a resolved, superseded or already escalated stage returns
// ErrStaleEscalation. Auto-advance stages are cleared with a system
// approval; other stages raise an alert.
func (e *Engine) Escalate(ctx context.Context, documentID string, key domain.StageKey) (domain.Report, error) {
	var action domain.EscalationAction
	r, err := e.apply(ctx, "Escalate", documentID, domain.EventEscalate, func(r *domain.Report, now time.Time) (effect, error) {
		a := r.Assignment
		stage := a.Current()
		if r.Status.IsTerminal() || !a.Open() || stage == nil || a.Key() != key || stage.Escalated {
			return effect{}, fmt.Errorf("document %s stage %d/%d: %w", documentID, key.Round, key.Stage, domain.ErrStaleEscalation)
		}
		deadline, ok := review.Deadline(a)
		if !ok {
			return effect{}, fmt.Errorf("document %s stage %s has no escalation: %w", documentID, stage.ID, domain.ErrStaleEscalation)
		}
		if now.Before(deadline) {
			return effect{}, fmt.Errorf("document %s stage %s due at %s: %w", documentID, stage.ID, deadline.Format(time.RFC3339), ErrNotDue)
		}

		alert := domain.EscalationEvent{
			DocumentID: documentID,
			Key:        key,
			StageID:    stage.ID,
			StageName:  stage.Name,
			Pending:    review.Pending(a),
			Timestamp:  now,
		}
		if stage.AutoAdvance {
			action = domain.EscalationAutoAdvance
			review.ClearStage(a, domain.Approval{
				Actor:    domain.SystemActor,
				Comments: fmt.Sprintf("auto-advanced after %d hours", *stage.EscalationTimeHours),
				Auto:     true,
				At:       now,
			})
			r.Status = domain.StatusReviewed
		} else {
			action = domain.EscalationAlert
			stage.Escalated = true
		}
		alert.Action = action
		return effect{actor: domain.SystemActor, comments: string(action), escalation: &alert}, nil
	})
	if err != nil {
		return domain.Report{}, err
	}
	metrics.RecordEscalation(string(action))
	return r, nil
}

// EscalateOverdue escalates every stage whose deadline has passed. Stages
// already handled are skipped.
func (e *Engine) EscalateOverdue(ctx context.Context, now time.Time) (int, error) {
	all, err := e.repo.ListReports(ctx)
	if err != nil {
		return 0, err
	}
	fired := 0
	var errs []error
	for _, r := range all {
		if r.Status.IsTerminal() {
			continue
		}
		deadline, ok := review.Deadline(r.Assignment)
		if !ok || now.Before(deadline) {
			continue
		}
		_, err := e.Escalate(ctx, r.ID, r.Assignment.Key())
		switch {
		case err == nil:
			fired++
		case errors.Is(err, domain.ErrStaleEscalation), errors.Is(err, ErrNotDue):
		default:
			errs = append(errs, err)
		}
	}
	return fired, errors.Join(errs...)
}
