// Package lifecycle drives documents through review, approval and
// publication.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"doc-approval-engine/internal/domain"
	"doc-approval-engine/internal/lock"
	"doc-approval-engine/internal/metrics"
	"doc-approval-engine/internal/review"
	"doc-approval-engine/internal/telemetry"
)

type Repository interface {
	GetReport(ctx context.Context, id string) (domain.Report, error)
	SaveReport(ctx context.Context, r domain.Report) error
	ListReports(ctx context.Context) ([]domain.Report, error)
}

type TemplateSource interface {
	Get(ctx context.Context, id string) (domain.WorkflowTemplate, error)
}

// Publisher receives events after the aggregate is committed.
type Publisher interface {
	PublishTransition(ctx context.Context, ev domain.TransitionEvent) error
	PublishEscalation(ctx context.Context, ev domain.EscalationEvent) error
}

// Scheduler arms the escalation timer for a stage instance. Arm replaces
// any timer already armed for the document; Cancel removes it.
type Scheduler interface {
	Arm(ctx context.Context, documentID string, key domain.StageKey, at time.Time) error
	Cancel(ctx context.Context, documentID string) error
}

type Engine struct {
	repo      Repository
	templates TemplateSource
	locker    lock.Locker
	publisher Publisher
	scheduler Scheduler
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string
}

type Option func(*Engine)

func WithTemplates(t TemplateSource) Option {
	return func(e *Engine) { e.templates = t }
}

func WithLocker(l lock.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.scheduler = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

func New(repo Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:      repo,
		locker:    lock.NewKeyedMutex(),
		publisher: nopPublisher{},
		scheduler: nopScheduler{},
		logger:    slog.Default(),
		tracer:    telemetry.Noop(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// effect describes what a committed mutation emits.
type effect struct {
	actor      domain.ActorRef
	comments   string
	escalation *domain.EscalationEvent
}

type mutation func(r *domain.Report, now time.Time) (effect, error)

// apply runs fn against a copy of the document under its lock. The copy is
// saved only if fn succeeds and the resulting status is allowed for ev.
func (e *Engine) apply(ctx context.Context, op string, documentID string, ev domain.Event, fn mutation) (domain.Report, error) {
	ctx, span := e.tracer.Start(ctx, "lifecycle."+op, trace.WithAttributes(
		telemetry.DocumentIDKey.String(documentID),
		telemetry.EventKey.String(string(ev)),
	))
	defer span.End()

	fail := func(err error) (domain.Report, error) {
		metrics.RecordRejected(string(ev), reasonLabel(err))
		telemetry.SetError(span, err, telemetry.DocumentIDKey.String(documentID))
		e.logger.Warn("operation refused", "op", op, "document_id", documentID, "error", err)
		return domain.Report{}, err
	}

	release, err := e.locker.Lock(ctx, documentID)
	if err != nil {
		return fail(fmt.Errorf("lock document %s: %w", documentID, err))
	}
	defer release()

	current, err := e.repo.GetReport(ctx, documentID)
	if err != nil {
		return fail(err)
	}
	current.Status = current.Status.Normalize()
	if !Accepts(current.Status, ev) {
		var cause error
		if ev == domain.EventEscalate {
			cause = domain.ErrStaleEscalation
		}
		return fail(invalid(current, ev, "", cause))
	}

	next := current.Clone()
	now := e.now().UTC()
	eff, err := fn(&next, now)
	if err != nil {
		return fail(err)
	}
	if !Allowed(current.Status, ev, next.Status) {
		return fail(invalid(current, ev, fmt.Sprintf("would move to %s", next.Status), nil))
	}

	next.UpdatedAt = now
	next.LastActedAt = now
	if err := e.repo.SaveReport(ctx, next); err != nil {
		return fail(fmt.Errorf("save document %s: %w", documentID, err))
	}
	span.SetAttributes(telemetry.StatusKey.String(string(next.Status)))

	e.logger.Info("document transitioned",
		"document_id", documentID,
		"event", ev,
		"from", current.Status,
		"to", next.Status,
		"actor", eff.actor.ID,
	)
	metrics.RecordTransition(string(current.Status), string(next.Status))
	e.emit(ctx, current, next, ev, eff, now)
	e.syncTimer(ctx, current, next)
	return next.Clone(), nil
}

// emit publishes after commit. Failures are logged; the committed state is
// authoritative.
func (e *Engine) emit(ctx context.Context, before, after domain.Report, ev domain.Event, eff effect, now time.Time) {
	transition := domain.TransitionEvent{
		ID:         e.newID(),
		DocumentID: after.ID,
		Event:      ev,
		FromStatus: before.Status,
		ToStatus:   after.Status,
		Actor:      eff.actor,
		Comments:   eff.comments,
		Timestamp:  now,
	}
	if err := e.publisher.PublishTransition(ctx, transition); err != nil {
		e.logger.Error("publish transition failed", "document_id", after.ID, "error", err)
	}
	if eff.escalation != nil {
		eff.escalation.ID = e.newID()
		if err := e.publisher.PublishEscalation(ctx, *eff.escalation); err != nil {
			e.logger.Error("publish escalation failed", "document_id", after.ID, "error", err)
		}
	}
}

// syncTimer arms the current stage's escalation or cancels a pending one.
func (e *Engine) syncTimer(ctx context.Context, before, after domain.Report) {
	prevAt, hadTimer := review.Deadline(before.Assignment)
	at, ok := review.Deadline(after.Assignment)
	if ok && !after.Status.IsTerminal() {
		if hadTimer && prevAt.Equal(at) && before.Assignment.Key() == after.Assignment.Key() {
			return
		}
		if err := e.scheduler.Arm(ctx, after.ID, after.Assignment.Key(), at); err != nil {
			e.logger.Error("arm escalation failed", "document_id", after.ID, "error", err)
		}
		return
	}
	if hadTimer {
		if err := e.scheduler.Cancel(ctx, after.ID); err != nil {
			e.logger.Error("cancel escalation failed", "document_id", after.ID, "error", err)
		}
	}
}

func (e *Engine) Get(ctx context.Context, documentID string) (domain.Report, error) {
	return e.repo.GetReport(ctx, documentID)
}

type ListFilter struct {
	Status   domain.DocumentStatus
	Assignee string
}

// List returns documents with the most recently acted on first.
func (e *Engine) List(ctx context.Context, f ListFilter) ([]domain.Report, error) {
	all, err := e.repo.ListReports(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Report, 0, len(all))
	for _, r := range all {
		if f.Status != "" && r.Status != f.Status.Normalize() {
			continue
		}
		if f.Assignee != "" && !isPending(r.Assignment, f.Assignee) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastActedAt.Equal(out[j].LastActedAt) {
			return out[i].LastActedAt.After(out[j].LastActedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func isPending(a *domain.ReviewAssignment, actorID string) bool {
	_, _, ok := review.Resolve(a, domain.ActorRef{ID: actorID})
	return ok
}

func reasonLabel(err error) string {
	switch {
	case domain.IsValidation(err):
		return "validation"
	case domain.IsInvalidTransition(err):
		return "invalid_transition"
	case domain.IsNotFound(err):
		return "not_found"
	case errors.Is(err, domain.ErrStaleEscalation):
		return "stale_escalation"
	default:
		return "error"
	}
}

type nopPublisher struct{}

func (nopPublisher) PublishTransition(context.Context, domain.TransitionEvent) error { return nil }
func (nopPublisher) PublishEscalation(context.Context, domain.EscalationEvent) error { return nil }

type nopScheduler struct{}

func (nopScheduler) Arm(context.Context, string, domain.StageKey, time.Time) error { return nil }
func (nopScheduler) Cancel(context.Context, string) error { return nil }
