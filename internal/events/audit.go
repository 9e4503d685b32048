package events

import (
	"context"

	"doc-approval-engine/internal/domain"
)

type AuditWriter interface {
	InsertAudit(ctx context.Context, documentID string, state domain.AuditState, detail any) error
}

// AuditTransitions writes every transition to the audit log.
func AuditTransitions(w AuditWriter) TransitionHandler {
	return func(ctx context.Context, ev domain.TransitionEvent) error {
		return w.InsertAudit(ctx, ev.DocumentID, domain.AuditTransition, ev)
	}
}

func AuditEscalations(w AuditWriter) EscalationHandler {
	return func(ctx context.Context, ev domain.EscalationEvent) error {
		return w.InsertAudit(ctx, ev.DocumentID, domain.AuditEscalation, ev)
	}
}
