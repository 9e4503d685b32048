package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"doc-approval-engine/internal/domain"
)

// EscalationScheduler drives one StageEscalationWorkflow per document.
type EscalationScheduler struct {
	client    client.Client
	taskQueue string
	prefix    string
	logger    *slog.Logger
}

func NewEscalationScheduler(c client.Client, taskQueue, workflowPrefix string, logger *slog.Logger) *EscalationScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if workflowPrefix == "" {
		workflowPrefix = "approval-escalation"
	}
	return &EscalationScheduler{client: c, taskQueue: taskQueue, prefix: workflowPrefix, logger: logger}
}

func (s *EscalationScheduler) WorkflowID(documentID string) string {
	return fmt.Sprintf("%s-%s", s.prefix, documentID)
}

func (s *EscalationScheduler) Arm(ctx context.Context, documentID string, key domain.StageKey, at time.Time) error {
	workflowID := s.WorkflowID(documentID)
	_, err := s.client.SignalWithStartWorkflow(ctx, workflowID, EscalationSignalName,
		armSignal(key, at),
		client.StartWorkflowOptions{
			ID:        workflowID,
			TaskQueue: s.taskQueue,
		},
		StageEscalationWorkflowName,
		EscalationWorkflowInput{DocumentID: documentID},
	)
	if err != nil {
		return fmt.Errorf("arm escalation for %s: %w", documentID, err)
	}
	s.logger.Debug("escalation armed", "document_id", documentID, "workflow_id", workflowID, "due_at", at)
	return nil
}

func (s *EscalationScheduler) Cancel(ctx context.Context, documentID string) error {
	workflowID := s.WorkflowID(documentID)
	err := s.client.SignalWorkflow(ctx, workflowID, "", EscalationSignalName, disarmSignal(true, "document left review"))
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("cancel escalation for %s: %w", documentID, err)
	}
	return nil
}
