package temporal

import (
	"context"
	"errors"
	"log/slog"

	"go.temporal.io/sdk/temporal"

	"doc-approval-engine/internal/domain"
	"doc-approval-engine/internal/lifecycle"
)

const escalationRejectedErrorType = "EscalationRejected"

type Escalator interface {
	Escalate(ctx context.Context, documentID string, key domain.StageKey) (domain.Report, error)
}

type Activities struct {
	Engine Escalator
	Logger *slog.Logger
}

type EscalateStageInput struct {
	DocumentID string
	Key        domain.StageKey
}

type EscalateStageOutput struct {
	Status domain.DocumentStatus
	// Stale is set when the stage was already left or escalated.
	Stale bool
}

func (a *Activities) EscalateStageActivity(ctx context.Context, in EscalateStageInput) (EscalateStageOutput, error) {
	report, err := a.Engine.Escalate(ctx, in.DocumentID, in.Key)
	switch {
	case err == nil:
		return EscalateStageOutput{Status: report.Status}, nil
	case errors.Is(err, domain.ErrStaleEscalation):
		a.logger().Info("escalation no longer applies",
			"document_id", in.DocumentID,
			"round", in.Key.Round,
			"stage", in.Key.Stage,
		)
		return EscalateStageOutput{Stale: true}, nil
	case errors.Is(err, lifecycle.ErrNotDue):
		return EscalateStageOutput{}, err
	case domain.IsInvalidTransition(err), domain.IsNotFound(err), domain.IsValidation(err):
		return EscalateStageOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), escalationRejectedErrorType, err)
	default:
		return EscalateStageOutput{}, err
	}
}

func (a *Activities) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}
