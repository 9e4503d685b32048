package temporal

import (
	"go.temporal.io/sdk/workflow"
)

const StageEscalationWorkflowName = "StageEscalationWorkflow"

// maxTimersPerRun bounds history growth before the workflow continues as new.
const maxTimersPerRun = 200

type EscalationWorkflowInput struct {
	DocumentID string
	Pending    *ArmEscalationSignal
}

type EscalationWorkflowResult struct {
	DocumentID  string
	Escalations int
}

// StageEscalationWorkflow keeps at most one stage timer per document. Arm
// commands replace the timer, disarm commands stop it, and a fired timer
// runs EscalateStageActivity once for the armed stage.
func StageEscalationWorkflow(ctx workflow.Context, input EscalationWorkflowInput) (EscalationWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	result := EscalationWorkflowResult{DocumentID: input.DocumentID}

	signalCh := workflow.GetSignalChannel(ctx, EscalationSignalName)
	activityCtx := mustActivityContext(ctx, ActivityPolicyEscalateStage)

	pending := input.Pending
	final := false
	apply := func(sig EscalationSignal) {
		switch {
		case sig.Arm != nil:
			pending = sig.Arm
			final = false
		case sig.Disarm != nil:
			pending = nil
			final = sig.Disarm.Final
		}
	}

	timers := 0
	for {
		if pending == nil && timers >= maxTimersPerRun && signalCh.Len() == 0 {
			return result, workflow.NewContinueAsNewError(ctx, StageEscalationWorkflowName, EscalationWorkflowInput{DocumentID: input.DocumentID})
		}

		selector := workflow.NewSelector(ctx)
		fired := false

		var cancelTimer workflow.CancelFunc
		if pending != nil {
			timerCtx, cancel := workflow.WithCancel(ctx)
			cancelTimer = cancel
			wait := pending.DueAt.Sub(workflow.Now(ctx))
			if wait < 0 {
				wait = 0
			}
			timers++
			selector.AddFuture(workflow.NewTimer(timerCtx, wait), func(f workflow.Future) {
				if err := f.Get(ctx, nil); err == nil {
					fired = true
				}
			})
		}
		selector.AddReceive(signalCh, func(c workflow.ReceiveChannel, _ bool) {
			var sig EscalationSignal
			c.Receive(ctx, &sig)
			apply(sig)
		})

		selector.Select(ctx)
		if cancelTimer != nil && !fired {
			cancelTimer()
		}

		if final {
			// commands sent right behind the disarm, such as the next
			// stage's arm, still apply in order
			for {
				var sig EscalationSignal
				if !signalCh.ReceiveAsync(&sig) {
					break
				}
				apply(sig)
			}
			if final {
				logger.Info("escalation timer retired", "document_id", input.DocumentID)
				return result, nil
			}
			continue
		}
		if !fired {
			continue
		}

		key := pending.Key
		pending = nil
		var out EscalateStageOutput
		err := workflow.ExecuteActivity(activityCtx, (*Activities).EscalateStageActivity, EscalateStageInput{
			DocumentID: input.DocumentID,
			Key:        key,
		}).Get(ctx, &out)
		if err != nil {
			logger.Warn("stage escalation failed", "document_id", input.DocumentID, "round", key.Round, "stage", key.Stage, "error", err)
			continue
		}
		if !out.Stale {
			result.Escalations++
		}
	}
}
