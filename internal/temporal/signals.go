package temporal

import (
	"time"

	"doc-approval-engine/internal/domain"
)

// EscalationSignalName carries both arm and disarm commands so the workflow
// sees them in the order they were sent.
const EscalationSignalName = "escalation"

// EscalationSignal holds exactly one command.
type EscalationSignal struct {
	Arm    *ArmEscalationSignal    `json:"arm,omitempty"`
	Disarm *DisarmEscalationSignal `json:"disarm,omitempty"`
}

// ArmEscalationSignal replaces any running stage timer with one for Key
// that fires at DueAt.
type ArmEscalationSignal struct {
	Key   domain.StageKey `json:"key"`
	DueAt time.Time       `json:"due_at"`
}

// DisarmEscalationSignal stops the running timer. Final also ends the
// workflow unless an arm follows it.
type DisarmEscalationSignal struct {
	Final  bool   `json:"final"`
	Reason string `json:"reason,omitempty"`
}

func armSignal(key domain.StageKey, dueAt time.Time) EscalationSignal {
	return EscalationSignal{Arm: &ArmEscalationSignal{Key: key, DueAt: dueAt}}
}

func disarmSignal(final bool, reason string) EscalationSignal {
	return EscalationSignal{Disarm: &DisarmEscalationSignal{Final: final, Reason: reason}}
}
