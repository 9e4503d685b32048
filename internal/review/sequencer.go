// Package review tracks who acts next on an in-flight document.
//
// An assignment holds its own copy of the stage list. Every approver of every
// stage is flattened into ReviewSequence in stage order, and
// CurrentReviewerIndex points at the next pending approver. A stage clears
// once it has RequiredApprovals approvals, after which the cursor moves to
// the next stage.
package review

import (
	"fmt"
	"time"

	"doc-approval-engine/internal/domain"
)

type Submission struct {
	TemplateID  string
	Round       int
	Priority    domain.Priority
	Comments    string
	SubmittedBy domain.ActorRef
	At          time.Time
}

// NewAssignment freezes a copy of stages into a fresh assignment positioned
// at the first approver of the first stage. An empty stage list yields an
// already exhausted assignment.
func NewAssignment(stages []domain.WorkflowStage, sub Submission) *domain.ReviewAssignment {
	a := &domain.ReviewAssignment{
		TemplateID:         sub.TemplateID,
		Round:              sub.Round,
		ReviewSequence:     make([]domain.ActorRef, 0),
		Stages:             make([]domain.AssignedStage, 0, len(stages)),
		Priority:           sub.Priority.OrDefault(),
		SubmissionComments: sub.Comments,
		SubmittedBy:        sub.SubmittedBy,
		SubmittedAt:        sub.At,
	}
	for _, st := range stages {
		a.Stages = append(a.Stages, domain.AssignedStage{
			WorkflowStage: st.Clone(),
			Offset:        len(a.ReviewSequence),
		})
		a.ReviewSequence = append(a.ReviewSequence, st.Approvers...)
	}
	enterStage(a, 0, sub.At)
	return a
}

// FromSequence builds a flat assignment: one single-approver sequential
// stage per actor, in the given order.
func FromSequence(actors []domain.ActorRef, sub Submission) *domain.ReviewAssignment {
	return NewAssignment(SequenceStages(actors), sub)
}

func SequenceStages(actors []domain.ActorRef) []domain.WorkflowStage {
	stages := make([]domain.WorkflowStage, 0, len(actors))
	for i, actor := range actors {
		stages = append(stages, domain.WorkflowStage{
			ID:                fmt.Sprintf("reviewer-%d", i+1),
			Name:              fmt.Sprintf("Review by %s", displayName(actor)),
			Type:              domain.StageSequential,
			Approvers:         []domain.ActorRef{actor},
			RequiredApprovals: 1,
		})
	}
	return stages
}

// Advance moves the cursor one position along the flattened sequence and
// returns the updated copy. Moving past the last reviewer exhausts the
// assignment. Stages the cursor leaves behind are marked cleared.
// RecordApproval steps through sequential stages with it.
func Advance(a *domain.ReviewAssignment, now time.Time) *domain.ReviewAssignment {
	out := a.Clone()
	if !out.Open() || out.CurrentReviewerIndex == nil {
		return out
	}
	next := *out.CurrentReviewerIndex + 1
	if next >= len(out.ReviewSequence) {
		for i := out.CurrentStage; i < len(out.Stages); i++ {
			out.Stages[i].Cleared = true
		}
		exhaust(out)
		return out
	}
	stage := stageOf(out, next)
	if stage != out.CurrentStage {
		for i := out.CurrentStage; i < stage; i++ {
			out.Stages[i].Cleared = true
		}
		out.CurrentStage = stage
		out.StageEnteredAt = now
	}
	setCursor(out, next)
	return out
}

// Pending lists the approvers of the current stage who may act now, before
// delegation. Sequential stages expose only the next approver in order.
func Pending(a *domain.ReviewAssignment) []domain.ActorRef {
	stage := a.Current()
	if !a.Open() || stage == nil {
		return nil
	}
	if stage.Type == domain.StageSequential {
		if a.CurrentReviewerIndex == nil {
			return nil
		}
		i := *a.CurrentReviewerIndex - stage.Offset
		if i < 0 || i >= len(stage.Approvers) {
			return nil
		}
		return []domain.ActorRef{stage.Approvers[i]}
	}
	out := make([]domain.ActorRef, 0, len(stage.Approvers))
	for _, approver := range stage.Approvers {
		if !hasApproved(stage, approver.ID) {
			out = append(out, approver)
		}
	}
	return out
}

// Resolve maps an acting actor onto the pending approver slot they fill.
// onBehalfOf is set when the actor holds a delegation for that slot.
func Resolve(a *domain.ReviewAssignment, actor domain.ActorRef) (slot domain.ActorRef, onBehalfOf *domain.ActorRef, ok bool) {
	pending := Pending(a)
	for _, p := range pending {
		if d, delegated := delegationFor(a, p.ID); delegated {
			if d.To.ID == actor.ID {
				from := p
				return p, &from, true
			}
			continue
		}
		if p.ID == actor.ID {
			return p, nil, true
		}
	}
	return domain.ActorRef{}, nil, false
}

type Outcome struct {
	Stage        int
	StageCleared bool
	Exhausted    bool
}

// RecordApproval applies one approving verdict to the current stage. The
// assignment is mutated in place; callers pass a copy.
func RecordApproval(a *domain.ReviewAssignment, approval domain.Approval) (Outcome, error) {
	stage := a.Current()
	if !a.Open() || stage == nil {
		return Outcome{}, domain.ErrNotAssigned
	}
	_, onBehalfOf, ok := Resolve(a, approval.Actor)
	if !ok {
		return Outcome{}, domain.ErrNotAssigned
	}
	// one person fills at most one slot per stage
	if approvedBy(stage, approval.Actor.ID) {
		return Outcome{}, domain.NewStageValidationError(stage.ID, "actor",
			fmt.Sprintf("%s has already approved this stage", approval.Actor.ID))
	}
	approval.OnBehalfOf = onBehalfOf
	stage.Approvals = append(stage.Approvals, approval)

	out := Outcome{Stage: a.CurrentStage}
	if len(stage.Approvals) >= stage.RequiredApprovals {
		out.StageCleared = true
		clearStage(a, approval.At)
		out.Exhausted = a.Exhausted
		return out, nil
	}
	if stage.Type == domain.StageSequential {
		*a = *Advance(a, approval.At)
		out.StageCleared = a.CurrentStage != out.Stage
		out.Exhausted = a.Exhausted
		return out, nil
	}
	if pending := Pending(a); len(pending) > 0 {
		setCursor(a, stage.Offset+indexOf(stage.Approvers, pending[0].ID))
	}
	return out, nil
}

// ClearStage resolves the current stage regardless of quorum, recording the
// given approval. Used by escalation auto-advance.
func ClearStage(a *domain.ReviewAssignment, approval domain.Approval) Outcome {
	stage := a.Current()
	if !a.Open() || stage == nil {
		return Outcome{}
	}
	stage.Approvals = append(stage.Approvals, approval)
	stage.Escalated = true
	out := Outcome{Stage: a.CurrentStage, StageCleared: true}
	clearStage(a, approval.At)
	out.Exhausted = a.Exhausted
	return out
}

// Delegate hands a pending approver's turn to another actor. The cursor does
// not move.
func Delegate(a *domain.ReviewAssignment, from, to domain.ActorRef, reason string, now time.Time) error {
	stage := a.Current()
	if !a.Open() || stage == nil {
		return domain.ErrNotAssigned
	}
	if !stage.AllowDelegation {
		return domain.NewStageValidationError(stage.ID, "allow_delegation", "stage does not allow delegation")
	}
	if to.ID == "" || to.ID == from.ID {
		return domain.NewValidationError("delegate_to", "delegate must be a different actor")
	}
	if holdsSlot(a, stage, to.ID) {
		return domain.NewStageValidationError(stage.ID, "delegate_to",
			fmt.Sprintf("%s already approves or holds a delegation on this stage", to.ID))
	}
	pending := false
	for _, p := range Pending(a) {
		if p.ID == from.ID {
			pending = true
			from = p
			break
		}
	}
	if !pending {
		return domain.ErrNotAssigned
	}

	kept := a.Delegations[:0]
	for _, d := range a.Delegations {
		if d.Stage == a.CurrentStage && d.From.ID == from.ID {
			continue
		}
		kept = append(kept, d)
	}
	a.Delegations = append(kept, domain.Delegation{
		Stage:  a.CurrentStage,
		From:   from,
		To:     to,
		Reason: reason,
		At:     now,
	})
	if a.CurrentReviewerIndex != nil {
		setCursor(a, *a.CurrentReviewerIndex)
	}
	return nil
}

// Deadline reports when the current stage escalates.
func Deadline(a *domain.ReviewAssignment) (time.Time, bool) {
	stage := a.Current()
	if !a.Open() || stage == nil || stage.EscalationTimeHours == nil || stage.Escalated {
		return time.Time{}, false
	}
	return a.StageEnteredAt.Add(time.Duration(*stage.EscalationTimeHours) * time.Hour), true
}

// Close freezes the assignment after a terminal verdict.
func Close(a *domain.ReviewAssignment) {
	if a == nil {
		return
	}
	a.Closed = true
	a.AssignedTo = nil
}

func clearStage(a *domain.ReviewAssignment, now time.Time) {
	a.Stages[a.CurrentStage].Cleared = true
	enterStage(a, a.CurrentStage+1, now)
}

func enterStage(a *domain.ReviewAssignment, idx int, now time.Time) {
	// stages without approvers cannot be acted on
	for idx < len(a.Stages) && len(a.Stages[idx].Approvers) == 0 {
		a.Stages[idx].Cleared = true
		idx++
	}
	if idx >= len(a.Stages) {
		a.CurrentStage = len(a.Stages)
		exhaust(a)
		return
	}
	a.CurrentStage = idx
	a.StageEnteredAt = now
	setCursor(a, a.Stages[idx].Offset)
}

func exhaust(a *domain.ReviewAssignment) {
	a.Exhausted = true
	a.AssignedTo = nil
	a.CurrentStage = len(a.Stages)
}

func setCursor(a *domain.ReviewAssignment, i int) {
	a.CurrentReviewerIndex = &i
	actor := a.ReviewSequence[i]
	if d, ok := delegationFor(a, actor.ID); ok {
		actor = d.To
	}
	a.AssignedTo = &actor
}

func stageOf(a *domain.ReviewAssignment, i int) int {
	for s := len(a.Stages) - 1; s >= 0; s-- {
		if i >= a.Stages[s].Offset && len(a.Stages[s].Approvers) > 0 {
			return s
		}
	}
	return 0
}

func delegationFor(a *domain.ReviewAssignment, approverID string) (domain.Delegation, bool) {
	for _, d := range a.Delegations {
		if d.Stage == a.CurrentStage && d.From.ID == approverID {
			return d, true
		}
	}
	return domain.Delegation{}, false
}

func hasApproved(stage *domain.AssignedStage, approverID string) bool {
	for _, ap := range stage.Approvals {
		if SlotID(ap) == approverID {
			return true
		}
	}
	return false
}

func approvedBy(stage *domain.AssignedStage, actorID string) bool {
	for _, ap := range stage.Approvals {
		if ap.Actor.ID == actorID {
			return true
		}
	}
	return false
}

// holdsSlot reports whether id is an approver of the current stage or
// already acts for one of them.
func holdsSlot(a *domain.ReviewAssignment, stage *domain.AssignedStage, id string) bool {
	for _, approver := range stage.Approvers {
		if approver.ID == id {
			return true
		}
	}
	for _, d := range a.Delegations {
		if d.Stage == a.CurrentStage && d.To.ID == id {
			return true
		}
	}
	return false
}

// SlotID is the approver an approval counts for.
func SlotID(ap domain.Approval) string {
	if ap.OnBehalfOf != nil {
		return ap.OnBehalfOf.ID
	}
	return ap.Actor.ID
}

func indexOf(actors []domain.ActorRef, id string) int {
	for i, a := range actors {
		if a.ID == id {
			return i
		}
	}
	return 0
}

func displayName(a domain.ActorRef) string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}
