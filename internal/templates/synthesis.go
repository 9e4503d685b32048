package templates

import (
	"fmt"
	"strings"

	"doc-approval-engine/internal/domain"
	"doc-approval-engine/internal/synthesis"
)

// FromSynthesis derives an inactive template with one sequential stage per
// synthesized step. Each stage is held by a role queue actor
// "<department>/<role>"; the final management step is an approver.
func FromSynthesis(wf domain.SynthesizedWorkflow, createdBy string) domain.WorkflowTemplate {
	stages := make([]domain.WorkflowStage, 0, len(wf.Steps))
	for _, step := range wf.Steps {
		role := domain.RoleReviewer
		if step.ID == synthesis.FinalStepID {
			role = domain.RoleApprover
		}
		hours := step.EstimatedDays * 24
		stages = append(stages, domain.WorkflowStage{
			ID:   step.ID,
			Name: step.Name,
			Type: domain.StageSequential,
			Approvers: []domain.ActorRef{{
				ID:         queueID(step.Department, step.Role),
				Name:       step.Role,
				Role:       role,
				Department: step.Department,
			}},
			RequiredApprovals:   1,
			EscalationTimeHours: &hours,
			AllowDelegation:     true,
		})
	}

	kinds := []string{}
	if wf.FileKind != "" {
		kinds = append(kinds, strings.ToLower(strings.TrimPrefix(wf.FileKind, ".")))
	}
	return domain.WorkflowTemplate{
		Name:          fmt.Sprintf("Generated: %s", wf.FileName),
		Description:   fmt.Sprintf("Derived from %d synthesized steps, about %d days", len(wf.Steps), wf.TotalDays),
		Department:    wf.PrimaryDepartment,
		DocumentTypes: kinds,
		Stages:        stages,
		Active:        false,
		CreatedBy:     createdBy,
	}
}

func queueID(d domain.Department, role string) string {
	return strings.ToLower(strings.ReplaceAll(string(d)+"/"+role, " ", "-"))
}
