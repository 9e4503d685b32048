package templates

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/go-playground/validator/v10"

	"doc-approval-engine/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var stageIndex = regexp.MustCompile(`Stages\[(\d+)\]`)

// Validate checks a template's stage invariants first, so the error names
// the offending stage, then its struct tags.
func Validate(t domain.WorkflowTemplate) error {
	if len(t.Stages) == 0 {
		return domain.NewValidationError("stages", "template requires at least one stage")
	}
	seen := make(map[string]bool, len(t.Stages))
	for i, st := range t.Stages {
		if err := ValidateStage(st); err != nil {
			return err
		}
		if seen[st.ID] {
			return domain.NewStageValidationError(st.ID, "id", fmt.Sprintf("duplicate stage id at position %d", i+1))
		}
		seen[st.ID] = true
	}

	if err := validate.Struct(t); err != nil {
		return fromValidator(t, err)
	}
	return nil
}

// ValidateStage enforces the per-stage rules. A stage constructed with more
// required approvals than approvers always fails.
func ValidateStage(st domain.WorkflowStage) error {
	if st.ID == "" {
		return domain.NewStageValidationError(st.Name, "id", "stage id is required")
	}
	if st.Type != domain.StageSequential && st.Type != domain.StageParallel {
		return domain.NewStageValidationError(st.ID, "type", fmt.Sprintf("unknown stage type %q", st.Type))
	}
	if len(st.Approvers) == 0 {
		return domain.NewStageValidationError(st.ID, "approvers", "stage requires at least one approver")
	}
	if st.RequiredApprovals < 1 {
		return domain.NewStageValidationError(st.ID, "required_approvals", "must be at least 1")
	}
	if st.RequiredApprovals > len(st.Approvers) {
		return domain.NewStageValidationError(st.ID, "required_approvals",
			fmt.Sprintf("requires %d approvals but has %d approvers", st.RequiredApprovals, len(st.Approvers)))
	}
	if st.EscalationTimeHours != nil && *st.EscalationTimeHours <= 0 {
		return domain.NewStageValidationError(st.ID, "escalation_time_hours", "must be greater than 0")
	}
	seen := make(map[string]bool, len(st.Approvers))
	for _, a := range st.Approvers {
		if a.ID == "" {
			return domain.NewStageValidationError(st.ID, "approvers", "approver id is required")
		}
		if seen[a.ID] {
			return domain.NewStageValidationError(st.ID, "approvers", fmt.Sprintf("approver %s listed twice", a.ID))
		}
		seen[a.ID] = true
	}
	return nil
}

func fromValidator(t domain.WorkflowTemplate, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.NewValidationError("template", err.Error())
	}
	fe := verrs[0]
	reason := fmt.Sprintf("failed %q rule", fe.Tag())
	if m := stageIndex.FindStringSubmatch(fe.Namespace()); m != nil {
		if i, convErr := strconv.Atoi(m[1]); convErr == nil && i < len(t.Stages) {
			return domain.NewStageValidationError(t.Stages[i].ID, fe.Field(), reason)
		}
	}
	return domain.NewValidationError(fe.Field(), reason)
}
