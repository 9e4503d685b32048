package synthesis

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"doc-approval-engine/internal/domain"
	"doc-approval-engine/internal/metrics"
)

const (
	FinalStepID   = "step-final"
	FinalStepName = "Final Management Approval"

	baseDays             = 2
	manyFieldsThreshold  = 10
	largeFieldsThreshold = 20
	// executiveThreshold is the distinct section department count above
	// which the final step goes to the Executive Director.
	executiveThreshold = 4
)

// Synthesize builds the approval plan for one uploaded document. It is a
// pure function: GeneratedAt is left zero.
func Synthesize(fileName string, sections []domain.Section, fileKind string) domain.SynthesizedWorkflow {
	steps := make([]domain.WorkflowStep, 0, len(sections)+1)
	seen := make(map[domain.Department]bool)
	involved := make([]domain.Department, 0)
	sectionDepts := 0

	for i, section := range sections {
		dept := Classify(section)
		if !seen[dept] {
			seen[dept] = true
			involved = append(involved, dept)
			sectionDepts++
		}

		name := strings.TrimSpace(section.Title)
		if name == "" {
			name = fmt.Sprintf("Section %d", i+1)
		}
		steps = append(steps, domain.WorkflowStep{
			ID:            fmt.Sprintf("step-%d", i+1),
			Name:          name,
			Department:    dept,
			Role:          domain.RoleFor(dept),
			EstimatedDays: sectionDays(dept, len(section.Fields)),
			Required:      true,
			Description:   fmt.Sprintf("Review of %q (%d fields)", name, len(section.Fields)),
		})
	}

	finalRole := domain.RoleTitleDepartmentHead
	if sectionDepts > executiveThreshold {
		finalRole = domain.RoleTitleExecutiveDirector
	}
	steps = append(steps, domain.WorkflowStep{
		ID:            FinalStepID,
		Name:          FinalStepName,
		Department:    domain.DeptManagement,
		Role:          finalRole,
		EstimatedDays: 1,
		Required:      true,
		Description:   fmt.Sprintf("Final sign-off by %s", finalRole),
	})
	if !seen[domain.DeptManagement] {
		involved = append(involved, domain.DeptManagement)
	}

	urgent := IsUrgent(fileName)
	pdf := IsPDF(fileKind)
	total := 0
	for i := range steps {
		steps[i].EstimatedDays = adjustDays(steps[i].EstimatedDays, urgent, pdf)
		total += steps[i].EstimatedDays
	}

	primary := domain.DeptEngineering
	if len(steps) > 1 {
		primary = steps[0].Department
	}

	return domain.SynthesizedWorkflow{
		FileName:            fileName,
		FileKind:            fileKind,
		Steps:               steps,
		PrimaryDepartment:   primary,
		InvolvedDepartments: involved,
		TotalDays:           total,
	}
}

func sectionDays(dept domain.Department, fields int) int {
	days := baseDays
	if fields > manyFieldsThreshold {
		days++
	}
	if fields > largeFieldsThreshold {
		days++
	}
	if dept == domain.DeptQuality || dept == domain.DeptRegulatory {
		days++
	}
	return days
}

// adjustDays halves for urgency before adding the PDF day.
func adjustDays(days int, urgent, pdf bool) int {
	if urgent {
		days = max(1, days/2)
	}
	if pdf {
		days++
	}
	return days
}

func IsUrgent(fileName string) bool {
	lower := strings.ToLower(fileName)
	return strings.Contains(lower, "urgent") || strings.Contains(lower, "priority")
}

func IsPDF(fileKind string) bool {
	return strings.EqualFold(strings.TrimPrefix(strings.TrimSpace(fileKind), "."), "pdf")
}

// Synthesizer stamps and records synthesized plans.
type Synthesizer struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewSynthesizer(logger *slog.Logger, now func() time.Time) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Synthesizer{logger: logger, now: now}
}

func (s *Synthesizer) Synthesize(fileName string, sections []domain.Section, fileKind string) domain.SynthesizedWorkflow {
	wf := Synthesize(fileName, sections, fileKind)
	wf.GeneratedAt = s.now().UTC()
	metrics.SynthesizedSteps.Observe(float64(len(wf.Steps)))
	s.logger.Info("workflow synthesized",
		"file_name", fileName,
		"steps", len(wf.Steps),
		"primary_department", wf.PrimaryDepartment,
		"total_days", wf.TotalDays,
	)
	return wf
}

// FromManifest validates a raw parser manifest before synthesizing it.
func (s *Synthesizer) FromManifest(raw []byte) (domain.SynthesizedWorkflow, error) {
	manifest, err := domain.ValidateSectionsJSON(raw)
	if err != nil {
		return domain.SynthesizedWorkflow{}, err
	}
	return s.Synthesize(manifest.FileName, manifest.Sections, manifest.FileKind), nil
}
