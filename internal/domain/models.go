package domain

import "time"

// SectionsJSONSchema describes the parser output consumed by the synthesizer.
const SectionsJSONSchema = `{
  "type": "object",
  "required": ["file_name", "sections"],
  "properties": {
    "file_name": {"type": "string", "minLength": 1},
    "file_kind": {"type": "string"},
    "sections": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title"],
        "properties": {
          "title": {"type": "string", "minLength": 1},
          "fields": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["label"],
              "properties": {
                "label": {"type": "string"}
              }
            }
          }
        }
      }
    }
  }
}`

type FieldRef struct {
	Label string         `json:"label"`
	Extra map[string]any `json:"extra,omitempty"`
}

type Section struct {
	Title  string     `json:"title"`
	Fields []FieldRef `json:"fields"`
}

// SectionManifest is the parser's view of one uploaded document.
type SectionManifest struct {
	FileName string    `json:"file_name"`
	FileKind string    `json:"file_kind,omitempty"`
	Sections []Section `json:"sections"`
}

type WorkflowStep struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Department    Department `json:"department"`
	Role          string     `json:"role"`
	EstimatedDays int        `json:"estimated_days"`
	Required      bool       `json:"required"`
	Description   string     `json:"description"`
}

type SynthesizedWorkflow struct {
	FileName            string         `json:"file_name"`
	FileKind            string         `json:"file_kind"`
	Steps               []WorkflowStep `json:"steps"`
	PrimaryDepartment   Department     `json:"primary_department"`
	InvolvedDepartments []Department   `json:"involved_departments"`
	TotalDays           int            `json:"total_days"`
	GeneratedAt         time.Time      `json:"generated_at"`
}

type ActorRef struct {
	ID         string     `json:"id" validate:"required"`
	Name       string     `json:"name,omitempty"`
	Role       Role       `json:"role,omitempty" validate:"omitempty,oneof=author reviewer approver admin system"`
	Department Department `json:"department,omitempty"`
}

// SystemActor is used for transitions the engine performs on its own.
var SystemActor = ActorRef{ID: "system", Name: "Escalation Scheduler", Role: RoleSystem}

type StageType string

const (
	StageSequential StageType = "sequential"
	StageParallel   StageType = "parallel"
)

type WorkflowStage struct {
	ID                  string     `json:"id" yaml:"id" validate:"required"`
	Name                string     `json:"name" yaml:"name" validate:"required"`
	Type                StageType  `json:"type" yaml:"type" validate:"required,oneof=sequential parallel"`
	Approvers           []ActorRef `json:"approvers" yaml:"approvers" validate:"required,min=1,dive"`
	RequiredApprovals   int        `json:"required_approvals" yaml:"required_approvals" validate:"min=1"`
	AutoAdvance         bool       `json:"auto_advance" yaml:"auto_advance"`
	EscalationTimeHours *int       `json:"escalation_time_hours,omitempty" yaml:"escalation_time_hours,omitempty" validate:"omitempty,gt=0"`
	RequireComments     bool       `json:"require_comments" yaml:"require_comments"`
	RequireSignature    bool       `json:"require_signature" yaml:"require_signature"`
	AllowDelegation     bool       `json:"allow_delegation" yaml:"allow_delegation"`
}

func (s WorkflowStage) Clone() WorkflowStage {
	out := s
	out.Approvers = append([]ActorRef(nil), s.Approvers...)
	if s.EscalationTimeHours != nil {
		h := *s.EscalationTimeHours
		out.EscalationTimeHours = &h
	}
	return out
}

type WorkflowTemplate struct {
	ID            string          `json:"id" yaml:"id"`
	Name          string          `json:"name" yaml:"name" validate:"required"`
	Description   string          `json:"description" yaml:"description"`
	Department    Department      `json:"department" yaml:"department"`
	DocumentTypes []string        `json:"document_types" yaml:"document_types"`
	Stages        []WorkflowStage `json:"stages" yaml:"stages" validate:"required,min=1,dive"`
	Active        bool            `json:"active" yaml:"active"`
	CreatedBy     string          `json:"created_by" yaml:"created_by"`
	CreatedAt     time.Time       `json:"created_at" yaml:"-"`
	LastModified  time.Time       `json:"last_modified" yaml:"-"`
}

func (t WorkflowTemplate) Clone() WorkflowTemplate {
	out := t
	out.DocumentTypes = append([]string(nil), t.DocumentTypes...)
	out.Stages = make([]WorkflowStage, len(t.Stages))
	for i, st := range t.Stages {
		out.Stages[i] = st.Clone()
	}
	return out
}

// StageKey names one stage instance: a stage index within a submission round.
type StageKey struct {
	Round int `json:"round"`
	Stage int `json:"stage"`
}

type Approval struct {
	Actor      ActorRef  `json:"actor"`
	OnBehalfOf *ActorRef `json:"on_behalf_of,omitempty"`
	Comments   string    `json:"comments,omitempty"`
	Signature  string    `json:"signature,omitempty"`
	Auto       bool      `json:"auto,omitempty"`
	At         time.Time `json:"at"`
}

type Delegation struct {
	Stage  int       `json:"stage"`
	From   ActorRef  `json:"from"`
	To     ActorRef  `json:"to"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

type AssignedStage struct {
	WorkflowStage
	Offset    int        `json:"offset"`
	Approvals []Approval `json:"approvals,omitempty"`
	Escalated bool       `json:"escalated,omitempty"`
	Cleared   bool       `json:"cleared,omitempty"`
}

type ReviewAssignment struct {
	TemplateID           string          `json:"template_id,omitempty"`
	Round                int             `json:"round"`
	ReviewSequence       []ActorRef      `json:"review_sequence"`
	CurrentReviewerIndex *int            `json:"current_reviewer_index,omitempty"`
	AssignedTo           *ActorRef       `json:"assigned_to,omitempty"`
	Stages               []AssignedStage `json:"stages"`
	CurrentStage         int             `json:"current_stage"`
	Priority             Priority        `json:"priority"`
	SubmissionComments   string          `json:"submission_comments,omitempty"`
	SubmittedBy          ActorRef        `json:"submitted_by"`
	SubmittedAt          time.Time       `json:"submitted_at"`
	StageEnteredAt       time.Time       `json:"stage_entered_at"`
	Delegations          []Delegation    `json:"delegations,omitempty"`
	Exhausted            bool            `json:"exhausted"`
	Closed               bool            `json:"closed"`
}

// Open reports whether reviewers may still act on the assignment.
func (a *ReviewAssignment) Open() bool {
	return a != nil && !a.Closed && !a.Exhausted
}

func (a *ReviewAssignment) Current() *AssignedStage {
	if a == nil || a.CurrentStage < 0 || a.CurrentStage >= len(a.Stages) {
		return nil
	}
	return &a.Stages[a.CurrentStage]
}

func (a *ReviewAssignment) Key() StageKey {
	return StageKey{Round: a.Round, Stage: a.CurrentStage}
}

func (a *ReviewAssignment) Clone() *ReviewAssignment {
	if a == nil {
		return nil
	}
	out := *a
	out.ReviewSequence = append([]ActorRef(nil), a.ReviewSequence...)
	if a.CurrentReviewerIndex != nil {
		i := *a.CurrentReviewerIndex
		out.CurrentReviewerIndex = &i
	}
	if a.AssignedTo != nil {
		actor := *a.AssignedTo
		out.AssignedTo = &actor
	}
	out.Stages = make([]AssignedStage, len(a.Stages))
	for i, st := range a.Stages {
		cp := st
		cp.WorkflowStage = st.WorkflowStage.Clone()
		cp.Approvals = append([]Approval(nil), st.Approvals...)
		out.Stages[i] = cp
	}
	out.Delegations = append([]Delegation(nil), a.Delegations...)
	return &out
}

// Report is one document instance moving through review.
type Report struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	FileName       string            `json:"file_name"`
	FileKind       string            `json:"file_kind,omitempty"`
	Department     Department        `json:"department,omitempty"`
	TemplateID     string            `json:"template_id,omitempty"`
	Status         DocumentStatus    `json:"status"`
	Round          int               `json:"round"`
	Assignment     *ReviewAssignment `json:"assignment,omitempty"`
	ApprovalPages  int               `json:"approval_pages"`
	ApprovalPage   int               `json:"approval_page"`
	CreatedBy      ActorRef          `json:"created_by"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	LastActedAt    time.Time         `json:"last_acted_at"`
	PublishedAt    *time.Time        `json:"published_at,omitempty"`
	PublishedBy    *ActorRef         `json:"published_by,omitempty"`
	RejectedReason *string           `json:"rejected_reason,omitempty"`
	RevisionNotes  string            `json:"revision_notes,omitempty"`
}

func (r Report) Clone() Report {
	out := r
	out.Assignment = r.Assignment.Clone()
	if r.PublishedAt != nil {
		t := *r.PublishedAt
		out.PublishedAt = &t
	}
	if r.PublishedBy != nil {
		a := *r.PublishedBy
		out.PublishedBy = &a
	}
	if r.RejectedReason != nil {
		s := *r.RejectedReason
		out.RejectedReason = &s
	}
	return out
}

type TransitionEvent struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	Event      Event          `json:"event"`
	FromStatus DocumentStatus `json:"from_status"`
	ToStatus   DocumentStatus `json:"to_status"`
	Actor      ActorRef       `json:"actor"`
	Comments   string         `json:"comments,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

type EscalationAction string

const (
	EscalationAutoAdvance EscalationAction = "auto_advance"
	EscalationAlert       EscalationAction = "alert"
)

type EscalationEvent struct {
	ID         string           `json:"id"`
	DocumentID string           `json:"document_id"`
	Key        StageKey         `json:"key"`
	StageID    string           `json:"stage_id"`
	StageName  string           `json:"stage_name"`
	Action     EscalationAction `json:"action"`
	Pending    []ActorRef       `json:"pending"`
	Timestamp  time.Time        `json:"timestamp"`
}
