package domain

type DocumentStatus string

const (
	StatusPending       DocumentStatus = "pending"
	StatusSubmitted     DocumentStatus = "submitted"
	StatusInitialReview DocumentStatus = "initial-review"
	StatusReviewProcess DocumentStatus = "review-process"
	StatusReviewed      DocumentStatus = "reviewed"
	StatusNeedsRevision DocumentStatus = "needs-revision"
	StatusRejected      DocumentStatus = "rejected"
	StatusApproved      DocumentStatus = "approved"
	StatusPublished     DocumentStatus = "published"
)

// StatusDraft is accepted on input as an alias of StatusPending.
const StatusDraft DocumentStatus = "draft"

var AllStatuses = []DocumentStatus{
	StatusPending,
	StatusSubmitted,
	StatusInitialReview,
	StatusReviewProcess,
	StatusReviewed,
	StatusNeedsRevision,
	StatusRejected,
	StatusApproved,
	StatusPublished,
}

func (s DocumentStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusPublished
}

func (s DocumentStatus) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Normalize maps the draft alias onto pending.
func (s DocumentStatus) Normalize() DocumentStatus {
	if s == StatusDraft {
		return StatusPending
	}
	return s
}

type Event string

const (
	EventSubmit          Event = "submit"
	EventBeginReview     Event = "begin_review"
	EventReview          Event = "review"
	EventReviewRevision  Event = "review_revision"
	EventReviewReject    Event = "review_reject"
	EventApprove         Event = "approve"
	EventReject          Event = "reject"
	EventRequestRevision Event = "request_revision"
	EventPublish         Event = "publish"
	EventEscalate        Event = "escalate"
	EventDelegate        Event = "delegate"
)

var AllEvents = []Event{
	EventSubmit,
	EventBeginReview,
	EventReview,
	EventReviewRevision,
	EventReviewReject,
	EventApprove,
	EventReject,
	EventRequestRevision,
	EventPublish,
	EventEscalate,
	EventDelegate,
}

type Verdict string

const (
	VerdictReviewed Verdict = "reviewed"
	VerdictRevision Verdict = "revision"
	VerdictRejected Verdict = "rejected"
)

func (v Verdict) Valid() bool {
	switch v {
	case VerdictReviewed, VerdictRevision, VerdictRejected:
		return true
	}
	return false
}

// Event returns the lifecycle event a review verdict triggers.
func (v Verdict) Event() Event {
	switch v {
	case VerdictRevision:
		return EventReviewRevision
	case VerdictRejected:
		return EventReviewReject
	default:
		return EventReview
	}
}

type Role string

const (
	RoleAuthor   Role = "author"
	RoleReviewer Role = "reviewer"
	RoleApprover Role = "approver"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAuthor, RoleReviewer, RoleApprover, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// IsApprover reports whether an approving verdict from this role may
// finalize a document.
func (r Role) IsApprover() bool {
	return r == RoleApprover || r == RoleAdmin
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) OrDefault() Priority {
	if p == "" {
		return PriorityNormal
	}
	return p
}

type AuditState string

const (
	AuditTransition AuditState = "TRANSITION"
	AuditEscalation AuditState = "ESCALATION"
	AuditSynthesis  AuditState = "SYNTHESIS"
)
