package lifecycle

import "doc-approval-engine/internal/domain"

type targets []domain.DocumentStatus

var reviewEvents = map[domain.Event]targets{
	domain.EventReview:          {domain.StatusReviewed, domain.StatusApproved},
	domain.EventReviewRevision:  {domain.StatusNeedsRevision},
	domain.EventReviewReject:    {domain.StatusRejected},
	domain.EventReject:          {domain.StatusRejected},
	domain.EventRequestRevision: {domain.StatusNeedsRevision},
	domain.EventEscalate:        {domain.StatusReviewed},
	domain.EventDelegate:        nil,
}

// transitions lists, for every status, the events it accepts and the
// statuses each may produce. A nil target list means the event keeps the
// current status. Pairs absent from the table are invalid.
var transitions = map[domain.DocumentStatus]map[domain.Event]targets{
	domain.StatusPending: {
		domain.EventSubmit: {domain.StatusSubmitted},
		domain.EventReject: {domain.StatusRejected},
	},
	domain.StatusSubmitted: with(reviewEvents, map[domain.Event]targets{
		domain.EventBeginReview: {domain.StatusInitialReview},
		domain.EventApprove:     {domain.StatusSubmitted, domain.StatusApproved},
		domain.EventEscalate:    {domain.StatusSubmitted, domain.StatusReviewed},
	}),
	domain.StatusInitialReview: with(reviewEvents, map[domain.Event]targets{
		domain.EventEscalate: {domain.StatusInitialReview, domain.StatusReviewed},
	}),
	domain.StatusReviewProcess: with(reviewEvents, map[domain.Event]targets{
		domain.EventEscalate: {domain.StatusReviewProcess, domain.StatusReviewed},
	}),
	domain.StatusReviewed: with(reviewEvents, map[domain.Event]targets{
		domain.EventBeginReview: {domain.StatusReviewProcess},
		domain.EventApprove:     {domain.StatusReviewed, domain.StatusApproved},
	}),
	domain.StatusNeedsRevision: {
		domain.EventSubmit: {domain.StatusSubmitted},
		domain.EventReject: {domain.StatusRejected},
	},
	domain.StatusApproved: {
		domain.EventPublish: {domain.StatusPublished},
		domain.EventReject:  {domain.StatusRejected},
	},
	domain.StatusRejected:  {},
	domain.StatusPublished: {},
}

func with(base, extra map[domain.Event]targets) map[domain.Event]targets {
	out := make(map[domain.Event]targets, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Accepts reports whether ev is defined for status.
func Accepts(status domain.DocumentStatus, ev domain.Event) bool {
	_, ok := transitions[status.Normalize()][ev]
	return ok
}

// Allowed reports whether ev may move a document from one status to another.
func Allowed(from domain.DocumentStatus, ev domain.Event, to domain.DocumentStatus) bool {
	ts, ok := transitions[from.Normalize()][ev]
	if !ok {
		return false
	}
	if ts == nil {
		return from == to
	}
	for _, t := range ts {
		if t == to {
			return true
		}
	}
	return false
}

func invalid(r domain.Report, ev domain.Event, reason string, cause error) error {
	return &domain.InvalidTransitionError{
		DocumentID: r.ID,
		From:       r.Status,
		Event:      ev,
		Reason:     reason,
		Err:        cause,
	}
}
