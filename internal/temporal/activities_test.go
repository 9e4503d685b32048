package temporal

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.temporal.io/sdk/temporal"

	"doc-approval-engine/internal/domain"
	"doc-approval-engine/internal/lifecycle"
)

var _ = Describe("EscalateStageActivity", func() {
	var (
		esc  *fakeEscalator
		acts *Activities
		in   EscalateStageInput
	)

	BeforeEach(func() {
		esc = &fakeEscalator{}
		acts = &Activities{Engine: esc}
		in = EscalateStageInput{DocumentID: "doc-9", Key: domain.StageKey{Round: 1, Stage: 2}}
	})

	It("returns the resulting status", func() {
		out, err := acts.EscalateStageActivity(context.Background(), in)
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Status).To(Equal(domain.StatusReviewed))
		Expect(out.Stale).To(BeFalse())
	})

	It("treats stale stages as done", func() {
		esc.err = fmt.Errorf("stage moved on: %w", domain.ErrStaleEscalation)
		out, err := acts.EscalateStageActivity(context.Background(), in)
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Stale).To(BeTrue())
	})

	It("keeps not-due errors retryable", func() {
		esc.err = lifecycle.ErrNotDue
		_, err := acts.EscalateStageActivity(context.Background(), in)
		Expect(err).To(MatchError(lifecycle.ErrNotDue))
	})

	It("marks rejected escalations as non-retryable", func() {
		esc.err = domain.NewNotFoundError("document", "doc-9")
		_, err := acts.EscalateStageActivity(context.Background(), in)

		var appErr *temporal.ApplicationError
		Expect(errors.As(err, &appErr)).To(BeTrue())
		Expect(appErr.NonRetryable()).To(BeTrue())
		Expect(appErr.Type()).To(Equal(escalationRejectedErrorType))
	})
})
