package lifecycle_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"doc-approval-engine/internal/domain"
	"doc-approval-engine/internal/lifecycle"
	"doc-approval-engine/internal/storage"
	"doc-approval-engine/internal/templates"
)

var (
	author   = domain.ActorRef{ID: "author", Role: domain.RoleAuthor}
	reviewA  = domain.ActorRef{ID: "rev-a", Role: domain.RoleReviewer}
	reviewB  = domain.ActorRef{ID: "rev-b", Role: domain.RoleReviewer}
	reviewC  = domain.ActorRef{ID: "rev-c", Role: domain.RoleReviewer}
	director = domain.ActorRef{ID: "director", Role: domain.RoleApprover}
	admin    = domain.ActorRef{ID: "admin", Role: domain.RoleAdmin}
)

var _ = Describe("Engine", func() {
	var (
		ctx       context.Context
		repo      *storage.MemoryStore
		tplStore  *templates.Store
		publisher *recordingPublisher
		scheduler *recordingScheduler
		clk       *clock
		engine    *lifecycle.Engine
		ids       int
	)

	newDoc := func(pages int) domain.Report {
		r, err := engine.CreateReport(ctx, lifecycle.CreateRequest{
			Title:         "Supplier change",
			FileName:      "supplier_change.xlsx",
			ApprovalPages: pages,
			CreatedBy:     author,
		})
		Expect(err).NotTo(HaveOccurred())
		return r
	}

	submitFlat := func(id string, reviewers ...domain.ActorRef) domain.Report {
		r, err := engine.Submit(ctx, id, lifecycle.SubmitRequest{Actor: author, Reviewers: reviewers})
		Expect(err).NotTo(HaveOccurred())
		return r
	}

	act := func(id string, actor domain.ActorRef, verdict domain.Verdict) (domain.Report, error) {
		return engine.ActOnReview(ctx, id, lifecycle.ReviewRequest{Actor: actor, Verdict: verdict, Comments: "ok", Signature: "sig"})
	}

	createTemplate := func(t domain.WorkflowTemplate) domain.WorkflowTemplate {
		created, err := tplStore.Create(ctx, t)
		Expect(err).NotTo(HaveOccurred())
		return created
	}

	BeforeEach(func() {
		ctx = context.Background()
		repo = storage.NewMemoryStore()
		publisher = &recordingPublisher{}
		scheduler = newRecordingScheduler()
		clk = &clock{now: time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)}
		ids = 0
		tplStore = templates.NewStore(repo, templates.WithClock(clk.Now))
		engine = lifecycle.New(repo,
			lifecycle.WithTemplates(tplStore),
			lifecycle.WithPublisher(publisher),
			lifecycle.WithScheduler(scheduler),
			lifecycle.WithClock(clk.Now),
			lifecycle.WithIDGenerator(func() string {
				ids++
				return fmt.Sprintf("id-%d", ids)
			}),
		)
	})

	Describe("a rejected verdict on a submitted document", func() {
		It("is terminal and refuses further review", func() {
			doc := newDoc(1)
			submitFlat(doc.ID, reviewA, reviewB)

			r, err := act(doc.ID, reviewB, domain.VerdictRejected)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Status).To(Equal(domain.StatusRejected))
			Expect(r.Assignment.Closed).To(BeTrue())
			Expect(*r.RejectedReason).To(Equal("ok"))

			_, err = act(doc.ID, reviewA, domain.VerdictReviewed)
			Expect(domain.IsInvalidTransition(err)).To(BeTrue())

			stored, _ := engine.Get(ctx, doc.ID)
			Expect(stored.Status).To(Equal(domain.StatusRejected))
		})
	})

	Describe("a flat reviewer sequence", func() {
		It("advances to the next reviewer after a non-approver review", func() {
			doc := newDoc(1)
			r := submitFlat(doc.ID, reviewA, reviewB, reviewC)
			Expect(*r.Assignment.CurrentReviewerIndex).To(Equal(0))

			r, err := act(doc.ID, reviewA, domain.VerdictReviewed)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Status).To(Equal(domain.StatusReviewed))
			Expect(*r.Assignment.CurrentReviewerIndex).To(Equal(1))
			Expect(r.Assignment.AssignedTo.ID).To(Equal("rev-b"))
		})

		It("approves when an approver clears the last step", func() {
			doc := newDoc(1)
			submitFlat(doc.ID, reviewA, director)

			_, err := act(doc.ID, reviewA, domain.VerdictReviewed)
			Expect(err).NotTo(HaveOccurred())
			r, err := act(doc.ID, director, domain.VerdictReviewed)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Status).To(Equal(domain.StatusApproved))
			Expect(r.Assignment.Closed).To(BeTrue())
		})

		It("keeps an early approver's verdict at reviewed", func() {
			doc := newDoc(1)
			submitFlat(doc.ID, director, reviewA)

			r, err := act(doc.ID, director, domain.VerdictReviewed)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Status).To(Equal(domain.StatusReviewed))
			Expect(r.Assignment.AssignedTo.ID).To(Equal("rev-a"))
		})

		It("refuses reviewers acting out of turn and leaves the document untouched", func() {
			doc := newDoc(1)
			before := submitFlat(doc.ID, reviewA, reviewB)

			_, err := act(doc.ID, reviewB, domain.VerdictReviewed)
			Expect(domain.IsInvalidTransition(err)).To(BeTrue())
			Expect(errors.Is(err, domain.ErrNotAssigned)).To(BeTrue())

			after, _ := engine.Get(ctx, doc.ID)
			Expect(after).To(Equal(before))
		})

		It("refuses outsiders returning the document", func() {
			doc := newDoc(1)
			submitFlat(doc.ID, reviewA)

			_, err := act(doc.ID, domain.ActorRef{ID: "stranger", Role: domain.RoleReviewer}, domain.VerdictRevision)
			Expect(errors.Is(err, domain.ErrNotAssigned)).To(BeTrue())
		})
	})

	Describe("paged approval and publication", func() {
		It("approves on the last page and stamps publication", func() {
			doc := newDoc(2)
			submitFlat(doc.ID, reviewA)

			_, err := engine.Approve(ctx, doc.ID, lifecycle.ApproveRequest{Actor: director})
			Expect(domain.IsInvalidTransition(err)).To(BeTrue())

			r, err := act(doc.ID, reviewA, domain.VerdictReviewed)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Status).To(Equal(domain.StatusReviewed))
			Expect(r.Assignment.Exhausted).To(BeTrue())

			_, err = engine.Publish(ctx, doc.ID, director)
			Expect(domain.IsInvalidTransition(err)).To(BeTrue())

			_, err = engine.Approve(ctx, doc.ID, lifecycle.ApproveRequest{Actor: reviewB})
			Expect(domain.IsInvalidTransition(err)).To(BeTrue())

			r, err = engine.Approve(ctx, doc.ID, lifecycle.ApproveRequest{Actor: director})
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Status).To(Equal(domain.StatusReviewed))
			Expect(r.ApprovalPage).To(Equal(1))

			r, err = engine.Approve(ctx, doc.ID, lifecycle.ApproveRequest{Actor: director})
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Status).To(Equal(domain.StatusApproved))

			clk.Advance(time.Hour)
			r, err = engine.Publish(ctx, doc.ID, admin)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Status).To(Equal(domain.StatusPublished))
			Expect(r.PublishedBy.ID).To(Equal("admin"))
			Expect(*r.PublishedAt).To(Equal(clk.Now()))

			_, err = engine.Reject(ctx, doc.ID, admin, "late")
			Expect(domain.IsInvalidTransition(err)).To(BeTrue())
		})

		It("lets an empty submission go straight to paged approval", func() {
			doc := newDoc(1)
			r := submitFlat(doc.ID)
			Expect(r.Assignment.Exhausted).To(BeTrue())

			r, err := engine.Approve(ctx, doc.ID, lifecycle.ApproveRequest{Actor: director})
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Status).To(Equal(domain.StatusApproved))
		})
	})

	Describe("revision loop", func() {
		It("returns to needs-revision and starts a new round on resubmission", func() {
			doc := newDoc(1)
			submitFlat(doc.ID, reviewA, reviewB)

			r, err := act(doc.ID, reviewA, domain.VerdictRevision)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Status).To(Equal(domain.StatusNeedsRevision))
			Expect(r.RevisionNotes).To(Equal("ok"))

			_, err = act(doc.ID, reviewA, domain.VerdictReviewed)
			Expect(domain.IsInvalidTransition(err)).To(BeTrue())

			r = submitFlat(doc.ID, reviewB)
			Expect(r.Status).To(Equal(domain.StatusSubmitted))
			Expect(r.Round).To(Equal(2))
			Expect(r.Assignment.Round).To(Equal(2))
			Expect(r.Assignment.AssignedTo.ID).To(Equal("rev-b"))
		})

		It("accepts an explicit revision request during review", func() {
			doc := newDoc(1)
			submitFlat(doc.ID, reviewA)
			_, err := engine.BeginReview(ctx, doc.ID, reviewA)
			Expect(err).NotTo(HaveOccurred())

			r, err := engine.RequestRevision(ctx, doc.ID, admin, "fix totals")
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Status).To(Equal(domain.StatusNeedsRevision))

			_, err = engine.RequestRevision(ctx, doc.ID, admin, "again")
			Expect(domain.IsInvalidTransition(err)).To(BeTrue())
		})
	})

	Describe("BeginReview", func() {
		It("marks initial and later review phases", func() {
			doc := newDoc(1)
			submitFlat(doc.ID, reviewA, reviewB)

			_, err := engine.BeginReview(ctx, doc.ID, reviewB)
			Expect(errors.Is(err, domain.ErrNotAssigned)).To(BeTrue())

			r, err := engine.BeginReview(ctx, doc.ID, reviewA)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Status).To(Equal(domain.StatusInitialReview))

			_, err = act(doc.ID, reviewA, domain.VerdictReviewed)
			Expect(err).NotTo(HaveOccurred())
			r, err = engine.BeginReview(ctx, doc.ID, reviewB)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Status).To(Equal(domain.StatusReviewProcess))
		})
	})

	Describe("template driven review", func() {
		var tpl domain.WorkflowTemplate

		BeforeEach(func() {
			hours := 24
			tpl = createTemplate(domain.WorkflowTemplate{
				Name:   "Two stage",
				Active: true,
				Stages: []domain.WorkflowStage{
					{
						ID: "panel", Name: "Panel", Type: domain.StageParallel,
						Approvers:         []domain.ActorRef{reviewA, reviewB, reviewC},
						RequiredApprovals: 2, EscalationTimeHours: &hours, AutoAdvance: true,
						AllowDelegation: true,
					},
					{
						ID: "sign", Name: "Sign-off", Type: domain.StageSequential,
						Approvers:         []domain.ActorRef{director},
						RequiredApprovals: 1, RequireSignature: true, RequireComments: true,
						EscalationTimeHours: &hours,
					},
				},
			})
		})

		submitTemplate := func(id string) domain.Report {
			r, err := engine.Submit(ctx, id, lifecycle.SubmitRequest{Actor: author, TemplateID: tpl.ID, Priority: domain.PriorityHigh})
			Expect(err).NotTo(HaveOccurred())
			return r
		}

		It("advances only when the stage quorum is met", func() {
			doc := newDoc(1)
			submitTemplate(doc.ID)

			r, err := act(doc.ID, reviewC, domain.VerdictReviewed)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Assignment.CurrentStage).To(Equal(0))

			r, err = act(doc.ID, reviewA, domain.VerdictReviewed)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Assignment.CurrentStage).To(Equal(1))
			Expect(r.Assignment.AssignedTo.ID).To(Equal("director"))

			_, err = engine.ActOnReview(ctx, doc.ID, lifecycle.ReviewRequest{Actor: director, Verdict: domain.VerdictReviewed, Comments: "fine"})
			Expect(domain.IsValidation(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("stage sign"))

			_, err = engine.ActOnReview(ctx, doc.ID, lifecycle.ReviewRequest{Actor: director, Verdict: domain.VerdictReviewed, Signature: "D"})
			Expect(domain.IsValidation(err)).To(BeTrue())

			r, err = act(doc.ID, director, domain.VerdictReviewed)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Status).To(Equal(domain.StatusApproved))
			Expect(r.Assignment.Priority).To(Equal(domain.PriorityHigh))
		})

		It("rejects inactive templates", func() {
			_, err := tplStore.SetActive(ctx, tpl.ID, false)
			Expect(err).NotTo(HaveOccurred())

			doc := newDoc(1)
			_, err = engine.Submit(ctx, doc.ID, lifecycle.SubmitRequest{Actor: author, TemplateID: tpl.ID})
			Expect(domain.IsValidation(err)).To(BeTrue())
		})

		It("keeps the frozen stage copy when the template changes", func() {
			doc := newDoc(1)
			submitTemplate(doc.ID)

			changed := tpl
			changed.Stages = changed.Stages[:1]
			changed.Stages[0].RequiredApprovals = 1
			_, err := tplStore.Update(ctx, changed)
			Expect(err).NotTo(HaveOccurred())
			Expect(tplStore.Delete(ctx, tpl.ID)).To(Succeed())

			r, err := engine.Get(ctx, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Assignment.Stages).To(HaveLen(2))
			Expect(r.Assignment.Stages[0].RequiredApprovals).To(Equal(2))
		})

		It("lets a delegate act on behalf of a pending approver", func() {
			doc := newDoc(1)
			submitTemplate(doc.ID)
			stand := domain.ActorRef{ID: "stand-in", Role: domain.RoleReviewer}

			_, err := engine.Delegate(ctx, doc.ID, lifecycle.DelegateRequest{Actor: reviewB, To: stand, Reason: "travel"})
			Expect(err).NotTo(HaveOccurred())

			_, err = act(doc.ID, reviewB, domain.VerdictReviewed)
			Expect(errors.Is(err, domain.ErrNotAssigned)).To(BeTrue())

			r, err := act(doc.ID, stand, domain.VerdictReviewed)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Assignment.Stages[0].Approvals[0].OnBehalfOf.ID).To(Equal("rev-b"))

			_, err = engine.Delegate(ctx, doc.ID, lifecycle.DelegateRequest{Actor: reviewA, From: reviewC, To: stand})
			Expect(domain.IsValidation(err)).To(BeTrue())
		})

		It("refuses a delegation that would let one reviewer fill two quorum slots", func() {
			doc := newDoc(1)
			submitTemplate(doc.ID)

			_, err := engine.Delegate(ctx, doc.ID, lifecycle.DelegateRequest{Actor: reviewB, To: reviewA})
			Expect(domain.IsValidation(err)).To(BeTrue())

			r, err := engine.Get(ctx, doc.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Assignment.Delegations).To(BeEmpty())
		})

		It("lets only one of two simultaneous approvals clear a single-approval stage", func() {
			solo := createTemplate(domain.WorkflowTemplate{
				Name:   "Any one",
				Active: true,
				Stages: []domain.WorkflowStage{{
					ID: "any", Name: "Any", Type: domain.StageParallel,
					Approvers: []domain.ActorRef{director, {ID: "director-2", Role: domain.RoleApprover}}, RequiredApprovals: 1,
				}},
			})
			doc := newDoc(1)
			_, err := engine.Submit(ctx, doc.ID, lifecycle.SubmitRequest{Actor: author, TemplateID: solo.ID})
			Expect(err).NotTo(HaveOccurred())

			var wg sync.WaitGroup
			errs := make([]error, 2)
			for i, actor := range []domain.ActorRef{director, {ID: "director-2", Role: domain.RoleApprover}} {
				wg.Add(1)
				go func(i int, actor domain.ActorRef) {
					defer GinkgoRecover()
					defer wg.Done()
					_, errs[i] = act(doc.ID, actor, domain.VerdictReviewed)
				}(i, actor)
			}
			wg.Wait()

			failures := 0
			for _, err := range errs {
				if err != nil {
					failures++
					Expect(domain.IsInvalidTransition(err)).To(BeTrue())
				}
			}
			Expect(failures).To(Equal(1))

			r, _ := engine.Get(ctx, doc.ID)
			Expect(r.Status).To(Equal(domain.StatusApproved))
			Expect(r.Assignment.Stages[0].Approvals).To(HaveLen(1))
		})

		Describe("escalation", func() {
			It("arms the stage timer on submission and auto-advances once", func() {
				doc := newDoc(1)
				r := submitTemplate(doc.ID)

				timer, ok := scheduler.Armed(doc.ID)
				Expect(ok).To(BeTrue())
				Expect(timer.Key).To(Equal(domain.StageKey{Round: 1, Stage: 0}))
				Expect(timer.At).To(Equal(r.Assignment.SubmittedAt.Add(24 * time.Hour)))

				_, err := engine.Escalate(ctx, doc.ID, timer.Key)
				Expect(errors.Is(err, lifecycle.ErrNotDue)).To(BeTrue())

				clk.Advance(25 * time.Hour)
				r, err = engine.Escalate(ctx, doc.ID, timer.Key)
				Expect(err).NotTo(HaveOccurred())
				Expect(r.Status).To(Equal(domain.StatusReviewed))
				Expect(r.Assignment.CurrentStage).To(Equal(1))
				Expect(r.Assignment.Stages[0].Approvals[0].Auto).To(BeTrue())

				_, err = engine.Escalate(ctx, doc.ID, timer.Key)
				Expect(errors.Is(err, domain.ErrStaleEscalation)).To(BeTrue())

				Expect(publisher.Escalations()).To(HaveLen(1))
				Expect(publisher.Escalations()[0].Action).To(Equal(domain.EscalationAutoAdvance))
				Expect(publisher.Escalations()[0].Pending).To(HaveLen(3))

				next, ok := scheduler.Armed(doc.ID)
				Expect(ok).To(BeTrue())
				Expect(next.Key).To(Equal(domain.StageKey{Round: 1, Stage: 1}))
			})

			It("raises a single alert on stages without auto-advance", func() {
				doc := newDoc(1)
				submitTemplate(doc.ID)
				_, err := act(doc.ID, reviewA, domain.VerdictReviewed)
				Expect(err).NotTo(HaveOccurred())
				_, err = act(doc.ID, reviewB, domain.VerdictReviewed)
				Expect(err).NotTo(HaveOccurred())

				clk.Advance(48 * time.Hour)
				n, err := engine.EscalateOverdue(ctx, clk.Now())
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(Equal(1))

				r, _ := engine.Get(ctx, doc.ID)
				Expect(r.Assignment.Stages[1].Escalated).To(BeTrue())
				Expect(r.Assignment.AssignedTo.ID).To(Equal("director"))
				Expect(publisher.Escalations()[0].Action).To(Equal(domain.EscalationAlert))

				n, err = engine.EscalateOverdue(ctx, clk.Now())
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(Equal(0))
				_, armedStill := scheduler.Armed(doc.ID)
				Expect(armedStill).To(BeFalse())
			})

			It("cancels the timer when the document is rejected", func() {
				doc := newDoc(1)
				r := submitTemplate(doc.ID)
				key := r.Assignment.Key()

				_, err := engine.Reject(ctx, doc.ID, admin, "withdrawn")
				Expect(err).NotTo(HaveOccurred())
				Expect(scheduler.Cancelled(doc.ID)).To(Equal(1))

				clk.Advance(72 * time.Hour)
				_, err = engine.Escalate(ctx, doc.ID, key)
				Expect(errors.Is(err, domain.ErrStaleEscalation)).To(BeTrue())
			})
		})
	})

	Describe("events and listing", func() {
		It("publishes every committed transition and lists most recent first", func() {
			first := newDoc(1)
			clk.Advance(time.Minute)
			second := newDoc(1)

			clk.Advance(time.Minute)
			submitFlat(first.ID, reviewA)

			list, err := engine.List(ctx, lifecycle.ListFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(list[0].ID).To(Equal(first.ID))
			Expect(list[1].ID).To(Equal(second.ID))

			mine, err := engine.List(ctx, lifecycle.ListFilter{Assignee: "rev-a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(mine).To(HaveLen(1))

			evs := publisher.Transitions()
			Expect(evs).To(HaveLen(1))
			Expect(evs[0].DocumentID).To(Equal(first.ID))
			Expect(evs[0].FromStatus).To(Equal(domain.StatusPending))
			Expect(evs[0].ToStatus).To(Equal(domain.StatusSubmitted))
			Expect(evs[0].Actor.ID).To(Equal("author"))
			Expect(evs[0].Timestamp).To(Equal(clk.Now()))
		})

		It("reports unknown documents", func() {
			_, err := engine.Reject(ctx, "missing", admin, "")
			Expect(domain.IsNotFound(err)).To(BeTrue())
		})
	})
})
