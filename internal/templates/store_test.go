package templates_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"doc-approval-engine/internal/domain"
	"doc-approval-engine/internal/review"
	"doc-approval-engine/internal/storage"
	"doc-approval-engine/internal/templates"
)

func sampleTemplate() domain.WorkflowTemplate {
	hours := 48
	return domain.WorkflowTemplate{
		Name:          "Supplier Change",
		Description:   "Supplier change request approval",
		Department:    domain.DeptProcurement,
		DocumentTypes: []string{"xlsx", "pdf"},
		Active:        true,
		CreatedBy:     "admin",
		Stages: []domain.WorkflowStage{
			{
				ID:                  "qa-panel",
				Name:                "QA Panel",
				Type:                domain.StageParallel,
				Approvers:           []domain.ActorRef{{ID: "qa-1"}, {ID: "qa-2"}, {ID: "qa-3"}},
				RequiredApprovals:   2,
				EscalationTimeHours: &hours,
			},
			{
				ID:                "director",
				Name:              "Director Sign-off",
				Type:              domain.StageSequential,
				Approvers:         []domain.ActorRef{{ID: "dir-1", Role: domain.RoleApprover}},
				RequiredApprovals: 1,
				RequireSignature:  true,
			},
		},
	}
}

var _ = Describe("Store", func() {
	var (
		ctx   context.Context
		repo  *storage.MemoryStore
		store *templates.Store
		now   time.Time
		seq   int
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = storage.NewMemoryStore()
		now = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
		seq = 0
		store = templates.NewStore(repo,
			templates.WithClock(func() time.Time { return now }),
			templates.WithIDGenerator(func() string {
				seq++
				return fmt.Sprintf("tpl-%d", seq)
			}),
		)
	})

	Describe("Create", func() {
		It("assigns an id and audit timestamps", func() {
			t, err := store.Create(ctx, sampleTemplate())
			Expect(err).NotTo(HaveOccurred())
			Expect(t.ID).To(Equal("tpl-1"))
			Expect(t.CreatedAt).To(Equal(now))
			Expect(t.LastModified).To(Equal(now))

			got, err := store.Get(ctx, "tpl-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Stages).To(HaveLen(2))
		})

		It("rejects a template with no stages", func() {
			t := sampleTemplate()
			t.Stages = nil
			_, err := store.Create(ctx, t)
			Expect(domain.IsValidation(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("at least one stage"))
		})

		It("names the stage whose quorum exceeds its approvers", func() {
			t := sampleTemplate()
			t.Stages[0].RequiredApprovals = 4
			_, err := store.Create(ctx, t)

			var vErr *domain.ValidationError
			Expect(errors.As(err, &vErr)).To(BeTrue())
			Expect(vErr.StageID).To(Equal("qa-panel"))
			Expect(vErr.Field).To(Equal("required_approvals"))
		})

		It("rejects a stage without approvers", func() {
			t := sampleTemplate()
			t.Stages[1].Approvers = nil
			_, err := store.Create(ctx, t)
			Expect(err).To(MatchError(ContainSubstring("stage requires at least one approver")))
		})

		It("leaves the repository untouched on failure", func() {
			t := sampleTemplate()
			t.Stages[0].Type = "round-robin"
			_, err := store.Create(ctx, t)
			Expect(err).To(HaveOccurred())

			all, err := store.List(ctx, templates.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(BeEmpty())
		})
	})

	Describe("Duplicate", func() {
		It("deep copies under a new id with reset timestamps", func() {
			src := sampleTemplate()
			src.Active = false
			created, err := store.Create(ctx, src)
			Expect(err).NotTo(HaveOccurred())

			now = now.Add(72 * time.Hour)
			cp, err := store.Duplicate(ctx, created.ID, "editor")
			Expect(err).NotTo(HaveOccurred())
			Expect(cp.ID).To(Equal("tpl-2"))
			Expect(cp.Name).To(Equal("Supplier Change (Copy)"))
			Expect(cp.Active).To(BeTrue())
			Expect(cp.CreatedBy).To(Equal("editor"))
			Expect(cp.CreatedAt).To(Equal(now))

			cp.Stages[0].Approvers[0].ID = "changed"
			_, err = store.Update(ctx, cp)
			Expect(err).NotTo(HaveOccurred())

			orig, err := store.Get(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(orig.Stages[0].Approvers[0].ID).To(Equal("qa-1"))
		})

		It("reports unknown ids", func() {
			_, err := store.Duplicate(ctx, "missing", "x")
			Expect(domain.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("List", func() {
		It("filters by department, document type and active flag", func() {
			a := sampleTemplate()
			b := sampleTemplate()
			b.Name = "Design Review"
			b.Department = domain.DeptEngineering
			b.DocumentTypes = []string{"docx"}
			b.Active = false
			_, err := store.Create(ctx, a)
			Expect(err).NotTo(HaveOccurred())
			_, err = store.Create(ctx, b)
			Expect(err).NotTo(HaveOccurred())

			all, _ := store.List(ctx, templates.Filter{})
			Expect(all).To(HaveLen(2))
			Expect(all[0].Name).To(Equal("Design Review"))

			active, _ := store.List(ctx, templates.Filter{ActiveOnly: true})
			Expect(active).To(HaveLen(1))

			docx, _ := store.List(ctx, templates.Filter{DocumentType: "docx"})
			Expect(docx).To(HaveLen(1))
			Expect(docx[0].Department).To(Equal(domain.DeptEngineering))
		})
	})

	Describe("Delete", func() {
		It("does not disturb assignments frozen from the template", func() {
			t, err := store.Create(ctx, sampleTemplate())
			Expect(err).NotTo(HaveOccurred())

			a := review.NewAssignment(t.Stages, review.Submission{TemplateID: t.ID, Round: 1, At: now})
			Expect(store.Delete(ctx, t.ID)).To(Succeed())

			Expect(a.Stages).To(HaveLen(2))
			Expect(a.Stages[0].ID).To(Equal("qa-panel"))
			Expect(a.AssignedTo.ID).To(Equal("qa-1"))

			Expect(domain.IsNotFound(store.Delete(ctx, t.ID))).To(BeTrue())
		})
	})

	Describe("SetActive", func() {
		It("toggles the flag", func() {
			t, err := store.Create(ctx, sampleTemplate())
			Expect(err).NotTo(HaveOccurred())

			off, err := store.SetActive(ctx, t.ID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(off.Active).To(BeFalse())

			on, err := store.SetActive(ctx, t.ID, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(on.Active).To(BeTrue())
		})
	})
})
