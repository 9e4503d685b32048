//go:build system

package system_test

import (
	"context"
	"net/http"
	"os"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"

	"doc-approval-engine/internal/domain"
	"doc-approval-engine/internal/storage"
)

var _ = Describe("Approval lifecycle against running services", Ordered, func() {
	var (
		cfg            systemTestConfig
		temporalClient client.Client
	)

	BeforeAll(func() {
		if os.Getenv("RUN_BLACKBOX_SYSTEM_TEST") != "1" {
			Skip("set RUN_BLACKBOX_SYSTEM_TEST=1 to run the blackbox system test")
		}
		cfg = loadSystemTestConfig()

		By("failing fast if infrastructure is unreachable")
		Expect(waitForPostgres(cfg.PostgresDSN, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(cfg.APIBaseURL+"/healthz", http.StatusOK, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(cfg.APIBaseURL+"/readyz", http.StatusOK, cfg.PreflightTimeout)).To(Succeed())

		var err error
		temporalClient, err = client.Dial(client.Options{
			HostPort:  cfg.TemporalAddress,
			Namespace: cfg.TemporalNamespace,
		})
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(temporalClient.Close)

		Expect(waitForWorkerPoller(temporalClient, cfg.TemporalTaskQueue, cfg.WorkerPollerTimeout)).To(Succeed())
	})

	It("moves a templated document from creation to publication", func() {
		suffix := uuid.NewString()[:8]
		templateID := "system-" + suffix
		documentID := "system-doc-" + suffix
		author := map[string]string{"id": "author-" + suffix, "role": "author"}
		approver := map[string]string{"id": "approver-" + suffix, "role": "approver"}

		By("creating a single-stage template with an escalation window")
		resp, err := doJSON(http.MethodPost, cfg.APIBaseURL+"/v1/templates", map[string]any{
			"id":         templateID,
			"name":       "System Test " + suffix,
			"created_by": author["id"],
			"active":     true,
			"stages": []map[string]any{{
				"id":                    "sign-off",
				"name":                  "Sign-off",
				"type":                  "sequential",
				"approvers":             []map[string]string{approver},
				"required_approvals":    1,
				"escalation_time_hours": 24,
			}},
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(resp.Status).To(Equal(http.StatusCreated), string(resp.Body))

		By("creating and submitting the document")
		resp, err = doJSON(http.MethodPost, cfg.APIBaseURL+"/v1/documents", map[string]any{
			"id":          documentID,
			"title":       "Pump housing inspection",
			"file_name":   "pump.pdf",
			"template_id": templateID,
			"created_by":  author,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(resp.Status).To(Equal(http.StatusCreated), string(resp.Body))

		resp, err = doJSON(http.MethodPost, cfg.APIBaseURL+"/v1/documents/"+documentID+"/submit", map[string]any{
			"actor":       author,
			"template_id": templateID,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(resp.Status).To(Equal(http.StatusOK), string(resp.Body))
		doc, err := decode[domain.Report](resp)
		Expect(err).ToNot(HaveOccurred())
		Expect(doc.Status).To(Equal(domain.StatusSubmitted))

		By("checking that a stage escalation timer was armed")
		workflowID := cfg.WorkflowPrefix + "-" + documentID
		Eventually(func() (enumspb.WorkflowExecutionStatus, error) {
			return workflowStatus(context.Background(), temporalClient, workflowID)
		}, cfg.EventualTimeout, cfg.PollInterval).Should(Equal(enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING))

		By("rejecting a publish before approval")
		resp, err = doJSON(http.MethodPost, cfg.APIBaseURL+"/v1/documents/"+documentID+"/publish", map[string]any{"actor": approver})
		Expect(err).ToNot(HaveOccurred())
		Expect(resp.Status).To(Equal(http.StatusConflict))

		By("approving the only stage")
		resp, err = doJSON(http.MethodPost, cfg.APIBaseURL+"/v1/documents/"+documentID+"/review", map[string]any{
			"actor":   approver,
			"verdict": "reviewed",
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(resp.Status).To(Equal(http.StatusOK), string(resp.Body))
		doc, err = decode[domain.Report](resp)
		Expect(err).ToNot(HaveOccurred())
		Expect(doc.Status).To(Equal(domain.StatusApproved))

		By("publishing")
		resp, err = doJSON(http.MethodPost, cfg.APIBaseURL+"/v1/documents/"+documentID+"/publish", map[string]any{"actor": approver})
		Expect(err).ToNot(HaveOccurred())
		Expect(resp.Status).To(Equal(http.StatusOK), string(resp.Body))
		doc, err = decode[domain.Report](resp)
		Expect(err).ToNot(HaveOccurred())
		Expect(doc.Status).To(Equal(domain.StatusPublished))
		Expect(doc.PublishedBy).ToNot(BeNil())

		By("waiting for the escalation workflow to stop")
		Eventually(func() (enumspb.WorkflowExecutionStatus, error) {
			return workflowStatus(context.Background(), temporalClient, workflowID)
		}, cfg.EventualTimeout, cfg.PollInterval).Should(Equal(enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED))

		By("reading the transition audit trail")
		Eventually(func() ([]domain.AuditState, error) {
			resp, err := doJSON(http.MethodGet, cfg.APIBaseURL+"/v1/documents/"+documentID+"/audit", nil)
			if err != nil {
				return nil, err
			}
			body, err := decode[struct {
				Items []storage.AuditEntry `json:"items"`
			}](resp)
			if err != nil {
				return nil, err
			}
			states := make([]domain.AuditState, 0, len(body.Items))
			for _, item := range body.Items {
				states = append(states, item.State)
			}
			return states, nil
		}, cfg.EventualTimeout, cfg.PollInterval).Should(SatisfyAll(HaveLen(3), HaveEach(domain.AuditTransition)))
	})
})
