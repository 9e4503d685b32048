package events

import (
	"context"
	"fmt"
	"log/slog"

	"doc-approval-engine/internal/domain"
	"doc-approval-engine/internal/lifecycle"
	"doc-approval-engine/internal/templates"
)

type ManifestFetcher interface {
	GetManifest(ctx context.Context, objectKey string) ([]byte, error)
}

type PlanWriter interface {
	SavePlan(ctx context.Context, documentID string, wf domain.SynthesizedWorkflow) error
}

type Synthesizer interface {
	FromManifest(raw []byte) (domain.SynthesizedWorkflow, error)
}

// Intake turns an uploaded section manifest into a stored plan, an inactive
// generated template and a pending document. Redelivered events for a
// document that already exists only refresh the plan and template.
type Intake struct {
	Manifests ManifestFetcher
	Synth     Synthesizer
	Plans     PlanWriter
	Templates *templates.Store
	Engine    *lifecycle.Engine
	Audit     AuditWriter
	Logger    *slog.Logger
}

// GeneratedTemplateID is the id of the template derived for a document.
func GeneratedTemplateID(documentID string) string {
	return "generated-" + documentID
}

func (in *Intake) Handle(ctx context.Context, ev ManifestEvent) error {
	logger := in.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("document_id", ev.DocumentID, "object_key", ev.ObjectKey)

	raw, err := in.Manifests.GetManifest(ctx, ev.ObjectKey)
	if err != nil {
		return fmt.Errorf("fetch manifest %s: %w", ev.ObjectKey, err)
	}
	wf, err := in.Synth.FromManifest(raw)
	if err != nil {
		// A malformed manifest will not improve on retry.
		logger.Warn("manifest rejected", "error", err)
		return nil
	}

	if err := in.Plans.SavePlan(ctx, ev.DocumentID, wf); err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	if in.Audit != nil {
		if err := in.Audit.InsertAudit(ctx, ev.DocumentID, domain.AuditSynthesis, wf); err != nil {
			logger.Warn("audit synthesis failed", "error", err)
		}
	}

	tpl := templates.FromSynthesis(wf, domain.SystemActor.ID)
	tpl.ID = GeneratedTemplateID(ev.DocumentID)
	tpl, err = in.Templates.Import(ctx, tpl)
	if err != nil {
		return fmt.Errorf("store generated template: %w", err)
	}

	if _, err := in.Engine.Get(ctx, ev.DocumentID); err == nil {
		logger.Info("document already registered", "template_id", tpl.ID)
		return nil
	} else if !domain.IsNotFound(err) {
		return err
	}

	_, err = in.Engine.CreateReport(ctx, lifecycle.CreateRequest{
		ID:         ev.DocumentID,
		Title:      ev.FileName,
		FileName:   ev.FileName,
		FileKind:   wf.FileKind,
		Department: wf.PrimaryDepartment,
		TemplateID: tpl.ID,
		CreatedBy:  domain.SystemActor,
	})
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	logger.Info("document registered from manifest",
		"template_id", tpl.ID,
		"steps", len(wf.Steps),
		"primary_department", wf.PrimaryDepartment,
	)
	return nil
}
