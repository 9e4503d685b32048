package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"doc-approval-engine/internal/domain"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

const templateColumns = `id, name, description, department, document_types, stages, active, created_by, created_at, last_modified`

func (s *PostgresStore) GetTemplate(ctx context.Context, id string) (domain.WorkflowTemplate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM workflow_templates WHERE id = $1`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WorkflowTemplate{}, domain.NewNotFoundError("template", id)
	}
	return t, err
}

func (s *PostgresStore) SaveTemplate(ctx context.Context, t domain.WorkflowTemplate) error {
	stages, err := json.Marshal(t.Stages)
	if err != nil {
		return fmt.Errorf("marshal stages: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_templates (id, name, description, department, document_types, stages, active, created_by, created_at, last_modified)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			department = EXCLUDED.department,
			document_types = EXCLUDED.document_types,
			stages = EXCLUDED.stages,
			active = EXCLUDED.active,
			last_modified = EXCLUDED.last_modified
	`, t.ID, t.Name, t.Description, t.Department, pq.Array(nonNil(t.DocumentTypes)), string(stages), t.Active, t.CreatedBy, t.CreatedAt, t.LastModified)
	return err
}

func (s *PostgresStore) DeleteTemplate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflow_templates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewNotFoundError("template", id)
	}
	return nil
}

func (s *PostgresStore) ListTemplates(ctx context.Context) ([]domain.WorkflowTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM workflow_templates ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.WorkflowTemplate, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTemplate(row rowScanner) (domain.WorkflowTemplate, error) {
	var t domain.WorkflowTemplate
	var stages []byte
	var kinds []string
	if err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Description,
		&t.Department,
		pq.Array(&kinds),
		&stages,
		&t.Active,
		&t.CreatedBy,
		&t.CreatedAt,
		&t.LastModified,
	); err != nil {
		return domain.WorkflowTemplate{}, err
	}
	if err := json.Unmarshal(stages, &t.Stages); err != nil {
		return domain.WorkflowTemplate{}, fmt.Errorf("decode stages of template %s: %w", t.ID, err)
	}
	t.DocumentTypes = kinds
	return t, nil
}

const reportColumns = `id, title, file_name, file_kind, department, template_id, status, round, assignment,
	approval_pages, approval_page, created_by, created_at, updated_at, last_acted_at,
	published_at, published_by, rejected_reason, revision_notes`

func (s *PostgresStore) GetReport(ctx context.Context, id string) (domain.Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM documents WHERE id = $1`, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Report{}, domain.NewNotFoundError("document", id)
	}
	return r, err
}

func (s *PostgresStore) SaveReport(ctx context.Context, r domain.Report) error {
	var assignment, publishedBy []byte
	var err error
	if r.Assignment != nil {
		if assignment, err = json.Marshal(r.Assignment); err != nil {
			return fmt.Errorf("marshal assignment: %w", err)
		}
	}
	if r.PublishedBy != nil {
		if publishedBy, err = json.Marshal(r.PublishedBy); err != nil {
			return fmt.Errorf("marshal publisher: %w", err)
		}
	}
	createdBy, err := json.Marshal(r.CreatedBy)
	if err != nil {
		return fmt.Errorf("marshal author: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, file_name, file_kind, department, template_id, status, round, assignment,
			approval_pages, approval_page, created_by, created_at, updated_at, last_acted_at,
			published_at, published_by, rejected_reason, revision_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12::jsonb, $13, $14, $15, $16, $17::jsonb, $18, $19)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			template_id = EXCLUDED.template_id,
			status = EXCLUDED.status,
			round = EXCLUDED.round,
			assignment = EXCLUDED.assignment,
			approval_pages = EXCLUDED.approval_pages,
			approval_page = EXCLUDED.approval_page,
			updated_at = EXCLUDED.updated_at,
			last_acted_at = EXCLUDED.last_acted_at,
			published_at = EXCLUDED.published_at,
			published_by = EXCLUDED.published_by,
			rejected_reason = EXCLUDED.rejected_reason,
			revision_notes = EXCLUDED.revision_notes
	`,
		r.ID, r.Title, r.FileName, r.FileKind, r.Department, r.TemplateID, r.Status, r.Round, nullJSON(assignment),
		r.ApprovalPages, r.ApprovalPage, string(createdBy), r.CreatedAt, r.UpdatedAt, r.LastActedAt,
		r.PublishedAt, nullJSON(publishedBy), r.RejectedReason, r.RevisionNotes,
	)
	return err
}

func (s *PostgresStore) ListReports(ctx context.Context) ([]domain.Report, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+reportColumns+` FROM documents ORDER BY last_acted_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Report, 0)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanReport(row rowScanner) (domain.Report, error) {
	var r domain.Report
	var assignment, createdBy, publishedBy []byte
	var publishedAt sql.NullTime
	var rejectedReason sql.NullString
	if err := row.Scan(
		&r.ID,
		&r.Title,
		&r.FileName,
		&r.FileKind,
		&r.Department,
		&r.TemplateID,
		&r.Status,
		&r.Round,
		&assignment,
		&r.ApprovalPages,
		&r.ApprovalPage,
		&createdBy,
		&r.CreatedAt,
		&r.UpdatedAt,
		&r.LastActedAt,
		&publishedAt,
		&publishedBy,
		&rejectedReason,
		&r.RevisionNotes,
	); err != nil {
		return domain.Report{}, err
	}
	if len(assignment) > 0 {
		r.Assignment = &domain.ReviewAssignment{}
		if err := json.Unmarshal(assignment, r.Assignment); err != nil {
			return domain.Report{}, fmt.Errorf("decode assignment of %s: %w", r.ID, err)
		}
	}
	if err := json.Unmarshal(createdBy, &r.CreatedBy); err != nil {
		return domain.Report{}, fmt.Errorf("decode author of %s: %w", r.ID, err)
	}
	if len(publishedBy) > 0 {
		r.PublishedBy = &domain.ActorRef{}
		if err := json.Unmarshal(publishedBy, r.PublishedBy); err != nil {
			return domain.Report{}, fmt.Errorf("decode publisher of %s: %w", r.ID, err)
		}
	}
	if publishedAt.Valid {
		t := publishedAt.Time.UTC()
		r.PublishedAt = &t
	}
	if rejectedReason.Valid {
		reason := rejectedReason.String
		r.RejectedReason = &reason
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	r.LastActedAt = r.LastActedAt.UTC()
	return r, nil
}

func (s *PostgresStore) SavePlan(ctx context.Context, documentID string, wf domain.SynthesizedWorkflow) error {
	payload, err := json.Marshal(wf)
	if err != nil {
		return err
	}
	generatedAt := wf.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO synthesized_plans (document_id, plan, generated_at)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (document_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			generated_at = EXCLUDED.generated_at
	`, documentID, string(payload), generatedAt)
	return err
}

func (s *PostgresStore) GetPlan(ctx context.Context, documentID string) (domain.SynthesizedWorkflow, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT plan FROM synthesized_plans WHERE document_id = $1`, documentID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SynthesizedWorkflow{}, domain.NewNotFoundError("plan", documentID)
	}
	if err != nil {
		return domain.SynthesizedWorkflow{}, err
	}
	var wf domain.SynthesizedWorkflow
	if err := json.Unmarshal(payload, &wf); err != nil {
		return domain.SynthesizedWorkflow{}, fmt.Errorf("decode plan of %s: %w", documentID, err)
	}
	return wf, nil
}

func (s *PostgresStore) InsertAudit(ctx context.Context, documentID string, state domain.AuditState, detail any) error {
	payload, err := auditPayload(detail)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (document_id, state, detail)
		VALUES ($1, $2, $3::jsonb)
	`, documentID, state, string(payload))
	return err
}

// ListAudit returns a document's audit trail, oldest first.
func (s *PostgresStore) ListAudit(ctx context.Context, documentID string) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, state, detail, created_at
		FROM audit_log
		WHERE document_id = $1
		ORDER BY created_at, id
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]AuditEntry, 0)
	for rows.Next() {
		var e AuditEntry
		var detail []byte
		if err := rows.Scan(&e.DocumentID, &e.State, &detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Detail = json.RawMessage(detail)
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
