package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"doc-approval-engine/internal/domain"
)

type AuditEntry struct {
	DocumentID string            `json:"document_id"`
	State      domain.AuditState `json:"state"`
	Detail     json.RawMessage   `json:"detail"`
	CreatedAt  time.Time         `json:"created_at"`
}

// MemoryStore keeps templates, reports, plans and audit rows in process. It
// backs tests and single-node development runs.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string]domain.WorkflowTemplate
	reports   map[string]domain.Report
	plans     map[string]domain.SynthesizedWorkflow
	audit     []AuditEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		templates: make(map[string]domain.WorkflowTemplate),
		reports:   make(map[string]domain.Report),
		plans:     make(map[string]domain.SynthesizedWorkflow),
	}
}

func (s *MemoryStore) GetTemplate(_ context.Context, id string) (domain.WorkflowTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return domain.WorkflowTemplate{}, domain.NewNotFoundError("template", id)
	}
	return t.Clone(), nil
}

func (s *MemoryStore) SaveTemplate(_ context.Context, t domain.WorkflowTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = t.Clone()
	return nil
}

func (s *MemoryStore) DeleteTemplate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return domain.NewNotFoundError("template", id)
	}
	delete(s.templates, id)
	return nil
}

func (s *MemoryStore) ListTemplates(_ context.Context) ([]domain.WorkflowTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.WorkflowTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t.Clone())
	}
	return out, nil
}

func (s *MemoryStore) GetReport(_ context.Context, id string) (domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return domain.Report{}, domain.NewNotFoundError("document", id)
	}
	return r.Clone(), nil
}

func (s *MemoryStore) SaveReport(_ context.Context, r domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ID] = r.Clone()
	return nil
}

func (s *MemoryStore) ListReports(_ context.Context) ([]domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Report, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *MemoryStore) SavePlan(_ context.Context, documentID string, wf domain.SynthesizedWorkflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf.Steps = append([]domain.WorkflowStep(nil), wf.Steps...)
	wf.InvolvedDepartments = append([]domain.Department(nil), wf.InvolvedDepartments...)
	s.plans[documentID] = wf
	return nil
}

func (s *MemoryStore) GetPlan(_ context.Context, documentID string) (domain.SynthesizedWorkflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.plans[documentID]
	if !ok {
		return domain.SynthesizedWorkflow{}, domain.NewNotFoundError("plan", documentID)
	}
	return wf, nil
}

func (s *MemoryStore) InsertAudit(_ context.Context, documentID string, state domain.AuditState, detail any) error {
	payload, err := auditPayload(detail)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, AuditEntry{
		DocumentID: documentID,
		State:      state,
		Detail:     payload,
		CreatedAt:  time.Now().UTC(),
	})
	return nil
}

func (s *MemoryStore) Audit(documentID string) []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AuditEntry, 0)
	for _, e := range s.audit {
		if e.DocumentID == documentID {
			out = append(out, e)
		}
	}
	return out
}

func (s *MemoryStore) ListAudit(_ context.Context, documentID string) ([]AuditEntry, error) {
	return s.Audit(documentID), nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func auditPayload(detail any) ([]byte, error) {
	switch v := detail.(type) {
	case nil:
		return []byte("{}"), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}
