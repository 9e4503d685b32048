// Package templates manages reusable approval workflow definitions.
package templates

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"doc-approval-engine/internal/domain"
)

// Repository persists templates. GetTemplate returns a *domain.NotFoundError
// for unknown ids.
type Repository interface {
	GetTemplate(ctx context.Context, id string) (domain.WorkflowTemplate, error)
	SaveTemplate(ctx context.Context, t domain.WorkflowTemplate) error
	DeleteTemplate(ctx context.Context, id string) error
	ListTemplates(ctx context.Context) ([]domain.WorkflowTemplate, error)
}

type Filter struct {
	Department   domain.Department
	DocumentType string
	ActiveOnly   bool
}

type Store struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

func NewStore(repo Repository, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Create(ctx context.Context, t domain.WorkflowTemplate) (domain.WorkflowTemplate, error) {
	t = t.Clone()
	if t.ID == "" {
		t.ID = s.newID()
	}
	now := s.now().UTC()
	t.CreatedAt = now
	t.LastModified = now
	if err := Validate(t); err != nil {
		return domain.WorkflowTemplate{}, err
	}
	if err := s.repo.SaveTemplate(ctx, t); err != nil {
		return domain.WorkflowTemplate{}, fmt.Errorf("save template: %w", err)
	}
	s.logger.Info("template created", "template_id", t.ID, "name", t.Name, "stages", len(t.Stages))
	return t, nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.WorkflowTemplate, error) {
	t, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return domain.WorkflowTemplate{}, err
	}
	return t.Clone(), nil
}

func (s *Store) List(ctx context.Context, f Filter) ([]domain.WorkflowTemplate, error) {
	all, err := s.repo.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.WorkflowTemplate, 0, len(all))
	for _, t := range all {
		if f.ActiveOnly && !t.Active {
			continue
		}
		if f.Department != "" && t.Department != f.Department {
			continue
		}
		if f.DocumentType != "" && !contains(t.DocumentTypes, f.DocumentType) {
			continue
		}
		out = append(out, t.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Update replaces a template's definition. Assignments already made from it
// keep their own copy of the stages.
func (s *Store) Update(ctx context.Context, t domain.WorkflowTemplate) (domain.WorkflowTemplate, error) {
	existing, err := s.repo.GetTemplate(ctx, t.ID)
	if err != nil {
		return domain.WorkflowTemplate{}, err
	}
	t = t.Clone()
	t.CreatedAt = existing.CreatedAt
	t.CreatedBy = existing.CreatedBy
	t.LastModified = s.now().UTC()
	if err := Validate(t); err != nil {
		return domain.WorkflowTemplate{}, err
	}
	if err := s.repo.SaveTemplate(ctx, t); err != nil {
		return domain.WorkflowTemplate{}, fmt.Errorf("save template: %w", err)
	}
	s.logger.Info("template updated", "template_id", t.ID)
	return t, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.GetTemplate(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteTemplate(ctx, id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	s.logger.Info("template deleted", "template_id", id)
	return nil
}

// Duplicate deep-copies a template under a new id with fresh audit
// timestamps. The copy is active.
func (s *Store) Duplicate(ctx context.Context, id, createdBy string) (domain.WorkflowTemplate, error) {
	src, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return domain.WorkflowTemplate{}, err
	}
	cp := src.Clone()
	cp.ID = s.newID()
	cp.Name = src.Name + " (Copy)"
	cp.Active = true
	if createdBy != "" {
		cp.CreatedBy = createdBy
	}
	now := s.now().UTC()
	cp.CreatedAt = now
	cp.LastModified = now
	if err := Validate(cp); err != nil {
		return domain.WorkflowTemplate{}, err
	}
	if err := s.repo.SaveTemplate(ctx, cp); err != nil {
		return domain.WorkflowTemplate{}, fmt.Errorf("save template: %w", err)
	}
	s.logger.Info("template duplicated", "template_id", cp.ID, "source_id", id)
	return cp, nil
}

func (s *Store) SetActive(ctx context.Context, id string, active bool) (domain.WorkflowTemplate, error) {
	t, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return domain.WorkflowTemplate{}, err
	}
	if active {
		if err := Validate(t); err != nil {
			return domain.WorkflowTemplate{}, err
		}
	}
	t.Active = active
	t.LastModified = s.now().UTC()
	if err := s.repo.SaveTemplate(ctx, t); err != nil {
		return domain.WorkflowTemplate{}, fmt.Errorf("save template: %w", err)
	}
	return t, nil
}

// Import stores a template under its own id, creating or replacing it.
func (s *Store) Import(ctx context.Context, t domain.WorkflowTemplate) (domain.WorkflowTemplate, error) {
	if t.ID == "" {
		return s.Create(ctx, t)
	}
	if _, err := s.repo.GetTemplate(ctx, t.ID); err != nil {
		if domain.IsNotFound(err) {
			return s.Create(ctx, t)
		}
		return domain.WorkflowTemplate{}, err
	}
	return s.Update(ctx, t)
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
