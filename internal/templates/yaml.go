package templates

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"doc-approval-engine/internal/domain"
)

// ParseTemplateYAML decodes and validates one template definition. Unknown
// keys are rejected.
func ParseTemplateYAML(data []byte) (domain.WorkflowTemplate, error) {
	return LoadTemplateReader(bytes.NewReader(data))
}

func LoadTemplateReader(r io.Reader) (domain.WorkflowTemplate, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var t domain.WorkflowTemplate
	if err := dec.Decode(&t); err != nil {
		return domain.WorkflowTemplate{}, domain.NewValidationError("yaml", err.Error())
	}
	if err := Validate(t); err != nil {
		return domain.WorkflowTemplate{}, err
	}
	return t, nil
}

func LoadTemplateFile(path string) (domain.WorkflowTemplate, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.WorkflowTemplate{}, fmt.Errorf("open template %s: %w", path, err)
	}
	defer f.Close()

	t, err := LoadTemplateReader(f)
	if err != nil {
		return domain.WorkflowTemplate{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// LoadDir reads every *.yaml and *.yml file in dir, sorted by name.
func LoadDir(dir string) ([]domain.WorkflowTemplate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read templates dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]domain.WorkflowTemplate, 0, len(names))
	for _, name := range names {
		t, err := LoadTemplateFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Seed imports every template found in dir into the store.
func Seed(ctx context.Context, s *Store, dir string) (int, error) {
	defs, err := LoadDir(dir)
	if err != nil {
		return 0, err
	}
	for _, t := range defs {
		if _, err := s.Import(ctx, t); err != nil {
			return 0, fmt.Errorf("import template %q: %w", t.Name, err)
		}
	}
	return len(defs), nil
}
