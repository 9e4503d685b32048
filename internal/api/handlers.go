package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"doc-approval-engine/internal/domain"
	"doc-approval-engine/internal/lifecycle"
	"doc-approval-engine/internal/storage"
	"doc-approval-engine/internal/templates"
)

const requestTimeout = 15 * time.Second

type Synthesizer interface {
	FromManifest(raw []byte) (domain.SynthesizedWorkflow, error)
}

type PlanReader interface {
	GetPlan(ctx context.Context, documentID string) (domain.SynthesizedWorkflow, error)
}

type AuditReader interface {
	ListAudit(ctx context.Context, documentID string) ([]storage.AuditEntry, error)
}

type ManifestWriter interface {
	PutManifest(ctx context.Context, documentID, fileName, suffix string, content []byte) (string, error)
}

// Dependencies wires the handler. Manifests may be nil when no object
// store is configured.
type Dependencies struct {
	Engine          *lifecycle.Engine
	Templates       *templates.Store
	Synthesizer     Synthesizer
	Plans           PlanReader
	Audit           AuditReader
	Manifests       ManifestWriter
	ManifestSuffix  string
	Ready           func(ctx context.Context) error
	MaxRequestBytes int64
	Logger          *slog.Logger
}

type Handler struct {
	engine         *lifecycle.Engine
	templates      *templates.Store
	synth          Synthesizer
	plans          PlanReader
	audit          AuditReader
	manifests      ManifestWriter
	manifestSuffix string
	ready          func(ctx context.Context) error
	maxBytes       int64
	validate       *validator.Validate
	logger         *slog.Logger
}

func NewHandler(d Dependencies) *Handler {
	h := &Handler{
		engine:         d.Engine,
		templates:      d.Templates,
		synth:          d.Synthesizer,
		plans:          d.Plans,
		audit:          d.Audit,
		manifests:      d.Manifests,
		manifestSuffix: d.ManifestSuffix,
		ready:          d.Ready,
		maxBytes:       d.MaxRequestBytes,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		logger:         d.Logger,
	}
	if h.maxBytes <= 0 {
		h.maxBytes = 1 << 20
	}
	if h.manifestSuffix == "" {
		h.manifestSuffix = ".sections.json"
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.ready(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Synthesize derives a workflow plan from a posted section manifest.
func (h *Handler) Synthesize(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	wf, err := h.synth.FromManifest(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

// UploadManifest stores parser output for a document. The object store
// notification drives synthesis and registration asynchronously.
func (h *Handler) UploadManifest(w http.ResponseWriter, r *http.Request, documentID string) {
	if h.manifests == nil {
		writeProblem(w, r, http.StatusServiceUnavailable, "object storage is not configured")
		return
	}
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	if !isManifestPayload(body) {
		writeProblem(w, r, http.StatusBadRequest, "manifest must be a UTF-8 JSON object")
		return
	}
	manifest, err := domain.ValidateSectionsJSON(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	objectKey, err := h.manifests.PutManifest(ctx, documentID, manifest.FileName, h.manifestSuffix, body)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("store manifest: %w", err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"document_id": documentID,
		"object_key":  objectKey,
		"sections":    len(manifest.Sections),
	})
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeProblem(w, r, http.StatusRequestEntityTooLarge, "request body exceeds size limit")
			return nil, false
		}
		writeProblem(w, r, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	return body, true
}

// decode reads a JSON body into dst and validates its struct tags.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, ok := h.readBody(w, r)
	if !ok {
		return false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeProblem(w, r, http.StatusBadRequest, describeValidation(verrs))
			return false
		}
		h.writeError(w, r, err)
		return false
	}
	return true
}

func describeValidation(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func isManifestPayload(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !utf8.Valid(trimmed) {
		return false
	}
	return trimmed[0] == '{' && json.Valid(trimmed)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	writeJSONType(w, status, "application/json", payload)
}

func writeJSONType(w http.ResponseWriter, status int, contentType string, payload any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
