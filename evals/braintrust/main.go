package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	braintrust "github.com/braintrustdata/braintrust-sdk-go"
	"github.com/braintrustdata/braintrust-sdk-go/eval"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type section struct {
	Title  string           `json:"title"`
	Fields []map[string]any `json:"fields"`
}

type evalInput struct {
	Name     string    `json:"name"`
	FileName string    `json:"file_name"`
	FileKind string    `json:"file_kind"`
	Sections []section `json:"sections"`
}

type step struct {
	ID            string `json:"id"`
	Department    string `json:"department"`
	Role          string `json:"role"`
	EstimatedDays int    `json:"estimated_days"`
}

type evalOutput struct {
	PrimaryDepartment   string   `json:"primary_department"`
	InvolvedDepartments []string `json:"involved_departments"`
	TotalDays           int      `json:"total_days"`
	Steps               []step   `json:"steps,omitempty"`
	StepCount           int      `json:"step_count,omitempty"`
	FinalRole           string   `json:"final_role,omitempty"`
}

type rawCase struct {
	Input    evalInput  `json:"input"`
	Expected evalOutput `json:"expected"`
}

type config struct {
	APIURL         string
	CasesPath      string
	Project        string
	Experiment     string
	DaysTolerance  int
	RequestTimeout time.Duration
	Parallelism    int
}

type evalRunner struct {
	cfg    config
	client *http.Client
}

func main() {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		fail(err)
	}

	if strings.TrimSpace(os.Getenv("BRAINTRUST_API_KEY")) == "" {
		fail(errors.New("BRAINTRUST_API_KEY is required"))
	}

	cases, err := loadCases(cfg.CasesPath)
	if err != nil {
		fail(err)
	}

	runner := &evalRunner{
		cfg:    cfg,
		client: &http.Client{},
	}

	if err := runner.healthCheck(ctx); err != nil {
		fail(err)
	}

	tp := sdktrace.NewTracerProvider()
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()

	bt, err := braintrust.New(
		tp,
		braintrust.WithProject(cfg.Project),
		braintrust.WithBlockingLogin(true),
	)
	if err != nil {
		fail(fmt.Errorf("failed to initialize Braintrust: %w", err))
	}

	evaluator := braintrust.NewEvaluator[evalInput, evalOutput](bt)

	result, err := evaluator.Run(ctx, eval.Opts[evalInput, evalOutput]{
		Experiment: cfg.Experiment,
		Dataset:    eval.NewDataset(cases),
		Task:       eval.T(runner.runCase),
		Scorers: []eval.Scorer[evalInput, evalOutput]{
			eval.NewScorer("primary_department", scorePrimaryDepartment),
			eval.NewScorer("involved_departments", scoreInvolvedDepartments),
			eval.NewScorer("step_count", scoreStepCount),
			eval.NewScorer("total_days", scoreTotalDays(cfg.DaysTolerance)),
			eval.NewScorer("final_role", scoreFinalRole),
		},
		Tags: []string{"workflow-synthesis", "routing", "workflow-api"},
		Metadata: map[string]any{
			"service":        "doc-approval-engine",
			"api_url":        cfg.APIURL,
			"days_tolerance": cfg.DaysTolerance,
		},
		Parallelism: cfg.Parallelism,
	})
	if err != nil {
		fail(fmt.Errorf("eval run failed: %w", err))
	}

	if runErr := result.Error(); runErr != nil {
		fail(fmt.Errorf("eval completed with errors: %w", runErr))
	}

	if link, err := result.Permalink(); err == nil && link != "" {
		fmt.Println("Braintrust report:", link)
	}

	fmt.Println(result.String())
}

func loadConfig() (config, error) {
	cfg := config{
		APIURL:         getenv("EVAL_API_URL", "http://localhost:8080"),
		CasesPath:      getenv("EVAL_CASES_PATH", "cases.json"),
		Project:        getenv("BRAINTRUST_PROJECT", "doc-approval-engine"),
		Experiment:     getenv("EVAL_EXPERIMENT", "workflow-synthesis-eval"),
		DaysTolerance:  getenvInt("EVAL_DAYS_TOLERANCE", 0),
		RequestTimeout: time.Duration(getenvInt("EVAL_REQUEST_TIMEOUT_SEC", 20)) * time.Second,
		Parallelism:    getenvInt("EVAL_PARALLELISM", 1),
	}

	if cfg.RequestTimeout <= 0 {
		return config{}, errors.New("EVAL_REQUEST_TIMEOUT_SEC must be > 0")
	}
	if cfg.DaysTolerance < 0 {
		return config{}, errors.New("EVAL_DAYS_TOLERANCE must be >= 0")
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}

	return cfg, nil
}

func loadCases(path string) ([]eval.Case[evalInput, evalOutput], error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to read cases file %s: %w", resolved, err)
	}

	var raw []rawCase
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse cases file %s: %w", resolved, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("cases file is empty: %s", resolved)
	}

	cases := make([]eval.Case[evalInput, evalOutput], 0, len(raw))
	for _, row := range raw {
		cases = append(cases, eval.Case[evalInput, evalOutput]{
			Input:    row.Input,
			Expected: row.Expected,
			Metadata: map[string]any{"name": row.Input.Name, "file_name": row.Input.FileName, "file_kind": row.Input.FileKind},
		})
	}
	return cases, nil
}

func (r *evalRunner) runCase(ctx context.Context, input evalInput) (evalOutput, error) {
	manifest := map[string]any{
		"file_name": input.FileName,
		"file_kind": input.FileKind,
		"sections":  input.Sections,
	}

	var out evalOutput
	if err := r.doJSON(ctx, http.MethodPost, "/v1/workflows/synthesize", manifest, &out); err != nil {
		return evalOutput{}, err
	}
	out.StepCount = len(out.Steps)
	if n := len(out.Steps); n > 0 {
		out.FinalRole = out.Steps[n-1].Role
	}
	return out, nil
}

func (r *evalRunner) healthCheck(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := r.doJSON(ctx, http.MethodGet, "/healthz", nil, &resp); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if strings.ToLower(resp.Status) != "ok" {
		return fmt.Errorf("health check returned non-ok status: %s", resp.Status)
	}
	return nil
}

func (r *evalRunner) doJSON(ctx context.Context, method, path string, in any, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, strings.TrimRight(r.cfg.APIURL, "/")+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request failed: method=%s path=%s status=%d body=%s", method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decode failed: %w (payload=%s)", err, string(payload))
		}
	}
	return nil
}

func scorePrimaryDepartment(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	if normalizeString(tr.Expected.PrimaryDepartment) == normalizeString(tr.Output.PrimaryDepartment) {
		return eval.S(1), nil
	}
	return eval.S(0), nil
}

// scoreInvolvedDepartments is the Jaccard similarity of the department sets.
func scoreInvolvedDepartments(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	expected := toSet(tr.Expected.InvolvedDepartments)
	actual := toSet(tr.Output.InvolvedDepartments)
	if len(expected) == 0 && len(actual) == 0 {
		return eval.S(1), nil
	}

	shared := 0
	for k := range expected {
		if _, ok := actual[k]; ok {
			shared++
		}
	}
	union := len(expected) + len(actual) - shared
	return eval.S(float64(shared) / float64(union)), nil
}

func scoreStepCount(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	expected := tr.Expected.StepCount
	if expected == 0 {
		expected = len(tr.Input.Sections) + 1
	}
	if tr.Output.StepCount == expected {
		return eval.S(1), nil
	}
	return eval.S(0), nil
}

func scoreTotalDays(tolerance int) func(context.Context, eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	return func(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
		diff := tr.Expected.TotalDays - tr.Output.TotalDays
		if diff < 0 {
			diff = -diff
		}
		if diff <= tolerance {
			return eval.S(1), nil
		}
		return eval.S(0), nil
	}
}

func scoreFinalRole(_ context.Context, tr eval.TaskResult[evalInput, evalOutput]) (eval.Scores, error) {
	if tr.Expected.FinalRole == "" {
		return eval.S(1), nil
	}
	if normalizeString(tr.Expected.FinalRole) == normalizeString(tr.Output.FinalRole) {
		return eval.S(1), nil
	}
	return eval.S(0), nil
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, item := range items {
		out[normalizeString(item)] = struct{}{}
	}
	return out
}

func normalizeString(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func resolvePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	if _, err := os.Stat(path); err == nil {
		return filepath.Abs(path)
	}
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	candidate := filepath.Join(filepath.Dir(exe), path)
	if _, err := os.Stat(candidate); err != nil {
		return "", fmt.Errorf("file not found: %s", path)
	}
	return candidate, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "eval error:", err)
	os.Exit(1)
}
