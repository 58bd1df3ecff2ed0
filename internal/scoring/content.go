package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default file names inside a content directory.
const (
	CatalogFile      = "questions.json"
	ReportConfigFile = "report-config.json"
)

// ─── LOADING ──────────────────────────────────────────────────────────────────

// readContent reads a .json, .yaml or .yml file and returns it as JSON bytes.
// YAML is normalised through a generic value so that the JSON decoders of this
// package (including ThresholdEntry.UnmarshalJSON) apply to both formats.
func readContent(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		return json.Marshal(v)
	default:
		return raw, nil
	}
}

// ParseCatalog decodes a JSON array of questions.
func ParseCatalog(raw []byte) ([]Question, error) {
	var questions []Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return questions, nil
}

// LoadCatalog reads the question catalog from path.
func LoadCatalog(path string) ([]Question, error) {
	raw, err := readContent(path)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return ParseCatalog(raw)
}

// LoadReportConfig reads and validates the report config from path.
func LoadReportConfig(path string) (*ReportConfig, error) {
	raw, err := readContent(path)
	if err != nil {
		return nil, fmt.Errorf("report config %s: %w", path, err)
	}
	return ParseReportConfig(raw)
}

// LoadEngine loads both content files from dir and cross-validates them.
// YAML variants (questions.yaml, report-config.yaml) are used when the JSON
// files are absent.
func LoadEngine(dir string) (*Engine, error) {
	questions, err := LoadCatalog(contentPath(dir, CatalogFile))
	if err != nil {
		return nil, err
	}
	cfg, err := LoadReportConfig(contentPath(dir, ReportConfigFile))
	if err != nil {
		return nil, err
	}
	return NewEngine(questions, cfg)
}

func contentPath(dir, name string) string {
	p := filepath.Join(dir, name)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	base := strings.TrimSuffix(name, filepath.Ext(name))
	for _, ext := range []string{".yaml", ".yml"} {
		alt := filepath.Join(dir, base+ext)
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}
	return p
}

// ─── ENGINE ───────────────────────────────────────────────────────────────────

// Engine binds a validated catalog to a validated report config. It is
// read-only after construction and safe for concurrent use.
type Engine struct {
	questions []Question
	byID      map[string]Question
	cfg       *ReportConfig
}

// NewEngine cross-validates the catalog against cfg and returns an Engine.
// Every problem found is reported in one error wrapping ErrInvalidConfig.
func NewEngine(questions []Question, cfg *ReportConfig) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: report config is nil", ErrInvalidConfig)
	}

	var errs []error
	if len(questions) == 0 {
		errs = append(errs, fmt.Errorf("catalog has no questions"))
	}

	byID := make(map[string]Question, len(questions))
	inCatalog := make(map[string]int)
	for i, q := range questions {
		switch {
		case q.ID == "":
			errs = append(errs, fmt.Errorf("catalog[%d]: empty id", i))
			continue
		case q.Category == "":
			errs = append(errs, fmt.Errorf("catalog[%d] %q: empty category", i, q.ID))
		}
		if _, dup := byID[q.ID]; dup {
			errs = append(errs, fmt.Errorf("catalog[%d]: duplicate id %q", i, q.ID))
			continue
		}
		byID[q.ID] = q
		inCatalog[q.Category]++
	}

	for category := range inCatalog {
		if category == "" {
			continue
		}
		if _, ok := cfg.Thresholds.Categories[category]; !ok {
			errs = append(errs, fmt.Errorf("catalog category %q has no threshold rule set", category))
		}
	}
	for _, category := range sortedKeys(cfg.Thresholds.Categories) {
		if inCatalog[category] == 0 {
			errs = append(errs, fmt.Errorf("threshold category %q has no questions in the catalog", category))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return &Engine{
		questions: questions,
		byID:      byID,
		cfg:       cfg,
	}, nil
}

// Assemble scores one answer set against the loaded content.
func (e *Engine) Assemble(answers AnswerSet) Report {
	return Assemble(e.questions, answers, e.cfg)
}

// Questions returns the catalog in display order. Callers must not modify it.
func (e *Engine) Questions() []Question { return e.questions }

// Config returns the report config. Callers must not modify it.
func (e *Engine) Config() *ReportConfig { return e.cfg }

// Question looks up a catalog item by ID.
func (e *Engine) Question(id string) (Question, bool) {
	q, ok := e.byID[id]
	return q, ok
}

// Scale returns the valid answer range for a question.
func (e *Engine) Scale(questionID string) (Scale, bool) {
	q, ok := e.byID[questionID]
	if !ok {
		return Scale{}, false
	}
	return e.cfg.ScaleFor(q.Category), true
}

// Categories returns every configured category name, sorted.
func (e *Engine) Categories() []string {
	return sortedKeys(e.cfg.Thresholds.Categories)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ErrInvalidAnswer wraps every problem reported by CheckAnswers.
var ErrInvalidAnswer = errors.New("scoring: invalid answer")

// CheckAnswers reports answers that reference unknown questions or fall
// outside their question's scale. Assemble itself does not need this; it is
// for transports that want to reject bad input before scoring.
func (e *Engine) CheckAnswers(answers AnswerSet) error {
	var errs []error
	for _, id := range sortedKeys(answers) {
		v := answers[id]
		s, ok := e.Scale(id)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: unknown question %q", ErrInvalidAnswer, id))
			continue
		}
		if !s.Contains(v) {
			errs = append(errs, fmt.Errorf("%w: question %q: %g outside [%g, %g]", ErrInvalidAnswer, id, v, s.Min, s.Max))
		}
	}
	return errors.Join(errs...)
}
