package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nyashahama/parenting-anxiety-backend/internal/scoring"
)

const contentDir = "../../content"

// execute runs the command tree with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func loadTestEngine(t *testing.T) *scoring.Engine {
	t.Helper()
	e, err := scoring.LoadEngine(contentDir)
	if err != nil {
		t.Fatalf("LoadEngine: %v", err)
	}
	return e
}

// ─── validate ─────────────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", "--content", contentDir)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "content is valid") || !strings.Contains(out, "46") {
		t.Errorf("output = %q", out)
	}
}

func TestValidate_ContentFromEnv(t *testing.T) {
	t.Setenv("ANXIETY_CONTENT", contentDir)
	if _, err := execute(t, "validate"); err != nil {
		t.Fatalf("validate with ANXIETY_CONTENT: %v", err)
	}
}

func TestValidate_MissingDir(t *testing.T) {
	if _, err := execute(t, "validate", "--content", t.TempDir()); err == nil {
		t.Fatal("expected error for an empty content directory")
	}
}

// ─── score ────────────────────────────────────────────────────────────────────

func writeAnswers(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScore_JSON(t *testing.T) {
	path := writeAnswers(t, "answers.json", `{"pe1":5,"pe2":5,"pe3":5,"pe4":5,"pe5":5}`)
	out, err := execute(t, "score", "--content", contentDir, "--answers", path)
	if err != nil {
		t.Fatalf("score: %v", err)
	}

	var report scoring.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	pe := report.CategoryResults["Parenting Efficacy Anxiety"]
	if pe.Mean != 5 {
		t.Errorf("mean = %v, want 5", pe.Mean)
	}
	// The other global categories are unanswered and excluded.
	if report.GlobalResult.Mean != 5 || report.GlobalResult.Label != "Elevated" {
		t.Errorf("global = %+v", report.GlobalResult)
	}
}

func TestScore_YAMLTable(t *testing.T) {
	path := writeAnswers(t, "answers.yaml", "pe1: 1\npe2: 2\nbai1: 3\n")
	out, err := execute(t, "score", "-c", contentDir, "-a", path, "--format", "table")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	for _, want := range []string{"Parenting Efficacy Anxiety", "BAI Anxiety Scale", "(sum)", "Global"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestScore_Rejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		args []string
	}{
		{"unknown question", "a.json", `{"zz9":3}`, nil},
		{"out of scale", "a.json", `{"pe1":9}`, nil},
		{"empty", "a.json", `{}`, nil},
		{"malformed", "a.json", `{`, nil},
		{"bad format", "a.json", `{"pe1":3}`, []string{"--format", "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeAnswers(t, tt.file, tt.body)
			args := append([]string{"score", "--content", contentDir, "--answers", path}, tt.args...)
			if _, err := execute(t, args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestScore_RequiresAnswersFlag(t *testing.T) {
	if _, err := execute(t, "score", "--content", contentDir); err == nil {
		t.Fatal("expected error without --answers")
	}
}

// ─── cases ────────────────────────────────────────────────────────────────────

func TestGenerateCases_Patterns(t *testing.T) {
	e := loadTestEngine(t)
	cases := GenerateCases(e, 0, 1)

	byName := make(map[string]Case, len(cases))
	for _, c := range cases {
		byName[c.Name] = c
	}
	if want := 3 + len(e.Config().GlobalComposite.Categories); len(cases) != want {
		t.Fatalf("got %d cases, want %d", len(cases), want)
	}

	tests := []struct {
		name       string
		pe1, bai1  float64
		globalMean float64
		baiSum     float64
	}{
		{"all_high", 5, 3, 5, 63},
		{"all_medium", 3, 2, 3, 42},
		{"all_low", 1, 0, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := byName[tt.name]
			if !ok {
				t.Fatalf("missing case %s", tt.name)
			}
			if c.Answers["pe1"] != tt.pe1 || c.Answers["bai1"] != tt.bai1 {
				t.Errorf("answers pe1=%v bai1=%v", c.Answers["pe1"], c.Answers["bai1"])
			}
			if c.Report.GlobalResult.Mean != tt.globalMean {
				t.Errorf("global mean = %v, want %v", c.Report.GlobalResult.Mean, tt.globalMean)
			}
			if c.Report.BAIResult.Sum == nil || *c.Report.BAIResult.Sum != tt.baiSum {
				t.Errorf("bai sum = %v, want %v", c.Report.BAIResult.Sum, tt.baiSum)
			}
		})
	}

	pe, ok := byName["parenting_efficacy_anxiety_high"]
	if !ok {
		t.Fatal("missing parenting_efficacy_anxiety_high")
	}
	if pe.Answers["pe1"] != 5 || pe.Answers["bai1"] != 1 {
		t.Errorf("category-high answers pe1=%v bai1=%v", pe.Answers["pe1"], pe.Answers["bai1"])
	}
	if got := pe.Report.CategoryResults["Attachment Anxiety"].Mean; got != 2 {
		t.Errorf("other category mean = %v, want 2", got)
	}
}

func TestGenerateCases_RandomDeterministic(t *testing.T) {
	e := loadTestEngine(t)
	a := GenerateCases(e, 4, 42)
	b := GenerateCases(e, 4, 42)

	fixed := 3 + len(e.Config().GlobalComposite.Categories)
	if len(a) != fixed+4 {
		t.Fatalf("got %d cases, want %d", len(a), fixed+4)
	}
	for i := fixed; i < len(a); i++ {
		if a[i].Name != b[i].Name {
			t.Errorf("case %d names differ", i)
		}
		for id, v := range a[i].Answers {
			if b[i].Answers[id] != v {
				t.Errorf("%s: %s differs between runs with the same seed", a[i].Name, id)
			}
		}
		if err := e.CheckAnswers(a[i].Answers); err != nil {
			t.Errorf("%s: %v", a[i].Name, err)
		}
	}
}

func TestCasesCommand(t *testing.T) {
	out, err := execute(t, "cases", "--content", contentDir, "--random", "2", "--seed", "7")
	if err != nil {
		t.Fatalf("cases: %v", err)
	}
	var cases []Case
	if err := json.Unmarshal([]byte(out), &cases); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if last := cases[len(cases)-1].Name; last != "random_2" {
		t.Errorf("last case = %q, want random_2", last)
	}

	table, err := execute(t, "cases", "--content", contentDir, "--format", "table")
	if err != nil {
		t.Fatalf("cases table: %v", err)
	}
	if !strings.Contains(table, "all_high") || !strings.Contains(table, "Severe") {
		t.Errorf("table = %s", table)
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Parenting Efficacy Anxiety": "parenting_efficacy_anxiety",
		"BAI Anxiety Scale":          "bai_anxiety_scale",
		"  Child-Wellbeing  ":        "child_wellbeing",
	}
	for in, want := range tests {
		if got := slug(in); got != want {
			t.Errorf("slug(%q) = %q, want %q", in, got, want)
		}
	}
}
