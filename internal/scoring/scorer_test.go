package scoring_test

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/nyashahama/parenting-anxiety-backend/internal/scoring"
)

const tol = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) < tol }

// testConfig has two global categories (A, B), one category outside the
// global composite (C) and the sum category (BAI).
const testConfigJSON = `{
	"sumCategory": "BAI",
	"globalComposite": {"categories": ["A", "B"]},
	"thresholds": {
		"categories": {
			"A": [
				{"min": 1, "max": 2.5, "label": "Low", "description": "a-low"},
				{"min": 2.5, "max": 3.5, "label": "Moderate", "description": "a-mod"},
				{"min": 3.5, "label": "High", "description": "a-high"}
			],
			"B": [
				{"min": 1, "max": 2.5, "label": "Low", "description": "b-low"},
				{"min": 2.5, "max": 3.5, "label": "Moderate", "description": "b-mod"},
				{"min": 3.5, "label": "High", "description": "b-high"}
			],
			"C": [
				{"min": 1, "max": 3, "label": "Calm", "description": "c-calm"},
				{"min": 3, "label": "Tense", "description": "c-tense"}
			],
			"BAI": [
				{"min": 0, "max": 8, "label": "Minimal", "description": "bai-min"},
				{"min": 8, "max": 16, "label": "Mild", "description": "bai-mild"},
				{"min": 16, "label": "Severe", "description": "bai-severe"}
			]
		},
		"globalAverage": [
			{"min": 0, "max": 2.5, "label": "Stable", "description": "g-stable"},
			{"min": 2.5, "max": 3.5, "label": "Watchful", "description": "g-watch"},
			{"min": 3.5, "label": "Elevated", "description": "g-elevated"}
		]
	}
}`

func testConfig(t *testing.T) *scoring.ReportConfig {
	t.Helper()
	cfg, err := scoring.ParseReportConfig([]byte(testConfigJSON))
	if err != nil {
		t.Fatalf("ParseReportConfig: %v", err)
	}
	return cfg
}

// testCatalog returns 3 questions per ordinary category and 6 BAI questions.
func testCatalog() []scoring.Question {
	var qs []scoring.Question
	for _, c := range []struct {
		prefix, category string
		n                int
	}{
		{"a", "A", 3}, {"b", "B", 3}, {"c", "C", 3}, {"bai", "BAI", 6},
	} {
		for i := 1; i <= c.n; i++ {
			qs = append(qs, scoring.Question{
				ID:       fmt.Sprintf("%s%d", c.prefix, i),
				Category: c.category,
				Text:     fmt.Sprintf("question %s%d", c.prefix, i),
			})
		}
	}
	return qs
}

func fill(qs []scoring.Question, ordinary, bai float64) scoring.AnswerSet {
	out := make(scoring.AnswerSet, len(qs))
	for _, q := range qs {
		if q.Category == "BAI" {
			out[q.ID] = bai
		} else {
			out[q.ID] = ordinary
		}
	}
	return out
}

// ─── Aggregate ────────────────────────────────────────────────────────────────

func TestAggregate_SkipsMissingAndKeepsCatalogOrder(t *testing.T) {
	qs := []scoring.Question{
		{ID: "q1", Category: "A"},
		{ID: "q2", Category: "A"},
		{ID: "q3", Category: "B"},
		{ID: "q4", Category: "A"},
	}
	got := scoring.Aggregate(qs, scoring.AnswerSet{"q4": 1, "q1": 5, "q3": 2, "unknown": 9})

	want := map[string][]float64{"A": {5, 1}, "B": {2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestAggregate_NoAnswers(t *testing.T) {
	got := scoring.Aggregate(testCatalog(), nil)
	if len(got) != 0 {
		t.Errorf("expected no groups, got %v", got)
	}
}

// ─── Mean / Sum ───────────────────────────────────────────────────────────────

func TestMeanAndSum(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		wantMean float64
		wantSum  float64
	}{
		{"empty", nil, 0, 0},
		{"single", []float64{4}, 4, 4},
		{"mixed", []float64{1, 2, 3, 4, 5}, 3, 15},
		{"fractional mean", []float64{1, 2}, 1.5, 3},
		{"bai scale", []float64{0, 1, 2, 3, 0, 1}, 7.0 / 6.0, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoring.Mean(tt.values); !approx(got, tt.wantMean) {
				t.Errorf("Mean = %v, want %v", got, tt.wantMean)
			}
			if got := scoring.Sum(tt.values); !approx(got, tt.wantSum) {
				t.Errorf("Sum = %v, want %v", got, tt.wantSum)
			}
		})
	}
}

// ─── Classify ─────────────────────────────────────────────────────────────────

func TestClassify_IntervalSemantics(t *testing.T) {
	rules := scoring.RuleSet{
		{Interval: scoring.Bounded(0, 2), Classification: scoring.Classification{Label: "A"}},
		{Interval: scoring.Bounded(2, 4), Classification: scoring.Classification{Label: "B"}},
		{Interval: scoring.LowerBound(4), Classification: scoring.Classification{Label: "C"}},
	}
	tests := []struct {
		value   float64
		want    string
		matched bool
	}{
		{0, "A", true},
		{1.999, "A", true},
		{2, "B", true},
		{3.5, "B", true},
		{4, "C", true},
		{100, "C", true},
		{-1, "", false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.value), func(t *testing.T) {
			e, ok := scoring.Classify(rules, tt.value)
			if ok != tt.matched {
				t.Fatalf("matched = %v, want %v", ok, tt.matched)
			}
			if e.Label != tt.want {
				t.Errorf("label = %q, want %q", e.Label, tt.want)
			}
		})
	}
}

func TestClassify_UpperBoundIsInclusive(t *testing.T) {
	rules := scoring.RuleSet{
		{Interval: scoring.UpperBound(2.5), Classification: scoring.Classification{Label: "low"}},
		{Interval: scoring.LowerBound(2.5), Classification: scoring.Classification{Label: "high"}},
	}
	if e, _ := scoring.Classify(rules, 2.5); e.Label != "low" {
		t.Errorf("2.5: got %q, want low (first match wins)", e.Label)
	}
	if e, _ := scoring.Classify(rules, -50); e.Label != "low" {
		t.Errorf("-50: got %q, want low", e.Label)
	}
}

func TestClassify_FirstMatchWinsOnOverlap(t *testing.T) {
	rules := scoring.RuleSet{
		{Interval: scoring.Bounded(0, 10), Classification: scoring.Classification{Label: "first"}},
		{Interval: scoring.Bounded(5, 15), Classification: scoring.Classification{Label: "second"}},
	}
	if e, _ := scoring.Classify(rules, 7); e.Label != "first" {
		t.Errorf("got %q, want first", e.Label)
	}
}

func TestClassify_EmptyRuleSet(t *testing.T) {
	if _, ok := scoring.Classify(nil, 3); ok {
		t.Error("expected no match on empty rule set")
	}
}

// ─── ScoreCategory ────────────────────────────────────────────────────────────

func TestScoreCategory_EmptyUsesFallbackAndZero(t *testing.T) {
	cfg := testConfig(t)
	res := scoring.ScoreCategory(nil, cfg.Thresholds.Categories["A"], false, cfg.Fallback)

	if res.Mean != 0 || math.IsNaN(res.Mean) {
		t.Errorf("mean = %v, want 0", res.Mean)
	}
	if !res.Empty() {
		t.Error("a category with no answers should be empty")
	}
	// A's rule set starts at 1, so a mean of 0 falls through to the fallback.
	if res.Label != scoring.DefaultFallback.Label {
		t.Errorf("label = %q, want fallback", res.Label)
	}
	if res.Sum != nil {
		t.Error("sum should be nil for a mean-classified category")
	}
}

func TestScoreCategory_BySum(t *testing.T) {
	cfg := testConfig(t)
	res := scoring.ScoreCategory([]float64{0, 1, 2, 3, 0, 1}, cfg.Thresholds.Categories["BAI"], true, cfg.Fallback)

	if res.Sum == nil || *res.Sum != 7 {
		t.Fatalf("sum = %v, want 7", res.Sum)
	}
	if !approx(res.Mean, 7.0/6.0) {
		t.Errorf("mean = %v, want %v", res.Mean, 7.0/6.0)
	}
	if res.Label != "Minimal" {
		t.Errorf("label = %q, want Minimal", res.Label)
	}
}

// ─── ComputeGlobal ────────────────────────────────────────────────────────────

func TestComputeGlobal_EqualWeightPerCategory(t *testing.T) {
	cfg := testConfig(t)
	a := make([]float64, 3)
	for i := range a {
		a[i] = 2
	}
	b := make([]float64, 10)
	for i := range b {
		b[i] = 4
	}
	results := map[string]scoring.CategoryResult{
		"A": scoring.ScoreCategory(a, cfg.Thresholds.Categories["A"], false, cfg.Fallback),
		"B": scoring.ScoreCategory(b, cfg.Thresholds.Categories["B"], false, cfg.Fallback),
	}
	g := scoring.ComputeGlobal(results, []string{"A", "B"}, cfg.Thresholds.GlobalAverage, scoring.EmptyExclude, cfg.Fallback)
	if !approx(g.Mean, 3.0) {
		t.Errorf("global mean = %v, want 3.0 (not item-weighted)", g.Mean)
	}
	if g.Label != "Watchful" {
		t.Errorf("label = %q, want Watchful", g.Label)
	}
}

func TestComputeGlobal_EmptyCategoryPolicy(t *testing.T) {
	cfg := testConfig(t)
	results := map[string]scoring.CategoryResult{
		"A": scoring.ScoreCategory([]float64{4, 4}, cfg.Thresholds.Categories["A"], false, cfg.Fallback),
		"B": scoring.ScoreCategory(nil, cfg.Thresholds.Categories["B"], false, cfg.Fallback),
	}
	tests := []struct {
		policy scoring.EmptyCategoryPolicy
		want   float64
	}{
		{scoring.EmptyExclude, 4},
		{scoring.EmptyAsZero, 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			g := scoring.ComputeGlobal(results, []string{"A", "B"}, cfg.Thresholds.GlobalAverage, tt.policy, cfg.Fallback)
			if !approx(g.Mean, tt.want) {
				t.Errorf("mean = %v, want %v", g.Mean, tt.want)
			}
		})
	}
}

func TestComputeGlobal_DecodedResultsCountAsAnswered(t *testing.T) {
	cfg := testConfig(t)
	results := map[string]scoring.CategoryResult{
		"A": scoring.ScoreCategory([]float64{2, 2}, cfg.Thresholds.Categories["A"], false, cfg.Fallback),
		"B": scoring.ScoreCategory([]float64{4}, cfg.Thresholds.Categories["B"], false, cfg.Fallback),
	}
	raw, err := json.Marshal(results)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]scoring.CategoryResult
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}

	want := scoring.ComputeGlobal(results, []string{"A", "B"}, cfg.Thresholds.GlobalAverage, scoring.EmptyExclude, cfg.Fallback)
	got := scoring.ComputeGlobal(decoded, []string{"A", "B"}, cfg.Thresholds.GlobalAverage, scoring.EmptyExclude, cfg.Fallback)
	if got != want || !approx(got.Mean, 3) {
		t.Errorf("decoded global = %+v, want %+v", got, want)
	}
	for name, r := range decoded {
		if r.Empty() {
			t.Errorf("decoded %s reports empty", name)
		}
	}
}

func TestComputeGlobal_NothingContributes(t *testing.T) {
	cfg := testConfig(t)
	g := scoring.ComputeGlobal(nil, []string{"A", "B"}, cfg.Thresholds.GlobalAverage, scoring.EmptyExclude, cfg.Fallback)
	if g.Mean != 0 {
		t.Errorf("mean = %v, want 0", g.Mean)
	}
	// The first entry [0, 2.5) still classifies 0.
	if g.Label != "Stable" {
		t.Errorf("label = %q, want Stable", g.Label)
	}
}

// ─── Assemble ─────────────────────────────────────────────────────────────────

func TestAssemble_AllHigh(t *testing.T) {
	cfg := testConfig(t)
	qs := testCatalog()
	r := scoring.Assemble(qs, fill(qs, 5, 3), cfg)

	for _, c := range []string{"A", "B", "C"} {
		if got := r.CategoryResults[c].Mean; !approx(got, 5) {
			t.Errorf("%s mean = %v, want 5", c, got)
		}
	}
	if r.CategoryResults["A"].Label != "High" || r.CategoryResults["C"].Label != "Tense" {
		t.Errorf("unexpected labels: %+v", r.CategoryResults)
	}
	if r.BAIResult.Sum == nil || *r.BAIResult.Sum != 18 {
		t.Fatalf("bai sum = %v, want 18", r.BAIResult.Sum)
	}
	if r.BAIResult.Label != "Severe" {
		t.Errorf("bai label = %q, want Severe", r.BAIResult.Label)
	}
	if !approx(r.GlobalResult.Mean, 5) || r.GlobalResult.Label != "Elevated" {
		t.Errorf("global = %+v, want mean 5 Elevated", r.GlobalResult)
	}
}

func TestAssemble_AllLow(t *testing.T) {
	cfg := testConfig(t)
	qs := testCatalog()
	r := scoring.Assemble(qs, fill(qs, 1, 0), cfg)

	for _, c := range []string{"A", "B"} {
		res := r.CategoryResults[c]
		if !approx(res.Mean, 1) || res.Label != "Low" {
			t.Errorf("%s = %+v, want mean 1 Low", c, res)
		}
	}
	if r.BAIResult.Sum == nil || *r.BAIResult.Sum != 0 || r.BAIResult.Label != "Minimal" {
		t.Errorf("bai = %+v, want sum 0 Minimal", r.BAIResult)
	}
	if !approx(r.GlobalResult.Mean, 1) || r.GlobalResult.Label != "Stable" {
		t.Errorf("global = %+v, want mean 1 Stable", r.GlobalResult)
	}
}

func TestAssemble_SingleCategoryElevated(t *testing.T) {
	cfg := testConfig(t)
	qs := testCatalog()
	answers := fill(qs, 2, 1)
	for _, q := range qs {
		if q.Category == "A" {
			answers[q.ID] = 5
		}
	}
	r := scoring.Assemble(qs, answers, cfg)

	if r.CategoryResults["A"].Label != "High" {
		t.Errorf("A label = %q, want High", r.CategoryResults["A"].Label)
	}
	if r.CategoryResults["B"].Label != "Low" {
		t.Errorf("B label = %q, want Low", r.CategoryResults["B"].Label)
	}
	// Two global categories: (5 + 2) / 2.
	if !approx(r.GlobalResult.Mean, 3.5) {
		t.Errorf("global mean = %v, want 3.5", r.GlobalResult.Mean)
	}
	if *r.BAIResult.Sum != 6 {
		t.Errorf("bai sum = %v, want 6", *r.BAIResult.Sum)
	}
}

func TestAssemble_SumCategoryExcludedFromGlobal(t *testing.T) {
	cfg := testConfig(t)
	qs := testCatalog()
	low := scoring.Assemble(qs, fill(qs, 3, 0), cfg)
	high := scoring.Assemble(qs, fill(qs, 3, 3), cfg)

	if low.GlobalResult != high.GlobalResult {
		t.Errorf("global changed with BAI answers: %+v vs %+v", low.GlobalResult, high.GlobalResult)
	}
	if *low.BAIResult.Sum == *high.BAIResult.Sum {
		t.Error("bai sum should differ")
	}
}

func TestAssemble_NonGlobalCategoryExcludedFromGlobal(t *testing.T) {
	cfg := testConfig(t)
	qs := testCatalog()
	a := fill(qs, 2, 1)
	b := fill(qs, 2, 1)
	for _, q := range qs {
		if q.Category == "C" {
			b[q.ID] = 5
		}
	}
	if ga, gb := scoring.Assemble(qs, a, cfg).GlobalResult, scoring.Assemble(qs, b, cfg).GlobalResult; ga != gb {
		t.Errorf("global depends on C: %+v vs %+v", ga, gb)
	}
}

func TestAssemble_EmptyAnswersNeverNaN(t *testing.T) {
	cfg := testConfig(t)
	r := scoring.Assemble(testCatalog(), scoring.AnswerSet{}, cfg)

	if len(r.CategoryResults) != 4 {
		t.Fatalf("expected a result for every configured category, got %d", len(r.CategoryResults))
	}
	for name, res := range r.CategoryResults {
		if math.IsNaN(res.Mean) || res.Mean != 0 {
			t.Errorf("%s mean = %v, want 0", name, res.Mean)
		}
	}
	if math.IsNaN(r.GlobalResult.Mean) || r.GlobalResult.Mean != 0 {
		t.Errorf("global mean = %v, want 0", r.GlobalResult.Mean)
	}
	if r.BAIResult.Sum == nil || *r.BAIResult.Sum != 0 {
		t.Errorf("bai sum = %v, want 0", r.BAIResult.Sum)
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	cfg := testConfig(t)
	qs := testCatalog()
	answers := scoring.AnswerSet{"a1": 1.1, "a2": 2.2, "a3": 3.3, "b1": 4.4, "b2": 0.7, "bai1": 2, "c3": 5}

	first, err := json.Marshal(scoring.Assemble(qs, answers, cfg))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 50; i++ {
		got, err := json.Marshal(scoring.Assemble(qs, answers, cfg))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != string(first) {
			t.Fatalf("run %d differs:\n%s\n%s", i, got, first)
		}
	}
}

func TestReport_JSONShape(t *testing.T) {
	cfg := testConfig(t)
	qs := testCatalog()
	raw, err := json.Marshal(scoring.Assemble(qs, fill(qs, 3, 1), cfg))
	if err != nil {
		t.Fatal(err)
	}

	var m map[string]map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"categoryResults", "globalResult", "baiResult"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing top-level key %q in %s", key, raw)
		}
	}
	if _, ok := m["baiResult"]["sum"]; !ok {
		t.Error("baiResult.sum missing")
	}
	if _, ok := m["globalResult"]["sum"]; ok {
		t.Error("globalResult must not carry sum")
	}
	a, ok := m["categoryResults"]["A"].(map[string]any)
	if !ok {
		t.Fatalf("categoryResults.A missing: %s", raw)
	}
	if _, ok := a["sum"]; ok {
		t.Error("ordinary category must not carry sum")
	}
	if len(a) != 3 {
		t.Errorf("category keys = %v, want mean, label, description", a)
	}
}
