// Package scoring implements the questionnaire scoring and threshold
// classification engine: grouping answers by category, computing per-category
// means (or the sum for the anxiety-sum scale), classifying every statistic
// against declarative threshold rule sets, and folding a subset of category
// means into a global composite.
//
// The package performs no network or database I/O and imports nothing from
// internal/. Everything except the content loader is a pure function, safe to
// call concurrently with shared read-only configuration.
package scoring

// ─── TYPES ────────────────────────────────────────────────────────────────────

// Question is one item of the static questionnaire catalog.
type Question struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Text     string `json:"text"`
}

// AnswerSet maps question ID → raw response. Unanswered questions are absent.
type AnswerSet map[string]float64

// CategoryResult is the scored outcome for one category. Sum is set only for
// the anxiety-sum category, which is classified on its sum instead of its mean.
type CategoryResult struct {
	Mean        float64  `json:"mean"`
	Sum         *float64 `json:"sum,omitempty"`
	Label       string   `json:"label"`
	Description string   `json:"description"`

	// empty is set by ScoreCategory when no answer contributed. It is not
	// serialised, so a decoded result always counts as answered.
	empty bool
}

// Empty reports whether ScoreCategory saw no answers for this category.
// ComputeGlobal leaves empty categories out under EmptyExclude. Results built
// any other way, including ones decoded from JSON, are never empty.
func (r CategoryResult) Empty() bool { return r.empty }

// GlobalResult is the classified mean-of-means across the global categories.
type GlobalResult struct {
	Mean        float64 `json:"mean"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
}

// Report is the complete output of one scoring run. Its JSON shape is shared
// with every existing consumer of stored results and must not change.
type Report struct {
	CategoryResults map[string]CategoryResult `json:"categoryResults"`
	GlobalResult    GlobalResult              `json:"globalResult"`
	BAIResult       CategoryResult            `json:"baiResult"`
}

// ─── CORE FUNCTIONS ───────────────────────────────────────────────────────────

// Aggregate groups the answers by their question's category. Questions with no
// entry in answers are skipped, not defaulted. Values are passed through
// unchanged; range checks belong to the caller. Within a category, values keep
// catalog order.
func Aggregate(questions []Question, answers AnswerSet) map[string][]float64 {
	out := make(map[string][]float64)
	for _, q := range questions {
		v, ok := answers[q.ID]
		if !ok {
			continue
		}
		out[q.Category] = append(out[q.Category], v)
	}
	return out
}

// Sum returns the sum of values. Returns 0 for an empty slice.
func Sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

// Mean returns the arithmetic mean of values. Returns 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// Classify returns the first entry of rules whose interval contains value.
// The boolean is false when nothing matches; that is not an error.
func Classify(rules RuleSet, value float64) (ThresholdEntry, bool) {
	for _, e := range rules {
		if e.Interval.Contains(value) {
			return e, true
		}
	}
	return ThresholdEntry{}, false
}

// classifyOr is Classify with the no-match case folded into fallback.
func classifyOr(rules RuleSet, value float64, fallback Classification) Classification {
	if e, ok := Classify(rules, value); ok {
		return e.Classification
	}
	return fallback
}

// ScoreCategory computes and classifies one category. When bySum is true the
// category is classified on the sum of its values and the sum is exposed on
// the result; otherwise it is classified on its mean.
func ScoreCategory(values []float64, rules RuleSet, bySum bool, fallback Classification) CategoryResult {
	res := CategoryResult{
		Mean:  Mean(values),
		empty: len(values) == 0,
	}
	statistic := res.Mean
	if bySum {
		sum := Sum(values)
		res.Sum = &sum
		statistic = sum
	}
	c := classifyOr(rules, statistic, fallback)
	res.Label, res.Description = c.Label, c.Description
	return res
}

// ComputeGlobal averages the means of the named categories with equal weight
// per category (not per answer) and classifies the result. Names missing from
// results are ignored. Categories with no answers are ignored under
// EmptyExclude and count as 0 under EmptyAsZero. When nothing contributes the
// mean is 0.
func ComputeGlobal(
	results map[string]CategoryResult,
	names []string,
	rules RuleSet,
	policy EmptyCategoryPolicy,
	fallback Classification,
) GlobalResult {
	means := make([]float64, 0, len(names))
	for _, name := range names {
		r, ok := results[name]
		if !ok {
			continue
		}
		if r.empty && policy != EmptyAsZero {
			continue
		}
		means = append(means, r.Mean)
	}

	mean := Mean(means)
	c := classifyOr(rules, mean, fallback)
	return GlobalResult{Mean: mean, Label: c.Label, Description: c.Description}
}

// Assemble runs the full pipeline for one submission. Every category that has
// a rule set in cfg produces a result, including categories with no answers.
// The sum category is scored like the others but classified on its sum, and
// is also exposed as Report.BAIResult. Assemble never fails: data-quality
// problems yield zero statistics and fallback labels.
func Assemble(questions []Question, answers AnswerSet, cfg *ReportConfig) Report {
	grouped := Aggregate(questions, answers)

	results := make(map[string]CategoryResult, len(cfg.Thresholds.Categories))
	for category, rules := range cfg.Thresholds.Categories {
		results[category] = ScoreCategory(
			grouped[category],
			rules,
			category == cfg.SumCategory,
			cfg.Fallback,
		)
	}

	bai, ok := results[cfg.SumCategory]
	if !ok {
		// Validate rejects this; keep the slot well-formed regardless.
		bai = ScoreCategory(nil, nil, true, cfg.Fallback)
	}

	return Report{
		CategoryResults: results,
		GlobalResult: ComputeGlobal(
			results,
			cfg.GlobalComposite.Categories,
			cfg.Thresholds.GlobalAverage,
			cfg.GlobalComposite.EmptyCategories,
			cfg.Fallback,
		),
		BAIResult: bai,
	}
}
