package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrInvalidConfig wraps every structural problem found in the report
// configuration or in its relationship with the question catalog. These are
// deployment defects and are surfaced at load time, never during scoring.
var ErrInvalidConfig = errors.New("scoring: invalid report config")

// ─── INTERVALS ────────────────────────────────────────────────────────────────

type intervalKind uint8

const (
	intervalNone    intervalKind = iota // zero value, never matches
	intervalBounded                     // [min, max)
	intervalLower                       // [min, +inf)
	intervalUpper                       // (-inf, max]
)

// Interval is the matching rule of a threshold entry. It is one of three
// variants, built with Bounded, LowerBound or UpperBound. The zero Interval
// matches nothing and is rejected by config validation.
type Interval struct {
	kind     intervalKind
	min, max float64
}

// Bounded returns the half-open interval [min, max).
func Bounded(min, max float64) Interval {
	return Interval{kind: intervalBounded, min: min, max: max}
}

// LowerBound returns the open-ended interval [min, +inf).
func LowerBound(min float64) Interval {
	return Interval{kind: intervalLower, min: min}
}

// UpperBound returns the open-ended interval (-inf, max]. Note the upper end
// is inclusive, unlike Bounded.
func UpperBound(max float64) Interval {
	return Interval{kind: intervalUpper, max: max}
}

// Contains reports whether v falls inside the interval.
func (iv Interval) Contains(v float64) bool {
	switch iv.kind {
	case intervalBounded:
		return v >= iv.min && v < iv.max
	case intervalLower:
		return v >= iv.min
	case intervalUpper:
		return v <= iv.max
	default:
		return false
	}
}

// IsZero reports whether the interval has no bound at all.
func (iv Interval) IsZero() bool { return iv.kind == intervalNone }

// Min returns the lower bound and whether the variant has one.
func (iv Interval) Min() (float64, bool) {
	return iv.min, iv.kind == intervalBounded || iv.kind == intervalLower
}

// Max returns the upper bound and whether the variant has one.
func (iv Interval) Max() (float64, bool) {
	return iv.max, iv.kind == intervalBounded || iv.kind == intervalUpper
}

func (iv Interval) String() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	switch iv.kind {
	case intervalBounded:
		return "[" + f(iv.min) + ", " + f(iv.max) + ")"
	case intervalLower:
		return "[" + f(iv.min) + ", +inf)"
	case intervalUpper:
		return "(-inf, " + f(iv.max) + "]"
	default:
		return "(empty)"
	}
}

// lower returns the lower end, -inf when unbounded. A finite lower end is
// always inclusive.
func (iv Interval) lower() float64 {
	if v, ok := iv.Min(); ok {
		return v
	}
	return math.Inf(-1)
}

// upper returns the upper end and whether it is inclusive, +inf when
// unbounded.
func (iv Interval) upper() (float64, bool) {
	switch iv.kind {
	case intervalBounded:
		return iv.max, false
	case intervalUpper:
		return iv.max, true
	default:
		return math.Inf(1), false
	}
}

// overlaps reports whether some value is contained in both intervals.
func (iv Interval) overlaps(o Interval) bool {
	if iv.IsZero() || o.IsZero() {
		return false
	}
	lo := math.Max(iv.lower(), o.lower())
	hi, hiIncl := iv.upper()
	if oHi, oIncl := o.upper(); oHi < hi {
		hi, hiIncl = oHi, oIncl
	} else if oHi == hi {
		hiIncl = hiIncl && oIncl
	}
	if lo < hi {
		return true
	}
	return lo == hi && hiIncl
}

func (iv Interval) validate() error {
	switch iv.kind {
	case intervalNone:
		return fmt.Errorf("entry has neither min nor max")
	case intervalBounded:
		if math.IsNaN(iv.min) || math.IsNaN(iv.max) || iv.min >= iv.max {
			return fmt.Errorf("bounded interval %s is empty", iv)
		}
	}
	return nil
}

// ─── THRESHOLD ENTRIES ────────────────────────────────────────────────────────

// Classification is the qualitative outcome attached to a score.
type Classification struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

// DefaultFallback is used whenever no threshold entry matches a value and the
// report config does not override it.
var DefaultFallback = Classification{
	Label:       "unclassifiable",
	Description: "insufficient data to classify",
}

// ThresholdEntry maps an interval of scores to a label and description.
//
// JSON shape (min and max are both optional; at least one is required):
//
//	{"min": 2.5, "max": 3.5, "label": "Moderate", "description": "..."}
type ThresholdEntry struct {
	Interval Interval
	Classification
}

type thresholdEntryJSON struct {
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
}

// UnmarshalJSON decodes the optional min/max pair into the matching Interval
// variant. An entry with neither bound decodes to the zero Interval so that
// Validate can report it alongside every other problem.
func (e *ThresholdEntry) UnmarshalJSON(b []byte) error {
	var raw thresholdEntryJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch {
	case raw.Min != nil && raw.Max != nil:
		e.Interval = Bounded(*raw.Min, *raw.Max)
	case raw.Min != nil:
		e.Interval = LowerBound(*raw.Min)
	case raw.Max != nil:
		e.Interval = UpperBound(*raw.Max)
	default:
		e.Interval = Interval{}
	}
	e.Label = raw.Label
	e.Description = raw.Description
	return nil
}

// MarshalJSON writes the entry back in its optional-field form.
func (e ThresholdEntry) MarshalJSON() ([]byte, error) {
	out := thresholdEntryJSON{Label: e.Label, Description: e.Description}
	if v, ok := e.Interval.Min(); ok {
		out.Min = &v
	}
	if v, ok := e.Interval.Max(); ok {
		out.Max = &v
	}
	return json.Marshal(out)
}

// RuleSet is an ordered list of threshold entries. Classify takes the first
// entry whose interval contains the value; a loaded config never has two
// entries that share a value.
type RuleSet []ThresholdEntry

func (rs RuleSet) validate(scope string) []error {
	var errs []error
	for i, e := range rs {
		if err := e.Interval.validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s[%d]: %v", scope, i, err))
		}
		if e.Label == "" {
			errs = append(errs, fmt.Errorf("%s[%d]: label must not be empty", scope, i))
		}
		for j := range i {
			if rs[j].Interval.overlaps(e.Interval) {
				errs = append(errs, fmt.Errorf("%s[%d] %s overlaps %s[%d] %s",
					scope, i, e.Interval, scope, j, rs[j].Interval))
			}
		}
	}
	return errs
}

// ─── REPORT CONFIG ────────────────────────────────────────────────────────────

// EmptyCategoryPolicy decides how a global category with no answers takes part
// in the global composite.
type EmptyCategoryPolicy string

const (
	// EmptyExclude leaves unanswered categories out of the mean-of-means.
	EmptyExclude EmptyCategoryPolicy = "exclude"
	// EmptyAsZero counts unanswered categories as a mean of 0.
	EmptyAsZero EmptyCategoryPolicy = "zero"
)

// Scale is the inclusive range of valid answer values.
type Scale struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v is a valid answer on this scale.
func (s Scale) Contains(v float64) bool { return v >= s.Min && v <= s.Max }

var (
	defaultAnswerScale    = Scale{Min: 1, Max: 5}
	defaultSumAnswerScale = Scale{Min: 0, Max: 3}
)

// Thresholds holds the per-category rule sets and the global rule set.
type Thresholds struct {
	Categories    map[string]RuleSet `json:"categories"`
	GlobalAverage RuleSet            `json:"globalAverage"`
}

// GlobalComposite names the categories averaged into the global score.
type GlobalComposite struct {
	Categories      []string            `json:"categories"`
	EmptyCategories EmptyCategoryPolicy `json:"emptyCategories,omitempty"`
}

// ReportConfig is the declarative threshold configuration.
//
// JSON shape:
//
//	{
//	  "sumCategory": "BAI Anxiety Scale",
//	  "globalComposite": {"categories": ["A", "B"], "emptyCategories": "exclude"},
//	  "answerScale":    {"min": 1, "max": 5},
//	  "sumAnswerScale": {"min": 0, "max": 3},
//	  "fallback":       {"label": "...", "description": "..."},
//	  "thresholds": {
//	    "categories":    {"A": [...], "B": [...], "BAI Anxiety Scale": [...]},
//	    "globalAverage": [...]
//	  }
//	}
type ReportConfig struct {
	Thresholds      Thresholds      `json:"thresholds"`
	GlobalComposite GlobalComposite `json:"globalComposite"`
	SumCategory     string          `json:"sumCategory"`
	AnswerScale     Scale           `json:"answerScale"`
	SumAnswerScale  Scale           `json:"sumAnswerScale"`
	Fallback        Classification  `json:"fallback"`
}

// ParseReportConfig decodes a JSON report config, fills defaults and
// validates it. Any returned error wraps ErrInvalidConfig unless the JSON
// itself is malformed.
func ParseReportConfig(raw []byte) (*ReportConfig, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("report config: empty JSON")
	}
	var cfg ReportConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("report config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ReportConfig) applyDefaults() {
	if c.GlobalComposite.EmptyCategories == "" {
		c.GlobalComposite.EmptyCategories = EmptyExclude
	}
	if c.AnswerScale == (Scale{}) {
		c.AnswerScale = defaultAnswerScale
	}
	if c.SumAnswerScale == (Scale{}) {
		c.SumAnswerScale = defaultSumAnswerScale
	}
	if c.Fallback.Label == "" {
		c.Fallback.Label = DefaultFallback.Label
	}
	if c.Fallback.Description == "" {
		c.Fallback.Description = DefaultFallback.Description
	}
}

// Validate checks the config on its own, without a catalog. Call it once at
// startup, not on every request.
func (c *ReportConfig) Validate() error {
	var errs []error

	if len(c.Thresholds.Categories) == 0 {
		errs = append(errs, fmt.Errorf("thresholds.categories must not be empty"))
	}
	for name, rules := range c.Thresholds.Categories {
		if len(rules) == 0 {
			errs = append(errs, fmt.Errorf("thresholds.categories[%q]: rule set is empty", name))
		}
		errs = append(errs, rules.validate(fmt.Sprintf("thresholds.categories[%q]", name))...)
	}
	errs = append(errs, c.Thresholds.GlobalAverage.validate("thresholds.globalAverage")...)

	if c.SumCategory == "" {
		errs = append(errs, fmt.Errorf("sumCategory must be set"))
	} else if _, ok := c.Thresholds.Categories[c.SumCategory]; !ok {
		errs = append(errs, fmt.Errorf("sumCategory %q has no threshold rule set", c.SumCategory))
	}

	seen := make(map[string]struct{}, len(c.GlobalComposite.Categories))
	for _, name := range c.GlobalComposite.Categories {
		if _, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("globalComposite.categories: %q listed twice", name))
		}
		seen[name] = struct{}{}
		if name == c.SumCategory {
			errs = append(errs, fmt.Errorf("globalComposite.categories: sum category %q cannot be part of the global composite", name))
		}
		if _, ok := c.Thresholds.Categories[name]; !ok {
			errs = append(errs, fmt.Errorf("globalComposite.categories: %q has no threshold rule set", name))
		}
	}

	switch c.GlobalComposite.EmptyCategories {
	case EmptyExclude, EmptyAsZero:
	default:
		errs = append(errs, fmt.Errorf("globalComposite.emptyCategories: unknown policy %q", c.GlobalComposite.EmptyCategories))
	}

	for name, s := range map[string]Scale{"answerScale": c.AnswerScale, "sumAnswerScale": c.SumAnswerScale} {
		if s.Min > s.Max {
			errs = append(errs, fmt.Errorf("%s: min %g > max %g", name, s.Min, s.Max))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// ScaleFor returns the answer scale used by a category.
func (c *ReportConfig) ScaleFor(category string) Scale {
	if category == c.SumCategory {
		return c.SumAnswerScale
	}
	return c.AnswerScale
}
