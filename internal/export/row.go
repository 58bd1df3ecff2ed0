// Package export flattens saved results into analysis rows and publishes them
// to the operators' downstream stream (Kafka in production).
package export

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nyashahama/parenting-anxiety-backend/internal/scoring"
	"github.com/nyashahama/parenting-anxiety-backend/internal/store"
)

// CategoryColumn is one category's statistic in a Row.
type CategoryColumn struct {
	Name        string  `json:"name"`
	Mean        float64 `json:"mean"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
}

// Row is one exported result: completion time, respondent profile, every
// score, label and description.
type Row struct {
	ResultID    uuid.UUID `json:"resultId"`
	CompletedAt time.Time `json:"completedAt"`

	Name           string `json:"name"`
	Phone          string `json:"phone"`
	ChildAge       string `json:"childAge"`
	ChildGender    string `json:"childGender"`
	CaregiverType  string `json:"caregiverType"`
	ParentAgeGroup string `json:"parentAgeGroup"`
	Region         string `json:"region"`

	GlobalMean        float64          `json:"globalMean"`
	GlobalLabel       string           `json:"globalLabel"`
	GlobalDescription string           `json:"globalDescription"`
	Categories        []CategoryColumn `json:"categories"`
	BAISum            float64          `json:"baiSum"`
	BAILabel          string           `json:"baiLabel"`
	BAIDescription    string           `json:"baiDescription"`
}

// BuildRow flattens a result. categories fixes the column order; a category
// missing from the report exports as zero with empty strings. profile may be
// nil.
func BuildRow(id uuid.UUID, completedAt time.Time, profile *store.Profile, r scoring.Report, categories []string) Row {
	row := Row{
		ResultID:          id,
		CompletedAt:       completedAt.UTC(),
		GlobalMean:        r.GlobalResult.Mean,
		GlobalLabel:       r.GlobalResult.Label,
		GlobalDescription: r.GlobalResult.Description,
		BAILabel:          r.BAIResult.Label,
		BAIDescription:    r.BAIResult.Description,
		Categories:        make([]CategoryColumn, 0, len(categories)),
	}
	if r.BAIResult.Sum != nil {
		row.BAISum = *r.BAIResult.Sum
	}
	if profile != nil {
		row.Name = profile.Name
		row.Phone = profile.Phone
		row.ChildAge = profile.ChildAge
		row.ChildGender = profile.ChildGender
		row.CaregiverType = profile.CaregiverType
		row.ParentAgeGroup = profile.ParentAgeGroup
		row.Region = profile.Region
	}
	for _, name := range categories {
		c := r.CategoryResults[name]
		row.Categories = append(row.Categories, CategoryColumn{
			Name:        name,
			Mean:        c.Mean,
			Label:       c.Label,
			Description: c.Description,
		})
	}
	return row
}

// Values returns the row as spreadsheet cells: timestamp, profile, means,
// BAI sum, labels, then descriptions.
func (r Row) Values() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

	out := []string{
		r.CompletedAt.Format(time.RFC3339),
		r.Name, r.Phone, r.ChildAge, r.ChildGender, r.CaregiverType, r.ParentAgeGroup, r.Region,
		f(r.GlobalMean),
	}
	for _, c := range r.Categories {
		out = append(out, f(c.Mean))
	}
	out = append(out, f(r.BAISum), r.GlobalLabel)
	for _, c := range r.Categories {
		out = append(out, c.Label)
	}
	out = append(out, r.BAILabel, r.GlobalDescription)
	for _, c := range r.Categories {
		out = append(out, c.Description)
	}
	return append(out, r.BAIDescription)
}
