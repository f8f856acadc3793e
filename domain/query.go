package domain

import "time"

// TimeRange bounds a QueryPlan's retrieval filter by timestamp, inclusive.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// QueryPlan is C3's retrieval input, produced by generator.ProcessQuery (or
// the pipeline's trivial fallback) from a raw topic string.
type QueryPlan struct {
	RefinedText    string      `json:"refined_text"`
	Entities       []string    `json:"entities"`
	Locations      []string    `json:"locations,omitempty"`
	TimeRange      *TimeRange  `json:"time_range,omitempty"`
	MinCredibility float64     `json:"min_credibility"`
	Limit          int         `json:"limit"`
	ImageVector    []float32   `json:"-"`
}
