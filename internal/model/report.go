package model

import "time"

// PropertyResult is one entry of the property report
type PropertyResult struct {
	Name      string          `json:"name"`               // Display label in the requested language
	Necessity Necessity       `json:"necessity"`          // required, optional, not allowed, absent
	Response  PropertyVerdict `json:"response,omitempty"` // Aggregate verdict
}

// StatementResult is one entry of the statement report
type StatementResult struct {
	Property  PropertyID       `json:"property"`
	Necessity Necessity        `json:"necessity,omitempty"`
	Response  StatementVerdict `json:"response"`
}

// Comparison is the output of the comparison engine for one schema and one entity
type Comparison struct {
	Properties map[PropertyID]PropertyResult   `json:"properties"`
	Statements map[StatementID]StatementResult `json:"statements"`
}

// NewComparison returns an empty comparison with initialized maps
func NewComparison() *Comparison {
	return &Comparison{
		Properties: make(map[PropertyID]PropertyResult),
		Statements: make(map[StatementID]StatementResult),
	}
}

// Report is the rendered result of comparing an entity against one EntitySchema
type Report struct {
	Schema      string    `json:"schema"`             // EntitySchema id, e.g. "E10"
	Name        string    `json:"name,omitempty"`     // Start shape label
	Entity      string    `json:"entity"`             // Entity id, e.g. "Q42"
	Language    string    `json:"language"`           // Label language
	GeneratedAt time.Time `json:"generated_at"`       // When the comparison ran
	Error       string    `json:"error,omitempty"`    // Human-readable failure text

	Properties map[PropertyID]PropertyResult   `json:"properties"`
	Statements map[StatementID]StatementResult `json:"statements"`
	Summary    Summary                         `json:"summary"`
}

// Summary tallies verdicts so callers can tell at a glance whether the entity conforms
type Summary struct {
	Conforms          bool                     `json:"conforms"`
	PropertyCounts    map[PropertyVerdict]int  `json:"property_counts"`
	StatementCounts   map[StatementVerdict]int `json:"statement_counts"`
	FailingProperties []PropertyID             `json:"failing_properties,omitempty"`
	RequiredTotal     int                      `json:"required_total"`
	RequiredSatisfied int                      `json:"required_satisfied"`
}

// MultiReport groups the reports of one entity compared against several schemas
type MultiReport struct {
	Entity  string    `json:"entity"`
	Schemas []*Report `json:"schemas"`
}
