package score

import (
	"sort"

	"github.com/ppiankov/entityshape/internal/model"
)

// Scorer condenses a comparison into a conformance summary
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate tallies property and statement verdicts.
//
// A property fails when its statements are incorrect, too many or too few,
// or when it is required and missing. An optional property that is missing
// does not fail. The entity conforms when no property fails.
func (s *Scorer) Calculate(c *model.Comparison) model.Summary {
	summary := model.Summary{
		PropertyCounts:  make(map[model.PropertyVerdict]int),
		StatementCounts: make(map[model.StatementVerdict]int),
	}
	if c == nil {
		summary.Conforms = true
		return summary
	}

	for id, p := range c.Properties {
		summary.PropertyCounts[p.Response]++

		if p.Necessity == model.NecessityRequired {
			summary.RequiredTotal++
			if satisfied(p.Response) {
				summary.RequiredSatisfied++
			}
		}

		if fails(p) {
			summary.FailingProperties = append(summary.FailingProperties, id)
		}
	}

	for _, st := range c.Statements {
		summary.StatementCounts[st.Response]++
	}

	sort.Slice(summary.FailingProperties, func(i, j int) bool {
		return propertyLess(summary.FailingProperties[i], summary.FailingProperties[j])
	})
	summary.Conforms = len(summary.FailingProperties) == 0

	return summary
}

func satisfied(v model.PropertyVerdict) bool {
	return v == model.PropertyCorrect || v == model.PropertyPresent
}

func fails(p model.PropertyResult) bool {
	if p.Response == model.PropertyMissing {
		return p.Necessity == model.NecessityRequired
	}
	return p.Response.IsFailure()
}

// propertyLess orders P2 before P10
func propertyLess(a, b model.PropertyID) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
