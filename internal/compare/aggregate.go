package compare

import "github.com/ppiankov/entityshape/internal/model"

// Aggregate evaluates every statement of one property against its constraint
// and classifies the property as a whole.
//
// Statements evaluated incorrect do not count toward the cardinality. A
// cardinality failure outranks per-statement correctness, except that a
// predicate declared EXTRA on the shape tolerates too many statements. A
// forbidden property ({0,0}) never benefits from EXTRA.
func Aggregate(stmts []model.Statement, c *model.TripleConstraint, extra map[model.PropertyID]bool) (model.PropertyVerdict, []model.StatementVerdict) {
	verdicts := make([]model.StatementVerdict, len(stmts))
	var correct, present int
	for i, s := range stmts {
		v := Evaluate(s, c)
		verdicts[i] = v
		switch v {
		case model.StatementCorrect:
			correct++
		case model.StatementPresent:
			present++
		}
	}

	if c == nil {
		if len(stmts) == 0 {
			return model.PropertyMissing, verdicts
		}
		return model.PropertyNotInSchema, verdicts
	}

	if len(stmts) == 0 {
		if NecessityOf(c) == model.NecessityNotAllowed {
			return model.PropertyAllowed, verdicts
		}
		return model.PropertyMissing, verdicts
	}

	occurrences := correct + present
	min, max := c.MinCount(), c.MaxCount()

	if failure, ok := checkCardinality(occurrences, min, max); !ok {
		if failure == model.PropertyTooMany && max != 0 && extra[c.Property] {
			return model.PropertyCorrect, verdicts
		}
		return failure, verdicts
	}

	switch {
	case correct > 0:
		return model.PropertyCorrect, verdicts
	case present > 0:
		return model.PropertyPresent, verdicts
	default:
		// every statement failed its value check
		return model.PropertyIncorrect, verdicts
	}
}

// checkCardinality reports whether occurrences falls inside [min, max] and,
// if not, which side it fell off
func checkCardinality(occurrences, min, max int) (model.PropertyVerdict, bool) {
	if max != model.Unbounded && occurrences > max {
		return model.PropertyTooMany, false
	}
	if occurrences < min {
		return model.PropertyNotEnough, false
	}
	return "", true
}
