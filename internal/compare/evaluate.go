package compare

import "github.com/ppiankov/entityshape/internal/model"

// Evaluate checks one statement against a constraint's value expression.
//
// Only inline value sets are checked. An entity IRI never matches a literal,
// stem or range entry, so a set made only of those rejects every item value. Anything that cannot be compared
// against a value set (no value expression, a shape reference, a somevalue or
// novalue snak, a non-item datatype) is reported as present.
func Evaluate(stmt model.Statement, c *model.TripleConstraint) model.StatementVerdict {
	if c == nil || c.ValueExpr == nil {
		return model.StatementPresent
	}

	nc, ok := c.ValueExpr.(*model.NodeConstraint)
	if !ok || nc == nil || !nc.HasValueSet() {
		return model.StatementPresent
	}

	if stmt.SnakType != model.SnakValue || stmt.ValueIRI == "" {
		return model.StatementPresent
	}

	if nc.HasValue(stmt.ValueIRI) {
		return model.StatementCorrect
	}
	return model.StatementIncorrect
}
