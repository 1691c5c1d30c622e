// Package compare checks a normalized Wikidata entity against a decoded
// shape schema and produces per-property and per-statement verdicts.
//
// Everything in this package is a pure function of its inputs: no I/O,
// no logging, no shared state. Comparisons of different entity/schema
// pairs may run in parallel.
package compare

import "github.com/ppiankov/entityshape/internal/model"

// maxFlattenDepth bounds EachOf nesting. Decoded trees are acyclic, but a
// hand-built schema could nest arbitrarily deep.
const maxFlattenDepth = 64

// Flattened is the start shape reduced to an ordered list of triple constraints
type Flattened struct {
	Shape       model.ShapeID
	Constraints []*model.TripleConstraint
	Extra       map[model.PropertyID]bool
}

// ConstraintFor returns the first constraint on the property, in encounter order
func (f *Flattened) ConstraintFor(p model.PropertyID) (*model.TripleConstraint, bool) {
	for _, c := range f.Constraints {
		if c.Property == p {
			return c, true
		}
	}
	return nil, false
}

// Flatten resolves the schema's start shape and flattens its EachOf groups
// depth-first, preserving encounter order. OneOf groups and triple expression
// references are dropped. A schema without a resolvable start shape yields an
// empty result.
func Flatten(schema *model.ShapeSchema) Flattened {
	out := Flattened{Extra: map[model.PropertyID]bool{}}

	shape, ok := schema.Start()
	if !ok {
		return out
	}
	out.Shape = shape.ID
	for p, v := range shape.Extra {
		if v {
			out.Extra[p] = true
		}
	}

	var walk func(expr model.TripleExpr, depth int)
	walk = func(expr model.TripleExpr, depth int) {
		if depth > maxFlattenDepth {
			return
		}
		switch e := expr.(type) {
		case *model.EachOf:
			for _, child := range e.Expressions {
				walk(child, depth+1)
			}
		case *model.TripleConstraint:
			if e != nil {
				out.Constraints = append(out.Constraints, e)
			}
		}
	}
	walk(shape.Expression, 0)

	return out
}

// byProperty indexes constraints by property id. The first constraint for a
// property wins; constraints on predicates that are not Wikidata properties
// (rdfs:label, schema:description, ...) are skipped.
func (f *Flattened) byProperty() (map[model.PropertyID]*model.TripleConstraint, []model.PropertyID) {
	index := make(map[model.PropertyID]*model.TripleConstraint, len(f.Constraints))
	var order []model.PropertyID
	for _, c := range f.Constraints {
		if c.Property == "" {
			continue
		}
		if _, seen := index[c.Property]; seen {
			continue
		}
		index[c.Property] = c
		order = append(order, c.Property)
	}
	return index, order
}
