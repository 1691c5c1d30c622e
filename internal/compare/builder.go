package compare

import "github.com/ppiankov/entityshape/internal/model"

// BuildOptions tunes the report shape
type BuildOptions struct {
	// OmitNotInSchema drops properties without a constraint from the property report.
	// Their statements are still listed in the statement report.
	OmitNotInSchema bool
}

// Build compares an entity against a schema's start shape.
//
// The property report covers the union of constrained properties and the
// properties the entity has claims for. The statement report covers every
// statement of the entity. Property names are left empty; label resolution
// is the caller's job. A missing entity, or one without claims, yields an
// empty comparison.
func Build(schema *model.ShapeSchema, entity *model.Entity, opts BuildOptions) *model.Comparison {
	out := model.NewComparison()
	if entity == nil || len(entity.Claims) == 0 {
		return out
	}

	flat := Flatten(schema)
	constraints, constrained := flat.byProperty()

	for _, p := range constrained {
		c := constraints[p]
		verdict, _ := Aggregate(entity.Claims[p], c, flat.Extra)
		out.Properties[p] = model.PropertyResult{
			Necessity: NecessityOf(c),
			Response:  verdict,
		}
	}

	for _, p := range entityProperties(entity) {
		stmts := entity.Claims[p]
		c, ok := constraints[p]
		if !ok {
			if !opts.OmitNotInSchema && len(stmts) > 0 {
				out.Properties[p] = model.PropertyResult{
					Necessity: model.NecessityAbsent,
					Response:  model.PropertyNotInSchema,
				}
			}
			for _, s := range stmts {
				out.Statements[s.ID] = model.StatementResult{
					Property: p,
					Response: model.StatementNotInSchema,
				}
			}
			continue
		}

		necessity := NecessityOf(c)
		for _, s := range stmts {
			out.Statements[s.ID] = model.StatementResult{
				Property:  p,
				Necessity: necessity,
				Response:  Evaluate(s, c),
			}
		}
	}

	return out
}

// entityProperties returns claim keys in document order, falling back to the
// map when the entity was built without an order
func entityProperties(e *model.Entity) []model.PropertyID {
	if len(e.Properties) == len(e.Claims) {
		return e.Properties
	}
	props := make([]model.PropertyID, 0, len(e.Claims))
	for p := range e.Claims {
		props = append(props, p)
	}
	return props
}
