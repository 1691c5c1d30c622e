package compare

import "github.com/ppiankov/entityshape/internal/model"

// Necessity derives whether a property is required, optional or forbidden
// from a constraint's cardinality. Absent bounds take the ShEx default {1,1}.
//
//	{0,0}       not allowed
//	{0,n|*}     optional
//	anything    required
func Necessity(min, max *int) model.Necessity {
	if min == nil || *min != 0 {
		return model.NecessityRequired
	}
	if max != nil && *max == 0 {
		return model.NecessityNotAllowed
	}
	return model.NecessityOptional
}

// NecessityOf is Necessity for a possibly missing constraint
func NecessityOf(c *model.TripleConstraint) model.Necessity {
	if c == nil {
		return model.NecessityAbsent
	}
	return Necessity(c.Min, c.Max)
}
