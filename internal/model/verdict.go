package model

// Necessity states whether a schema requires, permits or forbids a property
type Necessity string

const (
	NecessityRequired   Necessity = "required"
	NecessityOptional   Necessity = "optional"
	NecessityNotAllowed Necessity = "not allowed"
	NecessityAbsent     Necessity = "absent" // no constraint for the property
)

// StatementVerdict is the outcome of checking one statement against a constraint
type StatementVerdict string

const (
	StatementCorrect     StatementVerdict = "correct"
	StatementPresent     StatementVerdict = "present"
	StatementIncorrect   StatementVerdict = "incorrect"
	StatementNotInSchema StatementVerdict = "not in schema"
)

// PropertyVerdict is the aggregate outcome for all statements of a property
type PropertyVerdict string

const (
	PropertyCorrect     PropertyVerdict = "correct"
	PropertyAllowed     PropertyVerdict = "allowed"
	PropertyPresent     PropertyVerdict = "present"
	PropertyIncorrect   PropertyVerdict = "incorrect"
	PropertyMissing     PropertyVerdict = "missing"
	PropertyTooMany     PropertyVerdict = "too many statements"
	PropertyNotEnough   PropertyVerdict = "not enough correct statements"
	PropertyNotInSchema PropertyVerdict = "not in schema"
)

// IsFailure reports whether the verdict means the entity does not conform
func (v PropertyVerdict) IsFailure() bool {
	switch v {
	case PropertyIncorrect, PropertyMissing, PropertyTooMany, PropertyNotEnough:
		return true
	default:
		return false
	}
}
