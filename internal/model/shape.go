package model

// ShapeID is the label of a shape inside a schema (an IRI or a blank node label)
type ShapeID string

// PropertyID is a bare Wikidata property id such as "P31"
type PropertyID string

// IRI is an absolute IRI, e.g. "http://www.wikidata.org/entity/Q5"
type IRI string

// Default cardinality of a triple constraint when min/max are omitted
const (
	DefaultMin = 1
	DefaultMax = 1
	Unbounded  = -1
)

// ShapeSchema is the decoded form of a ShExJ document
type ShapeSchema struct {
	StartShapeID ShapeID
	Shapes       map[ShapeID]ShapeDefinition
}

// Start returns the start shape, if the schema has one that resolves
func (s *ShapeSchema) Start() (ShapeDefinition, bool) {
	if s == nil || s.StartShapeID == "" {
		return ShapeDefinition{}, false
	}
	def, ok := s.Shapes[s.StartShapeID]
	return def, ok
}

// ShapeDefinition is a single shape declaration
type ShapeDefinition struct {
	ID         ShapeID
	Extra      map[PropertyID]bool // predicates exempted from cardinality failure
	Closed     bool                // carried, never enforced
	Expression TripleExpr          // nil when the shape has no triple expression
}

// IsExtra reports whether the predicate was declared EXTRA on the shape
func (d ShapeDefinition) IsExtra(p PropertyID) bool {
	return d.Extra[p]
}

// TripleExpr is the closed union of triple expression variants.
// Implementations: *EachOf, *OneOf, *TripleConstraint, *TripleExprRef.
type TripleExpr interface {
	tripleExpr()
}

// EachOf is a conjunction of triple expressions
type EachOf struct {
	Expressions []TripleExpr
}

// OneOf is an alternation of triple expressions. It is decoded but never evaluated.
type OneOf struct {
	Expressions []TripleExpr
}

// TripleExprRef references a triple expression declared elsewhere. Never resolved.
type TripleExprRef struct {
	Ref string
}

// TripleConstraint constrains the cardinality and values of one predicate
type TripleConstraint struct {
	ID        string
	Predicate IRI
	Property  PropertyID // Predicate normalized to a bare property id
	ValueExpr ShapeExpr  // nil when any value is accepted
	Min       *int
	Max       *int
}

func (*EachOf) tripleExpr()           {}
func (*OneOf) tripleExpr()            {}
func (*TripleExprRef) tripleExpr()    {}
func (*TripleConstraint) tripleExpr() {}

// MinCount returns the effective minimum cardinality
func (c *TripleConstraint) MinCount() int {
	if c.Min == nil {
		return DefaultMin
	}
	return *c.Min
}

// MaxCount returns the effective maximum cardinality; Unbounded means no limit
func (c *TripleConstraint) MaxCount() int {
	if c.Max == nil {
		return DefaultMax
	}
	return *c.Max
}

// ShapeExpr is the closed union of value expressions a triple constraint can carry.
// Implementations: *NodeConstraint, *ShapeRef.
type ShapeExpr interface {
	shapeExpr()
}

// NodeConstraint restricts a value. Only Values is evaluated; NodeKind,
// Datatype and facets are kept for display.
type NodeConstraint struct {
	Values   map[IRI]bool
	Literals []string // non-IRI value-set entries (literals, stems, ranges) as raw JSON
	NodeKind string
	Datatype IRI
}

// ShapeRef stands for any non-node-constraint value expression: a reference
// to another shape or an inline shape/combinator. It is never validated.
type ShapeRef struct {
	Ref  ShapeID
	Kind string // ShExJ type of the inline expression, empty for a plain reference
}

func (*NodeConstraint) shapeExpr() {}
func (*ShapeRef) shapeExpr()       {}

// HasValueSet reports whether the constraint restricts values at all.
// Literal entries count even though no entity IRI can ever match them.
func (n *NodeConstraint) HasValueSet() bool {
	return len(n.Values) > 0 || len(n.Literals) > 0
}

// HasValue reports whether iri is a member of the value set
func (n *NodeConstraint) HasValue(iri IRI) bool {
	return n.Values[iri]
}

// IntPtr is a helper for building constraints in code and tests
func IntPtr(v int) *int {
	return &v
}
