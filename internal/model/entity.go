package model

import (
	"regexp"
	"strings"
)

// StatementID is a Wikidata statement GUID, e.g. "Q42$F078E5B3-F9A8-480E-B7AC-D97778CBBEF9"
type StatementID string

// EntityIRIPrefix is the concept URI prefix for Wikidata entities
const EntityIRIPrefix = "http://www.wikidata.org/entity/"

// SnakType classifies the main snak of a statement
type SnakType string

const (
	SnakValue     SnakType = "value"
	SnakNoValue   SnakType = "novalue"
	SnakSomeValue SnakType = "somevalue"
)

// Entity is a normalized Wikidata entity: its claims grouped by property
type Entity struct {
	ID         string
	Claims     map[PropertyID][]Statement
	Properties []PropertyID // claim keys in document order
}

// Statement is a single claim on an entity
type Statement struct {
	ID       StatementID
	Property PropertyID
	SnakType SnakType
	ValueIRI IRI    // set only for entity-valued statements
	Datatype string // informational, e.g. "wikibase-item", "quantity"
}

// StatementCount returns the total number of statements across all properties
func (e *Entity) StatementCount() int {
	if e == nil {
		return 0
	}
	n := 0
	for _, stmts := range e.Claims {
		n += len(stmts)
	}
	return n
}

var propertyIDPattern = regexp.MustCompile(`^P[1-9][0-9]*$`)

// PropertyFromIRI extracts the bare property id from a predicate IRI.
// It accepts the direct, statement and entity namespaces
// (".../prop/direct/P31", ".../prop/P31", ".../entity/P31") as well as
// an already bare id. Returns "" when no property id can be found.
func PropertyFromIRI(iri IRI) PropertyID {
	s := string(iri)
	if i := strings.LastIndexAny(s, "/#"); i >= 0 {
		s = s[i+1:]
	}
	if !propertyIDPattern.MatchString(s) {
		return ""
	}
	return PropertyID(s)
}

// EntityIRI returns the concept IRI for an entity id such as "Q5"
func EntityIRI(id string) IRI {
	if id == "" {
		return ""
	}
	return IRI(EntityIRIPrefix + id)
}

// IsPropertyID reports whether s looks like a bare property id
func IsPropertyID(s string) bool {
	return propertyIDPattern.MatchString(s)
}
