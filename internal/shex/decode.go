// Package shex decodes ShExJ, the JSON serialization of Shape Expressions,
// into the closed shape model used by the comparison engine, and loads
// EntitySchema documents from disk or over HTTP.
package shex

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/ppiankov/entityshape/internal/model"
)

// ErrNotObject is returned when the document is not a JSON object at all
var ErrNotObject = errors.New("shexj: document is not a JSON object")

// startShapeID labels an inline start shape that has no id of its own
const startShapeID model.ShapeID = "_:start"

type rawShape struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	ShapeExpr  json.RawMessage `json:"shapeExpr"` // ShExJ 2.1 ShapeDecl wrapper
	Closed     bool            `json:"closed"`
	Extra      []string        `json:"extra"`
	Expression json.RawMessage `json:"expression"`
}

type rawTripleExpr struct {
	Type        string          `json:"type"`
	ID          string          `json:"id"`
	Predicate   string          `json:"predicate"`
	ValueExpr   json.RawMessage `json:"valueExpr"`
	Min         *int            `json:"min"`
	Max         *int            `json:"max"`
	Expressions json.RawMessage `json:"expressions"`
}

type rawNodeConstraint struct {
	Type     string            `json:"type"`
	NodeKind string            `json:"nodeKind"`
	Datatype string            `json:"datatype"`
	Values   []json.RawMessage `json:"values"`
}

// Decode parses a ShExJ document.
//
// Only a document that is not a JSON object is an error. Every other
// structural problem (missing start, malformed shapes, unknown expression
// types) degrades to a schema with fewer or no constraints.
func Decode(data []byte) (*model.ShapeSchema, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		return nil, ErrNotObject
	}

	schema := &model.ShapeSchema{Shapes: make(map[model.ShapeID]model.ShapeDefinition)}

	for _, raw := range decodeShapeList(top["shapes"]) {
		def, ok := decodeShape(raw)
		if !ok || def.ID == "" {
			continue
		}
		schema.Shapes[def.ID] = def
	}

	if start := top["start"]; len(start) > 0 {
		var ref string
		if err := json.Unmarshal(start, &ref); err == nil {
			schema.StartShapeID = model.ShapeID(ref)
		} else if def, ok := decodeShape(start); ok {
			// inline start shape, or a ShapeRef object pointing at a declared shape
			if def.ID != "" {
				if _, declared := schema.Shapes[def.ID]; declared {
					schema.StartShapeID = def.ID
					return schema, nil
				}
			}
			def.ID = startShapeID
			schema.Shapes[startShapeID] = def
			schema.StartShapeID = startShapeID
		}
	}

	return schema, nil
}

// DecodeString is Decode for a string document
func DecodeString(doc string) (*model.ShapeSchema, error) {
	return Decode([]byte(doc))
}

// decodeShapeList accepts the ShExJ array form and the legacy map form
// (label -> shape) of the "shapes" member
func decodeShapeList(data json.RawMessage) []json.RawMessage {
	if len(data) == 0 {
		return nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		return list
	}

	var byLabel map[string]json.RawMessage
	if err := json.Unmarshal(data, &byLabel); err != nil {
		return nil
	}
	out := make([]json.RawMessage, 0, len(byLabel))
	for label, raw := range byLabel {
		var shape map[string]json.RawMessage
		if err := json.Unmarshal(raw, &shape); err != nil {
			continue
		}
		if _, ok := shape["id"]; !ok {
			id, _ := json.Marshal(label)
			shape["id"] = id
		}
		patched, err := json.Marshal(shape)
		if err != nil {
			continue
		}
		out = append(out, patched)
	}
	return out
}

func decodeShape(data json.RawMessage) (model.ShapeDefinition, bool) {
	var raw rawShape
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.ShapeDefinition{}, false
	}

	if raw.Type == "ShapeDecl" && len(raw.ShapeExpr) > 0 {
		inner, ok := decodeShape(raw.ShapeExpr)
		if !ok {
			return model.ShapeDefinition{ID: model.ShapeID(raw.ID)}, true
		}
		inner.ID = model.ShapeID(raw.ID)
		return inner, true
	}

	def := model.ShapeDefinition{
		ID:     model.ShapeID(raw.ID),
		Closed: raw.Closed,
		Extra:  make(map[model.PropertyID]bool, len(raw.Extra)),
	}
	for _, iri := range raw.Extra {
		if p := model.PropertyFromIRI(model.IRI(iri)); p != "" {
			def.Extra[p] = true
		}
	}

	// ShapeAnd/ShapeOr/ShapeNot and NodeConstraint declarations carry no
	// triple expression we evaluate
	if raw.Type != "" && raw.Type != "Shape" {
		return def, true
	}

	def.Expression = decodeTripleExpr(raw.Expression, 0)
	return def, true
}

// decodeTripleExpr returns nil for anything it cannot make sense of
func decodeTripleExpr(data json.RawMessage, depth int) model.TripleExpr {
	if len(data) == 0 || depth > maxDecodeDepth {
		return nil
	}

	var ref string
	if err := json.Unmarshal(data, &ref); err == nil {
		return &model.TripleExprRef{Ref: ref}
	}

	var raw rawTripleExpr
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	switch raw.Type {
	case "EachOf":
		return &model.EachOf{Expressions: decodeTripleExprList(raw.Expressions, depth)}
	case "OneOf":
		return &model.OneOf{Expressions: decodeTripleExprList(raw.Expressions, depth)}
	case "TripleConstraint":
		predicate := model.IRI(raw.Predicate)
		return &model.TripleConstraint{
			ID:        raw.ID,
			Predicate: predicate,
			Property:  model.PropertyFromIRI(predicate),
			ValueExpr: decodeShapeExpr(raw.ValueExpr),
			Min:       raw.Min,
			Max:       raw.Max,
		}
	default:
		return nil
	}
}

const maxDecodeDepth = 64

func decodeTripleExprList(data json.RawMessage, depth int) []model.TripleExpr {
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		return nil
	}
	out := make([]model.TripleExpr, 0, len(list))
	for _, item := range list {
		if expr := decodeTripleExpr(item, depth+1); expr != nil {
			out = append(out, expr)
		}
	}
	return out
}

func decodeShapeExpr(data json.RawMessage) model.ShapeExpr {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var ref string
	if err := json.Unmarshal(data, &ref); err == nil {
		return &model.ShapeRef{Ref: model.ShapeID(ref)}
	}

	var raw rawNodeConstraint
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	if raw.Type != "NodeConstraint" {
		return &model.ShapeRef{Kind: raw.Type}
	}

	nc := &model.NodeConstraint{
		NodeKind: raw.NodeKind,
		Datatype: model.IRI(raw.Datatype),
	}
	if len(raw.Values) > 0 {
		nc.Values = make(map[model.IRI]bool, len(raw.Values))
		for _, v := range raw.Values {
			// IRIs are plain strings; literals, stems and ranges are objects
			var iri string
			if err := json.Unmarshal(v, &iri); err == nil && iri != "" {
				nc.Values[model.IRI(iri)] = true
				continue
			}
			nc.Literals = append(nc.Literals, string(v))
		}
	}
	return nc
}

// ShapeLabel returns a short display name for a shape id:
// "<http://example.org/human>" and "http://example.org/human" both become "human"
func ShapeLabel(id model.ShapeID) string {
	s := strings.Trim(string(id), "<>")
	if i := strings.LastIndexAny(s, "/#"); i >= 0 && i < len(s)-1 {
		s = s[i+1:]
	}
	return strings.TrimPrefix(s, "_:")
}

// Describe summarizes a decoded schema for verbose output
func Describe(s *model.ShapeSchema) string {
	if s == nil {
		return "empty schema"
	}
	return fmt.Sprintf("%d shapes, start %q", len(s.Shapes), ShapeLabel(s.StartShapeID))
}
