// Package wikidata fetches entity and property-label JSON from a Wikibase
// instance and normalizes claims for the comparison engine.
package wikidata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ppiankov/entityshape/internal/model"
)

var (
	// ErrEntityNotFound is returned when the upstream has no such entity
	ErrEntityNotFound = errors.New("entity not found")

	// ErrMalformedEntity is returned when the document is not a JSON object
	ErrMalformedEntity = errors.New("entity document is not a JSON object")
)

// ParseEntity normalizes Special:EntityData JSON into property -> statements.
//
// It accepts both the envelope ({"entities": {"Q42": {...}}}) and a bare
// entity object. When the envelope does not contain id but holds exactly one
// entity (a redirect), that entity is used. An entity that cannot be found
// in the document, or has no claims, yields an entity without claims.
func ParseEntity(data []byte, id string) (*model.Entity, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrMalformedEntity
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, ErrMalformedEntity
	}

	doc := root
	if entities := root.Get("entities"); entities.Exists() {
		doc = pickEntity(entities, id)
	}

	entity := &model.Entity{
		ID:     id,
		Claims: make(map[model.PropertyID][]model.Statement),
	}
	if docID := doc.Get("id").String(); docID != "" {
		entity.ID = docID
	}

	claims := doc.Get("claims")
	if !claims.IsObject() {
		// lexemes served by older Wikibase versions and MediaInfo use "statements"
		claims = doc.Get("statements")
	}
	if !claims.IsObject() {
		return entity, nil
	}

	claims.ForEach(func(key, value gjson.Result) bool {
		prop := model.PropertyID(key.String())
		if !model.IsPropertyID(string(prop)) || !value.IsArray() {
			return true
		}
		var stmts []model.Statement
		for i, raw := range value.Array() {
			stmts = append(stmts, parseStatement(raw, entity.ID, prop, i))
		}
		if len(stmts) == 0 {
			return true
		}
		entity.Claims[prop] = stmts
		entity.Properties = append(entity.Properties, prop)
		return true
	})

	return entity, nil
}

func pickEntity(entities gjson.Result, id string) gjson.Result {
	if id != "" {
		if e := entities.Get(gjson.Escape(id)); e.Exists() {
			return e
		}
		if e := entities.Get(gjson.Escape(strings.ToUpper(id))); e.Exists() {
			return e
		}
	}
	all := entities.Map()
	if len(all) == 1 {
		for _, e := range all {
			return e
		}
	}
	return gjson.Result{}
}

func parseStatement(raw gjson.Result, entityID string, prop model.PropertyID, index int) model.Statement {
	snak := raw.Get("mainsnak")
	stmt := model.Statement{
		ID:       model.StatementID(raw.Get("id").String()),
		Property: prop,
		SnakType: model.SnakType(snak.Get("snaktype").String()),
		Datatype: snak.Get("datatype").String(),
	}
	if stmt.ID == "" {
		stmt.ID = model.StatementID(fmt.Sprintf("%s$%s-%d", entityID, prop, index))
	}
	if stmt.SnakType == "" {
		stmt.SnakType = model.SnakValue
	}

	if stmt.SnakType == model.SnakValue {
		value := snak.Get("datavalue.value")
		if value.IsObject() {
			stmt.ValueIRI = model.EntityIRI(entityRef(value))
		}
	}
	return stmt
}

var entityTypePrefix = map[string]string{
	"item":     "Q",
	"property": "P",
	"lexeme":   "L",
}

// entityRef reads a wikibase-entityid value. Old dumps carry only
// entity-type and numeric-id.
func entityRef(value gjson.Result) string {
	if id := value.Get("id").String(); id != "" {
		return id
	}
	numeric := value.Get("numeric-id")
	prefix, ok := entityTypePrefix[value.Get("entity-type").String()]
	if !numeric.Exists() || !ok {
		return ""
	}
	return fmt.Sprintf("%s%d", prefix, numeric.Int())
}
