package compare

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/entityshape/internal/model"
)

const (
	p31 = "http://www.wikidata.org/prop/direct/P31"
	q2  = "http://www.wikidata.org/entity/Q2"
	q5  = "http://www.wikidata.org/entity/Q5"
)

func constraint(pred string, min, max *int, values ...string) *model.TripleConstraint {
	c := &model.TripleConstraint{
		Predicate: model.IRI(pred),
		Property:  model.PropertyFromIRI(model.IRI(pred)),
		Min:       min,
		Max:       max,
	}
	if len(values) > 0 {
		nc := &model.NodeConstraint{Values: map[model.IRI]bool{}}
		for _, v := range values {
			nc.Values[model.IRI(v)] = true
		}
		c.ValueExpr = nc
	}
	return c
}

func itemStatement(id string, prop model.PropertyID, value string) model.Statement {
	return model.Statement{
		ID:       model.StatementID(id),
		Property: prop,
		SnakType: model.SnakValue,
		ValueIRI: model.IRI(value),
		Datatype: "wikibase-item",
	}
}

func schemaOf(extra []model.PropertyID, exprs ...model.TripleExpr) *model.ShapeSchema {
	shape := model.ShapeDefinition{
		ID:         "start",
		Extra:      map[model.PropertyID]bool{},
		Expression: &model.EachOf{Expressions: exprs},
	}
	for _, p := range extra {
		shape.Extra[p] = true
	}
	return &model.ShapeSchema{
		StartShapeID: "start",
		Shapes:       map[model.ShapeID]model.ShapeDefinition{"start": shape},
	}
}

func entityOf(stmts ...model.Statement) *model.Entity {
	e := &model.Entity{ID: "Q1", Claims: map[model.PropertyID][]model.Statement{}}
	for _, s := range stmts {
		if _, ok := e.Claims[s.Property]; !ok {
			e.Properties = append(e.Properties, s.Property)
		}
		e.Claims[s.Property] = append(e.Claims[s.Property], s)
	}
	return e
}

func TestNecessity(t *testing.T) {
	tests := []struct {
		name     string
		min, max *int
		want     model.Necessity
	}{
		{"default cardinality", nil, nil, model.NecessityRequired},
		{"zero zero", model.IntPtr(0), model.IntPtr(0), model.NecessityNotAllowed},
		{"zero or one", model.IntPtr(0), model.IntPtr(1), model.NecessityOptional},
		{"zero or more", model.IntPtr(0), model.IntPtr(model.Unbounded), model.NecessityOptional},
		{"zero min default max", model.IntPtr(0), nil, model.NecessityOptional},
		{"one or more", model.IntPtr(1), model.IntPtr(model.Unbounded), model.NecessityRequired},
		{"exactly two", model.IntPtr(2), model.IntPtr(2), model.NecessityRequired},
		{"absent min zero max", nil, model.IntPtr(0), model.NecessityRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Necessity(tt.min, tt.max))
		})
	}

	assert.Equal(t, model.NecessityAbsent, NecessityOf(nil))
}

func TestEvaluate(t *testing.T) {
	withSet := constraint(p31, nil, nil, q5)

	tests := []struct {
		name string
		stmt model.Statement
		c    *model.TripleConstraint
		want model.StatementVerdict
	}{
		{"no value expression", itemStatement("s1", "P31", q2), constraint(p31, nil, nil), model.StatementPresent},
		{"value in set", itemStatement("s1", "P31", q5), withSet, model.StatementCorrect},
		{"value not in set", itemStatement("s1", "P31", q2), withSet, model.StatementIncorrect},
		{"somevalue snak", model.Statement{ID: "s1", Property: "P31", SnakType: model.SnakSomeValue}, withSet, model.StatementPresent},
		{"novalue snak", model.Statement{ID: "s1", Property: "P31", SnakType: model.SnakNoValue}, withSet, model.StatementPresent},
		{"quantity has no IRI", model.Statement{ID: "s1", Property: "P31", SnakType: model.SnakValue, Datatype: "quantity"}, withSet, model.StatementPresent},
		{"shape reference", itemStatement("s1", "P31", q2), &model.TripleConstraint{Property: "P31", ValueExpr: &model.ShapeRef{Ref: "human"}}, model.StatementPresent},
		{"empty value set", itemStatement("s1", "P31", q2), &model.TripleConstraint{Property: "P31", ValueExpr: &model.NodeConstraint{Datatype: "http://www.w3.org/2001/XMLSchema#string"}}, model.StatementPresent},
		{"nil constraint", itemStatement("s1", "P31", q2), nil, model.StatementPresent},
		{"literal-only value set", itemStatement("s1", "P31", q2), &model.TripleConstraint{Property: "P31", ValueExpr: &model.NodeConstraint{Literals: []string{`{"value":"foo"}`}}}, model.StatementIncorrect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.stmt, tt.c))
		})
	}
}

func TestFlatten(t *testing.T) {
	a := constraint("http://www.wikidata.org/prop/direct/P1", nil, nil)
	b := constraint("http://www.wikidata.org/prop/direct/P2", nil, nil)
	c := constraint("http://www.wikidata.org/prop/direct/P3", nil, nil)
	d := constraint("http://www.wikidata.org/prop/direct/P4", nil, nil)

	schema := schemaOf([]model.PropertyID{"P2"},
		a,
		&model.EachOf{Expressions: []model.TripleExpr{b, &model.EachOf{Expressions: []model.TripleExpr{c}}}},
		&model.OneOf{Expressions: []model.TripleExpr{d}},
		&model.TripleExprRef{Ref: "elsewhere"},
	)

	flat := Flatten(schema)
	require.Len(t, flat.Constraints, 3)
	assert.Same(t, a, flat.Constraints[0])
	assert.Same(t, b, flat.Constraints[1])
	assert.Same(t, c, flat.Constraints[2])
	assert.Equal(t, model.ShapeID("start"), flat.Shape)
	assert.True(t, flat.Extra["P2"])

	got, ok := flat.ConstraintFor("P3")
	require.True(t, ok)
	assert.Same(t, c, got)
	_, ok = flat.ConstraintFor("P4")
	assert.False(t, ok, "OneOf members are not evaluated")
}

func TestFlatten_Degrades(t *testing.T) {
	tests := []struct {
		name   string
		schema *model.ShapeSchema
	}{
		{"nil schema", nil},
		{"no start", &model.ShapeSchema{Shapes: map[model.ShapeID]model.ShapeDefinition{"a": {ID: "a"}}}},
		{"unresolvable start", &model.ShapeSchema{StartShapeID: "missing"}},
		{"no expression", &model.ShapeSchema{StartShapeID: "a", Shapes: map[model.ShapeID]model.ShapeDefinition{"a": {ID: "a"}}}},
		{"empty each of", schemaOf(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flat := Flatten(tt.schema)
			assert.Empty(t, flat.Constraints)
		})
	}
}

func TestFlatten_BareConstraint(t *testing.T) {
	c := constraint(p31, nil, nil)
	schema := &model.ShapeSchema{
		StartShapeID: "s",
		Shapes: map[model.ShapeID]model.ShapeDefinition{
			"s": {ID: "s", Expression: c},
		},
	}
	flat := Flatten(schema)
	require.Len(t, flat.Constraints, 1)
	assert.Same(t, c, flat.Constraints[0])
}

func TestFlatten_DepthGuard(t *testing.T) {
	leaf := constraint(p31, nil, nil)
	var expr model.TripleExpr = leaf
	for i := 0; i < maxFlattenDepth+10; i++ {
		expr = &model.EachOf{Expressions: []model.TripleExpr{expr}}
	}
	schema := &model.ShapeSchema{
		StartShapeID: "s",
		Shapes:       map[model.ShapeID]model.ShapeDefinition{"s": {ID: "s", Expression: expr}},
	}
	assert.Empty(t, Flatten(schema).Constraints)
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name  string
		stmts []model.Statement
		c     *model.TripleConstraint
		extra []model.PropertyID
		want  model.PropertyVerdict
	}{
		{
			name:  "exactly two correct",
			stmts: []model.Statement{itemStatement("a", "P31", q5), itemStatement("b", "P31", q5)},
			c:     constraint(p31, model.IntPtr(2), model.IntPtr(2), q5),
			want:  model.PropertyCorrect,
		},
		{
			name:  "one of two required",
			stmts: []model.Statement{itemStatement("a", "P31", q5)},
			c:     constraint(p31, model.IntPtr(2), model.IntPtr(2), q5),
			want:  model.PropertyNotEnough,
		},
		{
			name:  "too many",
			stmts: []model.Statement{itemStatement("a", "P31", q5), itemStatement("b", "P31", q5), itemStatement("c", "P31", q5)},
			c:     constraint(p31, nil, nil, q5),
			want:  model.PropertyTooMany,
		},
		{
			name:  "too many tolerated by extra",
			stmts: []model.Statement{itemStatement("a", "P31", q5), itemStatement("b", "P31", q2), itemStatement("c", "P31", q5)},
			c:     constraint(p31, nil, model.IntPtr(1)),
			extra: []model.PropertyID{"P31"},
			want:  model.PropertyCorrect,
		},
		{
			name:  "extra never rescues not enough",
			stmts: []model.Statement{itemStatement("a", "P31", q5)},
			c:     constraint(p31, model.IntPtr(2), model.IntPtr(3), q5),
			extra: []model.PropertyID{"P31"},
			want:  model.PropertyNotEnough,
		},
		{
			name:  "incorrect values do not count",
			stmts: []model.Statement{itemStatement("a", "P31", q2)},
			c:     constraint(p31, nil, nil, q5),
			want:  model.PropertyNotEnough,
		},
		{
			name:  "optional with only incorrect values",
			stmts: []model.Statement{itemStatement("a", "P31", q2)},
			c:     constraint(p31, model.IntPtr(0), model.IntPtr(1), q5),
			want:  model.PropertyIncorrect,
		},
		{
			name:  "present without value set",
			stmts: []model.Statement{itemStatement("a", "P31", q2)},
			c:     constraint(p31, nil, nil),
			want:  model.PropertyPresent,
		},
		{
			name:  "correct outranks present",
			stmts: []model.Statement{itemStatement("a", "P31", q5), {ID: "b", Property: "P31", SnakType: model.SnakSomeValue}},
			c:     constraint(p31, nil, model.IntPtr(model.Unbounded), q5),
			want:  model.PropertyCorrect,
		},
		{
			name:  "no statements required",
			stmts: nil,
			c:     constraint(p31, nil, nil),
			want:  model.PropertyMissing,
		},
		{
			name:  "no statements optional",
			stmts: nil,
			c:     constraint(p31, model.IntPtr(0), model.IntPtr(model.Unbounded)),
			want:  model.PropertyMissing,
		},
		{
			name:  "no statements forbidden",
			stmts: nil,
			c:     constraint(p31, model.IntPtr(0), model.IntPtr(0)),
			want:  model.PropertyAllowed,
		},
		{
			name:  "forbidden with matching value",
			stmts: []model.Statement{itemStatement("a", "P31", q5)},
			c:     constraint(p31, model.IntPtr(0), model.IntPtr(0), q5),
			extra: []model.PropertyID{"P31"},
			want:  model.PropertyTooMany,
		},
		{
			name:  "no constraint",
			stmts: []model.Statement{itemStatement("a", "P31", q5)},
			c:     nil,
			want:  model.PropertyNotInSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extra := map[model.PropertyID]bool{}
			for _, p := range tt.extra {
				extra[p] = true
			}
			got, verdicts := Aggregate(tt.stmts, tt.c, extra)
			assert.Equal(t, tt.want, got)
			assert.Len(t, verdicts, len(tt.stmts))
		})
	}
}

func TestAggregate_UnboundedNeverTooMany(t *testing.T) {
	c := constraint(p31, model.IntPtr(1), model.IntPtr(model.Unbounded), q5)
	for n := 1; n <= 50; n++ {
		stmts := make([]model.Statement, n)
		for i := range stmts {
			stmts[i] = itemStatement(fmt.Sprintf("s%d", i), "P31", q5)
		}
		got, _ := Aggregate(stmts, c, nil)
		require.Equal(t, model.PropertyCorrect, got, "n=%d", n)
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	stmts := []model.Statement{itemStatement("a", "P31", q5), itemStatement("b", "P31", q2)}
	c := constraint(p31, model.IntPtr(1), model.IntPtr(1), q5)

	first, firstVerdicts := Aggregate(stmts, c, nil)
	second, secondVerdicts := Aggregate(stmts, c, nil)
	assert.Equal(t, first, second)
	assert.Equal(t, firstVerdicts, secondVerdicts)
	assert.Equal(t, []model.StatementVerdict{model.StatementCorrect, model.StatementIncorrect}, firstVerdicts)
}
