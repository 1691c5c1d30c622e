package shex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ppiankov/entityshape/internal/cache"
	"github.com/ppiankov/entityshape/internal/model"
)

const humanSchema = `{
  "type": "Schema",
  "@context": "http://www.w3.org/ns/shex.jsonld",
  "start": "http://www.wikidata.org/entity/E10#human",
  "shapes": [
    {
      "type": "Shape",
      "id": "http://www.wikidata.org/entity/E10#human",
      "extra": ["http://www.wikidata.org/prop/direct/P31"],
      "expression": {
        "type": "EachOf",
        "expressions": [
          {
            "type": "TripleConstraint",
            "predicate": "http://www.wikidata.org/prop/direct/P31",
            "valueExpr": {"type": "NodeConstraint", "values": ["http://www.wikidata.org/entity/Q5"]}
          },
          {
            "type": "TripleConstraint",
            "predicate": "http://www.wikidata.org/prop/direct/P21",
            "valueExpr": {
              "type": "NodeConstraint",
              "values": [
                "http://www.wikidata.org/entity/Q6581097",
                {"type": "IriStem", "stem": "http://www.wikidata.org/entity/"},
                {"value": "literal"}
              ]
            },
            "min": 0,
            "max": 1
          },
          {
            "type": "EachOf",
            "expressions": [
              {"type": "TripleConstraint", "predicate": "http://www.wikidata.org/prop/direct/P569", "valueExpr": {"type": "NodeConstraint", "datatype": "http://www.w3.org/2001/XMLSchema#dateTime", "mininclusive": 0}, "min": 0, "max": -1},
              {"type": "TripleConstraint", "predicate": "http://www.wikidata.org/prop/direct/P19", "valueExpr": "http://www.wikidata.org/entity/E10#place"}
            ]
          },
          {"type": "OneOf", "expressions": [{"type": "TripleConstraint", "predicate": "http://www.wikidata.org/prop/direct/P735"}]},
          "_:referenced",
          {"type": "TripleConstraint", "predicate": "http://www.w3.org/2000/01/rdf-schema#label"}
        ]
      }
    },
    {
      "type": "Shape",
      "id": "http://www.wikidata.org/entity/E10#place",
      "expression": {"type": "TripleConstraint", "predicate": "http://www.wikidata.org/prop/direct/P17"}
    }
  ]
}`

func TestDecode_Schema(t *testing.T) {
	schema, err := DecodeString(humanSchema)
	require.NoError(t, err)

	assert.Equal(t, model.ShapeID("http://www.wikidata.org/entity/E10#human"), schema.StartShapeID)
	require.Len(t, schema.Shapes, 2)

	start, ok := schema.Start()
	require.True(t, ok)
	assert.True(t, start.IsExtra("P31"))

	each, ok := start.Expression.(*model.EachOf)
	require.True(t, ok)
	require.Len(t, each.Expressions, 6)

	p31 := each.Expressions[0].(*model.TripleConstraint)
	assert.Equal(t, model.PropertyID("P31"), p31.Property)
	assert.Nil(t, p31.Min)
	assert.Equal(t, 1, p31.MinCount())
	assert.Equal(t, 1, p31.MaxCount())
	nc := p31.ValueExpr.(*model.NodeConstraint)
	assert.True(t, nc.HasValue("http://www.wikidata.org/entity/Q5"))

	p21 := each.Expressions[1].(*model.TripleConstraint)
	assert.Equal(t, 0, p21.MinCount())
	assert.Equal(t, 1, p21.MaxCount())
	assert.Len(t, p21.ValueExpr.(*model.NodeConstraint).Values, 1, "stems and literals are not IRI values")
	assert.Len(t, p21.ValueExpr.(*model.NodeConstraint).Literals, 2)

	nested := each.Expressions[2].(*model.EachOf)
	p569 := nested.Expressions[0].(*model.TripleConstraint)
	assert.Equal(t, model.Unbounded, p569.MaxCount())
	assert.Empty(t, p569.ValueExpr.(*model.NodeConstraint).Values)
	p19 := nested.Expressions[1].(*model.TripleConstraint)
	assert.Equal(t, &model.ShapeRef{Ref: "http://www.wikidata.org/entity/E10#place"}, p19.ValueExpr)

	assert.IsType(t, &model.OneOf{}, each.Expressions[3])
	assert.Equal(t, &model.TripleExprRef{Ref: "_:referenced"}, each.Expressions[4])
	assert.Equal(t, model.PropertyID(""), each.Expressions[5].(*model.TripleConstraint).Property)
}

func TestDecode_ShapeDecl(t *testing.T) {
	doc := `{
	  "type": "Schema",
	  "start": "http://example.org/s",
	  "shapes": [{
	    "type": "ShapeDecl",
	    "id": "http://example.org/s",
	    "shapeExpr": {
	      "type": "Shape",
	      "closed": true,
	      "expression": {"type": "TripleConstraint", "predicate": "http://www.wikidata.org/prop/direct/P31"}
	    }
	  }]
	}`
	schema, err := DecodeString(doc)
	require.NoError(t, err)

	start, ok := schema.Start()
	require.True(t, ok)
	assert.True(t, start.Closed)
	assert.Equal(t, model.ShapeID("http://example.org/s"), start.ID)
	assert.IsType(t, &model.TripleConstraint{}, start.Expression)
}

func TestDecode_InlineStart(t *testing.T) {
	doc := `{"start": {"type": "Shape", "expression": {"type": "TripleConstraint", "predicate": "http://www.wikidata.org/prop/direct/P31"}}}`
	schema, err := DecodeString(doc)
	require.NoError(t, err)

	start, ok := schema.Start()
	require.True(t, ok)
	assert.Equal(t, startShapeID, start.ID)
}

func TestDecode_LegacyShapeMap(t *testing.T) {
	doc := `{"start": "human", "shapes": {"human": {"type": "Shape", "expression": {"type": "TripleConstraint", "predicate": "http://www.wikidata.org/prop/direct/P31"}}}}`
	schema, err := DecodeString(doc)
	require.NoError(t, err)

	_, ok := schema.Start()
	assert.True(t, ok)
}

func TestDecode_Degrades(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty object", `{}`},
		{"no start", `{"shapes": [{"type": "Shape", "id": "a"}]}`},
		{"shapes not a list", `{"start": "a", "shapes": 42}`},
		{"missing expression", `{"start": "a", "shapes": [{"type": "Shape", "id": "a"}]}`},
		{"expressions not a list", `{"start": "a", "shapes": [{"type": "Shape", "id": "a", "expression": {"type": "EachOf", "expressions": "nope"}}]}`},
		{"unknown expression type", `{"start": "a", "shapes": [{"type": "Shape", "id": "a", "expression": {"type": "Mystery"}}]}`},
		{"shape and", `{"start": "a", "shapes": [{"type": "ShapeAnd", "id": "a", "shapeExprs": []}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema, err := DecodeString(tt.doc)
			require.NoError(t, err)
			if start, ok := schema.Start(); ok {
				if each, isEach := start.Expression.(*model.EachOf); isEach {
					assert.Empty(t, each.Expressions)
				} else {
					assert.Nil(t, start.Expression)
				}
			}
		})
	}
}

func TestDecode_LiteralOnlyValueSet(t *testing.T) {
	schema, err := DecodeString(`{"start": "s", "shapes": [{"id": "s", "type": "Shape", "expression":
		{"type": "TripleConstraint", "predicate": "http://www.wikidata.org/prop/direct/P31",
		 "valueExpr": {"type": "NodeConstraint", "values": [{"value": "foo"}]}}}]}`)
	require.NoError(t, err)

	start, ok := schema.Start()
	require.True(t, ok)
	nc := start.Expression.(*model.TripleConstraint).ValueExpr.(*model.NodeConstraint)
	assert.Empty(t, nc.Values)
	assert.True(t, nc.HasValueSet(), "a literal-only set still restricts values")
}

func TestDecode_NotObject(t *testing.T) {
	for _, doc := range []string{`[]`, `"schema"`, `null`, `not json`} {
		_, err := DecodeString(doc)
		assert.ErrorIs(t, err, ErrNotObject, doc)
	}
}

func TestShapeLabel(t *testing.T) {
	assert.Equal(t, "human", ShapeLabel("http://www.wikidata.org/entity/E10#human"))
	assert.Equal(t, "human", ShapeLabel("<http://example.org/human>"))
	assert.Equal(t, "start", ShapeLabel(startShapeID))
	assert.Equal(t, "", ShapeLabel(""))
}

func TestStore_LoadFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "E10.json"), []byte(humanSchema), 0o644))

	store := NewStore(model.SchemaConfig{Dir: dir}, nil, "test-agent", nil, 0, nil)
	schema, err := store.Load(context.Background(), "E10")
	require.NoError(t, err)
	assert.Len(t, schema.Shapes, 2)

	_, err = store.Load(context.Background(), "E11")
	assert.ErrorIs(t, err, ErrSchemaNotFound)

	_, err = store.Load(context.Background(), "../etc/passwd")
	assert.Error(t, err)
}

func TestStore_LoadFromURLWithCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("expected user agent to be set, got %q", r.Header.Get("User-Agent"))
		}
		if r.URL.Path == "/schemas/E404.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(humanSchema))
	}))
	defer server.Close()

	c := cache.NewMemoryCache(time.Minute, time.Minute)
	store := NewStore(model.SchemaConfig{URLTemplate: server.URL + "/schemas/%s.json"}, server.Client(), "test-agent", c, time.Minute, nil)

	for i := 0; i < 3; i++ {
		schema, err := store.Load(context.Background(), "E10")
		require.NoError(t, err)
		assert.Len(t, schema.Shapes, 2)
	}
	assert.Equal(t, int32(1), hits.Load(), "expected later loads to be served from cache")

	_, err := store.Load(context.Background(), "E404")
	assert.True(t, errors.Is(err, ErrSchemaNotFound))
}

func TestStore_URLTemplateWithoutPlaceholder(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(humanSchema))
	}))
	defer server.Close()

	store := NewStore(model.SchemaConfig{URLTemplate: server.URL + "/schemas/E10.json"}, server.Client(), "test-agent", nil, 0, nil)
	_, err := store.Raw(context.Background(), "E10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "placeholder")
	assert.Equal(t, int32(0), hits.Load())
}

type failingCache struct{ cache.Nop }

func (failingCache) Set(string, []byte, time.Duration) error {
	return errors.New("disk full")
}

func TestStore_CacheWriteFailureIsLogged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(humanSchema))
	}))
	defer server.Close()

	core, logs := observer.New(zap.WarnLevel)
	store := NewStore(model.SchemaConfig{URLTemplate: server.URL + "/%s.json"}, server.Client(), "test-agent", failingCache{}, time.Minute, zap.New(core))

	_, err := store.Load(context.Background(), "E10")
	require.NoError(t, err, "a cache failure does not fail the load")

	entries := logs.FilterMessage("cache write failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "E10", entries[0].ContextMap()["schema"])
}
