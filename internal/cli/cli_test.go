package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/entityshape/internal/model"
	"github.com/ppiankov/entityshape/internal/shex"
)

func TestDecodeConfig_Defaults(t *testing.T) {
	v := viper.New()
	registerDefaults(v, model.DefaultConfig())

	cfg, err := decodeConfig(v)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig(), cfg)
}

func TestDecodeConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("wikidata:\n  language: fr\n  timeout: 5s\ncache:\n  enabled: false\n"), 0o644))
	t.Setenv("ENTITYSHAPE_WIKIDATA_BASE_URL", "https://test.wikidata.org")
	t.Setenv("ENTITYSHAPE_CONCURRENCY_BATCH_WORKERS", "9")

	v := viper.New()
	registerDefaults(v, model.DefaultConfig())
	v.SetConfigFile(path)
	v.SetEnvPrefix("ENTITYSHAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	require.NoError(t, v.ReadInConfig())

	cfg, err := decodeConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "fr", cfg.Wikidata.Language)
	assert.Equal(t, 5*time.Second, cfg.Wikidata.Timeout)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "https://test.wikidata.org", cfg.Wikidata.BaseURL)
	assert.Equal(t, 9, cfg.Concurrency.BatchWorkers)
	assert.Equal(t, 49, cfg.Wikidata.LabelBatchSize, "untouched keys keep defaults")
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, writeDefaultConfig(path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# entityshape configuration"))

	var cfg model.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, *model.DefaultConfig(), cfg)

	assert.ErrorContains(t, writeDefaultConfig(path, false), "already exists")
	assert.NoError(t, writeDefaultConfig(path, true))
}

func TestPrintConstraints(t *testing.T) {
	schema, err := shex.DecodeString(`{
	  "type": "Schema",
	  "start": "http://www.wikidata.org/entity/E10#human",
	  "shapes": [{
	    "type": "Shape",
	    "id": "http://www.wikidata.org/entity/E10#human",
	    "extra": ["http://www.wikidata.org/prop/direct/P31"],
	    "expression": {"type": "EachOf", "expressions": [
	      {"type": "TripleConstraint", "predicate": "http://www.wikidata.org/prop/direct/P31",
	       "valueExpr": {"type": "NodeConstraint", "values": ["http://www.wikidata.org/entity/Q5"]}},
	      {"type": "TripleConstraint", "predicate": "http://www.wikidata.org/prop/direct/P569", "min": 0, "max": -1},
	      {"type": "TripleConstraint", "predicate": "http://www.wikidata.org/prop/direct/P570", "min": 0, "max": 0},
	      {"type": "TripleConstraint", "predicate": "http://www.wikidata.org/prop/direct/P31", "min": 0}
	    ]}
	  }]
	}`)
	require.NoError(t, err)

	var buf bytes.Buffer
	printConstraints(&buf, "E10", schema)
	out := buf.String()

	assert.Contains(t, out, "E10: 1 shapes")
	assert.Regexp(t, `P31\s+required\s+\{1,1\}  \[Q5\] EXTRA`, out)
	assert.Regexp(t, `P569\s+optional\s+\{0,\*\}  any value`, out)
	assert.Regexp(t, `P570\s+not allowed\s+\{0,0\}`, out)
	assert.Contains(t, out, "(ignored, earlier constraint wins)")
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "entityshape dev\n", buf.String())
}
