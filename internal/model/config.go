package model

import "time"

// Config holds all runtime settings. Field tags serve both viper (mapstructure)
// and `config show` / `config init` (yaml).
type Config struct {
	Wikidata    WikidataConfig    `mapstructure:"wikidata" yaml:"wikidata"`
	Schemas     SchemaConfig      `mapstructure:"schemas" yaml:"schemas"`
	Cache       CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency" yaml:"concurrency"`
	HTTP        HTTPConfig        `mapstructure:"http" yaml:"http"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Output      OutputConfig      `mapstructure:"output" yaml:"output"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

// WikidataConfig configures entity and label lookups
type WikidataConfig struct {
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Language          string        `mapstructure:"language" yaml:"language"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	RespectRobots     bool          `mapstructure:"respect_robots" yaml:"respect_robots"`
	LabelBatchSize    int           `mapstructure:"label_batch_size" yaml:"label_batch_size"` // wbgetentities accepts at most 50
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

// SchemaConfig says where ShExJ documents are loaded from
type SchemaConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir"`                   // {dir}/{id}.json
	URLTemplate string `mapstructure:"url_template" yaml:"url_template"` // fmt template with one %s for the schema id
}

// CacheConfig configures the layered response cache
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	Dir       string        `mapstructure:"dir" yaml:"dir"`
	MemoryTTL time.Duration `mapstructure:"memory_ttl" yaml:"memory_ttl"`
	DiskTTL   time.Duration `mapstructure:"disk_ttl" yaml:"disk_ttl"`
	LabelTTL  time.Duration `mapstructure:"label_ttl" yaml:"label_ttl"`
}

// ConcurrencyConfig bounds the worker pools
type ConcurrencyConfig struct {
	BatchWorkers  int `mapstructure:"batch_workers" yaml:"batch_workers"`
	SchemaWorkers int `mapstructure:"schema_workers" yaml:"schema_workers"`
}

// HTTPConfig holds outbound proxy settings
type HTTPConfig struct {
	HTTPProxy  string `mapstructure:"http_proxy" yaml:"http_proxy"`
	HTTPSProxy string `mapstructure:"https_proxy" yaml:"https_proxy"`
	NoProxy    string `mapstructure:"no_proxy" yaml:"no_proxy"`
}

// ServerConfig configures `entityshape serve`
type ServerConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Verbose         bool `mapstructure:"verbose" yaml:"verbose"`
	OmitNotInSchema bool `mapstructure:"omit_not_in_schema" yaml:"omit_not_in_schema"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"` // debug, info, warn, error
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Wikidata: WikidataConfig{
			BaseURL:           "https://www.wikidata.org",
			UserAgent:         "entityshape/0.2 (+https://github.com/ppiankov/entityshape)",
			Timeout:           30 * time.Second,
			Language:          "en",
			RequestsPerSecond: 5,
			Burst:             5,
			RespectRobots:     false,
			LabelBatchSize:    49,
			MaxBodyBytes:      20_000_000,
		},
		Schemas: SchemaConfig{
			Dir:         "",
			URLTemplate: "",
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       "",
			MemoryTTL: 10 * time.Minute,
			DiskTTL:   24 * time.Hour,
			LabelTTL:  24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			BatchWorkers:  4,
			SchemaWorkers: 4,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Output: OutputConfig{
			Verbose:         false,
			OmitNotInSchema: false,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
