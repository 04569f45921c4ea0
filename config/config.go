// Package config defines the application configuration structures.
//
// Separated from cmd to allow other packages (engine, ai, tui) to
// depend on config without importing Cobra. Loading is layered with
// koanf: defaults, then the YAML file, then IISYS_* env vars, then
// explicitly set flags.
package config

import (
	"path/filepath"
	"time"
)

// Config holds all application settings.
type Config struct {
	Home     string `koanf:"home"`
	LogLevel string `koanf:"log_level"`
	Watch    bool   `koanf:"watch"`

	Data      DataConfig      `koanf:"data"`
	Files     FilesConfig     `koanf:"files"`
	Executor  ExecutorConfig  `koanf:"executor"`
	Fuzzy     FuzzyConfig     `koanf:"fuzzy"`
	Inference InferenceConfig `koanf:"inference"`
	AI        AIConfig        `koanf:"ai"`
}

// DataConfig selects where datasets come from.
type DataConfig struct {
	Source string `koanf:"source"` // "csv" or "postgres"
	Dir    string `koanf:"dir"`
	DSN    string `koanf:"dsn"`
	Schema string `koanf:"schema"`
}

// FilesConfig names the persisted documents. Relative paths are
// resolved against Home.
type FilesConfig struct {
	Schema           string `koanf:"schema"`
	MappingsDefaults string `koanf:"mappings_defaults"`
	MappingsUser     string `koanf:"mappings_user"`
	Values           string `koanf:"values"`
	Templates        string `koanf:"templates"`
	TemplateAliases  string `koanf:"template_aliases"`
}

// ExecutorConfig bounds expression evaluation.
type ExecutorConfig struct {
	Timeout      time.Duration `koanf:"timeout"`
	PreviewLimit int           `koanf:"preview_limit"`
}

// FuzzyConfig caps suggestion lists.
type FuzzyConfig struct {
	ColumnTopN int `koanf:"column_top_n"`
	ValueTopN  int `koanf:"value_top_n"`
}

// InferenceConfig tunes the external template inference fallback.
type InferenceConfig struct {
	// Guesses below this confidence are offered, not executed.
	MinConfidence float64 `koanf:"min_confidence"`
}

// Path resolves p against Home unless it is empty or absolute.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Home, p)
}

// Default returns the built-in configuration rooted at home.
func Default(home string) *Config {
	return &Config{
		Home:     home,
		LogLevel: "info",
		Data:     DataConfig{Source: "csv", Dir: "data", Schema: "public"},
		Files: FilesConfig{
			Schema:           "schema.txt",
			MappingsDefaults: "mappings.default.json",
			MappingsUser:     "mappings.json",
			Values:           "value_aliases.json",
			Templates:        "templates.json",
			TemplateAliases:  "template_aliases.json",
		},
		Executor:  ExecutorConfig{Timeout: 2 * time.Second, PreviewLimit: 50},
		Fuzzy:     FuzzyConfig{ColumnTopN: 5, ValueTopN: 10},
		Inference: InferenceConfig{MinConfidence: 0.6},
		AI:        DefaultAIConfig(),
	}
}
