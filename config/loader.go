package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates nesting levels: IISYS_EXECUTOR__TIMEOUT=5s.
const EnvPrefix = "IISYS_"

// FileName is the config file looked up in the home directory.
const FileName = "config.yaml"

// flagKeys maps CLI flags onto config keys where the names differ.
var flagKeys = map[string]string{
	"data-dir":       "data.dir",
	"source":         "data.source",
	"dsn":            "data.dsn",
	"provider":       "ai.provider",
	"timeout":        "executor.timeout",
	"min-confidence": "inference.min_confidence",
}

// DefaultHome returns ~/.iisys, or ./.iisys when the home directory is
// unknown.
func DefaultHome() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".iisys")
	}
	return ".iisys"
}

// Load builds the configuration.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	home := resolveHome(flags)

	if err := k.Load(confmap.Provider(defaultsMap(Default(home)), "."), nil); err != nil {
		return nil, errors.Wrap(err, "load defaults")
	}

	if cfgFile == "" {
		candidate := filepath.Join(home, FileName)
		if _, err := os.Stat(candidate); err == nil {
			cfgFile = candidate
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", cfgFile)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "load env vars")
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, errors.Wrap(err, "load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if cfg.Home == "" {
		cfg.Home = home
	}
	cfg.Data.Dir = cfg.Path(cfg.Data.Dir)
	applyProviderEnv(&cfg.AI)
	return &cfg, nil
}

// resolveHome picks the home directory before anything else is read,
// since the config file lives there.
func resolveHome(flags *pflag.FlagSet) string {
	if flags != nil && flags.Changed("home") {
		if v, _ := flags.GetString("home"); v != "" {
			return v
		}
	}
	if v := os.Getenv(EnvPrefix + "HOME"); v != "" {
		return v
	}
	return DefaultHome()
}

// envKey turns IISYS_FILES__MAPPINGS_USER into files.mappings_user.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func defaultsMap(c *Config) map[string]interface{} {
	return map[string]interface{}{
		"home":                     c.Home,
		"log_level":                c.LogLevel,
		"watch":                    c.Watch,
		"data.source":              c.Data.Source,
		"data.dir":                 c.Data.Dir,
		"data.dsn":                 c.Data.DSN,
		"data.schema":              c.Data.Schema,
		"files.schema":             c.Files.Schema,
		"files.mappings_defaults":  c.Files.MappingsDefaults,
		"files.mappings_user":      c.Files.MappingsUser,
		"files.values":             c.Files.Values,
		"files.templates":          c.Files.Templates,
		"files.template_aliases":   c.Files.TemplateAliases,
		"executor.timeout":         c.Executor.Timeout.String(),
		"executor.preview_limit":   c.Executor.PreviewLimit,
		"fuzzy.column_top_n":       c.Fuzzy.ColumnTopN,
		"fuzzy.value_top_n":        c.Fuzzy.ValueTopN,
		"inference.min_confidence": c.Inference.MinConfidence,
		"ai.provider":              c.AI.Provider,
		"ai.openai.model":          c.AI.OpenAI.Model,
		"ai.anthropic.model":       c.AI.Anthropic.Model,
		"ai.ollama.host":           c.AI.Ollama.Host,
		"ai.ollama.model":          c.AI.Ollama.Model,
		"ai.groq.model":            c.AI.Groq.Model,
	}
}
