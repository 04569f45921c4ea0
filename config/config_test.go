package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("IISYS_HOME", home)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, home, cfg.Home)
	assert.Equal(t, "csv", cfg.Data.Source)
	assert.Equal(t, filepath.Join(home, "data"), cfg.Data.Dir)
	assert.Equal(t, 2*time.Second, cfg.Executor.Timeout)
	assert.Equal(t, 50, cfg.Executor.PreviewLimit)
	assert.Equal(t, 5, cfg.Fuzzy.ColumnTopN)
	assert.Equal(t, 10, cfg.Fuzzy.ValueTopN)
	assert.Equal(t, "placeholder", cfg.AI.Provider)
	assert.Equal(t, filepath.Join(home, "templates.json"), cfg.Path(cfg.Files.Templates))
	assert.Equal(t, "/abs/x.json", cfg.Path("/abs/x.json"))
}

func TestLoadPrecedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("IISYS_HOME", home)

	yml := "log_level: debug\nexecutor:\n  timeout: 5s\n  preview_limit: 20\nfuzzy:\n  value_top_n: 3\nai:\n  provider: ollama\n"
	require.NoError(t, os.WriteFile(filepath.Join(home, FileName), []byte(yml), 0600))

	t.Setenv("IISYS_EXECUTOR__PREVIEW_LIMIT", "30")
	t.Setenv("IISYS_FILES__MAPPINGS_USER", "/tmp/m.json")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("provider", "", "")
	flags.Duration("timeout", 0, "")
	require.NoError(t, flags.Parse([]string{"--provider", "anthropic"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.Executor.Timeout, "unset flag must not override the file")
	assert.Equal(t, 30, cfg.Executor.PreviewLimit, "env overrides file")
	assert.Equal(t, 3, cfg.Fuzzy.ValueTopN)
	assert.Equal(t, "/tmp/m.json", cfg.Files.MappingsUser)
	assert.Equal(t, "anthropic", cfg.AI.Provider, "flag overrides file")
}

func TestLoadExplicitFile(t *testing.T) {
	t.Setenv("IISYS_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data:\n  source: postgres\n  dsn: postgres://localhost/erp\n"), 0600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Data.Source)
	assert.Equal(t, "postgres://localhost/erp", cfg.Data.DSN)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestProviderEnv(t *testing.T) {
	t.Setenv("IISYS_HOME", t.TempDir())
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("OLLAMA_HOST", "http://gpu:11434")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "gsk-test", cfg.AI.Groq.APIKey)
	assert.Equal(t, "http://gpu:11434", cfg.AI.Ollama.Host)
}
