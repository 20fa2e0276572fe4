package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "data/Mall_Customers.csv", cfg.Dataset.Path)
	assert.Equal(t, DefaultDatasetURL, cfg.Dataset.URL)
	assert.Equal(t, 30*time.Second, cfg.Dataset.Timeout())
	assert.Equal(t, 2, cfg.Clustering.MinK)
	assert.Equal(t, 10, cfg.Clustering.MaxK)
	assert.Equal(t, 0, cfg.Clustering.K)
	assert.Equal(t, int64(42), cfg.Clustering.Seed)
	assert.Equal(t, 10, cfg.Clustering.Restarts)
	assert.Equal(t, 0.5, cfg.DBSCAN.Eps)
	assert.Equal(t, 5, cfg.DBSCAN.MinSamples)
	assert.Equal(t, "output", cfg.Output.Directory)
	assert.False(t, cfg.Store.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_ConfigFileAndEnv(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "segmenter.yaml")
	content := `
clustering:
  min_k: 3
  max_k: 8
  seed: 7
dbscan:
  eps: 0.6
  min_samples: 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATASET_PATH", "customers.csv")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.App.ConfigFile)
	assert.Equal(t, 3, cfg.Clustering.MinK)
	assert.Equal(t, 8, cfg.Clustering.MaxK)
	assert.Equal(t, int64(7), cfg.Clustering.Seed)
	assert.Equal(t, 0.6, cfg.DBSCAN.Eps)
	assert.Equal(t, 4, cfg.DBSCAN.MinSamples)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "customers.csv", cfg.Dataset.Path)
}

func TestLoad_ExplicitFlagBeatsEnvAlias(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	chdir(t, t.TempDir())
	t.Setenv("DATASET_PATH", "from-env.csv")
	t.Setenv("CUSTOMERS_CSV", "from-alias.csv")

	flags := pflag.NewFlagSet("analyze", pflag.ContinueOnError)
	flags.String("input", "", "")
	require.NoError(t, viper.BindPFlag("dataset.path", flags.Lookup("input")))
	require.NoError(t, flags.Parse([]string{"--input", "from-flag.csv"}))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-flag.csv", cfg.Dataset.Path)
}

func TestLoad_EnvAliasBeatsUnsetFlag(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	chdir(t, t.TempDir())
	t.Setenv("DATASET_PATH", "")
	t.Setenv("CUSTOMERS_CSV", "from-alias.csv")

	flags := pflag.NewFlagSet("analyze", pflag.ContinueOnError)
	flags.String("input", "", "")
	require.NoError(t, viper.BindPFlag("dataset.path", flags.Lookup("input")))
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-alias.csv", cfg.Dataset.Path)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"max below min", func(c *Config) { c.Clustering.MaxK = 1 }},
		{"min k below two", func(c *Config) { c.Clustering.MinK = 1 }},
		{"manual k of one", func(c *Config) { c.Clustering.K = 1 }},
		{"zero eps", func(c *Config) { c.DBSCAN.Eps = 0 }},
		{"zero min samples", func(c *Config) { c.DBSCAN.MinSamples = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad timeout", func(c *Config) { c.Dataset.FetchTimeout = "soon" }},
		{"store without dir", func(c *Config) { c.Store.Enabled = true; c.Store.DataDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			require.NoError(t, Validate(c))
			tt.mutate(c)
			assert.Error(t, Validate(c))
		})
	}
}

func validConfig() *Config {
	return &Config{
		Dataset:    Dataset{Path: "data.csv", URL: DefaultDatasetURL, FetchTimeout: "10s"},
		Clustering: Clustering{MinK: 2, MaxK: 10, Seed: 42, Restarts: 5, MaxIterations: 100},
		DBSCAN:     DBSCAN{Eps: 0.5, MinSamples: 5},
		Output:     Output{Directory: "out", LabeledFile: "labeled.csv"},
		Store:      Store{DataDir: ".segmenter"},
		Logging:    Logging{Level: "info", Format: "json"},
	}
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+) on older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
