package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultDatasetURL is the public copy of the mall customers dataset.
const DefaultDatasetURL = "https://raw.githubusercontent.com/SteffiPeTaffy/machineLearningAZ/master/Machine%20Learning%20A-Z%20Template%20Folder/Part%204%20-%20Clustering/Section%2025%20-%20Hierarchical%20Clustering/Mall_Customers.csv"

// Config holds all application configuration
type Config struct {
	App        App        `mapstructure:"app"`
	Dataset    Dataset    `mapstructure:"dataset"`
	Preprocess Preprocess `mapstructure:"preprocess"`
	Clustering Clustering `mapstructure:"clustering"`
	DBSCAN     DBSCAN     `mapstructure:"dbscan"`
	Output     Output     `mapstructure:"output"`
	Store      Store      `mapstructure:"store"`
	Logging    Logging    `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Debug      bool   `mapstructure:"debug"`
	ConfigFile string `mapstructure:"config_file"`
}

// Dataset holds input dataset location
type Dataset struct {
	Path         string `mapstructure:"path" validate:"required"`
	URL          string `mapstructure:"url" validate:"omitempty,url"`
	FetchTimeout string `mapstructure:"fetch_timeout"`
}

// Preprocess holds feature scaling configuration
type Preprocess struct {
	// StrictScaling fails on constant feature columns instead of leaving them unscaled.
	StrictScaling bool `mapstructure:"strict_scaling"`
}

// Clustering holds K-means and cluster count selection configuration
type Clustering struct {
	MinK          int   `mapstructure:"min_k" validate:"gte=2"`
	MaxK          int   `mapstructure:"max_k" validate:"gtefield=MinK"`
	K             int   `mapstructure:"k" validate:"gte=0"` // 0 selects K by the elbow method
	Seed          int64 `mapstructure:"seed"`
	Restarts      int   `mapstructure:"restarts" validate:"gte=1"`
	MaxIterations int   `mapstructure:"max_iterations" validate:"gte=1"`
	Workers       int   `mapstructure:"workers" validate:"gte=0"`
}

// DBSCAN holds density clustering parameters
type DBSCAN struct {
	Eps        float64 `mapstructure:"eps" validate:"gt=0"`
	MinSamples int     `mapstructure:"min_samples" validate:"gte=1"`
}

// Output holds output configuration
type Output struct {
	Directory   string `mapstructure:"directory" validate:"required"`
	LabeledFile string `mapstructure:"labeled_file" validate:"required"`
	Report      bool   `mapstructure:"report"`
}

// Store holds run persistence configuration
type Store struct {
	Enabled bool   `mapstructure:"enabled"`
	DataDir string `mapstructure:"data_dir" validate:"required_if=Enabled true"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".segmenter")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.SetEnvPrefix("SEGMENTER")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.App.ConfigFile = viper.ConfigFileUsed()

	postProcessConfig(config)

	if err := Validate(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)

	viper.SetDefault("dataset.path", "data/Mall_Customers.csv")
	viper.SetDefault("dataset.url", DefaultDatasetURL)
	viper.SetDefault("dataset.fetch_timeout", "30s")

	viper.SetDefault("preprocess.strict_scaling", false)

	viper.SetDefault("clustering.min_k", 2)
	viper.SetDefault("clustering.max_k", 10)
	viper.SetDefault("clustering.k", 0)
	viper.SetDefault("clustering.seed", 42)
	viper.SetDefault("clustering.restarts", 10)
	viper.SetDefault("clustering.max_iterations", 300)
	viper.SetDefault("clustering.workers", 0)

	viper.SetDefault("dbscan.eps", 0.5)
	viper.SetDefault("dbscan.min_samples", 5)

	viper.SetDefault("output.directory", "output")
	viper.SetDefault("output.labeled_file", "segmented_customers.csv")
	viper.SetDefault("output.report", true)

	viper.SetDefault("store.enabled", false)
	viper.SetDefault("store.data_dir", ".segmenter")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
}

// bindEnvironmentVariables maps short, unprefixed environment aliases onto config keys
func bindEnvironmentVariables() {
	bindEnvKeys("dataset.path", []string{"DATASET_PATH", "CUSTOMERS_CSV"})
	bindEnvKeys("dataset.url", []string{"DATASET_URL"})
	bindEnvKeys("logging.level", []string{"LOG_LEVEL"})
	bindEnvKeys("logging.format", []string{"LOG_FORMAT"})
	bindEnvKeys("app.debug", []string{"DEBUG"})
}

// bindEnvKeys binds environment aliases to a viper key, earlier aliases first.
// Bound env values rank below explicitly set command-line flags.
func bindEnvKeys(viperKey string, envKeys []string) {
	args := append([]string{viperKey}, envKeys...)
	if err := viper.BindEnv(args...); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind environment for %s: %v\n", viperKey, err)
	}
}

// postProcessConfig expands paths and applies derived settings
func postProcessConfig(config *Config) {
	config.Dataset.Path = expandPath(config.Dataset.Path)
	config.Output.Directory = expandPath(config.Output.Directory)
	config.Store.DataDir = expandPath(config.Store.DataDir)
	if config.App.Debug {
		config.Logging.Level = "debug"
	}
	config.Logging.Level = strings.ToLower(config.Logging.Level)
	config.Logging.Format = strings.ToLower(config.Logging.Format)
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field rules.
func Validate(config *Config) error {
	var problems []string

	if err := validate.Struct(config); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("configuration errors: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s failed %q (value: %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
	}

	if k := config.Clustering.K; k != 0 && k < 2 {
		problems = append(problems, fmt.Sprintf("clustering.k must be 0 (auto) or at least 2, got %d", k))
	}

	if d := config.Dataset.FetchTimeout; d != "" {
		if _, err := time.ParseDuration(d); err != nil {
			problems = append(problems, fmt.Sprintf("invalid duration for dataset.fetch_timeout: %s", d))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// Timeout returns the parsed dataset fetch timeout, zero when unset.
func (d Dataset) Timeout() time.Duration {
	t, _ := time.ParseDuration(d.FetchTimeout)
	return t
}

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
