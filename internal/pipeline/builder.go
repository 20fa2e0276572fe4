package pipeline

import (
	"fmt"
	"time"

	"segmenter/internal/config"
	"segmenter/internal/dataset"
	"segmenter/internal/store"
)

// Builder helps construct a fully configured Pipeline
type Builder struct {
	loader    CustomerLoader
	storeDir  string
	config    *Config
	skipStore bool
}

// NewBuilder creates a new pipeline builder with default settings
func NewBuilder() *Builder {
	return &Builder{
		config:    DefaultConfig(),
		skipStore: true,
	}
}

// FromConfig applies application configuration: dataset location, pipeline
// parameters and run store.
func (b *Builder) FromConfig(cfg *config.Config) *Builder {
	b.config = ConfigFromApp(cfg)
	b.loader = dataset.NewLoader(cfg.Dataset.Path, cfg.Dataset.URL, cfg.Dataset.Timeout())
	if cfg.Store.Enabled {
		b.WithStoreDir(cfg.Store.DataDir)
	}
	return b
}

// WithLoader sets the customer source
func (b *Builder) WithLoader(loader CustomerLoader) *Builder {
	b.loader = loader
	return b
}

// WithDataset loads customers from a local file, fetching url when it is missing
func (b *Builder) WithDataset(path, url string, timeout time.Duration) *Builder {
	b.loader = dataset.NewLoader(path, url, timeout)
	return b
}

// WithConfig sets the pipeline configuration
func (b *Builder) WithConfig(config *Config) *Builder {
	b.config = config
	return b
}

// WithStoreDir enables run persistence in dir
func (b *Builder) WithStoreDir(dir string) *Builder {
	b.storeDir = dir
	b.skipStore = false
	return b
}

// WithoutStore disables run persistence
func (b *Builder) WithoutStore() *Builder {
	b.skipStore = true
	return b
}

// Build constructs a fully configured Pipeline. Call Close on the result to
// release the run store.
func (b *Builder) Build() (*Pipeline, error) {
	if b.loader == nil {
		return nil, fmt.Errorf("a customer loader is required")
	}

	var recorder RunRecorder
	if !b.skipStore {
		s, err := store.NewStore(b.storeDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open run store: %w", err)
		}
		recorder = s
	}

	return NewPipeline(b.loader, recorder, b.config), nil
}
