package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"segmenter/internal/clustering"
	"segmenter/internal/config"
	"segmenter/internal/core"
	"segmenter/internal/logger"
	"segmenter/internal/preprocess"
	"segmenter/internal/reduce"
	"segmenter/internal/report"
	"segmenter/internal/store"
)

// ErrNoClusterCount is returned when no elbow was found and no manual K is configured.
var ErrNoClusterCount = errors.New("no elbow found and no manual cluster count configured")

// Pipeline orchestrates the load, prepare, cluster, report and persist workflow
type Pipeline struct {
	loader   CustomerLoader
	recorder RunRecorder // Optional
	config   *Config
	log      *slog.Logger
}

// Config holds pipeline configuration
type Config struct {
	Sweep         clustering.SweepConfig
	K             int // Manual cluster count; 0 uses the elbow
	DBSCAN        clustering.DBSCANConfig
	StrictScaling bool

	OutputDir   string
	LabeledFile string
	WriteReport bool
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Sweep: clustering.SweepConfig{
			MinK:   2,
			MaxK:   10,
			KMeans: clustering.DefaultKMeansConfig(),
		},
		DBSCAN:      clustering.DefaultDBSCANConfig(),
		OutputDir:   "output",
		LabeledFile: report.LabeledFile,
		WriteReport: true,
	}
}

// ConfigFromApp maps application configuration onto the pipeline.
func ConfigFromApp(cfg *config.Config) *Config {
	return &Config{
		Sweep: clustering.SweepConfig{
			MinK: cfg.Clustering.MinK,
			MaxK: cfg.Clustering.MaxK,
			KMeans: clustering.KMeansConfig{
				MaxIterations: cfg.Clustering.MaxIterations,
				Restarts:      cfg.Clustering.Restarts,
				Seed:          cfg.Clustering.Seed,
				Workers:       cfg.Clustering.Workers,
			},
		},
		K: cfg.Clustering.K,
		DBSCAN: clustering.DBSCANConfig{
			Eps:        cfg.DBSCAN.Eps,
			MinSamples: cfg.DBSCAN.MinSamples,
		},
		StrictScaling: cfg.Preprocess.StrictScaling,
		OutputDir:     cfg.Output.Directory,
		LabeledFile:   cfg.Output.LabeledFile,
		WriteReport:   cfg.Output.Report,
	}
}

// NewPipeline creates a new pipeline; recorder may be nil
func NewPipeline(loader CustomerLoader, recorder RunRecorder, config *Config) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	return &Pipeline{
		loader:   loader,
		recorder: recorder,
		config:   config,
		log:      logger.Get(),
	}
}

// Close releases the recorder when it holds resources.
func (p *Pipeline) Close() error {
	if c, ok := p.recorder.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Options configures a single run
type Options struct {
	Dataset    string // Name recorded in the report and run store
	SkipOutput bool   // Analyse without writing files
	Save       bool   // Persist the run when a recorder is configured
}

// Result contains the output of a run
type Result struct {
	Analysis *report.Analysis
	Paths    []string
	Stats    ProcessingStats
}

// ProcessingStats tracks pipeline execution metrics
type ProcessingStats struct {
	Records        int
	ProcessingTime time.Duration
	StartTime      time.Time
	EndTime        time.Time
}

// Run executes the full analysis
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	startTime := time.Now()

	p.log.Info("Loading customers")
	customers, err := p.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load customers: %w", err)
	}
	p.log.Info("Loaded customers", "count", len(customers))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	analysis, err := Analyze(customers, p.config, p.log)
	if err != nil {
		return nil, err
	}
	analysis.Dataset = opts.Dataset

	if opts.Save && p.recorder != nil {
		id, err := p.recorder.SaveRun(NewRun(analysis))
		if err != nil {
			return nil, fmt.Errorf("failed to save run: %w", err)
		}
		analysis.RunID = id
		p.log.Info("Saved run", "run_id", id)
	}

	var paths []string
	if !opts.SkipOutput {
		paths, err = report.WriteAll(p.config.OutputDir, p.config.LabeledFile, analysis, p.config.WriteReport)
		if err != nil {
			return nil, fmt.Errorf("failed to write outputs: %w", err)
		}
		for _, path := range paths {
			p.log.Info("Wrote output", "path", path)
		}
	}

	endTime := time.Now()
	return &Result{
		Analysis: analysis,
		Paths:    paths,
		Stats: ProcessingStats{
			Records:        len(customers),
			StartTime:      startTime,
			EndTime:        endTime,
			ProcessingTime: endTime.Sub(startTime),
		},
	}, nil
}

// Sweep loads and standardizes the customers and scans cluster counts only.
func (p *Pipeline) Sweep(ctx context.Context) (*clustering.Sweep, error) {
	customers, err := p.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load customers: %w", err)
	}
	features, err := p.prepare(customers)
	if err != nil {
		return nil, err
	}
	return clustering.SelectK(features.Points(), p.config.Sweep)
}

func (p *Pipeline) prepare(customers []core.Customer) (*preprocess.Features, error) {
	return prepare(customers, p.config.StrictScaling, p.log)
}

func prepare(customers []core.Customer, strict bool, log *slog.Logger) (*preprocess.Features, error) {
	features, err := preprocess.Prepare(customers, strict)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare features: %w", err)
	}
	for _, j := range features.Scaler.Degenerate() {
		log.Warn("Feature has zero variance and was left unscaled", "feature", core.FeatureNames[j])
	}
	return features, nil
}

// Analyze runs preprocessing, K selection, both clusterers, PCA and profiling
// on customers already in memory.
func Analyze(customers []core.Customer, cfg *Config, log *slog.Logger) (*report.Analysis, error) {
	if log == nil {
		log = logger.Get()
	}

	features, err := prepare(customers, cfg.StrictScaling, log)
	if err != nil {
		return nil, err
	}
	points := features.Points()

	log.Info("Selecting cluster count", "min_k", cfg.Sweep.MinK, "max_k", cfg.Sweep.MaxK)
	sweep, err := clustering.SelectK(points, cfg.Sweep)
	if err != nil {
		return nil, fmt.Errorf("failed to select cluster count: %w", err)
	}

	k, elbow, err := chooseK(sweep, cfg.K)
	if err != nil {
		return nil, err
	}
	log.Info("Cluster count chosen", "k", k, "from_elbow", elbow)

	km, err := clustering.NewKMeans(cfg.Sweep.KMeans).Fit(points, k)
	if err != nil {
		return nil, fmt.Errorf("k-means failed: %w", err)
	}
	if !km.Converged {
		log.Warn("K-means stopped before converging", "iterations", km.Iterations)
	}

	db, err := clustering.NewDBSCAN(cfg.DBSCAN).Fit(points)
	if err != nil {
		return nil, fmt.Errorf("dbscan failed: %w", err)
	}

	proj, err := reduce.PCA(features.Standardized, 2)
	if err != nil {
		return nil, fmt.Errorf("pca failed: %w", err)
	}

	kmAssign, dbAssign := km.Assignment(), db.Assignment()
	kmProfiles, err := report.Profiles(customers, kmAssign)
	if err != nil {
		return nil, err
	}
	dbProfiles, err := report.Profiles(customers, dbAssign)
	if err != nil {
		return nil, err
	}
	centroids, err := report.Centroids(km, features.Scaler.InverseTransform)
	if err != nil {
		return nil, fmt.Errorf("failed to map centroids to original units: %w", err)
	}
	pop := report.PopulationFrom(features.Scaler)

	return &report.Analysis{
		GeneratedAt:      time.Now().UTC(),
		Customers:        customers,
		Sweep:            sweep,
		K:                k,
		ElbowFound:       elbow,
		Seed:             cfg.Sweep.KMeans.Seed,
		KMeans:           km,
		KMeansSilhouette: silhouette(points, kmAssign, log),
		KMeansProfiles:   kmProfiles,
		Centroids:        centroids,
		Segments:         report.DescribeAll(kmProfiles, pop),
		DBSCANConfig:     cfg.DBSCAN,
		DBSCAN:           db,
		DBSCANSilhouette: silhouette(points, dbAssign, log),
		DBSCANProfiles:   dbProfiles,
		Projection:       proj,
		Population:       pop,
	}, nil
}

// chooseK prefers a manual K, then the elbow. It reports whether the elbow was used.
func chooseK(sweep *clustering.Sweep, manual int) (int, bool, error) {
	if manual > 0 {
		return manual, false, nil
	}
	if sweep.ElbowFound {
		return sweep.ElbowK, true, nil
	}
	return 0, false, fmt.Errorf("%w: %w", ErrNoClusterCount, sweep.ElbowErr)
}

func silhouette(points [][]float64, a core.Assignment, log *slog.Logger) report.Score {
	score, err := clustering.Silhouette(points, a.Labels)
	if err != nil {
		log.Warn("Silhouette not computable", "algorithm", a.Algorithm, "error", err)
		return report.Score{}
	}
	return report.Score{Value: score, OK: true}
}

// NewRun converts an analysis into its persisted form.
func NewRun(a *report.Analysis) *store.Run {
	run := &store.Run{
		RunSummary: core.RunSummary{
			ID:          a.RunID,
			CreatedAt:   a.GeneratedAt,
			Dataset:     a.Dataset,
			Records:     len(a.Customers),
			K:           a.K,
			ElbowFound:  a.ElbowFound,
			Seed:        a.Seed,
			Eps:         a.DBSCANConfig.Eps,
			MinSamples:  a.DBSCANConfig.MinSamples,
			Inertia:     a.KMeans.Inertia,
			Silhouette:  a.KMeansSilhouette.Ptr(),
			DBSCANCount: a.DBSCAN.NumClusters,
			NoiseCount:  a.DBSCAN.NoiseCount(),
		},
		Profiles: map[string][]core.ClusterProfile{
			"kmeans": a.KMeansProfiles,
			"dbscan": a.DBSCANProfiles,
		},
	}

	if a.Sweep != nil {
		for _, p := range a.Sweep.Points {
			row := store.SweepRow{K: p.K, Inertia: p.Inertia}
			if p.SilhouetteOK {
				v := p.Silhouette
				row.Silhouette = &v
			}
			run.Sweep = append(run.Sweep, row)
		}
	}

	for i, c := range a.Customers {
		run.Assignments = append(run.Assignments, store.AssignmentRow{
			CustomerID: c.ID,
			KMeans:     a.KMeans.Labels[i],
			DBSCAN:     a.DBSCAN.Labels[i],
		})
	}
	return run
}
