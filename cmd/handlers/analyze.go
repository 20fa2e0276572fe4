package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"segmenter/internal/config"
	"segmenter/internal/logger"
	"segmenter/internal/pipeline"
	"segmenter/internal/report"
)

// NewAnalyzeCmd creates the analyze command
func NewAnalyzeCmd() *cobra.Command {
	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Cluster customers and write labeled data and a report",
		Long: `Run the full segmentation: load (or download) the dataset, standardize
the features, select K with the elbow method, cluster with K-Means and DBSCAN,
project with PCA and write the results to the output directory.

A manual --k skips the elbow choice; it is also required when the inertia
curve has no elbow.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if err := runAnalyze(ctx); err != nil {
				logger.Error("Analysis failed", err)
				os.Exit(1)
			}
		},
	}

	analyzeCmd.Flags().String("input", "", "customers CSV (downloaded here when missing)")
	analyzeCmd.Flags().Int("k", 0, "number of K-Means clusters (0 = elbow method)")
	analyzeCmd.Flags().Float64("eps", 0.5, "DBSCAN neighborhood radius in standardized units")
	analyzeCmd.Flags().Int("min-samples", 5, "DBSCAN minimum neighborhood size for a core point")
	analyzeCmd.Flags().Int64("seed", 42, "random seed for K-Means initialization")
	analyzeCmd.Flags().String("output", "", "output directory")
	analyzeCmd.Flags().Bool("save", false, "store the run in the local run database")

	bindFlag(analyzeCmd, "input", "dataset.path")
	bindFlag(analyzeCmd, "k", "clustering.k")
	bindFlag(analyzeCmd, "eps", "dbscan.eps")
	bindFlag(analyzeCmd, "min-samples", "dbscan.min_samples")
	bindFlag(analyzeCmd, "seed", "clustering.seed")
	bindFlag(analyzeCmd, "output", "output.directory")
	bindFlag(analyzeCmd, "save", "store.enabled")

	return analyzeCmd
}

func runAnalyze(ctx context.Context) error {
	cfg := config.Get()

	p, err := pipeline.NewBuilder().FromConfig(cfg).Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Error("Failed to close run store", err)
		}
	}()

	result, err := p.Run(ctx, pipeline.Options{
		Dataset: cfg.Dataset.Path,
		Save:    cfg.Store.Enabled,
	})
	if err != nil {
		return err
	}

	fmt.Println(report.Summary(result.Analysis))
	fmt.Println()
	for _, path := range result.Paths {
		fmt.Printf("   ✓ Saved to %s\n", path)
	}
	fmt.Printf("   • Processed %d customers in %s\n", result.Stats.Records, result.Stats.ProcessingTime.Round(time.Millisecond))

	return nil
}
