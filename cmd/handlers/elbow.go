package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"segmenter/internal/config"
	"segmenter/internal/logger"
	"segmenter/internal/pipeline"
	"segmenter/internal/report"
)

// NewElbowCmd creates the elbow command
func NewElbowCmd() *cobra.Command {
	elbowCmd := &cobra.Command{
		Use:   "elbow",
		Short: "Scan cluster counts and show the inertia curve",
		Long: `Run K-Means for every K in the configured range and print inertia and
silhouette per K together with the elbow of the inertia curve. Use --write to
also save the curve as elbow.csv in the output directory.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			write, _ := cmd.Flags().GetBool("write")
			if err := runElbow(cmd.Context(), write); err != nil {
				logger.Error("Elbow scan failed", err)
				os.Exit(1)
			}
		},
	}

	elbowCmd.Flags().Int("min-k", 2, "smallest cluster count to evaluate")
	elbowCmd.Flags().Int("max-k", 10, "largest cluster count to evaluate")
	elbowCmd.Flags().Bool("write", false, "write elbow.csv to the output directory")

	bindFlag(elbowCmd, "min-k", "clustering.min_k")
	bindFlag(elbowCmd, "max-k", "clustering.max_k")

	return elbowCmd
}

func runElbow(ctx context.Context, write bool) error {
	cfg := config.Get()

	p, err := pipeline.NewBuilder().FromConfig(cfg).WithoutStore().Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	sweep, err := p.Sweep(ctx)
	if err != nil {
		return err
	}

	fmt.Print(report.SweepTable(&report.Analysis{Sweep: sweep, K: sweep.ElbowK, ElbowFound: sweep.ElbowFound}))

	if write {
		path, err := report.WriteSweepFile(cfg.Output.Directory, sweep)
		if err != nil {
			return err
		}
		fmt.Printf("   ✓ Saved to %s\n", path)
	}
	return nil
}
