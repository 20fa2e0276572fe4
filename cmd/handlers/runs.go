package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"segmenter/internal/config"
	"segmenter/internal/core"
	"segmenter/internal/logger"
	"segmenter/internal/store"
)

// NewRunsCmd creates the run history command
func NewRunsCmd() *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage stored analysis runs",
		Long:  `List, inspect and delete analysis runs saved with "analyze --save".`,
	}

	runsCmd.AddCommand(newRunsListCmd())
	runsCmd.AddCommand(newRunsShowCmd())
	runsCmd.AddCommand(newRunsDeleteCmd())
	runsCmd.AddCommand(newRunsClearCmd())
	runsCmd.AddCommand(newRunsStatsCmd())

	return runsCmd
}

func newRunsListCmd() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			limit, _ := cmd.Flags().GetInt("limit")
			if err := runRunsList(limit); err != nil {
				logger.Error("Failed to list runs", err)
				os.Exit(1)
			}
		},
	}
	listCmd.Flags().Int("limit", 20, "maximum number of runs to show (0 = all)")
	return listCmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored run",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := runRunsShow(args[0]); err != nil {
				logger.Error("Failed to show run", err, "run_id", args[0])
				os.Exit(1)
			}
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := withStore(func(s *store.Store) error { return s.DeleteRun(args[0]) }); err != nil {
				logger.Error("Failed to delete run", err, "run_id", args[0])
				os.Exit(1)
			}
			fmt.Printf("✅ Deleted run %s\n", args[0])
		},
	}
}

func newRunsClearCmd() *cobra.Command {
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all stored runs",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			confirm, _ := cmd.Flags().GetBool("confirm")
			if err := runRunsClear(confirm); err != nil {
				logger.Error("Failed to clear runs", err)
				os.Exit(1)
			}
		},
	}

	clearCmd.Flags().Bool("confirm", false, "Skip confirmation prompt")
	return clearCmd
}

func newRunsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show run database statistics",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := runRunsStats(); err != nil {
				logger.Error("Failed to get run stats", err)
				os.Exit(1)
			}
		},
	}
}

// withStore opens the configured run store for the duration of fn.
func withStore(fn func(s *store.Store) error) error {
	runStore, err := store.NewStore(config.Get().Store.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize run store: %w", err)
	}
	defer func() {
		if err := runStore.Close(); err != nil {
			logger.Error("Failed to close run store", err)
		}
	}()
	return fn(runStore)
}

func runRunsList(limit int) error {
	return withStore(func(s *store.Store) error {
		runs, err := s.ListRuns(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No stored runs. Use 'segmenter analyze --save' to record one.")
			return nil
		}

		fmt.Printf("%-36s  %-16s  %3s  %-6s  %10s  %10s  %6s\n", "ID", "CREATED", "K", "ELBOW", "INERTIA", "SILHOUETTE", "NOISE")
		for _, r := range runs {
			fmt.Printf("%-36s  %-16s  %3d  %-6t  %10.2f  %10s  %6d\n",
				r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.K, r.ElbowFound, r.Inertia, formatOptional(r.Silhouette), r.NoiseCount)
		}
		return nil
	})
}

func runRunsShow(id string) error {
	return withStore(func(s *store.Store) error {
		run, err := s.GetRun(id)
		if err != nil {
			return err
		}

		fmt.Printf("📊 Run %s\n", run.ID)
		fmt.Println("==================")
		fmt.Printf("📅 Created: %s\n", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("📄 Dataset: %s (%d customers)\n", run.Dataset, run.Records)
		fmt.Printf("🔢 K-Means: K=%d (elbow: %t, seed %d), inertia %.2f, silhouette %s\n",
			run.K, run.ElbowFound, run.Seed, run.Inertia, formatOptional(run.Silhouette))
		fmt.Printf("🔍 DBSCAN: eps %.2f, min samples %d, %d clusters, %d noise\n",
			run.Eps, run.MinSamples, run.DBSCANCount, run.NoiseCount)

		if len(run.Sweep) > 0 {
			fmt.Println("\nK sweep:")
			for _, p := range run.Sweep {
				fmt.Printf("  K=%-3d inertia %10.2f  silhouette %s\n", p.K, p.Inertia, formatOptional(p.Silhouette))
			}
		}

		for _, algorithm := range []string{"kmeans", "dbscan"} {
			profiles := run.Profiles[algorithm]
			if len(profiles) == 0 {
				continue
			}
			fmt.Printf("\n%s clusters:\n", algorithm)
			for _, p := range profiles {
				fmt.Printf("  [%s] %3d customers  age %.1f  income %.1fk$  spending %.1f  male %.0f%%\n",
					p.Label, p.Size, p.Mean[core.FeatureAge], p.Mean[core.FeatureIncome], p.Mean[core.FeatureSpending], p.MaleShare*100)
			}
		}
		return nil
	})
}

func runRunsClear(confirm bool) error {
	if !confirm {
		fmt.Print("⚠️  This will remove all stored runs. Continue? [y/N]: ")
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" && response != "yes" {
			fmt.Println("Clear cancelled")
			return nil
		}
	}

	if err := withStore(func(s *store.Store) error { return s.Clear() }); err != nil {
		return err
	}
	fmt.Println("✅ Runs cleared successfully")
	return nil
}

func runRunsStats() error {
	return withStore(func(s *store.Store) error {
		stats, err := s.Stats()
		if err != nil {
			return fmt.Errorf("failed to get run statistics: %w", err)
		}

		fmt.Println("📊 Run Statistics")
		fmt.Println("==================")
		fmt.Printf("🗂️  Runs stored: %d\n", stats.RunCount)
		fmt.Printf("👥 Assignments stored: %d\n", stats.AssignmentCount)
		fmt.Printf("💾 Database size: %.2f MB\n", float64(stats.SizeBytes)/1024/1024)
		if !stats.LastRun.IsZero() {
			fmt.Printf("📅 Last run: %s\n", stats.LastRun.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	})
}

func formatOptional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", *v)
}
