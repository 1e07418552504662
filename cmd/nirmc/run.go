package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tissueoptics/nirmc/internal/config"
	"github.com/tissueoptics/nirmc/internal/store"
	"github.com/tissueoptics/nirmc/pkg/analysis"
	"github.com/tissueoptics/nirmc/pkg/tissue"
	"github.com/tissueoptics/nirmc/pkg/transport"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation and print the outcome report",
	Long: `Runs a full Monte Carlo simulation of the selected tissue model and
prints the energy balance, the absorption per layer, and the statistical
analysis of the spatially resolved reflectance. Flags override the
NIRMC_* environment variables.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.FromEnv()
		if err != nil {
			fmt.Printf("Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		if cmd.Flags().Changed("photons") {
			cfg.Photons, _ = cmd.Flags().GetInt("photons")
		}
		if cmd.Flags().Changed("seed") {
			cfg.Seed, _ = cmd.Flags().GetInt64("seed")
		}
		if cmd.Flags().Changed("workers") {
			cfg.Workers, _ = cmd.Flags().GetInt("workers")
		}
		if cmd.Flags().Changed("batch-size") {
			cfg.BatchSize, _ = cmd.Flags().GetInt("batch-size")
		}

		modelName, _ := cmd.Flags().GetString("model")
		modelFile, _ := cmd.Flags().GetString("model-file")
		model, err := cfg.ResolveModel(modelName, modelFile)
		if err != nil {
			fmt.Printf("Error resolving model: %v\n", err)
			os.Exit(1)
		}
		stack, err := model.Stack()
		if err != nil {
			fmt.Printf("Error building layer stack: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Model: %s (%d layers)\n", model.Name, len(model.Layers))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		grid := transport.DefaultGridSpec()
		runner := transport.NewRunner(stack, transport.RunConfig{
			Photons:    cfg.Photons,
			Seed:       cfg.Seed,
			BatchSize:  cfg.BatchSize,
			NumWorkers: cfg.Workers,
			Engine:     transport.DefaultConfig(),
			Grid:       &grid,
		}, nil)

		result, err := runner.Run(ctx)
		if err != nil {
			fmt.Printf("Simulation failed: %v\n", err)
			os.Exit(1)
		}

		printOutcome(model, result)

		start, _ := cmd.Flags().GetFloat64("start")
		end, _ := cmd.Flags().GetFloat64("end")
		step, _ := cmd.Flags().GetFloat64("step")
		samples := printReflectanceAnalysis(result, start, end, step)

		if save, _ := cmd.Flags().GetBool("save"); save {
			saveRun(model.Name, cfg, result, samples)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("model", "", "Built-in model name (see 'nirmc models')")
	runCmd.Flags().String("model-file", "", "YAML file describing a custom model")
	runCmd.Flags().Int("photons", 50000, "Number of photon histories")
	runCmd.Flags().Int64("seed", 1, "Random seed; equal seeds reproduce runs exactly")
	runCmd.Flags().Int("workers", 0, "Parallel workers (0 = CPU count)")
	runCmd.Flags().Int("batch-size", 1024, "Histories per worker batch")
	runCmd.Flags().Float64("start", analysis.DefaultStartDistance, "Analysis window start, cm from the beam")
	runCmd.Flags().Float64("end", analysis.DefaultEndDistance, "Analysis window end, cm")
	runCmd.Flags().Float64("step", analysis.DefaultDistanceStep, "Analysis window step, cm")
	runCmd.Flags().Bool("save", false, "Persist the run to the run database")
}

func printOutcome(model tissue.Model, result *transport.RunResult) {
	dataset := result.Dataset
	fmt.Printf("\nEnergy balance (%d photons, %d discarded):\n",
		result.Stats.Photons, result.Stats.Discarded)
	fmt.Printf("  Diffuse reflectance  %.6f\n", dataset.DiffuseReflectance())
	fmt.Printf("  Transmittance        %.6f\n", dataset.Transmittance())
	fmt.Printf("  Absorbed             %.6f\n", dataset.AbsorbedFraction())
	fmt.Printf("  Mean path length     %.4f cm\n", dataset.MeanPathLength())

	fmt.Println("\nAbsorption by layer:")
	for i, frac := range dataset.LayerAbsorbedFractions() {
		name := fmt.Sprintf("layer %d", i+1)
		if i < len(model.Layers) && model.Layers[i].Name != "" {
			name = model.Layers[i].Name
		}
		fmt.Printf("  %-16s %.6f\n", name, frac)
	}
}

// printReflectanceAnalysis resamples the radial reflectance over the
// requested window, fits candidate distributions, and returns the
// resampled values for optional persistence.
func printReflectanceAnalysis(result *transport.RunResult, start, end, step float64) []float64 {
	if result.Profiles == nil {
		return nil
	}

	series, err := analysis.InterpolateReflectance(result.Profiles.Radii, result.Profiles.Rd, start, end, step)
	if err != nil {
		fmt.Printf("\nReflectance resampling failed: %v\n", err)
		return nil
	}

	report, err := analysis.Analyze(series.Sorted)
	if err != nil {
		fmt.Printf("\nStatistical analysis skipped: %v\n", err)
		return series.Sorted
	}

	fmt.Printf("\nReflectance over [%.2f, %.2f] cm (%d points, %d bins):\n",
		start, end, report.N, len(report.Histogram.Counts))
	fmt.Printf("  Mean      %.6g  95%% CI [%.6g, %.6g]\n",
		report.Mean, report.MeanCI.Low, report.MeanCI.High)
	fmt.Printf("  Variance  %.6g  95%% CI [%.6g, %.6g]\n",
		report.Variance, report.VarianceCI.Low, report.VarianceCI.High)
	for _, fit := range []analysis.FitResult{report.Normal, report.Exponential} {
		verdict := "rejected"
		if fit.Accepted {
			verdict = "accepted"
		}
		fmt.Printf("  %-12s chi2 %.4f  dof %d  p %.4f  %s\n",
			fit.Distribution, fit.ChiSquared, fit.DOF, fit.PValue, verdict)
	}
	return series.Sorted
}

func saveRun(modelName string, cfg config.Config, result *transport.RunResult, samples []float64) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		fmt.Printf("Error opening run database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	dataset := result.Dataset
	id, err := st.SaveRun(context.Background(), store.RunRecord{
		Model:         modelName,
		Photons:       dataset.TotalPhotons,
		Seed:          cfg.Seed,
		Reflectance:   dataset.DiffuseReflectance(),
		Transmittance: dataset.Transmittance(),
		Absorbed:      dataset.AbsorbedFraction(),
		Duration:      result.Stats.Duration,
		LayerAbsorbed: dataset.LayerAbsorbedFractions(),
	}, samples)
	if err != nil {
		fmt.Printf("Error saving run: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nSaved run %d to %s\n", id, cfg.DBPath)
}
