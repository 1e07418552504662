package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/tissueoptics/nirmc/pkg/core"
	"github.com/tissueoptics/nirmc/pkg/tissue"
)

// DefaultLogger implements core.Logger by writing to stdout
type DefaultLogger struct{}

func (dl *DefaultLogger) Printf(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// NewDefaultLogger creates a new default logger
func NewDefaultLogger() core.Logger {
	return &DefaultLogger{}
}

// RunConfig contains configuration for a simulation run
type RunConfig struct {
	Photons    int       // number of histories to launch
	Seed       int64     // top-level seed; batches derive substreams from it
	BatchSize  int       // histories per worker batch (0 = default)
	NumWorkers int       // parallel workers (0 = use CPU count)
	Engine     Config    // roulette parameters
	Grid       *GridSpec // spatial recording grid; nil disables profiles
}

// DefaultRunConfig returns sensible default values
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Photons:    50000,
		Seed:       1,
		BatchSize:  1024,
		NumWorkers: 0, // Auto-detect CPU count
		Engine:     DefaultConfig(),
	}
}

// Progress reports how far a run has advanced
type Progress struct {
	PhotonsDone  int
	PhotonsTotal int
	BatchesDone  int
	BatchesTotal int
	Elapsed      time.Duration
}

// RunStats summarizes a completed run
type RunStats struct {
	Photons   int // histories that completed and entered the dataset
	Discarded int // histories dropped by the degeneracy guard
	Workers   int
	Duration  time.Duration
}

// RunResult is the complete output of a run
type RunResult struct {
	Dataset  *SimulationDataset
	Profiles *Profiles // nil when the grid was disabled
	Stats    RunStats
}

// Runner drives a full simulation: it splits the photon budget into
// batches, runs them on a worker pool, and merges the partial reductions
// in batch order so the output is identical for any worker count.
// A Runner owns its worker pool and executes at most one run; create a
// new Runner for each run.
type Runner struct {
	engine *Engine
	config RunConfig
	pool   *WorkerPool
	logger core.Logger
}

// NewRunner creates a runner for the given stack and run configuration
func NewRunner(stack *tissue.Stack, config RunConfig, logger core.Logger) *Runner {
	if config.Photons <= 0 {
		config.Photons = DefaultRunConfig().Photons
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultRunConfig().BatchSize
	}
	if logger == nil {
		logger = NewDefaultLogger()
	}

	engine := NewEngine(stack, config.Engine)
	numBatches := (config.Photons + config.BatchSize - 1) / config.BatchSize
	pool := NewWorkerPool(engine, config.Grid, config.NumWorkers, numBatches)

	return &Runner{
		engine: engine,
		config: config,
		pool:   pool,
		logger: logger,
	}
}

// makeBatches splits the photon budget into seeded batch tasks
func (r *Runner) makeBatches() []BatchTask {
	var batches []BatchTask
	remaining := r.config.Photons
	for i := 0; remaining > 0; i++ {
		count := r.config.BatchSize
		if count > remaining {
			count = remaining
		}
		batches = append(batches, BatchTask{
			BatchIndex: i,
			Count:      count,
			Seed:       core.SubstreamSeed(r.config.Seed, i),
		})
		remaining -= count
	}
	return batches
}

// RunProgressive runs the simulation with channel-based communication.
// Progress events arrive as batches complete; the result channel delivers
// exactly one RunResult on success. On cancellation or failure the error
// channel delivers the cause instead. All channels close when the run ends.
func (r *Runner) RunProgressive(ctx context.Context) (<-chan Progress, <-chan *RunResult, <-chan error) {
	progressChan := make(chan Progress, 100)
	resultChan := make(chan *RunResult, 1)
	errChan := make(chan error, 1)

	go func() {
		defer close(progressChan)
		defer close(resultChan)
		defer close(errChan)

		startTime := time.Now()
		batches := r.makeBatches()

		r.logger.Printf("Starting simulation: %d photons in %d batches (using %d workers)...\n",
			r.config.Photons, len(batches), r.pool.GetNumWorkers())

		r.pool.Start()
		defer r.pool.Stop()

		for _, batch := range batches {
			select {
			case <-ctx.Done():
				r.logger.Printf("Simulation cancelled during submission\n")
				r.pool.Cancel()
				errChan <- ctx.Err()
				return
			default:
			}
			r.pool.SubmitTask(batch)
		}

		results := make([]BatchResult, len(batches))
		for done := 0; done < len(batches); done++ {
			select {
			case <-ctx.Done():
				r.logger.Printf("Simulation cancelled after %d of %d batches\n", done, len(batches))
				r.pool.Cancel()
				errChan <- ctx.Err()
				return
			default:
			}

			result, ok := r.pool.GetResult()
			if !ok {
				errChan <- fmt.Errorf("worker pool closed unexpectedly")
				return
			}
			if result.Err != nil {
				r.pool.Cancel()
				errChan <- result.Err
				return
			}
			results[result.BatchIndex] = result

			progress := Progress{
				PhotonsDone:  int(r.pool.PhotonsDone()),
				PhotonsTotal: r.config.Photons,
				BatchesDone:  done + 1,
				BatchesTotal: len(batches),
				Elapsed:      time.Since(startTime),
			}
			select {
			case progressChan <- progress:
			default:
				// Consumer is behind; drop the update
			}
		}

		// Merge in batch order so the dataset is independent of worker
		// scheduling
		dataset := NewDataset(r.engine.Stack().NumLayers())
		var recorder *RadialRecorder
		if r.config.Grid != nil {
			recorder = NewRadialRecorder(*r.config.Grid)
		}
		discarded := 0
		for i := range results {
			dataset.Merge(results[i].Dataset)
			if recorder != nil && results[i].Recorder != nil {
				recorder.Merge(results[i].Recorder)
			}
			discarded += results[i].Discarded
		}

		duration := time.Since(startTime)
		r.logger.Printf("Simulation completed in %v: R=%.5f T=%.5f A=%.5f\n",
			duration, dataset.DiffuseReflectance(), dataset.Transmittance(), dataset.AbsorbedFraction())

		runResult := &RunResult{
			Dataset: dataset,
			Stats: RunStats{
				Photons:   dataset.TotalPhotons,
				Discarded: discarded,
				Workers:   r.pool.GetNumWorkers(),
				Duration:  duration,
			},
		}
		if recorder != nil {
			runResult.Profiles = recorder.Profiles(dataset.TotalPhotons)
		}

		select {
		case resultChan <- runResult:
		case <-ctx.Done():
		}
	}()

	return progressChan, resultChan, errChan
}

// Run executes the simulation synchronously and returns the final result
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	progressChan, resultChan, errChan := r.RunProgressive(ctx)

	go func() {
		for range progressChan {
		}
	}()

	if result, ok := <-resultChan; ok {
		return result, nil
	}
	if err, ok := <-errChan; ok {
		return nil, err
	}
	return nil, fmt.Errorf("run ended without a result")
}
