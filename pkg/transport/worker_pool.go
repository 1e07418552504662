package transport

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/tissueoptics/nirmc/pkg/core"
)

// errCancelled marks batches skipped after run cancellation
var errCancelled = errors.New("batch skipped after cancellation")

// BatchTask is one unit of work for the pool: a contiguous block of photon
// histories drawing from its own substream.
type BatchTask struct {
	BatchIndex int // position of the batch in launch order
	Count      int // number of histories in the batch
	Seed       int64
}

// BatchResult carries a worker's partial reduction of one batch.
type BatchResult struct {
	BatchIndex int
	Dataset    *SimulationDataset
	Recorder   *RadialRecorder // nil when spatial recording is disabled
	Discarded  int             // histories dropped by degeneracy guards
	Err        error
}

// WorkerPool fans photon batches out to parallel workers. Workers share the
// immutable engine and own everything mutable: sampler, dataset, recorder.
type WorkerPool struct {
	engine      *Engine
	grid        *GridSpec
	taskQueue   chan BatchTask
	resultQueue chan BatchResult
	workers     []*worker
	numWorkers  int
	wg          sync.WaitGroup
	done        atomic.Int64
	cancelled   atomic.Bool
}

type worker struct {
	id          int
	engine      *Engine
	taskQueue   chan BatchTask
	resultQueue chan BatchResult
	pool        *WorkerPool
}

// NewWorkerPool creates a pool with the given parallelism. numWorkers <= 0
// uses the CPU count. maxBatches sizes the queues so that neither
// submission nor result delivery ever blocks a worker.
func NewWorkerPool(engine *Engine, grid *GridSpec, numWorkers, maxBatches int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if maxBatches < 1 {
		maxBatches = 1
	}

	wp := &WorkerPool{
		engine:      engine,
		grid:        grid,
		taskQueue:   make(chan BatchTask, maxBatches),
		resultQueue: make(chan BatchResult, maxBatches),
		numWorkers:  numWorkers,
	}

	for i := 0; i < numWorkers; i++ {
		wp.workers = append(wp.workers, &worker{
			id:          i,
			engine:      engine,
			taskQueue:   wp.taskQueue,
			resultQueue: wp.resultQueue,
			pool:        wp,
		})
	}

	return wp
}

// Start begins all workers
func (wp *WorkerPool) Start() {
	for _, w := range wp.workers {
		wp.wg.Add(1)
		go w.run(&wp.wg)
	}
}

// Stop closes the task queue and waits for workers to finish
func (wp *WorkerPool) Stop() {
	close(wp.taskQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
}

// Cancel makes workers skip any tasks still queued. In-flight batches
// complete; their results are simply never merged.
func (wp *WorkerPool) Cancel() {
	wp.cancelled.Store(true)
}

// SubmitTask queues a batch for execution
func (wp *WorkerPool) SubmitTask(task BatchTask) {
	wp.taskQueue <- task
}

// GetResult retrieves a completed batch result
func (wp *WorkerPool) GetResult() (BatchResult, bool) {
	result, ok := <-wp.resultQueue
	return result, ok
}

// GetNumWorkers returns the number of workers in the pool
func (wp *WorkerPool) GetNumWorkers() int {
	return wp.numWorkers
}

// PhotonsDone returns the number of histories completed so far
func (wp *WorkerPool) PhotonsDone() int64 {
	return wp.done.Load()
}

// run is the main worker loop
func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	for task := range w.taskQueue {
		if w.pool.cancelled.Load() {
			w.resultQueue <- BatchResult{BatchIndex: task.BatchIndex, Err: errCancelled}
			continue
		}

		sampler := core.NewSeededSampler(task.Seed)
		dataset := NewDataset(w.engine.Stack().NumLayers())

		var rec *RadialRecorder
		var recorder Recorder
		if w.pool.grid != nil {
			rec = NewRadialRecorder(*w.pool.grid)
			recorder = rec
		}

		discarded := 0
		for i := 0; i < task.Count; i++ {
			outcome, err := w.engine.RunHistory(sampler, recorder)
			if err != nil {
				discarded++
				continue
			}
			dataset.Add(outcome)
			w.pool.done.Add(1)
		}

		w.resultQueue <- BatchResult{
			BatchIndex: task.BatchIndex,
			Dataset:    dataset,
			Recorder:   rec,
			Discarded:  discarded,
		}
	}
}
