package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tissueoptics/nirmc/internal/store"
	"github.com/tissueoptics/nirmc/pkg/analysis"
	"github.com/tissueoptics/nirmc/pkg/transport"
)

// SimulateRequest represents a simulation request from the client
type SimulateRequest struct {
	Model   string  `json:"model"`
	Photons int     `json:"photons"`
	Seed    int64   `json:"seed"`
	Workers int     `json:"workers"`
	Start   float64 `json:"start"` // analysis window, cm
	End     float64 `json:"end"`
	Step    float64 `json:"step"`
}

// SSEEvent represents a unified SSE event for thread-safe writing
type SSEEvent struct {
	Type string `json:"type"` // "console", "progress", "result", "error", "complete"
	Data string `json:"data"` // JSON-encoded data
}

// ProgressUpdate is one progress event, sent per completed batch group
type ProgressUpdate struct {
	PhotonsDone  int   `json:"photonsDone"`
	PhotonsTotal int   `json:"photonsTotal"`
	BatchesDone  int   `json:"batchesDone"`
	BatchesTotal int   `json:"batchesTotal"`
	ElapsedMs    int64 `json:"elapsedMs"`
}

// RunSummary is the normalized outcome of a completed run
type RunSummary struct {
	Model         string    `json:"model"`
	Photons       int       `json:"photons"`
	Seed          int64     `json:"seed"`
	Workers       int       `json:"workers"`
	Discarded     int       `json:"discarded"`
	DurationMs    int64     `json:"durationMs"`
	Reflectance   float64   `json:"reflectance"`
	Transmittance float64   `json:"transmittance"`
	Absorbed      float64   `json:"absorbed"`
	LayerAbsorbed []float64 `json:"layerAbsorbed"`
	MeanPath      float64   `json:"meanPath"`
}

// ProfilesDTO carries the spatially resolved output
type ProfilesDTO struct {
	Radii []float64 `json:"radii"`
	Rd    []float64 `json:"rd"`
	Tt    []float64 `json:"tt"`
	Depth []float64 `json:"depth"`
	Az    []float64 `json:"az"`
}

// ReflectanceDTO carries the distance-resampled reflectance series
type ReflectanceDTO struct {
	Distances []float64 `json:"distances"`
	Values    []float64 `json:"values"`
	Sorted    []float64 `json:"sorted"`
}

// IntervalDTO is a two-sided confidence interval
type IntervalDTO struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// FitDTO is one goodness-of-fit verdict
type FitDTO struct {
	Distribution string  `json:"distribution"`
	ChiSquared   float64 `json:"chiSquared"`
	DOF          int     `json:"dof"`
	PValue       float64 `json:"pValue"`
	Accepted     bool    `json:"accepted"`
}

// StatsDTO is the grouped-frequency report on the reflectance series
type StatsDTO struct {
	N           int         `json:"n"`
	Min         float64     `json:"min"`
	Max         float64     `json:"max"`
	Step        float64     `json:"step"`
	Mean        float64     `json:"mean"`
	Variance    float64     `json:"variance"`
	StdDev      float64     `json:"stdDev"`
	MeanCI      IntervalDTO `json:"meanCi"`
	VarianceCI  IntervalDTO `json:"varianceCi"`
	Edges       []float64   `json:"edges"`
	Midpoints   []float64   `json:"midpoints"`
	Counts      []int       `json:"counts"`
	Normal      FitDTO      `json:"normal"`
	Exponential FitDTO      `json:"exponential"`
}

// SimulateResult is the final SSE payload of a run
type SimulateResult struct {
	Summary     RunSummary      `json:"summary"`
	Profiles    *ProfilesDTO    `json:"profiles,omitempty"`
	Reflectance *ReflectanceDTO `json:"reflectance,omitempty"`
	Stats       *StatsDTO       `json:"stats,omitempty"`
	RunID       int64           `json:"runId,omitempty"`
}

// handleSimulate runs a simulation with real-time progress streaming via SSE
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	s.setSSEHeaders(w)
	ctx := r.Context()

	// Create unified SSE event channel for thread-safe writing
	sseEventChan := make(chan SSEEvent, 100)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeSSEEvents(w, ctx, sseEventChan)
	}()
	defer func() {
		close(sseEventChan)
		<-writerDone
	}()

	req, err := s.parseSimulateRequest(r)
	if err != nil {
		s.sendEvent(ctx, sseEventChan, SSEEvent{Type: "error", Data: fmt.Sprintf("Invalid request: %v", err)})
		return
	}

	model, err := s.cfg.ResolveModel(req.Model, "")
	if err != nil {
		s.sendEvent(ctx, sseEventChan, SSEEvent{Type: "error", Data: err.Error()})
		return
	}
	stack, err := model.Stack()
	if err != nil {
		s.sendEvent(ctx, sseEventChan, SSEEvent{Type: "error", Data: err.Error()})
		return
	}

	// Stream runner log lines to the web console. The forwarder is stopped
	// and drained before the SSE channel closes; consoleChan itself is never
	// closed because the runner may still log after a cancelled run returns.
	consoleChan := make(chan ConsoleMessage, 50)
	runID := fmt.Sprintf("run-%d", time.Now().UnixNano())
	webLogger := NewWebLogger(runID, consoleChan)
	consoleStop := make(chan struct{})
	consoleDone := make(chan struct{})
	go func() {
		defer close(consoleDone)
		s.streamConsoleMessages(ctx, consoleChan, sseEventChan, consoleStop)
	}()
	defer func() {
		close(consoleStop)
		<-consoleDone
	}()

	grid := transport.DefaultGridSpec()
	runConfig := transport.RunConfig{
		Photons:    req.Photons,
		Seed:       req.Seed,
		BatchSize:  s.cfg.BatchSize,
		NumWorkers: req.Workers,
		Engine:     transport.DefaultConfig(),
		Grid:       &grid,
	}

	s.metrics.runsStarted.WithLabelValues(model.Name).Inc()
	startTime := time.Now()

	runner := transport.NewRunner(stack, runConfig, webLogger)
	progressChan, resultChan, errChan := runner.RunProgressive(ctx)

	for progressChan != nil {
		select {
		case progress, ok := <-progressChan:
			if !ok {
				progressChan = nil
				continue
			}
			s.sendProgress(ctx, sseEventChan, progress)

		case <-ctx.Done():
			// Client disconnected
			return
		}
	}

	select {
	case result, ok := <-resultChan:
		if !ok {
			break
		}
		s.finishRun(ctx, sseEventChan, req, model.Name, result, startTime)
		return
	case <-ctx.Done():
		return
	}

	if err := <-errChan; err != nil {
		s.metrics.runsFailed.Inc()
		s.sendEvent(ctx, sseEventChan, SSEEvent{Type: "error", Data: fmt.Sprintf("Simulation failed: %v", err)})
	}
}

// finishRun assembles the result payload, persists it, and emits the
// final SSE events.
func (s *Server) finishRun(ctx context.Context, sseEventChan chan SSEEvent,
	req *SimulateRequest, modelName string, result *transport.RunResult, startTime time.Time) {

	s.metrics.photonsTraced.Add(float64(result.Stats.Photons))
	s.metrics.runDuration.Observe(time.Since(startTime).Seconds())

	dataset := result.Dataset
	payload := SimulateResult{
		Summary: RunSummary{
			Model:         modelName,
			Photons:       dataset.TotalPhotons,
			Seed:          req.Seed,
			Workers:       result.Stats.Workers,
			Discarded:     result.Stats.Discarded,
			DurationMs:    result.Stats.Duration.Milliseconds(),
			Reflectance:   dataset.DiffuseReflectance(),
			Transmittance: dataset.Transmittance(),
			Absorbed:      dataset.AbsorbedFraction(),
			LayerAbsorbed: dataset.LayerAbsorbedFractions(),
			MeanPath:      dataset.MeanPathLength(),
		},
	}

	if result.Profiles != nil {
		payload.Profiles = &ProfilesDTO{
			Radii: result.Profiles.Radii,
			Rd:    result.Profiles.Rd,
			Tt:    result.Profiles.Tt,
			Depth: result.Profiles.Depth,
			Az:    result.Profiles.Az,
		}

		series, err := analysis.InterpolateReflectance(
			result.Profiles.Radii, result.Profiles.Rd, req.Start, req.End, req.Step)
		if err != nil {
			s.logger.Printf("Reflectance resampling failed: %v\n", err)
		} else {
			dto := &ReflectanceDTO{
				Distances: make([]float64, len(series.Points)),
				Values:    make([]float64, len(series.Points)),
				Sorted:    series.Sorted,
			}
			for i, p := range series.Points {
				dto.Distances[i] = p.Distance
				dto.Values[i] = p.Reflectance
			}
			payload.Reflectance = dto

			report, err := analysis.Analyze(series.Sorted)
			if err != nil {
				s.logger.Printf("Statistical analysis skipped: %v\n", err)
			} else {
				payload.Stats = statsDTO(report)
			}
		}
	}

	if s.store != nil {
		id, err := s.store.SaveRun(context.Background(), store.RunRecord{
			Model:         modelName,
			Photons:       dataset.TotalPhotons,
			Seed:          req.Seed,
			Reflectance:   payload.Summary.Reflectance,
			Transmittance: payload.Summary.Transmittance,
			Absorbed:      payload.Summary.Absorbed,
			Duration:      result.Stats.Duration,
			LayerAbsorbed: payload.Summary.LayerAbsorbed,
		}, dataset.Samples)
		if err != nil {
			s.logger.Printf("Persisting run failed: %v\n", err)
		} else {
			payload.RunID = id
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.sendEvent(ctx, sseEventChan, SSEEvent{Type: "error", Data: fmt.Sprintf("Encoding result: %v", err)})
		return
	}
	s.sendEvent(ctx, sseEventChan, SSEEvent{Type: "result", Data: string(data)})
	s.sendEvent(ctx, sseEventChan, SSEEvent{Type: "complete", Data: "Simulation completed"})
}

func statsDTO(report *analysis.Report) *StatsDTO {
	return &StatsDTO{
		N:           report.N,
		Min:         report.Min,
		Max:         report.Max,
		Step:        report.Step,
		Mean:        report.Mean,
		Variance:    report.Variance,
		StdDev:      report.StdDev,
		MeanCI:      IntervalDTO{Low: report.MeanCI.Low, High: report.MeanCI.High},
		VarianceCI:  IntervalDTO{Low: report.VarianceCI.Low, High: report.VarianceCI.High},
		Edges:       report.Histogram.Edges,
		Midpoints:   report.Histogram.Midpoints,
		Counts:      report.Histogram.Counts,
		Normal:      fitDTO(report.Normal),
		Exponential: fitDTO(report.Exponential),
	}
}

func fitDTO(fit analysis.FitResult) FitDTO {
	return FitDTO{
		Distribution: fit.Distribution,
		ChiSquared:   fit.ChiSquared,
		DOF:          fit.DOF,
		PValue:       fit.PValue,
		Accepted:     fit.Accepted,
	}
}

// parseSimulateRequest parses request parameters
func (s *Server) parseSimulateRequest(r *http.Request) (*SimulateRequest, error) {
	req := &SimulateRequest{}

	if model := r.URL.Query().Get("model"); model != "" {
		req.Model = model
	}

	var err error
	if req.Photons, err = parseIntParam(r.URL.Query(), "photons", s.cfg.Photons, 100, 5000000); err != nil {
		return nil, err
	}
	if req.Seed, err = parseInt64Param(r.URL.Query(), "seed", s.cfg.Seed); err != nil {
		return nil, err
	}
	if req.Workers, err = parseIntParam(r.URL.Query(), "workers", s.cfg.Workers, 0, 64); err != nil {
		return nil, err
	}
	if req.Start, err = parseFloatParam(r.URL.Query(), "start", analysis.DefaultStartDistance, 0, 10); err != nil {
		return nil, err
	}
	if req.End, err = parseFloatParam(r.URL.Query(), "end", analysis.DefaultEndDistance, 0, 20); err != nil {
		return nil, err
	}
	if req.Step, err = parseFloatParam(r.URL.Query(), "step", analysis.DefaultDistanceStep, 0.001, 5); err != nil {
		return nil, err
	}
	if req.End <= req.Start {
		return nil, fmt.Errorf("end must exceed start, got [%v, %v]", req.Start, req.End)
	}

	return req, nil
}

// setSSEHeaders sets the required headers for Server-Sent Events
func (s *Server) setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// writeSSEEvents handles writing all SSE events in a single goroutine (thread-safe)
func (s *Server) writeSSEEvents(w http.ResponseWriter, ctx context.Context, sseEventChan chan SSEEvent) {
	for {
		select {
		case event, ok := <-sseEventChan:
			if !ok {
				// Channel closed
				return
			}

			select {
			case <-ctx.Done():
				// Client disconnected, stop sending messages
				return
			default:
			}

			_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data)
			if err != nil {
				// Client disconnected during write
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}

		case <-ctx.Done():
			return
		}
	}
}

// streamConsoleMessages forwards runner log lines to the SSE channel.
// On stop it forwards whatever is still buffered and returns.
func (s *Server) streamConsoleMessages(ctx context.Context, consoleChan chan ConsoleMessage, sseEventChan chan SSEEvent, stop chan struct{}) {
	for {
		select {
		case consoleMsg := <-consoleChan:
			s.forwardConsoleMessage(ctx, sseEventChan, consoleMsg)

		case <-stop:
			for {
				select {
				case consoleMsg := <-consoleChan:
					s.forwardConsoleMessage(ctx, sseEventChan, consoleMsg)
				default:
					return
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) forwardConsoleMessage(ctx context.Context, sseEventChan chan SSEEvent, consoleMsg ConsoleMessage) {
	data, err := json.Marshal(consoleMsg)
	if err != nil {
		s.logger.Printf("Error marshaling console message: %v\n", err)
		return
	}

	select {
	case sseEventChan <- SSEEvent{Type: "console", Data: string(data)}:
	case <-ctx.Done():
	default:
		// Channel full, skip message to avoid blocking
	}
}

func (s *Server) sendProgress(ctx context.Context, sseEventChan chan SSEEvent, progress transport.Progress) {
	update := ProgressUpdate{
		PhotonsDone:  progress.PhotonsDone,
		PhotonsTotal: progress.PhotonsTotal,
		BatchesDone:  progress.BatchesDone,
		BatchesTotal: progress.BatchesTotal,
		ElapsedMs:    progress.Elapsed.Milliseconds(),
	}
	data, err := json.Marshal(update)
	if err != nil {
		return
	}
	s.sendEvent(ctx, sseEventChan, SSEEvent{Type: "progress", Data: string(data)})
}

func (s *Server) sendEvent(ctx context.Context, sseEventChan chan SSEEvent, event SSEEvent) {
	select {
	case sseEventChan <- event:
	case <-ctx.Done():
		// Client disconnected, don't block
	}
}
