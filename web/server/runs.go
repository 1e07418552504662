package server

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tissueoptics/nirmc/internal/store"
)

// RunDTO is one persisted run, as served to the client
type RunDTO struct {
	ID            int64     `json:"id"`
	CreatedAt     time.Time `json:"createdAt"`
	Model         string    `json:"model"`
	Photons       int       `json:"photons"`
	Seed          int64     `json:"seed"`
	Reflectance   float64   `json:"reflectance"`
	Transmittance float64   `json:"transmittance"`
	Absorbed      float64   `json:"absorbed"`
	DurationMs    int64     `json:"durationMs"`
	LayerAbsorbed []float64 `json:"layerAbsorbed,omitempty"`
	Samples       []float64 `json:"samples,omitempty"`
}

func runDTO(rec *store.RunRecord) RunDTO {
	return RunDTO{
		ID:            rec.ID,
		CreatedAt:     rec.CreatedAt,
		Model:         rec.Model,
		Photons:       rec.Photons,
		Seed:          rec.Seed,
		Reflectance:   rec.Reflectance,
		Transmittance: rec.Transmittance,
		Absorbed:      rec.Absorbed,
		DurationMs:    rec.Duration.Milliseconds(),
		LayerAbsorbed: rec.LayerAbsorbed,
	}
}

// handleListRuns returns recent persisted runs, newest first
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "run storage is not configured")
		return
	}

	limit, err := parseIntParam(r.URL.Query(), "limit", 20, 1, 500)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Printf("Listing runs failed: %v\n", err)
		writeJSONError(w, http.StatusInternalServerError, "listing runs failed")
		return
	}

	runs := make([]RunDTO, 0, len(records))
	for i := range records {
		runs = append(runs, runDTO(&records[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// handleGetRun returns one persisted run with its exit-weight samples
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "run storage is not configured")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	record, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeJSONError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Printf("Loading run %d failed: %v\n", id, err)
		writeJSONError(w, http.StatusInternalServerError, "loading run failed")
		return
	}

	samples, err := s.store.GetRunSamples(r.Context(), id)
	if err != nil {
		s.logger.Printf("Loading samples for run %d failed: %v\n", id, err)
		writeJSONError(w, http.StatusInternalServerError, "loading run failed")
		return
	}

	dto := runDTO(record)
	dto.Samples = samples
	writeJSON(w, http.StatusOK, dto)
}
