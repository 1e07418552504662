package server

import (
	"encoding/json"
	"net/http"

	"github.com/tissueoptics/nirmc/pkg/analysis"
	"github.com/tissueoptics/nirmc/pkg/tissue"
)

// LayerDTO describes one tissue layer for the client
type LayerDTO struct {
	Name      string  `json:"name"`
	N         float64 `json:"n"`
	MuA       float64 `json:"mua"`
	MuS       float64 `json:"mus"`
	G         float64 `json:"g"`
	Thickness float64 `json:"thickness"`
}

// ModelDTO describes one preset tissue model for the client
type ModelDTO struct {
	Name         string     `json:"name"`
	AmbientAbove float64    `json:"ambientAbove"`
	AmbientBelow float64    `json:"ambientBelow"`
	Layers       []LayerDTO `json:"layers"`
}

// handleModels returns the preset catalog with defaults and validation limits
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	presets := tissue.Presets()
	models := make([]ModelDTO, 0, len(presets))
	for _, m := range presets {
		dto := ModelDTO{
			Name:         m.Name,
			AmbientAbove: m.AmbientAbove,
			AmbientBelow: m.AmbientBelow,
			Layers:       make([]LayerDTO, 0, len(m.Layers)),
		}
		for _, l := range m.Layers {
			dto.Layers = append(dto.Layers, LayerDTO{
				Name:      l.Name,
				N:         l.N,
				MuA:       l.MuA,
				MuS:       l.MuS,
				G:         l.G,
				Thickness: l.Thickness,
			})
		}
		models = append(models, dto)
	}

	response := map[string]interface{}{
		"models": models,
		"defaults": map[string]interface{}{
			"model":   "baseline",
			"photons": s.cfg.Photons,
			"seed":    s.cfg.Seed,
			"workers": s.cfg.Workers,
			"start":   analysis.DefaultStartDistance,
			"end":     analysis.DefaultEndDistance,
			"step":    analysis.DefaultDistanceStep,
		},
		"limits": map[string]interface{}{
			"photons": map[string]int{
				"min": 100,
				"max": 5000000,
			},
			"workers": map[string]int{
				"min": 0,
				"max": 64,
			},
			"start": map[string]float64{
				"min": 0,
				"max": 10,
			},
			"end": map[string]float64{
				"min": 0,
				"max": 20,
			},
			"step": map[string]float64{
				"min": 0.001,
				"max": 5,
			},
		},
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
