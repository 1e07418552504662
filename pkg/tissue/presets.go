package tissue

import (
	"fmt"
	"strings"
)

// Model is a named layer configuration ready to build into a Stack.
type Model struct {
	Name         string      `yaml:"name"`
	Layers       []LayerSpec `yaml:"layers"`
	AmbientAbove float64     `yaml:"ambient_above"`
	AmbientBelow float64     `yaml:"ambient_below"`
}

// Stack validates the model and builds its layer stack
func (m Model) Stack() (*Stack, error) {
	above, below := m.AmbientAbove, m.AmbientBelow
	if above == 0 {
		above = 1.0
	}
	if below == 0 {
		below = 1.0
	}
	return NewStackWithAmbient(m.Layers, above, below)
}

// BaselineBrain returns the four-layer adult head model (scalp, skull,
// cerebrospinal fluid, brain) with near-infrared optical properties.
// Thicknesses in cm, coefficients in 1/cm.
func BaselineBrain() Model {
	return Model{
		Name: "baseline",
		Layers: []LayerSpec{
			{Name: "scalp", N: 1.37, MuA: 0.018, MuS: 19.0, G: 0.9, Thickness: 0.3},
			{Name: "skull", N: 1.43, MuA: 0.016, MuS: 16.0, G: 0.9, Thickness: 0.5},
			{Name: "csf", N: 1.33, MuA: 0.004, MuS: 2.4, G: 0.9, Thickness: 0.2},
			{Name: "brain", N: 1.37, MuA: 0.036, MuS: 22.0, G: 0.9, Thickness: 0.4},
		},
		AmbientAbove: 1.0,
		AmbientBelow: 1.0,
	}
}

// Aggregate collapses consecutive layers into groups, averaging the optical
// properties within each group and summing the thicknesses. groups lists
// the number of source layers per effective layer and must cover the
// source exactly.
func Aggregate(specs []LayerSpec, groups []int) ([]LayerSpec, error) {
	total := 0
	for _, g := range groups {
		if g <= 0 {
			return nil, fmt.Errorf("aggregate: group size %d must be positive", g)
		}
		total += g
	}
	if total != len(specs) {
		return nil, fmt.Errorf("aggregate: groups cover %d layers, model has %d", total, len(specs))
	}

	out := make([]LayerSpec, 0, len(groups))
	i := 0
	for _, g := range groups {
		var agg LayerSpec
		names := make([]string, 0, g)
		for j := 0; j < g; j++ {
			s := specs[i+j]
			agg.N += s.N
			agg.MuA += s.MuA
			agg.MuS += s.MuS
			agg.G += s.G
			agg.Thickness += s.Thickness
			if s.Name != "" {
				names = append(names, s.Name)
			}
		}
		size := float64(g)
		agg.N /= size
		agg.MuA /= size
		agg.MuS /= size
		agg.G /= size
		agg.Name = strings.Join(names, "+")
		out = append(out, agg)
		i += g
	}
	return out, nil
}

// aggregated derives a reduced model from the baseline head model
func aggregated(name string, groups []int) Model {
	base := BaselineBrain()
	layers, err := Aggregate(base.Layers, groups)
	if err != nil {
		// Groups are fixed at compile time and always cover the baseline
		panic(err)
	}
	return Model{
		Name:         name,
		Layers:       layers,
		AmbientAbove: base.AmbientAbove,
		AmbientBelow: base.AmbientBelow,
	}
}

// Presets returns the built-in model catalog: the baseline head model and
// its reduced variants with 4 layers collapsed into 1, 2, or 3.
func Presets() []Model {
	return []Model{
		BaselineBrain(),
		aggregated("one-layer", []int{4}),
		aggregated("two-layer-2-2", []int{2, 2}),
		aggregated("two-layer-1-3", []int{1, 3}),
		aggregated("two-layer-3-1", []int{3, 1}),
		aggregated("three-layer-1-1-2", []int{1, 1, 2}),
		aggregated("three-layer-1-2-1", []int{1, 2, 1}),
		aggregated("three-layer-2-1-1", []int{2, 1, 1}),
	}
}

// PresetByName looks up a built-in model by name
func PresetByName(name string) (Model, bool) {
	for _, m := range Presets() {
		if m.Name == name {
			return m, true
		}
	}
	return Model{}, false
}
