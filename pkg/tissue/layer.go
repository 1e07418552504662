// Package tissue models planar layered media: individual layers with
// optical properties, validated stacks with derived boundary geometry,
// and the preset models the simulator ships with.
package tissue

import "fmt"

// LayerSpec holds the user-supplied optical properties of a single layer.
// Units are cm for thickness and 1/cm for the coefficients.
type LayerSpec struct {
	Name      string  `yaml:"name"`
	N         float64 `yaml:"n"`   // refractive index
	MuA       float64 `yaml:"mua"` // absorption coefficient
	MuS       float64 `yaml:"mus"` // scattering coefficient
	G         float64 `yaml:"g"`   // scattering anisotropy
	Thickness float64 `yaml:"d"`
}

// Layer is a validated layer with derived transport quantities. Z0 and Z1
// are the cumulative depths of its top and bottom boundaries. CosCritAbove
// and CosCritBelow are the critical-angle cosines toward the neighboring
// media; a photon hitting the boundary with |uz| below the critical cosine
// is totally internally reflected.
type Layer struct {
	Index     int
	Name      string
	N         float64
	MuA       float64
	MuS       float64
	G         float64
	Thickness float64

	Z0, Z1       float64
	MuT          float64 // mua + mus
	Albedo       float64 // mus / mut
	CosCritAbove float64
	CosCritBelow float64
}

// ValidationError reports an invalid layer configuration. LayerIndex is -1
// for stack-level problems.
type ValidationError struct {
	LayerIndex int
	Field      string
	Value      float64
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.LayerIndex < 0 {
		return fmt.Sprintf("invalid stack: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid layer %d: %s = %v %s", e.LayerIndex, e.Field, e.Value, e.Reason)
}

func validateSpec(index int, spec LayerSpec) error {
	if spec.N < 1 {
		return &ValidationError{LayerIndex: index, Field: "n", Value: spec.N, Reason: "must be >= 1"}
	}
	if spec.MuA < 0 {
		return &ValidationError{LayerIndex: index, Field: "mua", Value: spec.MuA, Reason: "must be >= 0"}
	}
	if spec.MuS < 0 {
		return &ValidationError{LayerIndex: index, Field: "mus", Value: spec.MuS, Reason: "must be >= 0"}
	}
	if spec.MuA+spec.MuS <= 0 {
		return &ValidationError{LayerIndex: index, Field: "mua+mus", Value: spec.MuA + spec.MuS, Reason: "must be > 0 for a finite step length"}
	}
	if spec.G < -1 || spec.G > 1 {
		return &ValidationError{LayerIndex: index, Field: "g", Value: spec.G, Reason: "must be in [-1, 1]"}
	}
	if spec.Thickness <= 0 {
		return &ValidationError{LayerIndex: index, Field: "d", Value: spec.Thickness, Reason: "must be > 0"}
	}
	return nil
}
