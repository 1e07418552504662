package tissue

import (
	"sort"

	"github.com/tissueoptics/nirmc/pkg/optics"
)

// Stack is an immutable ordered sequence of validated layers spanning
// [0, TotalThickness] on the z axis, bracketed by non-scattering ambient
// media above and below.
type Stack struct {
	layers     []Layer
	boundaries []float64 // len(layers)+1 cumulative depths starting at 0
	nAbove     float64
	nBelow     float64
}

// NewStack validates the layer specs and builds a stack with ambient
// refractive indices of 1.0 on both sides.
func NewStack(specs []LayerSpec) (*Stack, error) {
	return NewStackWithAmbient(specs, 1.0, 1.0)
}

// NewStackWithAmbient validates the layer specs and builds a stack
// bracketed by the given ambient refractive indices.
func NewStackWithAmbient(specs []LayerSpec, nAbove, nBelow float64) (*Stack, error) {
	if len(specs) == 0 {
		return nil, &ValidationError{LayerIndex: -1, Field: "layers", Reason: "must contain at least one layer"}
	}
	if nAbove < 1 {
		return nil, &ValidationError{LayerIndex: -1, Field: "ambient n above", Value: nAbove, Reason: "must be >= 1"}
	}
	if nBelow < 1 {
		return nil, &ValidationError{LayerIndex: -1, Field: "ambient n below", Value: nBelow, Reason: "must be >= 1"}
	}

	layers := make([]Layer, len(specs))
	boundaries := make([]float64, len(specs)+1)

	z := 0.0
	for i, spec := range specs {
		if err := validateSpec(i, spec); err != nil {
			return nil, err
		}

		mut := spec.MuA + spec.MuS
		layers[i] = Layer{
			Index:     i,
			Name:      spec.Name,
			N:         spec.N,
			MuA:       spec.MuA,
			MuS:       spec.MuS,
			G:         spec.G,
			Thickness: spec.Thickness,
			Z0:        z,
			Z1:        z + spec.Thickness,
			MuT:       mut,
			Albedo:    spec.MuS / mut,
		}
		z += spec.Thickness
		boundaries[i+1] = z
	}

	// Critical-angle cosines toward each neighbor
	for i := range layers {
		above := nAbove
		if i > 0 {
			above = layers[i-1].N
		}
		below := nBelow
		if i < len(layers)-1 {
			below = layers[i+1].N
		}
		layers[i].CosCritAbove = optics.CriticalCosine(layers[i].N, above)
		layers[i].CosCritBelow = optics.CriticalCosine(layers[i].N, below)
	}

	return &Stack{
		layers:     layers,
		boundaries: boundaries,
		nAbove:     nAbove,
		nBelow:     nBelow,
	}, nil
}

// NumLayers returns the number of layers in the stack
func (s *Stack) NumLayers() int {
	return len(s.layers)
}

// Layer returns the layer at index i
func (s *Stack) Layer(i int) Layer {
	return s.layers[i]
}

// Layers returns a copy of all layers in depth order
func (s *Stack) Layers() []Layer {
	out := make([]Layer, len(s.layers))
	copy(out, s.layers)
	return out
}

// Boundaries returns a copy of the cumulative boundary depths,
// starting at 0 and ending at TotalThickness
func (s *Stack) Boundaries() []float64 {
	out := make([]float64, len(s.boundaries))
	copy(out, s.boundaries)
	return out
}

// TotalThickness returns the depth of the bottom boundary
func (s *Stack) TotalThickness() float64 {
	return s.boundaries[len(s.boundaries)-1]
}

// AmbientAbove returns the refractive index of the medium above the stack
func (s *Stack) AmbientAbove() float64 {
	return s.nAbove
}

// AmbientBelow returns the refractive index of the medium below the stack
func (s *Stack) AmbientBelow() float64 {
	return s.nBelow
}

// LayerAt returns the index of the layer containing depth z, where a layer
// spans [Z0, Z1). Returns -1 above the stack and NumLayers() at or below
// the bottom boundary.
func (s *Stack) LayerAt(z float64) int {
	if z < 0 {
		return -1
	}
	if z >= s.TotalThickness() {
		return len(s.layers)
	}
	// First boundary strictly greater than z; z belongs to the layer above it
	idx := sort.SearchFloat64s(s.boundaries, z)
	if idx < len(s.boundaries) && s.boundaries[idx] == z {
		return idx
	}
	return idx - 1
}

// RefractiveIndexAbove returns the index of the medium adjacent to layer
// i's top boundary
func (s *Stack) RefractiveIndexAbove(i int) float64 {
	if i == 0 {
		return s.nAbove
	}
	return s.layers[i-1].N
}

// RefractiveIndexBelow returns the index of the medium adjacent to layer
// i's bottom boundary
func (s *Stack) RefractiveIndexBelow(i int) float64 {
	if i == len(s.layers)-1 {
		return s.nBelow
	}
	return s.layers[i+1].N
}
