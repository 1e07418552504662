package core

import (
	"math"
	"testing"
)

func TestVec3_Normalize(t *testing.T) {
	tests := []struct {
		name     string
		vector   Vec3
		expected Vec3
	}{
		{
			name:     "Already unit",
			vector:   NewVec3(0, 0, 1),
			expected: NewVec3(0, 0, 1),
		},
		{
			name:     "Axis-aligned",
			vector:   NewVec3(0, 3, 0),
			expected: NewVec3(0, 1, 0),
		},
		{
			name:     "Diagonal",
			vector:   NewVec3(1, 1, 1),
			expected: NewVec3(1/math.Sqrt(3), 1/math.Sqrt(3), 1/math.Sqrt(3)),
		},
		{
			name:     "Zero vector stays zero",
			vector:   NewVec3(0, 0, 0),
			expected: NewVec3(0, 0, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.vector.Normalize()

			const tolerance = 1e-12
			if result.Subtract(tt.expected).Length() > tolerance {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestVec3_Radius(t *testing.T) {
	tests := []struct {
		name     string
		vector   Vec3
		expected float64
	}{
		{name: "On axis", vector: NewVec3(0, 0, 5), expected: 0},
		{name: "Unit x", vector: NewVec3(1, 0, -2), expected: 1},
		{name: "3-4-5 triangle", vector: NewVec3(3, 4, 0.7), expected: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.vector.Radius()

			const tolerance = 1e-12
			if math.Abs(result-tt.expected) > tolerance {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestVec3_DotCross(t *testing.T) {
	a := NewVec3(1, 2, 3)
	b := NewVec3(4, -5, 6)

	if got := a.Dot(b); math.Abs(got-12.0) > 1e-12 {
		t.Errorf("Dot: expected 12, got %v", got)
	}

	cross := a.Cross(b)
	// Cross product is orthogonal to both inputs
	if math.Abs(cross.Dot(a)) > 1e-12 || math.Abs(cross.Dot(b)) > 1e-12 {
		t.Errorf("Cross product not orthogonal: %v", cross)
	}

	expected := NewVec3(27, 6, -13)
	if cross.Subtract(expected).Length() > 1e-12 {
		t.Errorf("Cross: expected %v, got %v", expected, cross)
	}
}
