// Package transport runs the Monte Carlo photon random walk against a layer
// stack and reduces the per-photon outcomes into run-level datasets. It
// contains the per-history engine, the batch worker pool, and the
// progressive runner that ties them together.
package transport

import "github.com/tissueoptics/nirmc/pkg/core"

// Photon is the mutable state of one history in flight. It is owned by
// exactly one history execution and never shared.
type Photon struct {
	Position  core.Vec3
	Direction core.Vec3 // unit vector
	Weight    float64   // fraction of launched energy remaining
	Layer     int       // index into the stack
	Scatters  int
	Alive     bool
}

// launch returns a photon entering the stack at the origin, collimated
// straight down the z axis with unit weight.
func launch() Photon {
	return Photon{
		Position:  core.NewVec3(0, 0, 0),
		Direction: core.NewVec3(0, 0, 1),
		Weight:    1.0,
		Layer:     0,
		Alive:     true,
	}
}
