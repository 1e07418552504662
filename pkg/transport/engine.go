package transport

import (
	"errors"
	"math"

	"github.com/tissueoptics/nirmc/pkg/core"
	"github.com/tissueoptics/nirmc/pkg/optics"
	"github.com/tissueoptics/nirmc/pkg/tissue"
)

// ErrDegenerateDirection reports a photon direction whose magnitude
// underflowed to zero during scattering. It is fatal to the single history
// and never expected under correct sampling.
var ErrDegenerateDirection = errors.New("photon direction magnitude underflowed to zero")

// directionEpsilon is the squared-magnitude floor below which a direction
// counts as degenerate
const directionEpsilon = 1e-12

// Config holds the engine's variance-reduction parameters.
type Config struct {
	// RouletteThreshold is the weight below which survival roulette runs
	RouletteThreshold float64
	// RouletteConstant is the survival multiplier m: a photon below the
	// threshold survives with probability 1/m and weight scaled by m
	RouletteConstant float64
}

// DefaultConfig returns the standard roulette parameters.
func DefaultConfig() Config {
	return Config{
		RouletteThreshold: 1e-4,
		RouletteConstant:  10,
	}
}

// Recorder observes spatially resolved events during a history: absorption
// deposits by depth and escapes by exit radius. Implementations are
// worker-local and need no locking.
type Recorder interface {
	RecordDeposit(z, weight float64)
	RecordExit(fate Fate, radius, weight float64)
}

// Engine executes photon histories against an immutable layer stack. It
// holds no mutable state between histories, so a single Engine is safe for
// concurrent use by many workers, each with its own Sampler.
type Engine struct {
	stack  *tissue.Stack
	config Config
}

// NewEngine creates an engine for the given stack
func NewEngine(stack *tissue.Stack, config Config) *Engine {
	if config.RouletteThreshold <= 0 {
		config.RouletteThreshold = DefaultConfig().RouletteThreshold
	}
	if config.RouletteConstant <= 1 {
		config.RouletteConstant = DefaultConfig().RouletteConstant
	}
	return &Engine{stack: stack, config: config}
}

// Stack returns the layer stack the engine runs against
func (e *Engine) Stack() *tissue.Stack {
	return e.stack
}

// RunHistory executes one photon history to termination, drawing all
// randomness from sampler. rec may be nil when spatial profiles are not
// wanted. The returned outcome is complete even on error, but callers must
// discard it when err is non-nil.
func (e *Engine) RunHistory(sampler core.Sampler, rec Recorder) (HistoryOutcome, error) {
	p := launch()
	outcome := HistoryOutcome{
		LayerAbsorbed: make([]float64, e.stack.NumLayers()),
	}

	for p.Alive {
		layer := e.stack.Layer(p.Layer)

		// Hop: sample the free path from the Beer-Lambert distribution.
		// The draw must be in (0,1): ln(0) would produce an infinite step.
		xi := sampler.Get1D()
		for xi == 0 {
			xi = sampler.Get1D()
		}
		step := -math.Log(xi) / layer.MuT

		// Clip the step at the nearer boundary along the travel direction
		crossing := false
		if p.Direction.Z > 0 {
			if d := (layer.Z1 - p.Position.Z) / p.Direction.Z; d <= step {
				step = d
				crossing = true
			}
		} else if p.Direction.Z < 0 {
			if d := (layer.Z0 - p.Position.Z) / p.Direction.Z; d <= step {
				step = d
				crossing = true
			}
		}

		p.Position = p.Position.Add(p.Direction.Multiply(step))
		outcome.PathLength += step

		if crossing {
			e.crossBoundary(&p, &outcome, sampler, rec)
		} else if err := e.dropAndSpin(&p, &outcome, sampler, rec); err != nil {
			return outcome, err
		}

		e.roulette(&p, &outcome, sampler)
	}

	outcome.Scatters = p.Scatters
	return outcome, nil
}

// dropAndSpin deposits the absorbed fraction of the photon's weight into
// the current layer and scatters it into a new direction.
func (e *Engine) dropAndSpin(p *Photon, outcome *HistoryOutcome, sampler core.Sampler, rec Recorder) error {
	layer := e.stack.Layer(p.Layer)

	deposit := p.Weight * layer.MuA / layer.MuT
	outcome.LayerAbsorbed[p.Layer] += deposit
	p.Weight -= deposit
	if rec != nil && deposit > 0 {
		rec.RecordDeposit(p.Position.Z, deposit)
	}

	hg := optics.HenyeyGreenstein{G: layer.G}
	next := hg.SampleDirection(p.Direction, sampler.Get2D())
	if next.LengthSquared() < directionEpsilon {
		return ErrDegenerateDirection
	}
	p.Direction = next
	p.Scatters++
	return nil
}

// crossBoundary resolves a photon that reached a layer boundary: total
// internal reflection, Fresnel reflection, or refraction into the neighbor
// (which may be outside the stack). Boundary sub-steps never change weight.
func (e *Engine) crossBoundary(p *Photon, outcome *HistoryOutcome, sampler core.Sampler, rec Recorder) {
	layer := e.stack.Layer(p.Layer)
	down := p.Direction.Z > 0
	cosI := math.Abs(p.Direction.Z)

	var n2, cosCrit float64
	if down {
		n2 = e.stack.RefractiveIndexBelow(p.Layer)
		cosCrit = layer.CosCritBelow
	} else {
		n2 = e.stack.RefractiveIndexAbove(p.Layer)
		cosCrit = layer.CosCritAbove
	}

	var r, cosT float64
	if cosI <= cosCrit {
		// Past the critical angle: reflection probability is 1
		r, cosT = 1, 0
	} else {
		r, cosT = optics.Reflectance(cosI, layer.N, n2)
	}

	if sampler.Get1D() < r {
		p.Direction = optics.ReflectZ(p.Direction)
		return
	}

	p.Direction = optics.RefractZ(p.Direction, layer.N, n2, cosT)

	if down {
		if p.Layer == e.stack.NumLayers()-1 {
			e.escape(p, outcome, FateTransmitted, rec)
			return
		}
		p.Layer++
	} else {
		if p.Layer == 0 {
			e.escape(p, outcome, FateReflected, rec)
			return
		}
		p.Layer--
	}
}

// escape terminates a photon that refracted out of the stack
func (e *Engine) escape(p *Photon, outcome *HistoryOutcome, fate Fate, rec Recorder) {
	p.Alive = false
	outcome.Fate = fate
	outcome.ExitWeight = p.Weight
	outcome.ExitRadius = p.Position.Radius()
	outcome.ExitCosine = math.Abs(p.Direction.Z)
	if rec != nil {
		rec.RecordExit(fate, outcome.ExitRadius, p.Weight)
	}
	p.Weight = 0
}

// roulette stochastically terminates photons whose weight fell below the
// threshold, preserving expected energy by boosting survivors.
func (e *Engine) roulette(p *Photon, outcome *HistoryOutcome, sampler core.Sampler) {
	if !p.Alive || p.Weight >= e.config.RouletteThreshold {
		return
	}
	if p.Weight <= 0 {
		// Nothing left to gamble with; a zero-weight survivor would walk
		// forever
		p.Alive = false
		outcome.Fate = FateAbsorbed
		return
	}

	m := e.config.RouletteConstant
	if sampler.Get1D() < 1/m {
		boost := p.Weight * (m - 1)
		outcome.RouletteNet -= boost
		p.Weight += boost
		return
	}
	outcome.RouletteNet += p.Weight
	p.Weight = 0
	p.Alive = false
	outcome.Fate = FateAbsorbed
}
