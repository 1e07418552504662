package transport

// Fate classifies how a photon history ended.
type Fate int

const (
	// FateAbsorbed means the photon's energy was deposited in the stack
	// (including termination by roulette)
	FateAbsorbed Fate = iota
	// FateReflected means the photon escaped through the top boundary
	FateReflected
	// FateTransmitted means the photon escaped through the bottom boundary
	FateTransmitted
)

func (f Fate) String() string {
	switch f {
	case FateAbsorbed:
		return "absorbed"
	case FateReflected:
		return "reflected"
	case FateTransmitted:
		return "transmitted"
	default:
		return "unknown"
	}
}

// HistoryOutcome is the immutable record of one completed photon history.
// Energy bookkeeping is exact: the per-layer absorbed weights, the exit
// weight, and the net roulette adjustment always sum to the launched
// weight of 1.
type HistoryOutcome struct {
	Fate          Fate
	ExitWeight    float64   // weight carried out of the stack; 0 when absorbed
	ExitRadius    float64   // radial distance from the launch axis at exit
	ExitCosine    float64   // |uz| at exit; 0 when absorbed
	LayerAbsorbed []float64 // weight deposited per layer, in stack order
	RouletteNet   float64   // residual weight killed minus survival boosts
	Scatters      int
	PathLength    float64 // total geometric path travelled, in cm
}
