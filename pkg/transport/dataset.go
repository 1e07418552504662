package transport

// SimulationDataset is the reduction of many photon histories: fate totals,
// per-layer absorption, and the ordered per-photon exit-weight samples the
// statistical analyzer consumes. Reduction is associative, so worker-local
// datasets can be merged in any grouping; merging in a fixed order keeps
// the sample sequence deterministic.
type SimulationDataset struct {
	TotalPhotons     int
	ReflectedSum     float64   // summed exit weight through the top
	TransmittedSum   float64   // summed exit weight through the bottom
	LayerAbsorbed    []float64 // summed absorbed weight per layer
	RouletteNetSum   float64
	TotalPathLength  float64
	TotalScatters    int
	ReflectedCount   int
	TransmittedCount int
	AbsorbedCount    int
	Samples          []float64 // per-photon exit weights in launch order
}

// NewDataset creates an empty dataset for a stack with numLayers layers
func NewDataset(numLayers int) *SimulationDataset {
	return &SimulationDataset{
		LayerAbsorbed: make([]float64, numLayers),
	}
}

// Add folds one history outcome into the dataset
func (d *SimulationDataset) Add(o HistoryOutcome) {
	d.TotalPhotons++
	d.TotalPathLength += o.PathLength
	d.TotalScatters += o.Scatters
	d.RouletteNetSum += o.RouletteNet

	for i, w := range o.LayerAbsorbed {
		d.LayerAbsorbed[i] += w
	}

	switch o.Fate {
	case FateReflected:
		d.ReflectedSum += o.ExitWeight
		d.ReflectedCount++
	case FateTransmitted:
		d.TransmittedSum += o.ExitWeight
		d.TransmittedCount++
	default:
		d.AbsorbedCount++
	}

	d.Samples = append(d.Samples, o.ExitWeight)
}

// Merge folds another dataset into this one. The other dataset's samples
// are appended after this dataset's, so merging partial datasets in batch
// order reproduces the sequential sample order.
func (d *SimulationDataset) Merge(other *SimulationDataset) {
	d.TotalPhotons += other.TotalPhotons
	d.ReflectedSum += other.ReflectedSum
	d.TransmittedSum += other.TransmittedSum
	d.RouletteNetSum += other.RouletteNetSum
	d.TotalPathLength += other.TotalPathLength
	d.TotalScatters += other.TotalScatters
	d.ReflectedCount += other.ReflectedCount
	d.TransmittedCount += other.TransmittedCount
	d.AbsorbedCount += other.AbsorbedCount

	for i, w := range other.LayerAbsorbed {
		d.LayerAbsorbed[i] += w
	}
	d.Samples = append(d.Samples, other.Samples...)
}

// DiffuseReflectance returns the fraction of launched energy that escaped
// through the top boundary
func (d *SimulationDataset) DiffuseReflectance() float64 {
	if d.TotalPhotons == 0 {
		return 0
	}
	return d.ReflectedSum / float64(d.TotalPhotons)
}

// Transmittance returns the fraction of launched energy that escaped
// through the bottom boundary
func (d *SimulationDataset) Transmittance() float64 {
	if d.TotalPhotons == 0 {
		return 0
	}
	return d.TransmittedSum / float64(d.TotalPhotons)
}

// AbsorbedFraction returns the fraction of launched energy deposited in
// the stack
func (d *SimulationDataset) AbsorbedFraction() float64 {
	if d.TotalPhotons == 0 {
		return 0
	}
	sum := 0.0
	for _, w := range d.LayerAbsorbed {
		sum += w
	}
	return sum / float64(d.TotalPhotons)
}

// LayerAbsorbedFractions returns per-layer absorbed energy as fractions of
// launched energy
func (d *SimulationDataset) LayerAbsorbedFractions() []float64 {
	out := make([]float64, len(d.LayerAbsorbed))
	if d.TotalPhotons == 0 {
		return out
	}
	n := float64(d.TotalPhotons)
	for i, w := range d.LayerAbsorbed {
		out[i] = w / n
	}
	return out
}

// MeanPathLength returns the average geometric path per photon in cm
func (d *SimulationDataset) MeanPathLength() float64 {
	if d.TotalPhotons == 0 {
		return 0
	}
	return d.TotalPathLength / float64(d.TotalPhotons)
}
