package transport

import (
	"math"
	"math/rand"
	"testing"
)

// randomOutcomes builds a reproducible set of synthetic history outcomes
func randomOutcomes(seed int64, n, layers int) []HistoryOutcome {
	random := rand.New(rand.NewSource(seed))
	outcomes := make([]HistoryOutcome, n)
	for i := range outcomes {
		o := HistoryOutcome{
			Fate:          Fate(random.Intn(3)),
			LayerAbsorbed: make([]float64, layers),
			Scatters:      random.Intn(50),
			PathLength:    random.Float64() * 10,
		}
		for j := range o.LayerAbsorbed {
			o.LayerAbsorbed[j] = random.Float64() * 0.2
		}
		if o.Fate != FateAbsorbed {
			o.ExitWeight = random.Float64()
			o.ExitRadius = random.Float64() * 3
		}
		outcomes[i] = o
	}
	return outcomes
}

func TestDataset_AddClassifiesFates(t *testing.T) {
	d := NewDataset(2)

	d.Add(HistoryOutcome{Fate: FateReflected, ExitWeight: 0.5, LayerAbsorbed: []float64{0.3, 0.2}})
	d.Add(HistoryOutcome{Fate: FateTransmitted, ExitWeight: 0.25, LayerAbsorbed: []float64{0.5, 0.25}})
	d.Add(HistoryOutcome{Fate: FateAbsorbed, LayerAbsorbed: []float64{0.9, 0.1}})

	if d.TotalPhotons != 3 {
		t.Errorf("TotalPhotons: expected 3, got %d", d.TotalPhotons)
	}
	if d.ReflectedCount != 1 || d.TransmittedCount != 1 || d.AbsorbedCount != 1 {
		t.Errorf("fate counts: got R=%d T=%d A=%d", d.ReflectedCount, d.TransmittedCount, d.AbsorbedCount)
	}
	if math.Abs(d.ReflectedSum-0.5) > 1e-12 {
		t.Errorf("ReflectedSum: expected 0.5, got %v", d.ReflectedSum)
	}
	if math.Abs(d.TransmittedSum-0.25) > 1e-12 {
		t.Errorf("TransmittedSum: expected 0.25, got %v", d.TransmittedSum)
	}
	if math.Abs(d.LayerAbsorbed[0]-1.7) > 1e-12 {
		t.Errorf("LayerAbsorbed[0]: expected 1.7, got %v", d.LayerAbsorbed[0])
	}

	// One sample per history, in launch order, zero for the absorbed one
	expected := []float64{0.5, 0.25, 0}
	if len(d.Samples) != len(expected) {
		t.Fatalf("expected %d samples, got %d", len(expected), len(d.Samples))
	}
	for i, s := range d.Samples {
		if s != expected[i] {
			t.Errorf("sample %d: expected %v, got %v", i, expected[i], s)
		}
	}
}

func TestDataset_SampleCountMatchesPhotons(t *testing.T) {
	d := NewDataset(4)
	for _, o := range randomOutcomes(3, 1000, 4) {
		d.Add(o)
	}
	if len(d.Samples) != d.TotalPhotons {
		t.Errorf("sample count %d != photons %d", len(d.Samples), d.TotalPhotons)
	}
}

func TestDataset_MergeMatchesSequential(t *testing.T) {
	const layers = 4
	outcomes := randomOutcomes(17, 999, layers)

	sequential := NewDataset(layers)
	for _, o := range outcomes {
		sequential.Add(o)
	}

	// Partition into uneven chunks and reduce the partials
	chunks := [][]HistoryOutcome{outcomes[:100], outcomes[100:450], outcomes[450:999]}
	merged := NewDataset(layers)
	for _, chunk := range chunks {
		partial := NewDataset(layers)
		for _, o := range chunk {
			partial.Add(o)
		}
		merged.Merge(partial)
	}

	if merged.TotalPhotons != sequential.TotalPhotons {
		t.Errorf("TotalPhotons: %d vs %d", merged.TotalPhotons, sequential.TotalPhotons)
	}

	const tolerance = 1e-12
	if math.Abs(merged.ReflectedSum-sequential.ReflectedSum) > tolerance {
		t.Errorf("ReflectedSum: %v vs %v", merged.ReflectedSum, sequential.ReflectedSum)
	}
	if math.Abs(merged.TransmittedSum-sequential.TransmittedSum) > tolerance {
		t.Errorf("TransmittedSum: %v vs %v", merged.TransmittedSum, sequential.TransmittedSum)
	}
	for i := 0; i < layers; i++ {
		if math.Abs(merged.LayerAbsorbed[i]-sequential.LayerAbsorbed[i]) > tolerance {
			t.Errorf("LayerAbsorbed[%d]: %v vs %v", i, merged.LayerAbsorbed[i], sequential.LayerAbsorbed[i])
		}
	}

	// Sample order must be preserved exactly by in-order merging
	if len(merged.Samples) != len(sequential.Samples) {
		t.Fatalf("sample counts differ: %d vs %d", len(merged.Samples), len(sequential.Samples))
	}
	for i := range merged.Samples {
		if merged.Samples[i] != sequential.Samples[i] {
			t.Fatalf("sample %d differs: %v vs %v", i, merged.Samples[i], sequential.Samples[i])
		}
	}
}

func TestDataset_EmptyAccessors(t *testing.T) {
	d := NewDataset(3)

	if d.DiffuseReflectance() != 0 || d.Transmittance() != 0 || d.AbsorbedFraction() != 0 {
		t.Error("empty dataset must report zero fractions")
	}
	if d.MeanPathLength() != 0 {
		t.Error("empty dataset must report zero mean path")
	}
	for _, f := range d.LayerAbsorbedFractions() {
		if f != 0 {
			t.Error("empty dataset must report zero layer fractions")
		}
	}
}

func TestDataset_NormalizedAccessors(t *testing.T) {
	d := NewDataset(2)
	d.Add(HistoryOutcome{Fate: FateReflected, ExitWeight: 0.6, LayerAbsorbed: []float64{0.4, 0}, PathLength: 2})
	d.Add(HistoryOutcome{Fate: FateAbsorbed, LayerAbsorbed: []float64{0.5, 0.5}, PathLength: 4})

	const tolerance = 1e-12
	if math.Abs(d.DiffuseReflectance()-0.3) > tolerance {
		t.Errorf("DiffuseReflectance: expected 0.3, got %v", d.DiffuseReflectance())
	}
	if math.Abs(d.AbsorbedFraction()-0.7) > tolerance {
		t.Errorf("AbsorbedFraction: expected 0.7, got %v", d.AbsorbedFraction())
	}
	if math.Abs(d.MeanPathLength()-3) > tolerance {
		t.Errorf("MeanPathLength: expected 3, got %v", d.MeanPathLength())
	}

	fractions := d.LayerAbsorbedFractions()
	if math.Abs(fractions[0]-0.45) > tolerance || math.Abs(fractions[1]-0.25) > tolerance {
		t.Errorf("LayerAbsorbedFractions: got %v", fractions)
	}
}
