package transport

import (
	"math"
	"testing"
)

func TestRadialRecorder_Binning(t *testing.T) {
	rec := NewRadialRecorder(GridSpec{DR: 0.2, DZ: 0.2, NR: 5, NZ: 4})

	rec.RecordExit(FateReflected, 0.05, 1.0) // bin 0
	rec.RecordExit(FateReflected, 0.25, 0.5) // bin 1
	rec.RecordExit(FateReflected, 99.0, 0.1) // overflow folds into last bin
	rec.RecordExit(FateTransmitted, 0.45, 0.7)

	if rec.rd[0] != 1.0 || rec.rd[1] != 0.5 {
		t.Errorf("rd bins: got %v", rec.rd)
	}
	if rec.rd[4] != 0.1 {
		t.Errorf("overflow should land in the last bin, got %v", rec.rd)
	}
	if rec.tt[2] != 0.7 {
		t.Errorf("tt bins: got %v", rec.tt)
	}

	rec.RecordDeposit(0.0, 0.3)  // bin 0
	rec.RecordDeposit(0.35, 0.2) // bin 1
	rec.RecordDeposit(5.0, 0.1)  // overflow
	if rec.az[0] != 0.3 || rec.az[1] != 0.2 || rec.az[3] != 0.1 {
		t.Errorf("az bins: got %v", rec.az)
	}
}

func TestRadialRecorder_Merge(t *testing.T) {
	spec := GridSpec{DR: 0.2, DZ: 0.2, NR: 3, NZ: 2}
	a := NewRadialRecorder(spec)
	b := NewRadialRecorder(spec)

	a.RecordExit(FateReflected, 0.1, 1.0)
	b.RecordExit(FateReflected, 0.1, 0.5)
	b.RecordExit(FateTransmitted, 0.5, 0.25)
	b.RecordDeposit(0.1, 0.4)

	a.Merge(b)

	if a.rd[0] != 1.5 {
		t.Errorf("merged rd[0]: expected 1.5, got %v", a.rd[0])
	}
	if a.tt[2] != 0.25 {
		t.Errorf("merged tt[2]: expected 0.25, got %v", a.tt[2])
	}
	if a.az[0] != 0.4 {
		t.Errorf("merged az[0]: expected 0.4, got %v", a.az[0])
	}
}

func TestRadialRecorder_ProfileNormalization(t *testing.T) {
	spec := GridSpec{DR: 0.2, DZ: 0.1, NR: 2, NZ: 2}
	rec := NewRadialRecorder(spec)
	rec.RecordExit(FateReflected, 0.1, 2.0) // bin 0
	rec.RecordDeposit(0.15, 3.0)            // depth bin 1

	const photons = 10
	p := rec.Profiles(photons)

	// Radial bin 0 center is 0.1; annulus area 2*pi*0.1*0.2
	area := 2 * math.Pi * 0.1 * 0.2
	expectedRd := 2.0 / (area * photons)
	if math.Abs(p.Rd[0]-expectedRd) > 1e-12 {
		t.Errorf("Rd[0]: expected %v, got %v", expectedRd, p.Rd[0])
	}
	if p.Rd[1] != 0 {
		t.Errorf("Rd[1]: expected 0, got %v", p.Rd[1])
	}

	expectedAz := 3.0 / (0.1 * photons)
	if math.Abs(p.Az[1]-expectedAz) > 1e-12 {
		t.Errorf("Az[1]: expected %v, got %v", expectedAz, p.Az[1])
	}

	if math.Abs(p.Radii[1]-0.3) > 1e-12 {
		t.Errorf("Radii[1]: expected 0.3, got %v", p.Radii[1])
	}
	if math.Abs(p.Depth[0]-0.05) > 1e-12 {
		t.Errorf("Depth[0]: expected 0.05, got %v", p.Depth[0])
	}
}

func TestRadialRecorder_EmptyProfiles(t *testing.T) {
	rec := NewRadialRecorder(DefaultGridSpec())
	p := rec.Profiles(0)

	for _, v := range p.Rd {
		if v != 0 {
			t.Fatal("profiles of an empty run must be zero")
		}
	}
}
