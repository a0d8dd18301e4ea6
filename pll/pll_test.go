package pll

import (
	"math"
	"testing"

	"github.com/keirfx/fluxkit/flux"
)

func TestAppendLocksOntoPeriodicFlux(t *testing.T) {
	d := NewDecoder()

	const n = 200
	transitions := make([]float64, n)
	for i := range transitions {
		transitions[i] = d.ClockNominal
	}
	indexTicks := []float64{d.ClockNominal * n}

	d.Append(flux.NewRecord(transitions, indexTicks, 1))

	if math.Abs(d.Clock()-d.ClockNominal) > 1e-9 {
		t.Fatalf("Clock() = %v, want within 1e-9 of nominal %v", d.Clock(), d.ClockNominal)
	}

	revs := d.Revolutions()
	if len(revs) != 1 {
		t.Fatalf("len(Revolutions()) = %d, want 1", len(revs))
	}
	rev := revs[0]
	if len(rev.Bits) != len(rev.Times) {
		t.Fatalf("len(Bits) = %d, len(Times) = %d, want equal", len(rev.Bits), len(rev.Times))
	}

	var sum float64
	for _, ti := range rev.Times {
		sum += ti
	}
	wantIndex := indexTicks[0]
	clockMax := d.ClockNominal * (1 + d.ClockMaxAdj)
	if math.Abs(sum-wantIndex) > clockMax {
		t.Errorf("sum(Times) = %v, want within clock_max of %v", sum, wantIndex)
	}
}

func TestClockStaysWithinBounds(t *testing.T) {
	d := NewDecoder()

	// Deliberately jittery transitions to exercise the out-of-sync branch.
	transitions := []float64{
		d.ClockNominal * 0.5, d.ClockNominal * 2.5, d.ClockNominal * 0.8,
		d.ClockNominal * 3.2, d.ClockNominal * 1.1, d.ClockNominal * 0.6,
	}
	indexTicks := []float64{0}
	for _, x := range transitions {
		indexTicks[0] += x
	}

	d.Append(flux.NewRecord(transitions, indexTicks, 1))

	clockMin := d.ClockNominal * (1 - d.ClockMaxAdj)
	clockMax := d.ClockNominal * (1 + d.ClockMaxAdj)
	if d.Clock() < clockMin-1e-12 || d.Clock() > clockMax+1e-12 {
		t.Errorf("Clock() = %v, want within [%v, %v]", d.Clock(), clockMin, clockMax)
	}
}

func TestAppendProducesOneRevolutionPerIndexMark(t *testing.T) {
	d := NewDecoder()

	const perRev = 50
	var transitions []float64
	for rev := 0; rev < 3; rev++ {
		for i := 0; i < perRev; i++ {
			transitions = append(transitions, d.ClockNominal)
		}
	}
	indexTicks := []float64{
		d.ClockNominal * perRev,
		d.ClockNominal * perRev,
		d.ClockNominal * perRev,
	}

	d.Append(flux.NewRecord(transitions, indexTicks, 1))

	if len(d.Revolutions()) != 3 {
		t.Fatalf("len(Revolutions()) = %d, want 3", len(d.Revolutions()))
	}
}
