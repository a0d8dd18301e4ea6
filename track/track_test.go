package track

import "testing"

func TestRewriteWeakRangeShort(t *testing.T) {
	const n = 64
	const s = 100
	bits := make([]bool, 200)
	bits[s-1] = true  // so bits[s] must become false after stitching
	bits[s+n] = true  // so bits[s+n-1] must become false after stitching
	bitTicks := make([]float64, len(bits))
	for i := range bitTicks {
		bitTicks[i] = 1
	}

	rewriteWeakRange(bits, bitTicks, Weak{Start: s, Length: n})

	if bits[s] != false {
		t.Errorf("bits[%d] = %v, want false (stitched against preceding 1)", s, bits[s])
	}
	if bits[s+n-1] != false {
		t.Errorf("bits[%d] = %v, want false", s+n-1, bits[s+n-1])
	}
	// Second repeat of the 32-bit pattern starts with a set bit, untouched
	// by boundary stitching.
	if bits[s+32] != true {
		t.Errorf("bits[%d] = %v, want true (pattern repeat)", s+32, bits[s+32])
	}
	for _, i := range []int{s + 1, s + 31, s + 33, s + 63} {
		if bits[i] != false {
			t.Errorf("bits[%d] = %v, want false", i, bits[i])
		}
	}
}

func TestRewriteWeakRangeLongRedistributesTicks(t *testing.T) {
	const n = 400
	const s = 10
	bits := make([]bool, 500)
	bitTicks := make([]float64, len(bits))
	for i := range bitTicks {
		bitTicks[i] = 1
	}
	bitTicks[s+11] = 2 // distinguish from the uniform fill

	rewriteWeakRange(bits, bitTicks, Weak{Start: s, Length: n})

	gotTicks10 := bitTicks[s+10]
	gotTicks11 := bitTicks[s+11]
	if gotTicks11 != 1 {
		t.Errorf("bitTicks[s+11] = %v, want 1 (half of original 2)", gotTicks11)
	}
	if gotTicks10 != 2 {
		t.Errorf("bitTicks[s+10] = %v, want 2 (1 + half of original 2)", gotTicks10)
	}
}

func TestFluxPreservesTotalTicks(t *testing.T) {
	bitTicks := make([]float64, 64)
	var want float64
	for i := range bitTicks {
		bitTicks[i] = float64(i%3 + 1)
		want += bitTicks[i]
	}
	bits := make([]bool, 64)
	bits[0] = true
	bits[10] = true
	bits[30] = true

	mt := &MasterTrack{
		Bits:       bits,
		TimePerRev: 0.2,
		BitTicks:   bitTicks,
		Splice:     0,
	}

	rec := mt.Flux()
	if len(rec.IndexTicks) != 1 {
		t.Fatalf("len(IndexTicks) = %d, want 1", len(rec.IndexTicks))
	}
	if rec.IndexTicks[0] != want {
		t.Errorf("IndexTicks[0] = %v, want %v", rec.IndexTicks[0], want)
	}
	if rec.SampleFreqHz != want/mt.TimePerRev {
		t.Errorf("SampleFreqHz = %v, want %v", rec.SampleFreqHz, want/mt.TimePerRev)
	}
}

func TestFluxUniformBitTicksEmitsOneTransitionPerSetBit(t *testing.T) {
	bits := []bool{false, false, true, false, true, true}
	mt := &MasterTrack{Bits: bits, TimePerRev: 1}

	rec := mt.Flux()
	// Transitions accumulate ticks between set bits: 3 (to index2), 2 (to
	// index4), 1 (to index5); a uniform track never emits a trailing
	// remainder unless for_writeout is set.
	want := []float64{3, 2, 1}
	if len(rec.Transitions) != len(want) {
		t.Fatalf("Transitions = %v, want %v", rec.Transitions, want)
	}
	for i := range want {
		if rec.Transitions[i] != want[i] {
			t.Errorf("Transitions[%d] = %v, want %v", i, rec.Transitions[i], want[i])
		}
	}
}

func TestFluxForWriteoutSpliceAtIndexTerminates(t *testing.T) {
	bits := make([]bool, 64)
	bits[5] = true
	mt := &MasterTrack{Bits: bits, TimePerRev: 1, Splice: 0}

	w := mt.FluxForWriteout()
	if !w.TerminateAtIndex {
		t.Error("TerminateAtIndex = false, want true for splice at index")
	}
}
