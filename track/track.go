// Package track implements MasterTrack, the pristine bitcell
// representation of a disk track: a bit sequence with splice and weak-region
// metadata that projects itself to a flux.Record (or, for writeout, a
// flux.Writeout with splice-dependent padding).
package track

import "github.com/keirfx/fluxkit/flux"

// Weak is a byte (really bitcell) range whose readings are deliberately
// non-deterministic, typically used for copy protection. Start and Length
// are in bitcells; 0 < Start and Start+Length < len(Bits).
type Weak struct {
	Start  int
	Length int
}

// MasterTrack is a pristine bitcell stream aligned so that bit 0 follows
// the write splice.
type MasterTrack struct {
	// Bits is the track's bitcell data, aligned to the write splice.
	Bits []bool
	// TimePerRev is the time for one revolution, in seconds.
	TimePerRev float64
	// BitTicks gives each bitcell's relative duration. Nil means every bit
	// shares the same duration; the sum of ticks maps linearly to TimePerRev.
	BitTicks []float64
	// Splice is the bitcell offset of the write splice, after the index.
	Splice int
	// Weak lists the track's weak (deliberately fuzzy) ranges.
	Weak []Weak
}

// Bitrate returns bits per second implied by Bits and TimePerRev.
func (t *MasterTrack) Bitrate() float64 {
	return float64(len(t.Bits)) / t.TimePerRev
}

// Flux projects the track to a flux.Record suitable for get_track-style
// consumption; it does not extend the track with write-out filler.
func (t *MasterTrack) Flux() flux.Record {
	return t.flux(false).Record
}

// FluxForWriteout projects the track to a flux.Writeout, extended with
// splice-dependent filler so a drive with a slow motor still lands cleanly
// on the index pulse.
func (t *MasterTrack) FluxForWriteout() flux.Writeout {
	return t.flux(true)
}

func (t *MasterTrack) flux(forWriteout bool) flux.Writeout {
	bitlen := len(t.Bits)
	bits := append([]bool(nil), t.Bits...)

	var bitTicks []float64
	if t.BitTicks != nil {
		bitTicks = append([]float64(nil), t.BitTicks...)
	} else {
		bitTicks = make([]float64, bitlen)
		for i := range bitTicks {
			bitTicks[i] = 1
		}
	}

	var ticksToIndex float64
	for _, v := range bitTicks {
		ticksToIndex += v
	}

	for _, w := range t.Weak {
		rewriteWeakRange(bits, bitTicks, w)
	}

	index := mod(-t.Splice, bitlen)
	if index != 0 {
		bits = rotateBools(bits, index)
		bitTicks = rotateFloats(bitTicks, index)
	}
	spliceAtIndex := index < 4 || bitlen-index < 4

	if forWriteout {
		if spliceAtIndex {
			bits, bitTicks = extendFooter(bits, bitTicks, t.Splice, bitlen)
		} else {
			bits, bitTicks = extendHeader(bits, bitTicks, t.Splice)
		}
	}

	var transitions []float64
	var fluxTicks float64
	for i, b := range bits {
		fluxTicks += bitTicks[i]
		if b {
			transitions = append(transitions, fluxTicks)
			fluxTicks = 0
		}
	}
	if fluxTicks > 0 && forWriteout {
		transitions = append(transitions, fluxTicks)
	}

	rec := flux.NewRecord(transitions, []float64{ticksToIndex}, ticksToIndex/t.TimePerRev)
	return flux.Writeout{Record: rec, TerminateAtIndex: spliceAtIndex}
}

// rewriteWeakRange overlays the weak pattern for one (start, length) range
// in place, per §4.2.1: a flux-every-32-bits filler for short ranges, a
// fuzzy MFM clock bit for long ranges, and boundary stitching either way.
func rewriteWeakRange(bits []bool, bitTicks []float64, w Weak) {
	s, n := w.Start, w.Length
	e := s + n

	if n < 400 {
		pattern := [32]bool{true} // 0x80000000: a single set bit every 32 cells
		for i := s; i < e; i++ {
			bits[i] = pattern[(i-s)%32]
		}
	} else {
		pattern := [16]bool{false, false, false, true, false, false, true, false, true, false, true, false, false, true, false, true} // 0x12, 0xA5
		for i := s; i < e; i++ {
			bits[i] = pattern[(i-s)%16]
		}
		for i := 0; i < n-10; i += 16 {
			x, y := bitTicks[s+i+10], bitTicks[s+i+11]
			bitTicks[s+i+10] = x + y*0.5
			bitTicks[s+i+11] = y * 0.5
		}
	}

	// Starting with a 1 if we just clocked out a 0 keeps the overlay from
	// extending a preceding sync word.
	bits[s] = !bits[s-1]
	bits[e-1] = !(bits[e-2] || bits[e])
}

// extendFooter implements the splice-at-index write-out extension: repeat
// the 32 bits preceding (splice-4) bitlen/320 times to give a slow drive
// extra footer before it hits the index pulse.
func extendFooter(bits []bool, bitTicks []float64, splice, bitlen int) ([]bool, []float64) {
	pos := mod(splice-4, bitlen)
	rep := bitlen / (10 * 32)

	outBits := append([]bool(nil), bits[:pos]...)
	outTicks := append([]float64(nil), bitTicks[:pos]...)
	for r := 0; r < rep; r++ {
		outBits = append(outBits, bits[pos-32:pos]...)
		outTicks = append(outTicks, bitTicks[pos-32:pos]...)
	}
	return outBits, outTicks
}

// extendHeader implements the splice-elsewhere write-out extension: repeat
// the track's own lead-in at the end, then backfill the start of the
// buffer with the 32-bit window preceding (splice+4) so a slow drive still
// sees valid fill leading into the real data.
func extendHeader(bits []bool, bitTicks []float64, splice int) ([]bool, []float64) {
	prefixLen := splice - 4
	outBits := append(append([]bool(nil), bits...), bits[:prefixLen]...)
	outTicks := append(append([]float64(nil), bitTicks...), bitTicks[:prefixLen]...)

	pos := splice + 4
	fillPattern := append([]bool(nil), outBits[pos:pos+32]...)
	for pos >= 32 {
		pos -= 32
		copy(outBits[pos:pos+32], fillPattern)
	}
	return outBits, outTicks
}

func rotateBools(s []bool, n int) []bool {
	out := make([]bool, len(s))
	copy(out, s[n:])
	copy(out[len(s)-n:], s[:n])
	return out
}

func rotateFloats(s []float64, n int) []float64 {
	out := make([]float64, len(s))
	copy(out, s[n:])
	copy(out[len(s)-n:], s[:n])
	return out
}

// mod is floor-style modulo: always in [0, m).
func mod(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}
