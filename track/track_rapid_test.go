package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// TestFluxConservesTotalTicks checks the tick-conservation law behind §4.2:
// before any write-out extension, a MasterTrack's projected index-tick total
// always equals the sum of its bit_ticks, whatever splice offset or per-bit
// duration the track carries.
func TestFluxConservesTotalTicks(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(8, 200).Draw(rt, "n")
		bits := make([]bool, n)
		bitTicks := make([]float64, n)
		var want float64
		for i := range bits {
			bits[i] = rapid.Bool().Draw(rt, "bit")
			bitTicks[i] = rapid.Float64Range(0.1, 10).Draw(rt, "ticks")
			want += bitTicks[i]
		}
		// At least one bit must be set so Flux has a well-defined transition
		// stream to build from.
		bits[0] = true
		splice := rapid.IntRange(0, n-1).Draw(rt, "splice")

		mt := &MasterTrack{
			Bits:       bits,
			TimePerRev: 0.2,
			BitTicks:   bitTicks,
			Splice:     splice,
		}

		rec := mt.Flux()
		assert.Len(rt, rec.IndexTicks, 1)
		assert.InDelta(rt, want, rec.IndexTicks[0], 1e-9, "total ticks must be conserved by rotation alone")
	})
}
