// Package flux holds the timing-domain value types shared by the SCP codec,
// the master-track projector and the PLL decoder: streams of inter-transition
// intervals measured in sample ticks of a capture clock.
package flux

// Record is an immutable capture of one track's worth of raw magnetic flux:
// the intervals between consecutive flux reversals, the intervals between
// consecutive index pulses, and the sample clock the ticks are measured in.
//
// Transitions and IndexTicks are both in units of 1/SampleFreqHz seconds.
// The sum of Transitions must cover at least the sum of IndexTicks: the
// capture is expected to span every indexed revolution it reports.
type Record struct {
	Transitions  []float64
	IndexTicks   []float64
	SampleFreqHz float64
}

// Writeout extends Record with the extra instruction a drive needs to
// terminate a write safely: stop as soon as the next index pulse arrives,
// regardless of how much flux data remains buffered.
type Writeout struct {
	Record
	TerminateAtIndex bool
}

// NewRecord builds a Record, copying none of its slices.
func NewRecord(transitions, indexTicks []float64, sampleFreqHz float64) Record {
	return Record{
		Transitions:  transitions,
		IndexTicks:   indexTicks,
		SampleFreqHz: sampleFreqHz,
	}
}

// Revolutions returns the number of revolutions this record's IndexTicks
// describes.
func (r Record) Revolutions() int {
	return len(r.IndexTicks)
}

// Source is anything that can project itself to a flux Record: the
// MasterTrack is the only implementation in this module, but the SCP codec
// depends only on this interface so other track representations can feed it.
type Source interface {
	Flux() Record
}
