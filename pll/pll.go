// Package pll implements the single-pole software phase-locked loop that
// turns a flux.Record's transition intervals into clocked bitcell streams,
// one per disk revolution.
// Based on pll_t from legacy/mfmdisk/scp.c, generalised to close out a
// revolution at each index mark instead of running over a single flux
// buffer of unknown length.
package pll

import "github.com/keirfx/fluxkit/flux"

// Default PLL parameters, expressed as percentages to match the constants
// this decoder is descended from.
const (
	// ClockMaxAdjPct is the +/- adjustment range (90%-110% of clockNominal).
	ClockMaxAdjPct = 10
	// PeriodAdjPct is the fraction of phase error folded into clock period.
	PeriodAdjPct = 5
	// PhaseAdjPct is the fraction of phase error absorbed into the current bitcell.
	PhaseAdjPct = 60
)

// Revolution is one decoded disk revolution: a clocked bit vector and the
// elapsed time (seconds) the PLL attributed to each bit.
type Revolution struct {
	Bits  []bool
	Times []float64
}

// Decoder is a single-pole PLL that consumes flux.Record values and
// accumulates decoded Revolutions. Its state (clock, unread phase ticks) is
// local to one Append call; it does not carry a running clock estimate
// across separate images the way a continuously-spinning drive would.
type Decoder struct {
	// ClockNominal is the PLL's target bitcell period in seconds (default
	// 2e-6, 500 kbit/s HD MFM).
	ClockNominal float64
	// ClockMaxAdj is the fractional clamp around ClockNominal (default 0.10).
	ClockMaxAdj float64
	// PeriodAdj is the fraction of phase error applied to clock period (default 0.05).
	PeriodAdj float64
	// PhaseAdj is the fraction of phase error absorbed per bitcell (default 0.60).
	PhaseAdj float64

	revolutions []Revolution
	lastClock   float64
}

// NewDecoder returns a Decoder with the standard Greaseweazle PLL defaults.
func NewDecoder() *Decoder {
	return &Decoder{
		ClockNominal: 2e-6,
		ClockMaxAdj:  ClockMaxAdjPct / 100.0,
		PeriodAdj:    PeriodAdjPct / 100.0,
		PhaseAdj:     PhaseAdjPct / 100.0,
	}
}

// Clock returns the PLL's clock period (seconds) at the end of the most
// recent Append call.
func (d *Decoder) Clock() float64 {
	return d.lastClock
}

// Revolutions returns every revolution decoded so far, across all Append calls.
func (d *Decoder) Revolutions() []Revolution {
	return d.revolutions
}

// Append decodes fr and appends one Revolution per index mark it describes.
// The clock starts each call at ClockNominal: this mirrors the reference
// decoder, which re-centres rather than carrying a running estimate between
// unrelated flux captures.
func (d *Decoder) Append(fr flux.Record) {
	clock := d.ClockNominal
	clockMin := d.ClockNominal * (1 - d.ClockMaxAdj)
	clockMax := d.ClockNominal * (1 + d.ClockMaxAdj)
	freq := fr.SampleFreqHz

	indexSecs := make([]float64, len(fr.IndexTicks))
	for i, t := range fr.IndexTicks {
		indexSecs[i] = t / freq
	}

	var sentinel float64
	for _, t := range fr.IndexTicks {
		sentinel += t
	}
	stream := make([]float64, 0, len(fr.Transitions)+1)
	stream = append(stream, fr.Transitions...)
	stream = append(stream, sentinel)

	idx := 0
	toIndex := indexSecs[idx]
	idx++

	var bits []bool
	var times []float64
	ticks := 0.0

	for _, x := range stream {
		ticks += x / freq
		if ticks < clock/2 {
			continue
		}

		// Clock out zero or more 0s, followed by a 1.
		zeros := 0
		for {
			toIndex -= clock
			if toIndex < 0 {
				d.revolutions = append(d.revolutions, Revolution{Bits: bits, Times: times})
				if idx >= len(indexSecs) {
					d.lastClock = clock
					return
				}
				toIndex += indexSecs[idx]
				idx++
				bits, times = nil, nil
			}

			ticks -= clock
			times = append(times, clock)
			if ticks >= clock/2 {
				zeros++
				bits = append(bits, false)
				continue
			}
			bits = append(bits, true)
			break
		}

		// PLL: adjust clock period according to phase mismatch.
		if zeros <= 3 {
			clock += ticks * d.PeriodAdj
		} else {
			clock += (d.ClockNominal - clock) * d.PeriodAdj
		}
		if clock < clockMin {
			clock = clockMin
		}
		if clock > clockMax {
			clock = clockMax
		}

		// PLL: adjust clock phase according to mismatch.
		newTicks := ticks * (1 - d.PhaseAdj)
		times[len(times)-1] += ticks - newTicks
		ticks = newTicks
	}

	// The sentinel guarantees every revolution closes before the flux
	// stream is exhausted; reaching here means it did not.
	panic("pll: flux stream exhausted before all revolutions closed")
}
