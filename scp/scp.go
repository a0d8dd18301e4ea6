// Package scp implements the SuperCard Pro (.scp) flux image container: a
// 16-byte header, a 672-byte track lookup table, and a sequence of per-track
// revolution headers plus 16-bit cell data. The codec decodes an SCP byte
// image into per-track flux.Record values and encodes flux.Source tracks
// (normally a track.MasterTrack) back into SCP bytes.
package scp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/keirfx/fluxkit/flux"
)

// SampleFreqHz is the fixed 40MHz sample clock of the SCP format: one tick
// is 25ns.
const SampleFreqHz = 40_000_000

const (
	headerSize    = 16
	tlutOffset    = headerSize
	tlutSize      = 0x2a0
	trackDataBase = headerSize + tlutSize // 0x2b0
	maxTracks     = tlutSize / 4          // 168
)

// Errors returned by Decode and Encode. They are always fatal to the
// operation in progress; no partial result is returned alongside them.
var (
	ErrBadSignature          = errors.New("scp: bad image signature")
	ErrBadTrackTable         = errors.New("scp: bad track lookup table")
	ErrMissingTrackSignature = errors.New("scp: missing track signature")
	ErrTrackNumberMismatch   = errors.New("scp: track number mismatch")
	ErrTooManyTracks         = errors.New("scp: too many tracks for track table")
	ErrRevisionCountMismatch = errors.New("scp: revolution count mismatch")
)

// revHeader is one 12-byte SCP revolution header: index period, cell count,
// and the byte offset of this revolution's cell data relative to the start
// of the track record.
type revHeader struct {
	IndexTicks uint32
	CellCount  uint32
	DataOffset uint32
}

// trackData is the on-disk representation of one track: its revolution
// headers and the raw 16-bit big-endian cell bytes backing them. It serves
// both the decode path (sliced from the source image) and the encode path
// (built up by EmitTrack).
type trackData struct {
	revs  []revHeader
	cells []byte
}

// Codec holds a set of tracks, keyed by TrackKey (cylinder*2 + side),
// either parsed from an SCP image by Decode or accumulated by EmitTrack for
// a later Encode.
type Codec struct {
	tracks     map[int]*trackData
	nrRevs     int
	haveNrRevs bool

	// LegacySS, when set before Encode, re-keys a single-sided image as
	// key/2 to match old tools that expect consecutive TLUT entries
	// instead of every other one.
	LegacySS bool
}

// NewCodec returns an empty codec ready for EmitTrack calls.
func NewCodec() *Codec {
	return &Codec{tracks: make(map[int]*trackData)}
}

// Decode parses an SCP byte image into a populated Codec.
func Decode(data []byte) (*Codec, error) {
	if len(data) < trackDataBase {
		return nil, fmt.Errorf("scp: image too short for header and track table: %w", ErrBadSignature)
	}
	if string(data[0:3]) != "SCP" {
		return nil, ErrBadSignature
	}

	nrRevs := int(data[5])
	flags := data[8]
	singleSided := data[10]

	indexCued := flags&1 != 0 || nrRevs == 1
	if !indexCued {
		nrRevs--
	}

	trkOffs := make([]uint32, maxTracks)
	for i := range trkOffs {
		off := tlutOffset + i*4
		trkOffs[i] = binary.LittleEndian.Uint32(data[off : off+4])
	}

	// Some tools emit a short TLUT; truncate at the first offset that
	// points back into the TLUT region itself.
	for i := 0; i < len(trkOffs); i++ {
		off := trkOffs[i]
		if off == 0 || off >= trackDataBase {
			continue
		}
		newLen := int(off)/4 - 4
		if newLen < 0 {
			return nil, ErrBadTrackTable
		}
		if newLen < len(trkOffs) {
			trkOffs = trkOffs[:newLen]
		}
	}

	c := NewCodec()
	c.nrRevs = nrRevs
	c.haveNrRevs = true

	hdrLen := 4 + 12*nrRevs
	for tnr, trkOff := range trkOffs {
		if trkOff == 0 {
			continue
		}
		start := int(trkOff)
		if start+hdrLen > len(data) {
			return nil, fmt.Errorf("scp: track %d: truncated record", tnr)
		}
		thdr := data[start : start+hdrLen]
		if string(thdr[0:3]) != "TRK" {
			return nil, ErrMissingTrackSignature
		}
		if int(thdr[3]) != tnr {
			return nil, ErrTrackNumberMismatch
		}

		revs := make([]revHeader, nrRevs)
		for i := range revs {
			b := thdr[4+i*12 : 4+i*12+12]
			revs[i] = revHeader{
				IndexTicks: binary.LittleEndian.Uint32(b[0:4]),
				CellCount:  binary.LittleEndian.Uint32(b[4:8]),
				DataOffset: binary.LittleEndian.Uint32(b[8:12]),
			}
		}

		var sOff uint32
		if indexCued {
			sOff = revs[0].DataOffset
		} else {
			// The first revolution is a partial pre-index capture;
			// its cell data is not part of the usable range.
			sOff = revs[1].DataOffset
		}
		last := revs[len(revs)-1]
		eOff := last.DataOffset + last.CellCount*2
		if sOff == eOff {
			// Dummy track header with no data, emitted by some tools.
			continue
		}

		dataStart := start + int(sOff)
		dataEnd := start + int(eOff)
		if dataStart < 0 || dataEnd > len(data) || dataStart > dataEnd {
			return nil, fmt.Errorf("scp: track %d: cell data out of bounds", tnr)
		}

		c.tracks[tnr] = &trackData{revs: revs, cells: data[dataStart:dataEnd]}
	}

	// Legacy tools sometimes write a single-sided image using consecutive
	// TLUT entries instead of every-other-one. Detect and fix up.
	even, odd := c.SideCount()
	if singleSided != 0 && even > 0 && odd > 0 {
		remapped := make(map[int]*trackData, len(c.tracks))
		for k, v := range c.tracks {
			remapped[2*k+int(singleSided)-1] = v
		}
		c.tracks = remapped
	}

	return c, nil
}

// GetTrack returns the flux.Record decoded from the given track's cell
// data, or false if no track is stored at that key.
func (c *Codec) GetTrack(cyl, side int) (flux.Record, bool) {
	td, ok := c.tracks[cyl*2+side]
	if !ok {
		return flux.Record{}, false
	}

	indexTicks := make([]float64, len(td.revs))
	for i, r := range td.revs {
		indexTicks[i] = float64(r.IndexTicks)
	}

	return flux.NewRecord(decodeCells(td.cells), indexTicks, SampleFreqHz), true
}

// decodeCells unpacks 16-bit big-endian SCP cells into transition
// intervals. A zero cell carries 65536 ticks into the following non-zero
// cell; a dangling overflow at the end of the data is dropped.
func decodeCells(cells []byte) []float64 {
	var transitions []float64
	var overflow float64
	for i := 0; i+1 < len(cells); i += 2 {
		v := uint16(cells[i])<<8 | uint16(cells[i+1])
		if v == 0 {
			overflow += 65536
			continue
		}
		transitions = append(transitions, overflow+float64(v))
		overflow = 0
	}
	return transitions
}

// SideCount returns the number of populated track keys on side 0 (even
// keys) and side 1 (odd keys).
func (c *Codec) SideCount() (even, odd int) {
	for k := range c.tracks {
		if k&1 == 0 {
			even++
		} else {
			odd++
		}
	}
	return
}

// EmitTrack converts track's flux projection into SCP revolution headers
// and cell data at the 40MHz SCP rate, and stores the result under the
// given (cylinder, side) key. Every call in a codec's lifetime must agree
// on the number of revolutions; the first call fixes it.
func (c *Codec) EmitTrack(cyl, side int, track flux.Source) error {
	fr := track.Flux()
	nrRevs := fr.Revolutions()

	if !c.haveNrRevs {
		c.nrRevs = nrRevs
		c.haveNrRevs = true
	} else if c.nrRevs != nrRevs {
		return fmt.Errorf("scp: track %d.%d: have %d revs, previous tracks had %d: %w",
			cyl, side, nrRevs, c.nrRevs, ErrRevisionCountMismatch)
	}

	factor := float64(SampleFreqHz) / fr.SampleFreqHz

	var revs []revHeader
	var cells []byte
	lenAtIndex := 0
	rev := 0
	toIndex := fr.IndexTicks[0]
	rem := 0.0

	closeRevolution := func() {
		revs = append(revs, revHeader{
			IndexTicks: uint32(math.Round(fr.IndexTicks[rev] * factor)),
			CellCount:  uint32((len(cells) - lenAtIndex) / 2),
			DataOffset: uint32(4 + 12*nrRevs + lenAtIndex),
		})
		lenAtIndex = len(cells)
		rev++
	}

	for _, x := range fr.Transitions {
		for toIndex < x {
			closeRevolution()
			if rev >= nrRevs {
				// Surplus flux samples beyond the last revolution
				// are discarded.
				c.tracks[cyl*2+side] = &trackData{revs: revs, cells: cells}
				return nil
			}
			toIndex += fr.IndexTicks[rev]
		}
		toIndex -= x

		y := x*factor + rem
		val := int64(math.Round(y))
		if val%65536 == 0 {
			val++
		}
		rem = y - float64(val)

		for val >= 65536 {
			cells = append(cells, 0, 0)
			val -= 65536
		}
		cells = append(cells, byte(val>>8), byte(val))
	}

	// The hardware accepted fewer transitions than expected: close out
	// any remaining revolutions with no cell data.
	for rev < nrRevs {
		closeRevolution()
	}

	c.tracks[cyl*2+side] = &trackData{revs: revs, cells: cells}
	return nil
}

// Encode serialises the codec's tracks into an SCP byte image.
func (c *Codec) Encode() ([]byte, error) {
	even, odd := c.SideCount()
	var singleSided byte
	switch {
	case even > 0 && odd > 0:
		singleSided = 0
	case even > 0:
		singleSided = 1
	default:
		singleSided = 2
	}

	toTrack := c.tracks
	if singleSided != 0 && c.LegacySS {
		remapped := make(map[int]*trackData, len(c.tracks))
		for k, v := range c.tracks {
			remapped[k/2] = v
		}
		toTrack = remapped
	}

	// Empty codec: max(keys, default=0)+1, matching the Python ground truth
	// (image/scp.py's `ntracks = max(to_track, default=0) + 1`) so an empty
	// image still gets a well-defined end-track of 0, not a wrapped -1.
	maxKey := 0
	for k := range toTrack {
		if k > maxKey {
			maxKey = k
		}
	}
	ntracks := maxKey + 1

	var tlut bytes.Buffer
	var trackBytes bytes.Buffer
	for tnr := 0; tnr < ntracks; tnr++ {
		td, ok := toTrack[tnr]
		if !ok {
			binary.Write(&tlut, binary.LittleEndian, uint32(0))
			continue
		}
		binary.Write(&tlut, binary.LittleEndian, uint32(trackDataBase+trackBytes.Len()))
		trackBytes.WriteString("TRK")
		trackBytes.WriteByte(byte(tnr))
		for _, r := range td.revs {
			binary.Write(&trackBytes, binary.LittleEndian, r.IndexTicks)
			binary.Write(&trackBytes, binary.LittleEndian, r.CellCount)
			binary.Write(&trackBytes, binary.LittleEndian, r.DataOffset)
		}
		trackBytes.Write(td.cells)
	}
	if tlut.Len() > tlutSize {
		return nil, ErrTooManyTracks
	}
	tlutBytes := tlut.Bytes()
	tlutBytes = append(tlutBytes, make([]byte, tlutSize-len(tlutBytes))...)

	var checksum uint32
	for _, b := range tlutBytes {
		checksum += uint32(b)
	}
	for _, b := range trackBytes.Bytes() {
		checksum += uint32(b)
	}

	header := make([]byte, headerSize)
	copy(header[0:3], "SCP")
	header[3] = 0    // version
	header[4] = 0x80 // disk type: Other
	header[5] = byte(c.nrRevs)
	header[6] = 0 // start track
	header[7] = byte(ntracks - 1)
	header[8] = 0x03 // flags: index-cued, 96 TPI
	header[9] = 0    // cell width: 16-bit
	header[10] = singleSided
	header[11] = 0 // capture resolution: 25ns
	binary.LittleEndian.PutUint32(header[12:16], checksum)

	out := make([]byte, 0, headerSize+len(tlutBytes)+trackBytes.Len())
	out = append(out, header...)
	out = append(out, tlutBytes...)
	out = append(out, trackBytes.Bytes()...)
	return out, nil
}
