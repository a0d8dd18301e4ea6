package scp

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/keirfx/fluxkit/flux"
)

// fixedTrack is a flux.Source stub that returns a canned record, standing
// in for a MasterTrack in tests that only care about the codec.
type fixedTrack struct {
	rec flux.Record
}

func (f fixedTrack) Flux() flux.Record { return f.rec }

func buildImage(t *testing.T, nrRevs int, tracks map[int]flux.Record) []byte {
	t.Helper()
	c := NewCodec()
	for key, rec := range tracks {
		if err := c.EmitTrack(key/2, key%2, fixedTrack{rec}); err != nil {
			t.Fatalf("EmitTrack(%d): %v", key, err)
		}
	}
	_ = nrRevs
	data, err := c.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

func TestEncodeEmptyImage(t *testing.T) {
	c := NewCodec()
	data, err := c.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) != headerSize+tlutSize {
		t.Fatalf("len(data) = %d, want %d", len(data), headerSize+tlutSize)
	}
	if binary.LittleEndian.Uint32(data[12:16]) != 0 {
		t.Errorf("checksum = %d, want 0", binary.LittleEndian.Uint32(data[12:16]))
	}
	if data[7] != 0 {
		t.Errorf("end track = %d, want 0", data[7])
	}
	for i := 0; i < maxTracks; i++ {
		off := headerSize + i*4
		if binary.LittleEndian.Uint32(data[off:off+4]) != 0 {
			t.Errorf("TLUT entry %d nonzero", i)
		}
	}
}

func TestEmitTrackSingleRevolutionSingleTransition(t *testing.T) {
	rec := flux.NewRecord([]float64{400}, []float64{8_000_000}, SampleFreqHz)
	c := NewCodec()
	if err := c.EmitTrack(0, 0, fixedTrack{rec}); err != nil {
		t.Fatalf("EmitTrack: %v", err)
	}

	td := c.tracks[0]
	if td == nil {
		t.Fatal("track 0 not stored")
	}
	if len(td.cells) != 2 || td.cells[0] != 0x01 || td.cells[1] != 0x90 {
		t.Fatalf("cells = %x, want 0190", td.cells)
	}
	if len(td.revs) != 1 {
		t.Fatalf("len(revs) = %d, want 1", len(td.revs))
	}
	rev := td.revs[0]
	if rev.IndexTicks != 8_000_000 || rev.CellCount != 1 || rev.DataOffset != 4+12 {
		t.Errorf("rev = %+v, want {8000000 1 16}", rev)
	}
}

func TestEmitTrackOverflowCell(t *testing.T) {
	rec := flux.NewRecord([]float64{100_000}, []float64{100_000}, SampleFreqHz)
	c := NewCodec()
	if err := c.EmitTrack(0, 0, fixedTrack{rec}); err != nil {
		t.Fatalf("EmitTrack: %v", err)
	}
	td := c.tracks[0]
	want := []byte{0x00, 0x00, 0x86, 0xA0}
	if string(td.cells) != string(want) {
		t.Fatalf("cells = %x, want %x", td.cells, want)
	}
}

func TestEmitTrackAvoids65536Sentinel(t *testing.T) {
	rec := flux.NewRecord([]float64{65536}, []float64{65536}, SampleFreqHz)
	c := NewCodec()
	if err := c.EmitTrack(0, 0, fixedTrack{rec}); err != nil {
		t.Fatalf("EmitTrack: %v", err)
	}
	td := c.tracks[0]
	want := []byte{0x00, 0x00, 0x00, 0x01}
	if string(td.cells) != string(want) {
		t.Fatalf("cells = %x, want %x", td.cells, want)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	rec := flux.NewRecord([]float64{400, 800, 1200}, []float64{2400}, SampleFreqHz)
	data := buildImage(t, 1, map[int]flux.Record{0: rec})

	c, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got, ok := c.GetTrack(0, 0)
	if !ok {
		t.Fatal("GetTrack(0,0) not found")
	}
	if len(got.Transitions) != len(rec.Transitions) {
		t.Fatalf("len(Transitions) = %d, want %d", len(got.Transitions), len(rec.Transitions))
	}
	for i := range rec.Transitions {
		if got.Transitions[i] != rec.Transitions[i] {
			t.Errorf("Transitions[%d] = %v, want %v", i, got.Transitions[i], rec.Transitions[i])
		}
	}
	if len(got.IndexTicks) != 1 || got.IndexTicks[0] != 2400 {
		t.Errorf("IndexTicks = %v, want [2400]", got.IndexTicks)
	}
}

func TestDecodeBadSignature(t *testing.T) {
	data := make([]byte, headerSize+tlutSize)
	copy(data[0:3], "XXX")
	_, err := Decode(data)
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}
}

func TestDecodeMissingTrackSignature(t *testing.T) {
	rec := flux.NewRecord([]float64{400}, []float64{8_000_000}, SampleFreqHz)
	data := buildImage(t, 1, map[int]flux.Record{0: rec})
	// Corrupt the "TRK" signature of track 0.
	data[trackDataBase] = 'X'

	_, err := Decode(data)
	if !errors.Is(err, ErrMissingTrackSignature) {
		t.Fatalf("err = %v, want ErrMissingTrackSignature", err)
	}
}

func TestLegacySingleSidedImport(t *testing.T) {
	rec := flux.NewRecord([]float64{400}, []float64{8_000_000}, SampleFreqHz)
	c := NewCodec()
	for _, key := range []int{0, 1, 2, 3} {
		if err := c.EmitTrack(key/2, key%2, fixedTrack{rec}); err != nil {
			t.Fatalf("EmitTrack(%d): %v", key, err)
		}
	}
	data, err := c.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// Force the single-sided field as the legacy producer would.
	data[10] = 1

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for _, key := range []int{1, 3, 5, 7} {
		if _, ok := decoded.tracks[key]; !ok {
			t.Errorf("expected remapped key %d to be populated", key)
		}
	}
	for _, key := range []int{0, 2, 4, 6} {
		if _, ok := decoded.tracks[key]; ok {
			t.Errorf("key %d should not be populated after remap", key)
		}
	}
}

func TestRevisionCountMismatch(t *testing.T) {
	c := NewCodec()
	rec1 := flux.NewRecord([]float64{400}, []float64{8_000_000}, SampleFreqHz)
	rec2 := flux.NewRecord([]float64{400, 400}, []float64{8_000_000, 8_000_000}, SampleFreqHz)

	if err := c.EmitTrack(0, 0, fixedTrack{rec1}); err != nil {
		t.Fatalf("EmitTrack(0): %v", err)
	}
	err := c.EmitTrack(0, 1, fixedTrack{rec2})
	if !errors.Is(err, ErrRevisionCountMismatch) {
		t.Fatalf("err = %v, want ErrRevisionCountMismatch", err)
	}
}

func TestSideCount(t *testing.T) {
	c := NewCodec()
	c.tracks[0] = &trackData{}
	c.tracks[2] = &trackData{}
	c.tracks[1] = &trackData{}
	even, odd := c.SideCount()
	if even != 2 || odd != 1 {
		t.Errorf("SideCount() = (%d, %d), want (2, 1)", even, odd)
	}
}
