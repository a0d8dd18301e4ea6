package hfe

import (
	"os"

	"github.com/keirfx/fluxkit/pll"
	"github.com/keirfx/fluxkit/scp"
	"github.com/keirfx/fluxkit/track"
)

// ReadSCP loads a SuperCard Pro flux image and decodes each populated track
// through the PLL to recover its MFM bitstream, producing a Disk in the
// same representation every other reader in this package returns.
func ReadSCP(filename string) (*Disk, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	codec, err := scp.Decode(raw)
	if err != nil {
		return nil, err
	}

	numTracks, numSides := scpDiskGeometry(codec)

	disk := &Disk{
		Header: Header{
			NumberOfTrack:       uint8(numTracks),
			NumberOfSide:        uint8(numSides),
			TrackEncoding:       ENC_ISOIBM_MFM,
			BitRate:             500,
			FloppyRPM:           300,
			FloppyInterfaceMode: IFM_IBMPC_DD,
			WriteProtected:      0xFF,
			WriteAllowed:        0xFF,
			SingleStep:          0xFF,
			Track0S0AltEncoding: 0xFF,
			Track0S0Encoding:    ENC_ISOIBM_MFM,
			Track0S1AltEncoding: 0xFF,
			Track0S1Encoding:    ENC_ISOIBM_MFM,
		},
		Tracks: make([]TrackData, numTracks),
	}

	for cyl := 0; cyl < numTracks; cyl++ {
		for side := 0; side < numSides; side++ {
			fr, ok := codec.GetTrack(cyl, side)
			if !ok {
				continue
			}

			decoder := pll.NewDecoder()
			decoder.Append(fr)
			revs := decoder.Revolutions()
			if len(revs) == 0 {
				continue
			}

			bits := bitsToBytes(revs[0].Bits)
			if side == 0 {
				disk.Tracks[cyl].Side0 = bits
			} else {
				disk.Tracks[cyl].Side1 = bits
			}
		}
	}

	return disk, nil
}

// WriteSCP projects each track's MFM bitstream to a MasterTrack and emits a
// SuperCard Pro flux image.
func WriteSCP(filename string, disk *Disk) error {
	rpm := disk.Header.FloppyRPM
	if rpm == 0 {
		rpm = 300
	}
	timePerRev := 60.0 / float64(rpm)

	codec := scp.NewCodec()
	for cyl, t := range disk.Tracks {
		if len(t.Side0) > 0 {
			mt := &track.MasterTrack{Bits: bytesToBits(t.Side0), TimePerRev: timePerRev}
			if err := codec.EmitTrack(cyl, 0, mt); err != nil {
				return err
			}
		}
		if int(disk.Header.NumberOfSide) > 1 && len(t.Side1) > 0 {
			mt := &track.MasterTrack{Bits: bytesToBits(t.Side1), TimePerRev: timePerRev}
			if err := codec.EmitTrack(cyl, 1, mt); err != nil {
				return err
			}
		}
	}

	data, err := codec.Encode()
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}

// scpDiskGeometry infers (cylinders, sides) from a decoded codec's
// populated track keys.
func scpDiskGeometry(codec *scp.Codec) (numTracks, numSides int) {
	even, odd := codec.SideCount()
	if odd > 0 {
		numSides = 2
	} else if even > 0 {
		numSides = 1
	}
	for cyl := 0; cyl < 84; cyl++ {
		if _, ok := codec.GetTrack(cyl, 0); ok {
			numTracks = cyl + 1
		}
		if _, ok := codec.GetTrack(cyl, 1); ok {
			numTracks = cyl + 1
		}
	}
	if numSides == 0 {
		numSides = 2
	}
	return numTracks, numSides
}

// bitsToBytes packs a clocked bit vector into MSB-first bytes, matching the
// TrackData.Side0/Side1 convention.
func bitsToBytes(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	return out
}

// bytesToBits unpacks MSB-first track bytes into a clocked bit vector.
func bytesToBits(data []byte) []bool {
	out := make([]bool, len(data)*8)
	for i := range out {
		out[i] = data[i/8]&(1<<(7-uint(i%8))) != 0
	}
	return out
}
