package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keirfx/fluxkit/hfe"
	"github.com/keirfx/fluxkit/scp"
)

var scpCmd = &cobra.Command{
	Use:   "scp",
	Short: "Inspect and build SuperCard Pro flux images",
	Long:  "Subcommands for working with SuperCard Pro (.scp) flux image files directly, without a drive attached.",
}

var scpDecodeCmd = &cobra.Command{
	Use:   "decode FILE",
	Short: "Print per-track revolution counts and index-tick totals for an SCP image",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to read %s: %w", args[0], err))
		}

		codec, err := scp.Decode(raw)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to decode %s: %w", args[0], err))
		}

		even, odd := codec.SideCount()
		fmt.Printf("%s: %d even-side tracks, %d odd-side tracks\n", args[0], even, odd)
		for cyl := 0; cyl < 84; cyl++ {
			for side := 0; side < 2; side++ {
				fr, ok := codec.GetTrack(cyl, side)
				if !ok {
					continue
				}
				var total float64
				for _, t := range fr.IndexTicks {
					total += t
				}
				fmt.Printf("  cyl %2d side %d: %d revolution(s), %d transitions, %.0f index ticks\n",
					cyl, side, fr.Revolutions(), len(fr.Transitions), total)
			}
		}
	},
}

var scpEncodeCmd = &cobra.Command{
	Use:   "encode IN OUT.scp",
	Short: "Convert any supported disk image into an SCP flux image",
	Long:  "Reads a disk image in any format this tool recognises (HFE, ADF, IMG, ...) and projects each track's bitstream through a MasterTrack to build an SCP flux image.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		disk, err := hfe.Read(args[0])
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to read %s: %w", args[0], err))
		}

		if err := hfe.WriteSCP(args[1], disk); err != nil {
			cobra.CheckErr(fmt.Errorf("failed to write %s: %w", args[1], err))
		}

		fmt.Printf("Wrote %s (%d tracks, %d side(s))\n", args[1], disk.Header.NumberOfTrack, disk.Header.NumberOfSide)
	},
}

func init() {
	scpCmd.AddCommand(scpDecodeCmd)
	scpCmd.AddCommand(scpEncodeCmd)
	rootCmd.AddCommand(scpCmd)
}
