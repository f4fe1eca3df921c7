// ABOUTME: inspect command
// ABOUTME: Prints the audio track summary of an encoded file
package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/Resonate-Protocol/pcmenc/pkg/container/mp4mux"
	"github.com/spf13/cobra"
)

var showTimestamps bool

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Summarize the audio track of an encoded file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := mp4mux.Inspect(args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "codec\t%s\n", s.Codec)
		fmt.Fprintf(w, "channels\t%d\n", s.ChannelCount)
		fmt.Fprintf(w, "timescale\t%d\n", s.TimeScale)
		fmt.Fprintf(w, "fragments\t%d\n", s.Fragments)
		fmt.Fprintf(w, "samples\t%d\n", s.Samples)
		fmt.Fprintf(w, "payload\t%d bytes\n", s.PayloadBytes)
		fmt.Fprintf(w, "first pts\t%s\n", time.Duration(s.FirstPTSUs)*time.Microsecond)
		fmt.Fprintf(w, "last pts\t%s\n", time.Duration(s.LastPTSUs)*time.Microsecond)
		fmt.Fprintf(w, "duration\t%s\n", s.Duration)
		if err := w.Flush(); err != nil {
			return err
		}

		if showTimestamps {
			for i, pts := range s.PTSUs {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d\n", i, pts)
			}
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&showTimestamps, "timestamps", false, "list every sample timestamp in microseconds")
	rootCmd.AddCommand(inspectCmd)
}
