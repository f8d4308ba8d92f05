package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/smazurov/chesscast/internal/audio"
)

// CreateAudioSourceCmd creates the audio-source command.
func CreateAudioSourceCmd() *cobra.Command {
	var goos string

	cmd := &cobra.Command{
		Use:   "audio-source",
		Short: "Show the audio capture input used for live streams",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			src, err := audio.DefaultSource(goos)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.OutOrStdout(), "%s\t-f %s -i %s\n", goos, src.Format, src.Device)
			return err
		},
	}
	cmd.Flags().StringVar(&goos, "goos", runtime.GOOS, "Platform to resolve the source for")
	return cmd
}
