package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/smazurov/chesscast/internal/runconfig"
	"github.com/smazurov/chesscast/internal/runenv"
)

// RenderSettings are the resolved options render-config needs.
type RenderSettings struct {
	Credentials runconfig.Credentials
	RuntimeDir  string
}

// CreateRenderConfigCmd creates the render-config command. settings is
// called at run time, after options have been loaded.
func CreateRenderConfigCmd(settings func() RenderSettings) *cobra.Command {
	return &cobra.Command{
		Use:   "render-config",
		Short: "Print the run configuration document",
		Long: `Validates the Lichess and Twitch credentials and prints the configuration document ` +
			`the chess application would receive, with the access token redacted. Nothing is written to disk.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			s := settings()
			return RenderConfig(c.OutOrStdout(), s.Credentials, runenv.New(s.RuntimeDir).FramePath())
		},
	}
}

// RenderConfig writes the redacted document for creds to w.
func RenderConfig(w io.Writer, creds runconfig.Credentials, framePath string) error {
	doc, err := runconfig.Build(creds, framePath)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc.Redacted(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
