package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ocrwatch/frigate-ocr/internal/buildinfo"
)

// Command prints build metadata.
func Command(build *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), build.String())
			return err
		},
	}
}
