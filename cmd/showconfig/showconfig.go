package showconfig

import (
	"github.com/spf13/cobra"

	"github.com/ocrwatch/frigate-ocr/internal/conf"
)

// Command prints the effective configuration with secrets masked.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  "Prints the merged configuration from file, environment and defaults. Passwords and tokens are masked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := conf.RedactedYAML(settings)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
