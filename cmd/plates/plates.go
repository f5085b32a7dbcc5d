package plates

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ocrwatch/frigate-ocr/internal/conf"
	"github.com/ocrwatch/frigate-ocr/internal/datastore"
)

// Command lists the most recent recognized plates.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "plates",
		Short: "List recently recognized plates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := datastore.New(settings, nil)
			if err := store.Open(); err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			recent, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(recent)
			}
			return writeTable(cmd.OutOrStdout(), recent)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", datastore.DefaultRecentLimit, "Number of plates to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func writeTable(w io.Writer, plates []datastore.Plate) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "DETECTED\tPLATE\tSCORE\tCAMERA\tEVENT")
	for _, p := range plates {
		score := "-"
		if p.Score != nil {
			score = fmt.Sprintf("%.2f", *p.Score)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.DetectionTime, p.PlateNumber, score, p.CameraName, p.FrigateEvent)
	}
	return tw.Flush()
}
