package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/region-atlas/internal/session"
)

var (
	reportFormat    string
	reportUnmatched bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print how each feature reconciled to the statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := loadSession(cmd.Context(), cfg, "report")
		if err != nil {
			return err
		}

		rows := sess.Report()
		if reportUnmatched {
			rows = unmatchedRows(rows)
		}
		return writeReport(cmd.OutOrStdout(), rows, reportFormat)
	},
}

func unmatchedRows(rows []session.ReportRow) []session.ReportRow {
	out := make([]session.ReportRow, 0, len(rows))
	for _, r := range rows {
		if !r.Fill.Matched {
			out = append(out, r)
		}
	}
	return out
}

func writeReport(w io.Writer, rows []session.ReportRow, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(rows), "report: encode json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return eris.Wrap(err, "report: encode yaml")
		}
		return eris.Wrap(enc.Close(), "report: encode yaml")
	default:
		return eris.Errorf("report: unknown format %q (want json or yaml)", format)
	}
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "json", "output format: json or yaml")
	reportCmd.Flags().BoolVar(&reportUnmatched, "unmatched", false, "only list features with no matching record")
	rootCmd.AddCommand(reportCmd)
}
