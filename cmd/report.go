package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/place-import/internal/pipeline"
)

var (
	reportFormat string
	reportOut    string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export the per-item outcome of the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if reportFormat != "csv" && reportFormat != "xlsx" {
			return eris.Errorf("report: unsupported format %q", reportFormat)
		}

		env, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		var out io.Writer = cmd.OutOrStdout()
		if reportOut != "" {
			f, err := os.Create(reportOut)
			if err != nil {
				return eris.Wrap(err, "report: create output")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		rows := pipeline.BuildReport(env.Machine.State())
		if reportFormat == "xlsx" {
			return pipeline.WriteReportXLSX(out, rows)
		}
		return pipeline.WriteReportCSV(out, rows)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "csv", "report format: csv or xlsx")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(reportCmd)
}
