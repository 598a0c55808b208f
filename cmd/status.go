package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/place-import/internal/queue"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the import session",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		st := env.Machine.State()
		if statusJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}
		return writeStatus(cmd.OutOrStdout(), st)
	},
}

func writeStatus(out io.Writer, st queue.State) error {
	if len(st.Items) == 0 {
		_, err := fmt.Fprintln(out, "No import session loaded.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, " \t#\tNAME\tSTATUS\tPLACE ID\tERROR")
	_, _ = fmt.Fprintln(w, " \t-\t----\t------\t--------\t-----")

	for i, it := range st.Items {
		marker := " "
		if i == st.Cursor {
			marker = ">"
		}
		errMsg := it.Error
		if it.NeedsReview {
			errMsg = "[review] " + errMsg
		}
		if len(errMsg) > 50 {
			errMsg = errMsg[:47] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
			marker, i, truncate(it.DisplayName(), 40), it.Status, it.PlaceID, errMsg)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	s := st.Stats
	state := "paused"
	if st.IsProcessing {
		state = "processing"
	}
	_, err := fmt.Fprintf(out, "\n%d items (%s): %d pending, %d ready, %d completed, %d skipped, %d failed, %d duplicates\n",
		s.Total, state, s.Pending, s.Ready, s.Completed, s.Skipped, s.Failed, s.Duplicates)
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the full session as JSON")
	rootCmd.AddCommand(statusCmd)
}
