package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates <index>",
	Short: "List search candidates for an item",
	Long:  "Searches for the item's title and prints the ranked candidates. Pick one with `retry <index> --place-id <id>`.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		index, err := parseIndex(args[0])
		if err != nil {
			return err
		}

		env, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.initProcessing(ctx); err != nil {
			return err
		}

		cands, err := env.Orchestrator.Candidates(ctx, index)
		if err != nil {
			return eris.Wrapf(err, "candidates: item %d", index)
		}
		if len(cands) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No candidates found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "PLACE ID\tNAME\tADDRESS\tCONFIDENCE")
		_, _ = fmt.Fprintln(w, "--------\t----\t-------\t----------")
		for _, c := range cands {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.PlaceID, c.Name, truncate(c.Address, 50), c.Confidence)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(candidatesCmd)
}
