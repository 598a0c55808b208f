package main

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/place-import/internal/pipeline"
	"github.com/sells-group/place-import/internal/queue"
)

var (
	retryPlaceID string
	reviewNote   string
)

var skipCmd = &cobra.Command{
	Use:   "skip <index>",
	Short: "Skip an item",
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

		if err := pipeline.SkipItem(ctx, env.Machine, index); err != nil {
			return eris.Wrapf(err, "skip: item %d", index)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "skipped item %d\n", index)
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <index>",
	Short: "Re-queue a failed item",
	Long:  "Returns a failed item to the queue and moves the cursor back to it. With --place-id the item skips search and resolves to that place, which is how a manual candidate selection is made.",
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

		if _, err := env.Machine.Dispatch(ctx, queue.Retry{Index: index, PlaceID: retryPlaceID}); err != nil {
			return eris.Wrapf(err, "retry: item %d", index)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "item %d re-queued\n", index)
		return nil
	},
}

var reviewCmd = &cobra.Command{
	Use:   "review <index>",
	Short: "Flag a failed item for later review",
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

		if _, err := env.Machine.Dispatch(ctx, queue.MarkReview{Index: index, Note: reviewNote}); err != nil {
			return eris.Wrapf(err, "review: item %d", index)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "item %d flagged for review\n", index)
		return nil
	},
}

func parseIndex(arg string) (int, error) {
	i, err := strconv.Atoi(arg)
	if err != nil || i < 0 {
		return 0, eris.Errorf("invalid item index %q", arg)
	}
	return i, nil
}

func init() {
	retryCmd.Flags().StringVar(&retryPlaceID, "place-id", "", "resolve the item to this place instead of searching")
	reviewCmd.Flags().StringVar(&reviewNote, "note", "", "review note")
	rootCmd.AddCommand(skipCmd, retryCmd, reviewCmd)
}
