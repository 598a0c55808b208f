package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/place-import/internal/queue"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Stop automatic advancement",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setProcessing(cmd, false)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume automatic advancement",
	Long:  "Marks the session as processing. A running serve instance picks the change up on its next request; otherwise use run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setProcessing(cmd, true)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the import session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if _, err := env.Machine.Dispatch(ctx, queue.Reset{}); err != nil {
			return eris.Wrap(err, "reset")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "session cleared")
		return nil
	},
}

func setProcessing(cmd *cobra.Command, on bool) error {
	ctx := cmd.Context()
	env, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if _, err := env.Machine.Dispatch(ctx, queue.SetProcessing{On: on}); err != nil {
		return eris.Wrap(err, "set processing")
	}
	state := "paused"
	if on {
		state = "processing"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "session %s\n", state)
	return nil
}

func init() {
	rootCmd.AddCommand(pauseCmd, resumeCmd, resetCmd)
}
