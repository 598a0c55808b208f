package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/place-import/internal/queue"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process queued items until the queue needs an operator",
	Long:  "Resolves, fetches and enriches pending items in order. Stops at the first ready item, at the end of the queue, or on interrupt; the session is saved after every step.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.initProcessing(ctx); err != nil {
			return err
		}

		if _, err := env.Machine.Dispatch(ctx, queue.SetProcessing{On: true}); err != nil {
			return eris.Wrap(err, "run: start processing")
		}

		if err := env.Orchestrator.Run(ctx); err != nil {
			if ctx.Err() != nil {
				zap.L().Info("run interrupted, session saved")
				return nil
			}
			return eris.Wrap(err, "run")
		}

		st := env.Machine.State()
		zap.L().Info("run stopped",
			zap.Int("cursor", st.Cursor),
			zap.Int("ready", st.Stats.Ready),
			zap.Int("pending", st.Stats.Pending),
			zap.Int("failed", st.Stats.Failed),
			zap.Int("duplicates", st.Stats.Duplicates),
		)
		return writeStatus(cmd.OutOrStdout(), st)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
