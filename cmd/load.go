package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/place-import/internal/queue"
	"github.com/sells-group/place-import/internal/source"
)

var (
	loadStart        bool
	loadDelimiter    string
	loadComment      string
	loadStrictQuotes bool
)

var loadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Load a CSV or XLSX export as a new import session",
	Long:  "Parses a saved-places export and replaces the current session with one pending item per valid row. Invalid rows are reported and dropped.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		opts, err := source.ParseCSVOptions(loadDelimiter, loadComment, loadStrictQuotes)
		if err != nil {
			return eris.Wrap(err, "load: csv options")
		}
		res, err := source.ReadFile(ctx, args[0], opts)
		if err != nil {
			return eris.Wrap(err, "load: read export")
		}
		for _, re := range res.Errors {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s\n", re.Error())
		}
		if len(res.Rows) == 0 {
			return eris.Errorf("load: %s has no importable rows", args[0])
		}

		env, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		st, err := env.Machine.Dispatch(ctx, queue.LoadBatch{Rows: res.Rows})
		if err != nil {
			return eris.Wrap(err, "load: seed queue")
		}
		if loadStart {
			if st, err = env.Machine.Dispatch(ctx, queue.SetProcessing{On: true}); err != nil {
				return eris.Wrap(err, "load: start processing")
			}
		}

		zap.L().Info("batch loaded",
			zap.String("file", args[0]),
			zap.String("shape", string(res.Shape)),
			zap.Int("items", st.Stats.Total),
			zap.Int("errors", len(res.Errors)),
			zap.Int("blank", res.Skipped),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "loaded %d items (%s export), %d rows rejected\n",
			st.Stats.Total, res.Shape, len(res.Errors))
		return nil
	},
}

func init() {
	loadCmd.Flags().BoolVar(&loadStart, "start", false, "mark the session as processing after loading")
	loadCmd.Flags().StringVar(&loadDelimiter, "delimiter", ",", `CSV field delimiter (a single character, or "tab")`)
	loadCmd.Flags().StringVar(&loadComment, "comment", "", "skip CSV lines starting with this character")
	loadCmd.Flags().BoolVar(&loadStrictQuotes, "strict-quotes", false, "reject CSV fields with bare quotes")
	rootCmd.AddCommand(loadCmd)
}
