package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/place-import/internal/model"
)

var (
	approveCategory      string
	approveSubCategories []string
	approveCity          string
	approveNeighborhood  string
	approveDescription   string
	approveDryRun        bool
)

var approveCmd = &cobra.Command{
	Use:   "approve <index>",
	Short: "Approve a ready item and import it into the catalog",
	Long:  "Records the operator's category and location choices, migrates the place's photos to storage, and writes the catalog record. Unset choices default to the generated category and the place's city.",
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

		if err := env.initApproval(ctx); err != nil {
			return err
		}

		sel := model.OperatorSelections{
			Category:      approveCategory,
			SubCategories: approveSubCategories,
			City:          approveCity,
			Neighborhood:  approveNeighborhood,
			Description:   approveDescription,
		}

		out := cmd.OutOrStdout()
		progress := func(current, total int) {
			fmt.Fprintf(cmd.ErrOrStderr(), "photos %d/%d\n", current, total)
		}

		rec, err := env.Approver.Approve(ctx, index, sel, approveDryRun, progress)
		if err != nil {
			return eris.Wrapf(err, "approve: item %d", index)
		}

		if approveDryRun || cfg.Pipeline.DryRun {
			fmt.Fprintf(out, "dry run: %s would be imported as %s in %s with %d photos\n",
				rec.Name, rec.Category, rec.City, len(rec.PhotoURLs))
			return nil
		}

		zap.L().Info("item imported",
			zap.Int("index", index),
			zap.String("record_id", rec.ID),
			zap.String("place_id", rec.PlaceID),
		)
		fmt.Fprintf(out, "imported %s as %s (%s, %d photos)\n",
			rec.Name, rec.ID, strings.Join(append([]string{rec.Category}, rec.SubCategories...), "/"), len(rec.PhotoURLs))
		return nil
	},
}

func init() {
	f := approveCmd.Flags()
	f.StringVar(&approveCategory, "category", "", "catalog category (default from enrichment)")
	f.StringSliceVar(&approveSubCategories, "sub-category", nil, "catalog sub-category (repeatable)")
	f.StringVar(&approveCity, "city", "", "city (default from place detail)")
	f.StringVar(&approveNeighborhood, "neighborhood", "", "neighborhood (default from place detail)")
	f.StringVar(&approveDescription, "description", "", "replace the generated description")
	f.BoolVar(&approveDryRun, "dry-run", false, "build the record without writing anything")
	rootCmd.AddCommand(approveCmd)
}
