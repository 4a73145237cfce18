package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newReindexCmd(opts *globalOptions) *cobra.Command {
	var all, rebuild bool

	cmd := &cobra.Command{
		Use:   "reindex [--all [--rebuild] | <product-id>]",
		Short: "Rebuild the search documents of one or every product",
		Long: `Rebuild search documents. The product is enqueued in the outbox and
the outbox is drained once, so a running server and this command never
index the same version twice. --rebuild drops and recreates the indexes
first, for layout changes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("pass either --all or exactly one product id")
			}
			if rebuild && !all {
				return errors.New("--rebuild requires --all")
			}

			ctx := cmd.Context()
			a, _, err := opts.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if all {
				reindex := a.ReindexAll
				if rebuild {
					reindex = a.Rebuild
				}
				st, err := reindex(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reindexed: %d done, %d retried, %d parked\n", st.Done, st.Retried, st.Parked)
				return nil
			}

			if err := a.Catalog.EnqueueSync(ctx, args[0]); err != nil {
				return fmt.Errorf("enqueue %s: %w", args[0], err)
			}
			st, err := a.Drain(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reindexed %s: %d done, %d retried\n", args[0], st.Done, st.Retried)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Reindex every product in the catalog")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "Drop and recreate the indexes before reindexing")
	return cmd
}
