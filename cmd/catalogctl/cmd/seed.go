package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/skuindex/internal/domain/catalog"
)

// demoDraft is the product the seed command inserts.
func demoDraft() *catalog.Draft {
	return &catalog.Draft{
		Name:         "iPhone 17 Pro Max",
		Description:  "Titanium design, A19 Pro chip.",
		BrandName:    "Apple",
		CategoryName: "Smartphones",
		Variants: []catalog.VariantDraft{
			{SKU: "IP17PM-BLK-256", Price: 1199, StockQuantity: 25, Options: []catalog.OptionDraft{
				{OptionName: "Color", OptionValue: "Cosmic Black"},
				{OptionName: "Storage", OptionValue: "256GB"},
			}},
			{SKU: "IP17PM-BLU-1TB", Price: 1599, StockQuantity: 10, Options: []catalog.OptionDraft{
				{OptionName: "Color", OptionValue: "Galactic Blue"},
				{OptionName: "Storage", OptionValue: "1TB"},
			}},
		},
	}
}

func newSeedCmd(opts *globalOptions) *cobra.Command {
	var noSync bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo product and index it",
		Long: `Insert "iPhone 17 Pro Max" with two variants:
  {Cosmic Black, 256GB} and {Galactic Blue, 1TB}.

The product is indexed right away unless --no-sync is set; the outbox
row stays pending for the relay in that case.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, _, err := opts.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.Catalog.CreateProduct(ctx, demoDraft())
			if err != nil {
				return fmt.Errorf("create product: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created product %s (slug %s)\n", created.ID, created.Slug)

			if noSync {
				return nil
			}
			st, err := a.Drain(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "indexed: %d done, %d retried, %d parked\n", st.Done, st.Retried, st.Parked)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "Leave the product in the outbox")
	return cmd
}
