package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/skuindex/internal/domain/catalog"
	"github.com/kailas-cloud/skuindex/internal/domain/document"
	"github.com/kailas-cloud/skuindex/internal/domain/legacy"
	searchuc "github.com/kailas-cloud/skuindex/internal/usecase/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit    int
	inStock  bool
	minPrice float64
	maxPrice float64
	format   string // "text", "json"
}

// options maps the flags onto search options; unset price flags stay open.
func (so *searchOptions) options(cmd *cobra.Command) []searchuc.Option {
	var sopts []searchuc.Option
	if so.limit > 0 {
		sopts = append(sopts, searchuc.WithLimit(so.limit))
	}
	if so.inStock {
		sopts = append(sopts, searchuc.WithInStock())
	}
	var lo, hi *float64
	if cmd.Flags().Changed("min-price") {
		lo = &so.minPrice
	}
	if cmd.Flags().Changed("max-price") {
		hi = &so.maxPrice
	}
	if lo != nil || hi != nil {
		sopts = append(sopts, searchuc.WithPriceRange(lo, hi))
	}
	return sopts
}

func newSearchCmd(opts *globalOptions) *cobra.Command {
	var so searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the per-SKU index",
		Long: `Search the per-SKU index. Option values in the query must all hold on
one variant; values of the same option are alternatives.

Examples:
  catalogctl search iphone black 256gb
  catalogctl search "iphone blue black" --format json
  catalogctl search iphone --in-stock --max-price 1300`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := opts.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			skus, err := a.Search.SearchRaw(ctx, strings.Join(args, " "), so.options(cmd)...)
			if err != nil {
				return err
			}
			return printSKUs(cmd.OutOrStdout(), skus, so.format)
		},
	}
	cmd.Flags().IntVarP(&so.limit, "limit", "n", 0, "Maximum number of products (default from config)")
	cmd.Flags().BoolVar(&so.inStock, "in-stock", false, "Only SKUs in stock")
	cmd.Flags().Float64Var(&so.minPrice, "min-price", 0, "Lowest SKU price")
	cmd.Flags().Float64Var(&so.maxPrice, "max-price", 0, "Highest SKU price")
	cmd.Flags().StringVarP(&so.format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func newCatalogSearchCmd(opts *globalOptions) *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "catalog <query>",
		Short: "Search the relational catalog directly",
		Long: `Search the relational catalog with one correlated EXISTS per option, so
every requested option must be offered by the same variant. Text terms are
matched as substrings of the product name.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := opts.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			parsed := a.Parser.Parse(strings.Join(args, " "))
			products, err := a.Catalog.SearchProducts(ctx, parsed, limit)
			if err != nil {
				return err
			}
			return printProducts(cmd.OutOrStdout(), products, format)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of products")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

func newLegacyCmd(opts *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "legacy <query>",
		Short: "Search the per-product union index",
		Long: `Search the per-product union index. Option filters are matched against
the union of all variants, so a product can match a combination no single
variant offers.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := opts.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			aggs, err := a.Legacy.SearchRaw(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printAggregates(cmd.OutOrStdout(), aggs, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	return cmd
}

type skuLine struct {
	SKUID string            `json:"skuId"`
	SPUID string            `json:"spuId"`
	Title string            `json:"title"`
	Price float64           `json:"price"`
	Attrs map[string]string `json:"attrs"`
}

func printSKUs(w io.Writer, skus []document.SKU, format string) error {
	switch format {
	case "json":
		lines := make([]skuLine, len(skus))
		for i := range skus {
			s := &skus[i]
			attrs := make(map[string]string)
			for _, a := range s.Attrs() {
				attrs[a.Name] = a.Value
			}
			lines[i] = skuLine{SKUID: s.SKUID(), SPUID: s.SPUID(), Title: s.Title(), Price: s.Price(), Attrs: attrs}
		}
		return writeJSON(w, lines)
	case "text":
		if len(skus) == 0 {
			fmt.Fprintln(w, "no results")
			return nil
		}
		for i := range skus {
			s := &skus[i]
			fmt.Fprintf(w, "%d. %s  sku=%s spu=%s price=%.2f [%s]\n",
				i+1, s.Title(), s.SKUID(), s.SPUID(), s.Price(), formatAttrs(s.Attrs()))
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func printAggregates(w io.Writer, aggs []legacy.Aggregate, format string) error {
	switch format {
	case "json":
		return writeJSON(w, aggs)
	case "text":
		if len(aggs) == 0 {
			fmt.Fprintln(w, "no results")
			return nil
		}
		for i := range aggs {
			a := &aggs[i]
			opts := make([]string, len(a.AvailableOptions))
			for j, o := range a.AvailableOptions {
				opts[j] = o.Name + "=" + o.Value
			}
			fmt.Fprintf(w, "%d. %s  spu=%s price=%.2f-%.2f stock=%d [%s]\n",
				i+1, a.Name, a.SPUID, a.PriceRange.Min, a.PriceRange.Max, a.TotalStock, strings.Join(opts, ", "))
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func printProducts(w io.Writer, products []catalog.Product, format string) error {
	switch format {
	case "json":
		return writeJSON(w, products)
	case "text":
		if len(products) == 0 {
			fmt.Fprintln(w, "no results")
			return nil
		}
		for i := range products {
			p := &products[i]
			fmt.Fprintf(w, "%d. %s  id=%s variants=%d\n", i+1, p.Name, p.ID, len(p.Variants))
			for _, v := range p.Variants {
				opts := make([]string, 0, len(v.Selections))
				for _, s := range v.Selections {
					opts = append(opts, s.OptionName+"="+s.Value)
				}
				fmt.Fprintf(w, "   - %s price=%.2f stock=%d [%s]\n", v.SKU, v.Price, v.StockQuantity, strings.Join(opts, ", "))
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func formatAttrs(attrs []document.Attr) string {
	parts := make([]string, len(attrs))
	for i, a := range attrs {
		parts[i] = a.Key()
	}
	return strings.Join(parts, ", ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
