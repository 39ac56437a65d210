package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MorseWayne/shopcart/internal/catalog"
	"github.com/MorseWayne/shopcart/internal/debounce"
	"github.com/MorseWayne/shopcart/internal/domain"
)

type browseOptions struct {
	category    string
	search      string
	minPrice    float64
	maxPrice    float64
	minRating   float64
	interactive bool
	delay       time.Duration
	asJSON      bool
}

func newBrowseCmd() *cobra.Command {
	opts := &browseOptions{}
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Load both catalogs and print the filtered product list",
		Long: `Load both upstream catalogs and print the products matching the filter flags.

With --interactive each line read from stdin replaces the search term. Lines are
debounced so that only the last term typed within --debounce is applied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.category, "category", domain.CategoryAll, "category to show")
	f.StringVar(&opts.search, "search", "", "case-insensitive text matched against the product name")
	f.Float64Var(&opts.minPrice, "min-price", 0, "minimum price")
	f.Float64Var(&opts.maxPrice, "max-price", domain.DefaultMaxPrice, "maximum price")
	f.Float64Var(&opts.minRating, "min-rating", 0, "minimum rating")
	f.BoolVarP(&opts.interactive, "interactive", "i", false, "read search terms from stdin")
	f.DurationVar(&opts.delay, "debounce", 300*time.Millisecond, "quiet period before a typed search term is applied")
	f.BoolVar(&opts.asJSON, "json", false, "print products as JSON")
	return cmd
}

func runBrowse(cmd *cobra.Command, opts *browseOptions) error {
	p := newProvider(newLogger())

	var a, b []domain.SourceRecord
	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() (err error) {
		a, err = p.FetchCatalogA(ctx)
		return err
	})
	g.Go(func() (err error) {
		b, err = p.FetchCatalogB(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	store := catalog.NewStore()
	store.Load(a, b)
	store.SetFilter(domain.FilterPatch{
		Category:  &opts.category,
		Search:    &opts.search,
		MinPrice:  &opts.minPrice,
		MaxPrice:  &opts.maxPrice,
		MinRating: &opts.minRating,
	})

	out := cmd.OutOrStdout()
	if opts.interactive {
		var mu sync.Mutex
		apply := debounce.New(func(term string) {
			mu.Lock()
			defer mu.Unlock()
			store.SetFilter(domain.FilterPatch{Search: &term})
			fmt.Fprintf(out, "search %q: %d of %d products\n", term, store.Len(), store.Total())
		}, opts.delay)

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			apply.Call(strings.TrimSpace(scanner.Text()))
		}
		apply.Flush()
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}

		mu.Lock()
		defer mu.Unlock()
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(store.Products())
	}
	return printProducts(out, store.Products(), store.Total())
}

func printProducts(w io.Writer, products []domain.NormalizedProduct, total int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tRATING")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.1f\n", p.UniqueID, p.Name, p.Category, p.Price, p.Rating)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d of %d products\n", len(products), total)
	return err
}

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Print the merged category options",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newProvider(newLogger())

			var a, b []any
			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() (err error) {
				a, err = p.FetchCategoriesA(ctx)
				return err
			})
			g.Go(func() (err error) {
				b, err = p.FetchCategoriesB(ctx)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}

			for _, c := range catalog.Categories(a, b) {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}
}

type normalizedRecord struct {
	Source  domain.SourceTag         `json:"source"`
	Product domain.NormalizedProduct `json:"product"`
}

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize [file]",
		Short: "Classify and normalize raw upstream records",
		Long: `Read one raw upstream product record, or a JSON array of records, from the
given file or stdin and print the source it belongs to and its normalized form.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			raw, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			out, err := normalizeInput(raw)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

// normalizeInput 接受单条记录或记录数组；数组输入返回数组
func normalizeInput(raw []byte) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
		}
		out := make([]normalizedRecord, 0, len(items))
		for i, item := range items {
			rec, err := domain.ClassifyRaw(item)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			out = append(out, normalizedRecord{Source: rec.Source, Product: rec.Normalize()})
		}
		return out, nil
	}

	rec, err := domain.ClassifyRaw(raw)
	if err != nil {
		return nil, err
	}
	return normalizedRecord{Source: rec.Source, Product: rec.Normalize()}, nil
}
