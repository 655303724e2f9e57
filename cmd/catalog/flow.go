package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/b2b-storefront/internal/backend"
	"github.com/example/b2b-storefront/internal/catalog"
	"github.com/example/b2b-storefront/internal/grid"
	"github.com/example/b2b-storefront/internal/repository"
)

var (
	flowEmpresa    string
	flowLine       string
	flowSelect     []string
	flowSearch     string
	flowSort       string
	flowPage       int
	flowBackend    string
	flowToken      string
	flowConfigPath string
	flowTimeout    time.Duration
)

var linesCmd = &cobra.Command{
	Use:   "lines",
	Short: "List the business lines present in a company catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := loadEngine(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "LINE\tNAME\tPRODUCTS")
		for _, l := range engine.View().AvailableLines {
			fmt.Fprintf(w, "%s\t%s\t%d\n", l.Key, l.DisplayName, l.Count)
		}
		return w.Flush()
	},
}

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "Show the options of the current step after applying --select",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := loadEngine(cmd.Context())
		if err != nil {
			return err
		}
		return printOptions(os.Stdout, engine.View())
	},
}

// printOptions writes the facets once the flow is at the product view, and
// the current step's options before that. The last step stays current at
// the product view.
func printOptions(out io.Writer, view catalog.View) error {
	if view.IsAtProductView {
		fmt.Fprintln(out, "No step left: the selection is at the product view.")
		for _, f := range view.AdditionalFilters {
			fmt.Fprintf(out, "%s: %s\n", f.DisplayName, joinOptions(f.Options))
		}
		return nil
	}
	if view.CurrentStep == nil {
		fmt.Fprintln(out, "No line selected; pass --line.")
		return nil
	}
	fmt.Fprintf(out, "Step %s (%s)\n", view.CurrentStep.ID, view.CurrentStep.DisplayName)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, o := range view.CurrentStepOptions {
		fmt.Fprintf(w, "  %s\t%d\n", o.Value, o.Count)
	}
	return w.Flush()
}

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Print one grid page of the products matching the selection",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := loadEngine(cmd.Context())
		if err != nil {
			return err
		}
		state := grid.DefaultState()
		state.SortBy = grid.SortBy(flowSort)
		state.CurrentPage = flowPage
		page, state := grid.Apply(engine.View().FilteredProducts, state.Normalize())

		fmt.Printf("Page %d of %d (%d products, sort %s)\n", page.CurrentPage, page.TotalPages, page.TotalItems, state.SortBy)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTOCK")
		for _, p := range page.Items {
			price := "-"
			if p.HasPrice() {
				price = fmt.Sprintf("%.2f", p.PriceValue())
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", p.ID, p.Name, price, p.Stock)
		}
		return w.Flush()
	},
}

// loadEngine fetches the company catalog and replays the flags as user
// actions: line, then one value per step in order, then the search.
func loadEngine(ctx context.Context) (*catalog.Engine, error) {
	if flowEmpresa == "" {
		return nil, fmt.Errorf("--empresa is required")
	}
	cfg, err := catalog.LoadConfig(flowConfigPath)
	if err != nil {
		return nil, err
	}

	client := backend.NewClient(flowBackend, flowTimeout)
	repo := repository.New(client, time.Minute)
	ctx, cancel := context.WithTimeout(backend.WithToken(ctx, flowToken), flowTimeout)
	defer cancel()
	products, err := repo.LoadCompany(ctx, "cli", flowEmpresa)
	if err != nil {
		return nil, err
	}

	engine := catalog.NewEngine(cfg, products)
	if flowLine != "" {
		engine.SelectLine(flowLine)
	}
	for _, v := range flowSelect {
		engine.SelectFilterValue(v)
	}
	if flowSearch != "" {
		engine.HandleSearchChange(flowSearch)
	}
	return engine, nil
}

func joinOptions(opts []catalog.Option) string {
	parts := make([]string, len(opts))
	for i, o := range opts {
		parts[i] = fmt.Sprintf("%s (%d)", o.Value, o.Count)
	}
	return strings.Join(parts, ", ")
}

func init() {
	for _, c := range []*cobra.Command{linesCmd, optionsCmd, productsCmd} {
		c.Flags().StringVar(&flowEmpresa, "empresa", "", "Company ID")
		c.Flags().StringVar(&flowLine, "line", "", "Business line, e.g. LLANTAS")
		c.Flags().StringSliceVar(&flowSelect, "select", nil, "Step values in flow order, comma separated")
		c.Flags().StringVar(&flowSearch, "search", "", "Free-text search")
		c.Flags().StringVar(&flowBackend, "backend", os.Getenv("BACKEND_URL"), "Backend base URL")
		c.Flags().StringVar(&flowToken, "token", os.Getenv("BACKEND_TOKEN"), "Bearer token forwarded to the backend")
		c.Flags().StringVar(&flowConfigPath, "flow-config", os.Getenv("FLOW_CONFIG_PATH"), "JSON flow configuration")
		c.Flags().DurationVar(&flowTimeout, "timeout", 30*time.Second, "Backend timeout")
		rootCmd.AddCommand(c)
	}
	productsCmd.Flags().StringVar(&flowSort, "sort", string(grid.SortDefault), "Sort: default, price_asc, price_desc, name_asc, rating")
	productsCmd.Flags().IntVar(&flowPage, "page", 1, "Page number")
}
