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
	"golang.org/x/term"

	"github.com/entitylist/entitylist/internal/config"
	"github.com/entitylist/entitylist/internal/contenttype"
	"github.com/entitylist/entitylist/internal/controller"
	"github.com/entitylist/entitylist/internal/entity"
	"github.com/entitylist/entitylist/internal/loader"
	"github.com/entitylist/entitylist/internal/metrics"
	"github.com/entitylist/entitylist/internal/persist"
	"github.com/entitylist/entitylist/internal/query"
	"github.com/entitylist/entitylist/internal/store"
	"github.com/entitylist/entitylist/internal/view"
)

const defaultTerminalWidth = 100

var (
	searchSpace       string
	searchEnv         string
	searchType        string
	searchText        string
	searchFilters     []string
	searchContentType string
	searchOrder       string
	searchPage        int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Print one page of entries or assets matching a search.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := searchViewFromFlags()
		if err != nil {
			return usageError(err)
		}
		return runSearch(cmd.Context(), cmd.OutOrStdout(), v)
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchSpace, "space", "demo", "Space id")
	searchCmd.Flags().StringVar(&searchEnv, "env", "master", "Environment id")
	searchCmd.Flags().StringVar(&searchType, "type", "entries", "entries or assets")
	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "Free text search")
	searchCmd.Flags().StringArrayVar(&searchFilters, "filter", nil, "Filter as key[operator]=value; repeatable")
	searchCmd.Flags().StringVar(&searchContentType, "content-type", "", "Restrict entries to a content type id")
	searchCmd.Flags().StringVar(&searchOrder, "order", "", "Order field; prefix with - for descending")
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "1-based page number")
}

func searchViewFromFlags() (view.View, error) {
	entityType := view.NormalizeEntityType(searchType)
	if entityType == "" {
		return view.View{}, fmt.Errorf("unknown --type %q: want entries or assets", searchType)
	}
	v := view.Defaults(entityType)
	v.SearchText = strings.TrimSpace(searchText)
	v.ContentTypeID = strings.TrimSpace(searchContentType)
	for _, raw := range searchFilters {
		f, err := parseFilterFlag(raw)
		if err != nil {
			return view.View{}, err
		}
		v.SearchFilters = append(v.SearchFilters, f)
	}
	if searchOrder != "" {
		order, err := parseOrderFlag(searchOrder)
		if err != nil {
			return view.View{}, err
		}
		v.Order = order
	}
	if err := v.Validate(); err != nil {
		return view.View{}, err
	}
	return v, nil
}

// parseFilterFlag reads key=value or key[operator]=value.
func parseFilterFlag(raw string) (view.Filter, error) {
	name, value, ok := strings.Cut(raw, "=")
	if !ok {
		return view.Filter{}, fmt.Errorf("filter %q: want key[operator]=value", raw)
	}
	key, operator := query.SplitParam(name)
	if key == "" {
		return view.Filter{}, fmt.Errorf("filter %q: empty key", raw)
	}
	return view.Filter{Key: key, Operator: operator, Value: strings.TrimSpace(value)}, nil
}

func parseOrderFlag(raw string) (view.Order, error) {
	raw = strings.TrimSpace(raw)
	direction := view.Ascending
	if strings.HasPrefix(raw, "-") {
		direction = view.Descending
		raw = strings.TrimPrefix(raw, "-")
	}
	if raw == "" {
		return view.Order{}, fmt.Errorf("order field is empty")
	}
	return view.Order{FieldID: raw, Direction: direction}, nil
}

func runSearch(ctx context.Context, out io.Writer, v view.View) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	registry, err := contenttype.NewRegistry(cfg.ContentTypesFile, nil)
	if err != nil {
		return err
	}

	entityType := view.NormalizeEntityType(searchType)
	scope := store.Scope{SpaceID: searchSpace, EnvironmentID: searchEnv, EntityType: entityType}
	st := store.New(pool, store.WithMaxResponseBytes(cfg.MaxResponseBytes))

	p := persist.New(
		persist.Key{EntityType: entityType, EnvironmentID: searchEnv, SpaceID: searchSpace},
		persist.WithStorage(persist.NewMemoryStorage()),
		persist.WithLocation(persist.NewStaticLocation(view.Encode(v))),
		persist.WithDefaults(view.Defaults(entityType)),
	)
	l := loader.New(st.FetchFunc(scope),
		loader.WithEntityType(entityType),
		loader.WithPageSize(cfg.LoaderPageSize),
		loader.WithMinPageSize(cfg.LoaderMinPageSize),
		loader.WithContentTypes(registry),
		loader.WithMetrics(metrics.Discard{}),
	)
	ctrl := controller.New(p, l, controller.WithBaseContext(ctx))

	page := searchPage
	if page < 1 {
		page = 1
	}
	if err := ctrl.GoToPage(ctx, page-1); err != nil {
		return err
	}
	return printEntities(out, ctrl.State(), registry.Current(), terminalWidth())
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return defaultTerminalWidth
	}
	return width
}

// printEntities writes one row per entity. The title column absorbs whatever
// width the fixed columns leave over.
func printEntities(out io.Writer, state controller.State, catalog *contenttype.Catalog, width int) error {
	const fixedColumns = 36 + 12 + 10 + 16 + 8
	titleWidth := width - fixedColumns
	if titleWidth < 10 {
		titleWidth = 10
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tUPDATED\tTITLE")
	for _, e := range state.Entities {
		kind := e.Sys.Type
		if id := e.ContentTypeID(); id != "" {
			kind = id
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.ID(),
			kind,
			e.Status(),
			e.Sys.UpdatedAt.UTC().Format(time.DateTime),
			truncate(entityTitle(e, catalog), titleWidth),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	pages := 1
	if state.PerPage > 0 && state.Total > 0 {
		pages = (state.Total + state.PerPage - 1) / state.PerPage
	}
	_, err := fmt.Fprintf(out, "\npage %d of %d, %d total\n", state.Page+1, pages, state.Total)
	return err
}

func entityTitle(e entity.Entity, catalog *contenttype.Catalog) string {
	field := "title"
	if !e.IsAsset() && catalog != nil {
		if df, ok := catalog.DisplayField(e.ContentTypeID()); ok && df != "" {
			field = df
		}
	}
	if s, ok := e.Fields[field].(string); ok && s != "" {
		return s
	}
	return "Untitled"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
