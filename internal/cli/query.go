package cli

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gltg/bmp-api/internal/page"
	"github.com/gltg/bmp-api/internal/query"
	"github.com/gltg/bmp-api/internal/resource"
	"github.com/gltg/bmp-api/internal/schema"
	"github.com/gltg/bmp-api/internal/seed"
	"github.com/gltg/bmp-api/internal/store"
	"github.com/gltg/bmp-api/internal/ui"
)

var (
	queryParams        []string
	queryPage          int
	queryLimit         int
	queryGroupBy       []string
	queryAggregates    []string
	queryPartitions    []string
	queryPartitionSize int
	queryOrderBy       []string
	queryFixtures      string
)

var queryCmd = &cobra.Command{
	Use:   "query <resource>",
	Short: "Search a resource with filters, grouping, partitioning, and paging",
	Long: `Search a resource and print one page of results.

Filter parameters are resource specific and passed with --param; run
'bmp resources' to see them. List values accept commas.

Examples:
  bmp query practices --param state=IA,MN --limit 10
  bmp query practices --group-by state --aggregate applied_amount-sum --order-by -applied_amount-sum
  bmp query practices --partition state --partition-size 2 --order-by -applied_amount
  bmp query states --page 2 --json
  bmp query practices --fixtures fixtures.yaml --group-by state`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	name := args[0]
	values, err := buildQueryValues(cmd)
	if err != nil {
		return handleError(ErrInvalidInput, err, "Pass filters as --param key=value")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, closeStore, err := queryStore(ctx)
	if err != nil {
		if queryFixtures != "" {
			return handleError(ErrFileReadError, err, "Fixture keys must be resource names and field names; see 'bmp resources'")
		}
		return handleQueryError(err)
	}
	defer closeStore()
	svc := newService(st)

	links := page.Links{
		Base:     strings.TrimSuffix(getConfig().Server.BasePath, "/") + "/" + name,
		RawQuery: values.Encode(),
	}
	start := time.Now()
	result, err := svc.Search(ctx, name, values, links)
	if err != nil {
		return handleQueryError(err)
	}
	elapsed := time.Since(start).Milliseconds()

	if isJSONOutput() {
		outputSuccess(result, &Meta{
			Count:       result.Count,
			Page:        result.Page,
			TotalPages:  result.TotalPages,
			QueryTimeMs: elapsed,
		})
		return nil
	}

	printSearchResult(name, result)
	return nil
}

// queryStore opens the configured database, or an in-memory store loaded
// from --fixtures when that flag is set.
func queryStore(ctx context.Context) (query.Store, func(), error) {
	if queryFixtures == "" {
		st, err := openStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil
	}

	reg, err := schema.NewRegistry(resource.Schemas()...)
	if err != nil {
		return nil, nil, err
	}
	fixtures, err := seed.LoadFile(queryFixtures, reg)
	if err != nil {
		return nil, nil, err
	}
	mem := store.NewMemoryStore()
	if err := seed.IntoMemory(mem, fixtures); err != nil {
		return nil, nil, err
	}
	getLogger().Debug("loaded fixtures", "path", queryFixtures, "rows", fixtures.Count())
	return mem, func() {}, nil
}

// buildQueryValues turns the query flags into the request parameters the
// HTTP API would receive.
func buildQueryValues(cmd *cobra.Command) (url.Values, error) {
	values := url.Values{}
	for _, p := range queryParams {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q: expected key=value", p)
		}
		values.Add(key, strings.TrimSpace(value))
	}

	flags := cmd.Flags()
	if flags.Changed("page") {
		values.Set(resource.ParamPage, strconv.Itoa(queryPage))
	}
	if flags.Changed("limit") {
		values.Set(resource.ParamLimit, strconv.Itoa(queryLimit))
	}
	if flags.Changed("partition-size") {
		values.Set(resource.ParamPartitionSize, strconv.Itoa(queryPartitionSize))
	}
	lists := []struct {
		key   string
		items []string
	}{
		{resource.ParamGroupBy, queryGroupBy},
		{resource.ParamAggregates, queryAggregates},
		{resource.ParamPartitions, queryPartitions},
		{resource.ParamOrderBy, queryOrderBy},
	}
	for _, l := range lists {
		if len(l.items) > 0 {
			values.Set(l.key, strings.Join(l.items, ","))
		}
	}
	return values, nil
}

func printSearchResult(name string, result *page.SearchResult) {
	if len(result.Results) == 0 {
		if result.Count == 0 {
			fmt.Printf("No %s found.\n", ui.Name(name))
		} else {
			fmt.Println(ui.Hint(fmt.Sprintf("No rows on page %d; %s has %d pages.", result.Page, name, result.TotalPages)))
		}
		return
	}

	tbl := ui.NewResultsTable(ui.NewDisplayContext(), result.Columns)
	for _, row := range result.Results {
		tbl.AddRow(row)
	}
	fmt.Println(tbl.Render())
	fmt.Println(ui.Hint(ui.PageSummary(result.Page, result.TotalPages, len(result.Results), result.Count)))
	if result.Next != nil {
		fmt.Println(ui.Hint(fmt.Sprintf("next: --page %d", result.Page+1)))
	}
}

func resetQueryFlags() {
	queryParams = nil
	queryPage = 1
	queryLimit = 0
	queryGroupBy = nil
	queryAggregates = nil
	queryPartitions = nil
	queryPartitionSize = 0
	queryOrderBy = nil
	queryFixtures = ""
}

func init() {
	queryCmd.Flags().StringArrayVarP(&queryParams, "param", "p", nil, "Filter parameter as key=value (repeatable)")
	queryCmd.Flags().IntVar(&queryPage, "page", 1, "Page number (1-based)")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "Rows per page; below 1 returns every row (default: configured limit)")
	queryCmd.Flags().StringSliceVar(&queryGroupBy, "group-by", nil, "Fields to group by")
	queryCmd.Flags().StringSliceVar(&queryAggregates, "aggregate", nil, "Aggregates as <field>-<function>, e.g. applied_amount-sum")
	queryCmd.Flags().StringSliceVar(&queryPartitions, "partition", nil, "Fields to partition by")
	queryCmd.Flags().IntVar(&queryPartitionSize, "partition-size", 0, "Rows kept per partition")
	queryCmd.Flags().StringSliceVar(&queryOrderBy, "order-by", nil, "Sort keys; prefix - for descending")
	queryCmd.Flags().StringVar(&queryFixtures, "fixtures", "", "Query a fixtures YAML file in memory instead of the database")
	rootCmd.AddCommand(queryCmd)
}
