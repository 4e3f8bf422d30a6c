package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gltg/bmp-api/internal/query"
	"github.com/gltg/bmp-api/internal/resource"
	"github.com/gltg/bmp-api/internal/schema"
	"github.com/gltg/bmp-api/internal/seed"
	"github.com/gltg/bmp-api/internal/ui"
)

type prepareResult struct {
	Tables []string       `json:"tables"`
	Loaded map[string]int `json:"loaded"`
}

var prepareDBCmd = &cobra.Command{
	Use:   "prepare-db [fixtures.yaml]",
	Short: "Create the resource tables and optionally load YAML fixtures",
	Long: `Create any missing resource tables in the configured database. When a
fixture file is given, its rows are inserted after the tables exist.

The fixture file maps resource names to lists of rows keyed by field name:

  practices:
    - id: 1
      state: IA
      applied_amount: 12.5
  states:
    - state: IA`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		schemas := resource.Schemas()
		var fixtures *seed.Fixtures
		if len(args) == 1 {
			reg, err := schema.NewRegistry(schemas...)
			if err != nil {
				return handleError(ErrInternal, err, "")
			}
			if fixtures, err = seed.LoadFile(args[0], reg); err != nil {
				return handleError(ErrFileReadError, err, "Fixture keys must be resource names and field names; see 'bmp resources'")
			}
		}

		st, err := openStore(ctx)
		if err != nil {
			return handleQueryError(err)
		}
		defer st.Close()

		if err := st.CreateTables(ctx, schemas...); err != nil {
			return handleQueryError(query.Execution("create tables", err))
		}
		result := prepareResult{Loaded: map[string]int{}}
		for _, sc := range schemas {
			result.Tables = append(result.Tables, sc.Table)
		}

		if fixtures != nil {
			progress := ui.NewProgress(os.Stderr, ui.NewDisplayContextFor(os.Stderr), "Loading", len(fixtures.Tables))
			if jsonOutput {
				progress = nil
			}
			err := seed.IntoSQL(ctx, st, fixtures, func(t seed.Table) {
				result.Loaded[t.Schema.Name] += len(t.Rows)
				if progress != nil {
					progress.Step(t.Schema.Name)
				}
			})
			if progress != nil {
				progress.Done("")
			}
			if err != nil {
				return handleQueryError(query.Execution("load fixtures", err))
			}
		}

		rows := 0
		if fixtures != nil {
			rows = fixtures.Count()
		}
		if isJSONOutput() {
			outputSuccess(result, &Meta{Count: rows})
			return nil
		}
		fmt.Println(ui.Successf("prepared %d tables", len(result.Tables)))
		if fixtures != nil {
			fmt.Println(ui.Successf("loaded fixtures %s", ui.Count(rows, "row", "rows")))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(prepareDBCmd)
}
