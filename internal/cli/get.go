package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gltg/bmp-api/internal/ui"
)

var getCmd = &cobra.Command{
	Use:   "get <resource> <id>",
	Short: "Show one row of a resource by primary key",
	Example: `  bmp get practices 42
  bmp get states IA --json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, id := args[0], args[1]
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		st, err := openStore(ctx)
		if err != nil {
			return handleQueryError(err)
		}
		defer st.Close()
		svc := newService(st)

		def, err := svc.Resource(name)
		if err != nil {
			return handleQueryError(err)
		}
		row, err := svc.Get(ctx, name, id)
		if err != nil {
			return handleQueryError(err)
		}

		if isJSONOutput() {
			outputSuccess(row, nil)
			return nil
		}

		fmt.Println(ui.Header(fmt.Sprintf("%s %s", name, id)))
		tbl := ui.NewTable(2)
		for _, f := range def.Schema.Fields() {
			tbl.AddRow(ui.Name(f.Name), ui.FormatCell(row[f.Name]))
		}
		fmt.Print(tbl.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
