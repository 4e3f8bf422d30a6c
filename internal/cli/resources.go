package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gltg/bmp-api/internal/resource"
	"github.com/gltg/bmp-api/internal/ui"
)

type fieldInfo struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Column string `json:"column,omitempty"`
}

type filterInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type resourceInfo struct {
	Name         string       `json:"name"`
	Table        string       `json:"table"`
	PrimaryKey   string       `json:"primary_key"`
	DefaultLimit int          `json:"default_limit"`
	ScopedBy     string       `json:"scoped_by,omitempty"`
	Fields       []fieldInfo  `json:"fields"`
	Filters      []filterInfo `json:"filters,omitempty"`
}

var resourcesCmd = &cobra.Command{
	Use:   "resources [name]",
	Short: "List resources, their fields, and their filter parameters",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Listing needs no database.
		svc := newService(nil)
		defs := svc.Resources()
		if len(args) == 1 {
			def, err := svc.Resource(args[0])
			if err != nil {
				return handleQueryError(err)
			}
			defs = []*resource.Definition{def}
		}

		infos := make([]resourceInfo, 0, len(defs))
		for _, def := range defs {
			infos = append(infos, describeResource(svc, def))
		}

		if isJSONOutput() {
			outputSuccess(infos, &Meta{Count: len(infos)})
			return nil
		}
		for i, info := range infos {
			if i > 0 {
				fmt.Println()
			}
			printResource(info)
		}
		return nil
	},
}

func describeResource(svc *resource.Service, def *resource.Definition) resourceInfo {
	info := resourceInfo{
		Name:         def.Name(),
		Table:        def.Schema.Table,
		PrimaryKey:   def.Schema.PrimaryKey,
		DefaultLimit: svc.DefaultLimitFor(def.Name()),
	}
	if def.Scope != nil {
		info.ScopedBy = def.Scope.Source.Name + "." + def.Scope.SourceField
	}
	for _, f := range def.Schema.Fields() {
		fi := fieldInfo{Name: f.Name, Type: string(f.Type)}
		if col := f.ColumnName(); col != f.Name {
			fi.Column = col
		}
		info.Fields = append(info.Fields, fi)
	}
	for _, fp := range def.Filters {
		info.Filters = append(info.Filters, filterInfo{Name: fp.Name, Description: fp.Description})
	}
	return info
}

func printResource(info resourceInfo) {
	header := fmt.Sprintf("%s %s", ui.Header(info.Name), ui.Hint(fmt.Sprintf("table %s, key %s, %d per page", info.Table, info.PrimaryKey, info.DefaultLimit)))
	fmt.Println(header)
	if info.ScopedBy != "" {
		fmt.Println(ui.Hint("  only rows referenced by " + info.ScopedBy))
	}

	fields := ui.NewTable(3)
	for _, f := range info.Fields {
		column := ""
		if f.Column != "" {
			column = ui.Hint("column " + f.Column)
		}
		fields.AddRow("  "+ui.Name(f.Name), f.Type, column)
	}
	fmt.Print(fields.String())

	if len(info.Filters) == 0 {
		return
	}
	fmt.Println(ui.Hint("  filters:"))
	filters := ui.NewTable(2)
	for _, f := range info.Filters {
		filters.AddRow("    "+f.Name, ui.Hint(strings.TrimSpace(f.Description)))
	}
	fmt.Print(filters.String())
}

func init() {
	rootCmd.AddCommand(resourcesCmd)
}
