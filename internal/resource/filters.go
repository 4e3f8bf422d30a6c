package resource

import (
	"github.com/gltg/bmp-api/internal/query"
)

// FilterParam maps one request parameter onto a filter node. List parameters
// accept repeated keys and comma separated values; every other parameter
// takes exactly one value, passed to Build as is. Parameters that were not
// supplied never reach Build.
type FilterParam struct {
	Name        string
	Description string
	List        bool
	Build       func(values []string) query.Filter
}

// in matches any of the supplied values.
func in(field string) func([]string) query.Filter {
	return func(values []string) query.Filter {
		return query.Compare(field, query.OpIn, values)
	}
}

// eq matches the supplied value.
func eq(field string) func([]string) query.Filter {
	return func(values []string) query.Filter {
		return query.Compare(field, query.OpEq, values[0])
	}
}

func compare(field string, op query.Operator) func([]string) query.Filter {
	return func(values []string) query.Filter {
		return query.Compare(field, op, values[0])
	}
}

// orUnset matches rows where the comparison holds or the field is empty.
func orUnset(field string, op query.Operator) func([]string) query.Filter {
	return func(values []string) query.Filter {
		return query.AnyOf(query.Compare(field, op, values[0]), query.IsNull(field))
	}
}

// andSet matches rows where the field is present and the comparison holds.
func andSet(field string, op query.Operator) func([]string) query.Filter {
	return func(values []string) query.Filter {
		return query.AllOf(query.Compare(field, op, values[0]), query.IsNotNull(field))
	}
}

var practiceFilters = []FilterParam{
	{Name: "huc_8", Description: "HUC8 codes", List: true, Build: in("huc_8")},
	{Name: "state", Description: "state abbreviations", List: true, Build: in("state")},
	{Name: "practice_code", Description: "NRCS practice code", Build: eq("nrcs_practice_code")},
	{Name: "applied_date", Description: "applied in or after this year, or undated", Build: orUnset("applied_date", query.OpGte)},
	{Name: "sunset", Description: "sunset in or before this year, or no sunset", Build: orUnset("sunset", query.OpLte)},
	{Name: "program", Description: "funding program", Build: eq("program")},
	{Name: "min_applied_amount", Build: compare("applied_amount", query.OpGte)},
	{Name: "max_applied_amount", Build: compare("applied_amount", query.OpLte)},
	{Name: "category", Build: eq("category")},
	{Name: "wq_benefits", Build: eq("wq_benefits")},
	{Name: "ancillary_benefits", Description: "any of these ancillary benefits", List: true, Build: func(values []string) query.Filter {
		return query.Compare("ancillary_benefits", query.OpContains, values)
	}},
	{Name: "min_area_treated", Build: andSet("area_treated", query.OpGte)},
	{Name: "max_area_treated", Build: andSet("area_treated", query.OpLte)},
}
