// Package resource registers the API's concrete resources and turns request
// parameters into query plans over them.
package resource

import (
	"fmt"

	"github.com/gltg/bmp-api/internal/schema"
)

// Practices holds one row per applied conservation practice.
var Practices = schema.MustNew("practices", "practices", "id",
	schema.Integer("id"),
	schema.Text("huc_8"),
	schema.Text("huc_12"),
	schema.Text("state"),
	schema.Text("county_code"),
	schema.Text("county"),
	schema.Text("nrcs_practice_code"),
	schema.Text("practice_name"),
	schema.Text("program"),
	schema.Text("fund_code"),
	schema.Float("applied_amount"),
	schema.Text("practice_units"),
	schema.Integer("applied_date"),
	schema.Float("funding"),
	schema.Integer("sunset"),
	schema.Integer("active_year"),
	schema.Text("category"),
	schema.Text("wq_benefits"),
	schema.Float("area_treated"),
	schema.JSONArray("ancillary_benefits"),
	schema.Float("p_reduction_fraction"),
	schema.Float("n_reduction_fraction"),
	schema.Float("p_reduction_percentage_statewide"),
	schema.Float("n_reduction_percentage_statewide"),
	schema.Float("p_reduction_gom_lbs"),
	schema.Float("n_reduction_gom_lbs"),
)

// Assumptions holds the per-practice modelling assumptions.
var Assumptions = schema.MustNew("assumptions", "assumptions", "id", assumptionFields()...)

func assumptionFields() []schema.Field {
	fields := []schema.Field{
		schema.Text("id"),
		schema.Text("name"),
		schema.Text("url"),
		schema.Text("dominant_unit"),
		schema.Text("units"),
	}
	for i := 1; i <= 4; i++ {
		fields = append(fields, schema.Text(fmt.Sprintf("alt_unit_%d", i)))
	}
	for i := 1; i <= 22; i++ {
		fields = append(fields, schema.Text(fmt.Sprintf("alias_%d", i)))
	}
	fields = append(fields, schema.Integer("wq"))
	for _, name := range []string{"wq_benefits", "life_span", "nitrogen", "phosphorus", "cost_share_fraction", "category", "conv", "ancillary_benefits"} {
		fields = append(fields, schema.JSONArray(name))
	}
	return fields
}

// HUC8 holds 8-digit hydrologic units. The geometry column is never selected.
var HUC8 = schema.MustNew("huc8", "huc8", "huc8",
	schema.Text("huc8"),
	schema.Text("name"),
	schema.Float("area_acres").As("areaacres"),
	schema.Text("states"),
)

// States holds per-state areas and nutrient loads.
var States = schema.MustNew("states", "states", "state",
	schema.Text("state").As("id"),
	schema.Float("area_sq_mi"),
	schema.Float("size_ac"),
	schema.Float("total_p_load_lbs"),
	schema.Float("total_n_load_lbs"),
	schema.Float("rowcrop_p_yield_lbs_per_ac"),
	schema.Float("rowcrop_n_yield_lbs_per_ac"),
	schema.Float("fraction_p"),
	schema.Float("fraction_n"),
	schema.Float("overall_p_yield_lbs_per_ac"),
	schema.Float("overall_n_yield_lbs_per_ac"),
)

// Schemas returns every resource schema in registration order.
func Schemas() []*schema.Schema {
	return []*schema.Schema{Practices, Assumptions, HUC8, States}
}
