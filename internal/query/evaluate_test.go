package query

import (
	"reflect"
	"testing"
)

func practiceRows() []Row {
	return []Row{
		{"id": int64(1), "state": "IA", "huc_8": "07010001", "practice_area": 10.0, "applied_date": int64(2018), "ancillary_benefits": []interface{}{"Soil Health"}},
		{"id": int64(2), "state": "IA", "huc_8": "07010002", "practice_area": 30.0, "applied_date": nil, "ancillary_benefits": nil},
		{"id": int64(3), "state": "MN", "huc_8": "07020001", "practice_area": 5.0, "applied_date": int64(2021), "ancillary_benefits": `["Habitat","Soil Health"]`},
		{"id": int64(4), "state": "MN", "huc_8": "07020001", "practice_area": nil, "applied_date": int64(2016), "ancillary_benefits": []interface{}{}},
		{"id": int64(5), "state": "WI", "huc_8": "07030001", "practice_area": 20.0, "applied_date": int64(2020), "ancillary_benefits": []interface{}{"Habitat"}},
	}
}

func evaluateIDs(t *testing.T, spec Spec) []int64 {
	t.Helper()
	p, err := Build(practices, spec)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var ids []int64
	for _, r := range Evaluate(p, practiceRows()) {
		ids = append(ids, r["id"].(int64))
	}
	return ids
}

func TestEvaluateFilters(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []int64
	}{
		{name: "nil matches all", filter: nil, want: []int64{1, 2, 3, 4, 5}},
		{name: "in", filter: Compare("state", OpIn, []string{"MN", "WI"}), want: []int64{3, 4, 5}},
		{name: "gte skips nulls", filter: Compare("practice_area", OpGte, 10), want: []int64{1, 2, 5}},
		{name: "date or null", filter: AnyOf(Compare("applied_date", OpGte, 2019), IsNull("applied_date")), want: []int64{2, 3, 5}},
		{name: "contains decodes text", filter: Compare("ancillary_benefits", OpContains, "Soil Health"), want: []int64{1, 3}},
		{name: "contains any of", filter: Compare("ancillary_benefits", OpContains, []string{"Habitat", "Nope"}), want: []int64{3, 5}},
		{name: "and", filter: AllOf(Compare("state", OpEq, "MN"), IsNotNull("practice_area")), want: []int64{3}},
		{name: "pointer nodes", filter: &Combinator{Kind: Or, Children: []Filter{&Comparison{Field: "id", Op: OpEq, Value: "4"}}}, want: []int64{4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluateIDs(t, Spec{Filter: tt.filter})
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateGroupsAndAggregates(t *testing.T) {
	p, err := Build(practices, Spec{
		GroupBy: []string{"state"},
		Aggregates: []AggregateSpec{
			{Field: "practice_area", Func: "sum"},
			{Field: "practice_area", Func: "count"},
			{Field: "huc_8", Func: "count_distinct"},
			{Field: "applied_date", Func: "min"},
		},
		OrderBy: ParseOrders([]string{"-practice_area-sum"}),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	got := Evaluate(p, practiceRows())
	want := []Row{
		{"state": "IA", "practice_area-sum": 40.0, "practice_area-count": int64(2), "huc_8-count_distinct": int64(2), "applied_date-min": int64(2018)},
		{"state": "WI", "practice_area-sum": 20.0, "practice_area-count": int64(1), "huc_8-count_distinct": int64(1), "applied_date-min": int64(2020)},
		{"state": "MN", "practice_area-sum": 5.0, "practice_area-count": int64(1), "huc_8-count_distinct": int64(1), "applied_date-min": int64(2016)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v\nwant %v", got, want)
	}
}

func TestEvaluateAggregateOverEmptySet(t *testing.T) {
	p, err := Build(practices, Spec{
		Filter:     Compare("state", OpEq, "CA"),
		Aggregates: []AggregateSpec{{Field: "practice_area", Func: "sum"}, {Field: "id", Func: "count"}},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	got := Evaluate(p, practiceRows())
	want := []Row{{"practice_area-sum": nil, "id-count": int64(0)}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEvaluateOrderingNulls(t *testing.T) {
	asc := evaluateIDs(t, Spec{OrderBy: ParseOrders([]string{"practice_area"})})
	if want := []int64{4, 3, 1, 5, 2}; !reflect.DeepEqual(asc, want) {
		t.Errorf("ascending got %v, want %v", asc, want)
	}
	desc := evaluateIDs(t, Spec{OrderBy: ParseOrders([]string{"-practice_area"})})
	if want := []int64{2, 5, 1, 3, 4}; !reflect.DeepEqual(desc, want) {
		t.Errorf("descending got %v, want %v", desc, want)
	}
}

func TestEvaluatePartition(t *testing.T) {
	got := evaluateIDs(t, Spec{
		Partition: Partition{Fields: []string{"state"}, Size: 1},
		OrderBy:   ParseOrders([]string{"-practice_area"}),
	})
	if want := []int64{2, 3, 5}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	all := evaluateIDs(t, Spec{
		Partition: Partition{Fields: []string{"state"}},
		OrderBy:   ParseOrders([]string{"-practice_area"}),
	})
	if want := []int64{2, 1, 3, 4, 5}; !reflect.DeepEqual(all, want) {
		t.Errorf("size 0 got %v, want %v", all, want)
	}
}

func TestEvaluateOne(t *testing.T) {
	row, ok := EvaluateOne(practices, practiceRows(), "3")
	if !ok || row["state"] != "MN" {
		t.Fatalf("expected row 3, got %v, %v", row, ok)
	}
	if _, ok := EvaluateOne(practices, practiceRows(), 99); ok {
		t.Error("expected miss for unknown id")
	}
	if _, ok := EvaluateOne(practices, practiceRows(), "abc"); ok {
		t.Error("expected miss for uncoercible id")
	}
}
