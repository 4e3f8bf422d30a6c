package resource

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gltg/bmp-api/internal/page"
	"github.com/gltg/bmp-api/internal/query"
	"github.com/gltg/bmp-api/internal/schema"
)

// Parameters every resource search accepts.
const (
	ParamPage          = "page"
	ParamLimit         = "limit"
	ParamGroupBy       = "group_by"
	ParamAggregates    = "aggregates"
	ParamPartitions    = "partitions"
	ParamPartitionSize = "partition_size"
	ParamOrderBy       = "order_by"
)

var engineParams = map[string]bool{
	ParamPage: true, ParamLimit: true, ParamGroupBy: true, ParamAggregates: true,
	ParamPartitions: true, ParamPartitionSize: true, ParamOrderBy: true,
}

// List returns every value of key, accepting repeated keys and
// comma-separated values alike. Blank entries are dropped.
func List(values url.Values, key string) []string {
	var out []string
	for _, v := range values[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// SearchRequest is a parsed search: the plan spec and the page to return.
type SearchRequest struct {
	Spec query.Spec
	Page page.Request
}

// ParseSearch turns request parameters into a SearchRequest for def.
// Parameters that are neither engine parameters nor one of def's filters are
// rejected as unknown fields.
func ParseSearch(def *Definition, values url.Values, defaultLimit int) (SearchRequest, error) {
	req, err := page.ParseRequest(values.Get(ParamPage), values.Get(ParamLimit), defaultLimit)
	if err != nil {
		return SearchRequest{}, err
	}

	spec := query.Spec{
		GroupBy: List(values, ParamGroupBy),
		OrderBy: query.ParseOrders(List(values, ParamOrderBy)),
	}
	if spec.Aggregates, err = query.ParseAggregates(List(values, ParamAggregates)); err != nil {
		return SearchRequest{}, err
	}

	spec.Partition.Fields = List(values, ParamPartitions)
	if raw := strings.TrimSpace(values.Get(ParamPartitionSize)); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return SearchRequest{}, &query.InvalidPageRequestError{Param: ParamPartitionSize, Value: raw, Reason: "must be an integer"}
		}
		spec.Partition.Size = size
	}

	filter, err := def.filter(values)
	if err != nil {
		return SearchRequest{}, err
	}
	spec.Filter = filter
	return SearchRequest{Spec: spec, Page: req}, nil
}

// filter folds every supplied filter parameter into one AND node.
func (d *Definition) filter(values url.Values) (query.Filter, error) {
	known := make(map[string]FilterParam, len(d.Filters))
	for _, fp := range d.Filters {
		known[fp.Name] = fp
	}
	for key := range values {
		if _, ok := known[key]; !ok && !engineParams[key] {
			return nil, &schema.UnknownFieldError{Schema: d.Schema.Name, Name: key}
		}
	}

	var parts []query.Filter
	for _, fp := range d.Filters {
		supplied, err := filterValues(fp, values)
		if err != nil {
			return nil, err
		}
		if len(supplied) == 0 {
			continue
		}
		parts = append(parts, fp.Build(supplied))
	}
	switch len(parts) {
	case 0:
		return nil, nil
	case 1:
		return parts[0], nil
	}
	return query.AllOf(parts...), nil
}

// filterValues returns the values supplied for fp. A single valued parameter
// given more than once is malformed rather than truncated.
func filterValues(fp FilterParam, values url.Values) ([]string, error) {
	if fp.List {
		return List(values, fp.Name), nil
	}
	var supplied []string
	for _, v := range values[fp.Name] {
		if v = strings.TrimSpace(v); v != "" {
			supplied = append(supplied, v)
		}
	}
	if len(supplied) > 1 {
		return nil, &query.MalformedFilterError{Reason: fmt.Sprintf("%s takes a single value, got %d", fp.Name, len(supplied))}
	}
	return supplied, nil
}
