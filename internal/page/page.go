// Package page slices plan results into numbered pages and builds the
// navigation links of the response envelope.
package page

import (
	"context"
	"strconv"
	"strings"

	"github.com/gltg/bmp-api/internal/query"
)

// Request is a validated page request. A Limit below 1 means every row on a
// single page.
type Request struct {
	Page  int
	Limit int
}

// ParseRequest validates raw page and limit parameters. Empty values fall
// back to page 1 and defaultLimit.
func ParseRequest(rawPage, rawLimit string, defaultLimit int) (Request, error) {
	req := Request{Page: 1, Limit: defaultLimit}

	if rawPage = strings.TrimSpace(rawPage); rawPage != "" {
		n, err := strconv.Atoi(rawPage)
		if err != nil {
			return Request{}, &query.InvalidPageRequestError{Param: "page", Value: rawPage, Reason: "must be an integer"}
		}
		req.Page = n
	}
	if rawLimit = strings.TrimSpace(rawLimit); rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil {
			return Request{}, &query.InvalidPageRequestError{Param: "limit", Value: rawLimit, Reason: "must be an integer"}
		}
		req.Limit = n
	}
	return req, req.Validate()
}

// Validate checks the request without touching any store.
func (r Request) Validate() error {
	if r.Page < 1 {
		return &query.InvalidPageRequestError{Param: "page", Value: strconv.Itoa(r.Page), Reason: "must be at least 1"}
	}
	return nil
}

// SearchResult is the page envelope returned for a search.
type SearchResult struct {
	Count    int         `json:"count"`
	First    string      `json:"first"`
	Last     string      `json:"last"`
	Previous *string     `json:"previous"`
	Next     *string     `json:"next"`
	Results  []query.Row `json:"results"`

	Page       int      `json:"-"`
	Limit      int      `json:"-"`
	TotalPages int      `json:"-"`
	Columns    []string `json:"-"`
}

// Paginate counts the plan's result, then fetches the requested page. Both run
// on one session that is released on every exit path.
func Paginate(ctx context.Context, st query.Store, p *query.Plan, req Request, links Links) (*SearchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sess, err := st.Session(ctx)
	if err != nil {
		return nil, query.Execution("acquire session", err)
	}
	defer sess.Close()

	count, err := sess.Count(ctx, p)
	if err != nil {
		return nil, query.Execution("count", err)
	}

	limit := req.Limit
	if limit < 1 {
		limit = count
	}
	totalPages := 1
	if limit > 0 && count > 0 {
		totalPages = (count + limit - 1) / limit
	}

	res := &SearchResult{
		Count:      count,
		First:      links.Page(1),
		Last:       links.Page(totalPages),
		Results:    []query.Row{},
		Page:       req.Page,
		Limit:      limit,
		TotalPages: totalPages,
		Columns:    p.ColumnNames(),
	}

	// Within totalPages the offset is below count and cannot overflow.
	if limit > 0 && count > 0 && req.Page <= totalPages {
		rows, err := sess.Fetch(ctx, p, (req.Page-1)*limit, limit)
		if err != nil {
			return nil, query.Execution("fetch", err)
		}
		res.Results = rows
	}

	if req.Page > 1 {
		prev := links.Page(min(req.Page-1, totalPages))
		res.Previous = &prev
	}
	if limit > 0 && req.Page < totalPages {
		next := links.Page(req.Page + 1)
		res.Next = &next
	}
	return res, nil
}
