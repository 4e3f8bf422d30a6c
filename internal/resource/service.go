package resource

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"

	"github.com/gltg/bmp-api/internal/page"
	"github.com/gltg/bmp-api/internal/query"
	"github.com/gltg/bmp-api/internal/schema"
)

// DefaultLimit is the page size used when neither the request nor the
// configuration sets one.
const DefaultLimit = 25

// Scope restricts a listing to rows whose key appears in another resource,
// e.g. only states that have practices.
type Scope struct {
	Source      *schema.Schema
	SourceField string
	Field       string
}

// Definition is a resource exposed by the service.
type Definition struct {
	Schema  *schema.Schema
	Filters []FilterParam
	Scope   *Scope
}

// Name returns the resource name.
func (d *Definition) Name() string { return d.Schema.Name }

// Definitions returns the API's resources.
func Definitions() []*Definition {
	return []*Definition{
		{Schema: Practices, Filters: practiceFilters},
		{Schema: Assumptions},
		{Schema: HUC8, Scope: &Scope{Source: Practices, SourceField: "huc_8", Field: "huc8"}},
		{Schema: States, Scope: &Scope{Source: Practices, SourceField: "state", Field: "state"}},
	}
}

// UnknownResourceError is returned for resource names that are not registered.
type UnknownResourceError struct {
	Name string
}

func (e *UnknownResourceError) Error() string {
	return fmt.Sprintf("unknown resource %q", e.Name)
}

// Service answers searches and single item lookups for the registered
// resources. It holds no per-request state.
type Service struct {
	store  query.Store
	defs   map[string]*Definition
	limits map[string]int
	limit  int
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaultLimit sets the page size used when a request has no limit.
func WithDefaultLimit(n int) Option {
	return func(s *Service) { s.limit = n }
}

// WithResourceLimits overrides the default page size per resource.
func WithResourceLimits(limits map[string]int) Option {
	return func(s *Service) {
		for name, n := range limits {
			s.limits[name] = n
		}
	}
}

// WithDefinitions replaces the registered resources.
func WithDefinitions(defs ...*Definition) Option {
	return func(s *Service) {
		s.defs = make(map[string]*Definition, len(defs))
		for _, d := range defs {
			s.defs[d.Name()] = d
		}
	}
}

// NewService creates a service over st.
func NewService(st query.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		limits: make(map[string]int),
		limit:  DefaultLimit,
		logger: slog.New(slog.DiscardHandler),
	}
	WithDefinitions(Definitions()...)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resource returns the named resource definition.
func (s *Service) Resource(name string) (*Definition, error) {
	d, ok := s.defs[name]
	if !ok {
		return nil, &UnknownResourceError{Name: name}
	}
	return d, nil
}

// Resources returns every resource, sorted by name.
func (s *Service) Resources() []*Definition {
	out := make([]*Definition, 0, len(s.defs))
	for _, d := range s.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// DefaultLimitFor returns the page size applied when a request for the named
// resource has no limit.
func (s *Service) DefaultLimitFor(name string) int {
	if n, ok := s.limits[name]; ok {
		return n
	}
	return s.limit
}

// Search parses params, validates the resulting plan, and returns the
// requested page. links renders the envelope's navigation URLs.
func (s *Service) Search(ctx context.Context, name string, params url.Values, links page.Links) (*page.SearchResult, error) {
	def, err := s.Resource(name)
	if err != nil {
		return nil, err
	}
	req, err := ParseSearch(def, params, s.DefaultLimitFor(name))
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, def, req, links)
}

// Run executes an already parsed search.
func (s *Service) Run(ctx context.Context, def *Definition, req SearchRequest, links page.Links) (*page.SearchResult, error) {
	// Validate everything before the first store access.
	plan, err := query.Build(def.Schema, req.Spec)
	if err != nil {
		return nil, err
	}
	if err := req.Page.Validate(); err != nil {
		return nil, err
	}

	if def.Scope != nil {
		keys, err := s.scopeKeys(ctx, def.Scope)
		if err != nil {
			return nil, err
		}
		spec := req.Spec
		scoped := query.Compare(def.Scope.Field, query.OpIn, keys)
		if spec.Filter == nil {
			spec.Filter = scoped
		} else {
			spec.Filter = query.AllOf(spec.Filter, scoped)
		}
		if plan, err = query.Build(def.Schema, spec); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("search", "resource", def.Name(), "plan", plan.String(), "page", req.Page.Page, "limit", req.Page.Limit)
	return page.Paginate(ctx, s.store, plan, req.Page, links)
}

// scopeKeys collects the distinct non-null values of the scope's source
// field. The session is released before the listing itself runs.
func (s *Service) scopeKeys(ctx context.Context, sc *Scope) ([]interface{}, error) {
	plan, err := query.Build(sc.Source, query.Spec{GroupBy: []string{sc.SourceField}})
	if err != nil {
		return nil, err
	}

	sess, err := s.store.Session(ctx)
	if err != nil {
		return nil, query.Execution("acquire session", err)
	}
	defer sess.Close()

	rows, err := sess.Fetch(ctx, plan, 0, -1)
	if err != nil {
		return nil, query.Execution("scope", err)
	}
	keys := make([]interface{}, 0, len(rows))
	for _, r := range rows {
		if v := r[sc.SourceField]; v != nil {
			keys = append(keys, v)
		}
	}
	return keys, nil
}

// Get returns the row of the named resource whose primary key is id.
func (s *Service) Get(ctx context.Context, name, id string) (query.Row, error) {
	def, err := s.Resource(name)
	if err != nil {
		return nil, err
	}
	key, err := def.Schema.Key().Parse(id)
	if err != nil {
		return nil, &query.NotFoundError{Resource: name, ID: id}
	}

	sess, err := s.store.Session(ctx)
	if err != nil {
		return nil, query.Execution("acquire session", err)
	}
	defer sess.Close()

	row, err := sess.Get(ctx, def.Schema, key)
	if err != nil {
		return nil, query.Execution("get", err)
	}
	return row, nil
}
