package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gltg/bmp-api/internal/query"
	"github.com/gltg/bmp-api/internal/schema"
)

// MemoryStore evaluates plans over rows held in memory. Tables are loaded up
// front and treated as read-only afterwards.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]query.Row
	open   atomic.Int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]query.Row)}
}

// Load appends rows to the schema's table, coercing each value to its
// field type. Keys that are not fields are dropped.
func (m *MemoryStore) Load(sc *schema.Schema, rows []query.Row) error {
	loaded := make([]query.Row, 0, len(rows))
	for i, r := range rows {
		out := make(query.Row, len(r))
		for _, f := range sc.Fields() {
			v := r[f.Name]
			if f.Type == schema.FieldTypeJSONArray {
				out[f.Name] = normalizeValue(f.Type, v)
				continue
			}
			coerced, err := f.Coerce(v)
			if err != nil {
				return fmt.Errorf("%s row %d: %w", sc.Name, i+1, err)
			}
			out[f.Name] = coerced
		}
		loaded = append(loaded, out)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[sc.Table] = append(m.tables[sc.Table], loaded...)
	return nil
}

// OpenSessions reports sessions acquired but not yet closed.
func (m *MemoryStore) OpenSessions() int {
	return int(m.open.Load())
}

// Session returns a session over the current tables.
func (m *MemoryStore) Session(ctx context.Context) (query.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, query.Execution("acquire session", err)
	}
	m.open.Add(1)
	return &memorySession{store: m}, nil
}

type memorySession struct {
	store  *MemoryStore
	closed atomic.Bool
}

func (s *memorySession) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.store.open.Add(-1)
	}
	return nil
}

func (s *memorySession) rows(sc *schema.Schema) []query.Row {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	return s.store.tables[sc.Table]
}

func (s *memorySession) Count(ctx context.Context, p *query.Plan) (int, error) {
	return len(query.Evaluate(p, s.rows(p.Schema()))), nil
}

func (s *memorySession) Fetch(ctx context.Context, p *query.Plan, offset, limit int) ([]query.Row, error) {
	if offset < 0 {
		return nil, query.Execution("fetch", fmt.Errorf("negative offset %d", offset))
	}
	if limit < 0 && offset > 0 {
		return nil, query.Execution("fetch", fmt.Errorf("offset %d requires a limit", offset))
	}
	all := query.Evaluate(p, s.rows(p.Schema()))
	if offset >= len(all) {
		return []query.Row{}, nil
	}
	end := len(all)
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], nil
}

func (s *memorySession) Get(ctx context.Context, sc *schema.Schema, id interface{}) (query.Row, error) {
	row, ok := query.EvaluateOne(sc, s.rows(sc), id)
	if !ok {
		return nil, &query.NotFoundError{Resource: sc.Name, ID: id}
	}
	return row, nil
}
