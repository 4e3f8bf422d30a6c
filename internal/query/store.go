package query

import (
	"context"

	"github.com/gltg/bmp-api/internal/schema"
)

// Row is one result row keyed by field name or aggregate alias.
type Row map[string]interface{}

// Store is the backing-store seam. The engine never talks to a database
// except through a Session obtained here.
type Store interface {
	// Session acquires one logical connection. Callers must Close it on every
	// exit path.
	Session(ctx context.Context) (Session, error)
}

// Session runs plans on one logical connection.
type Session interface {
	// Count returns the number of rows the plan produces, ignoring paging.
	Count(ctx context.Context, p *Plan) (int, error)
	// Fetch returns rows [offset, offset+limit) of the plan's ordered result.
	// A negative limit returns every row; offset must then be zero.
	Fetch(ctx context.Context, p *Plan, offset, limit int) ([]Row, error)
	// Get returns the row whose primary key equals id, or a NotFoundError.
	Get(ctx context.Context, s *schema.Schema, id interface{}) (Row, error)
	Close() error
}
