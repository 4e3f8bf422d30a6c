package cli

import (
	"context"

	"github.com/gltg/bmp-api/internal/query"
	"github.com/gltg/bmp-api/internal/resource"
	"github.com/gltg/bmp-api/internal/store"
)

// openStore opens the configured database. Caller is responsible for
// calling Close.
func openStore(ctx context.Context) (*store.SQLStore, error) {
	driver, dsn := getConfig().DataSource()
	st, err := store.Open(ctx, driver, dsn, store.WithLogger(getLogger()))
	if err != nil {
		return nil, query.Execution("open database", err)
	}
	return st, nil
}

// newService wires the resource service over st with the configured limits.
func newService(st query.Store) *resource.Service {
	c := getConfig()
	return resource.NewService(st,
		resource.WithLogger(getLogger()),
		resource.WithDefaultLimit(c.Limits.DefaultLimit),
		resource.WithResourceLimits(c.Limits.Resources),
	)
}
