// Package dbdriver resolves the "engine" tag on a schema_ref into an
// actual database/sql driver. The teacher uses jackc/pgx directly in
// pkg/richcatalog and lib/pq in its (now removed) live-query handler; this
// package keeps both alive as swappable connection paths instead of
// hard-wiring the introspector to one driver.
package dbdriver

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers driver "pgx"
	_ "github.com/lib/pq"              // registers driver "postgres"

	"github.com/synthforge/synthgen/pkg/synthgenerr"
)

// Driver names recognized by Open.
const (
	DriverPgx    = "pgx"
	DriverLibPQ  = "postgres"
)

// Open opens a *sql.DB for engine using the requested driver (DriverPgx by
// default). An unrecognized engine tag is an UnsupportedEngine error, not a
// panic — the caller may be driving a plan written for a backend this build
// doesn't support yet.
func Open(engine, driver, dsn string) (*sql.DB, error) {
	if engine != "postgres" {
		return nil, synthgenerr.New(synthgenerr.UnsupportedEngine, fmt.Sprintf("engine %q is not supported", engine))
	}
	if driver == "" {
		driver = DriverPgx
	}
	switch driver {
	case DriverPgx, DriverLibPQ:
		db, err := sql.Open(driver, dsn)
		if err != nil {
			return nil, synthgenerr.Wrap(synthgenerr.ConnectionError, "open database handle", err)
		}
		return db, nil
	default:
		return nil, synthgenerr.New(synthgenerr.UnsupportedEngine, fmt.Sprintf("unrecognized driver %q", driver))
	}
}
