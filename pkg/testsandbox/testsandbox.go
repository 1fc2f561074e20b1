// Package testsandbox boots an ephemeral Postgres container once per test
// binary and hands out per-test schemas, so introspector/engine integration
// tests can run against a real catalog without interfering with each other.
//
// Adapted near-verbatim from the teacher's pkg/fixgres: the same
// functional-options config, package-level sync.Once container boot, and
// per-test schema via a search_path DSN param. Generalized so each caller
// supplies its own goose migration filesystem instead of one app-wide
// schema.
package testsandbox

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type config struct {
	image    string
	dbName   string
	user     string
	password string
}

// Option configures the shared container. Options are only read on the
// first BootOnce call in a process; later calls reuse the booted container.
type Option func(*config)

func WithImage(i string) Option    { return func(c *config) { c.image = i } }
func WithDBName(n string) Option   { return func(c *config) { c.dbName = n } }
func WithUser(u string) Option     { return func(c *config) { c.user = u } }
func WithPassword(p string) Option { return func(c *config) { c.password = p } }

var (
	bootOnce   sync.Once
	booted     bool
	bootErr    error
	container  *postgres.PostgresContainer
	mu         sync.Mutex
	connString string
)

// BootOnce starts the shared container the first time it is called in a
// process; subsequent calls are no-ops. Call it from TestMain.
func BootOnce(opts ...Option) error {
	bootOnce.Do(func() {
		booted = true
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		cfg := &config{image: "docker.io/postgres:16-alpine", dbName: "synthgen", user: "postgres", password: "pass"}
		for _, o := range opts {
			o(cfg)
		}

		c, err := postgres.Run(ctx, cfg.image,
			postgres.WithDatabase(cfg.dbName),
			postgres.WithUsername(cfg.user),
			postgres.WithPassword(cfg.password),
			postgres.BasicWaitStrategies(),
		)
		if err != nil {
			bootErr = fmt.Errorf("testsandbox: start container: %w", err)
			return
		}
		container = c

		host, _ := c.Host(ctx)
		port, err := c.MappedPort(ctx, "5432/tcp")
		if err != nil {
			bootErr = fmt.Errorf("testsandbox: mapped port: %w", err)
			return
		}
		connString = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.user, cfg.password, host, port.Port(), cfg.dbName)
	})
	if !booted {
		return fmt.Errorf("testsandbox: BootOnce was not called")
	}
	return bootErr
}

// ShutdownNow terminates the shared container. Call from TestMain after
// m.Run().
func ShutdownNow() error {
	mu.Lock()
	defer mu.Unlock()
	if container == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return container.Terminate(ctx)
}

// Sandbox is a schema-isolated handle into the shared container.
type Sandbox struct {
	DB     *sql.DB
	Schema string
	Close  func()
}

// New creates a fresh schema in the shared container, optionally applying
// goose migrations from migFS, and returns a DB handle whose search_path is
// pinned to that schema. The caller is responsible for calling Close (or
// registering it with t.Cleanup).
func New(ctx context.Context, migFS fs.FS) (*Sandbox, error) {
	if !booted {
		return nil, fmt.Errorf("testsandbox: BootOnce was not called")
	}
	if bootErr != nil {
		return nil, bootErr
	}

	admin, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("testsandbox: open admin handle: %w", err)
	}

	schema := fmt.Sprintf("sbx_%x", time.Now().UnixNano())
	if _, err := admin.ExecContext(ctx, `CREATE SCHEMA "`+schema+`"`); err != nil {
		admin.Close()
		return nil, fmt.Errorf("testsandbox: create schema: %w", err)
	}

	sbxDSN := withSearchPath(connString, schema)
	db, err := sql.Open("pgx", sbxDSN)
	if err != nil {
		admin.Close()
		return nil, fmt.Errorf("testsandbox: open sandbox handle: %w", err)
	}

	if migFS != nil {
		goose.SetBaseFS(migFS)
		if err := goose.SetDialect("postgres"); err != nil {
			db.Close()
			admin.Close()
			return nil, fmt.Errorf("testsandbox: set dialect: %w", err)
		}
		if err := goose.Up(db, "."); err != nil {
			db.Close()
			admin.Close()
			return nil, fmt.Errorf("testsandbox: migrate: %w", err)
		}
	}

	sbx := &Sandbox{DB: db, Schema: schema}
	sbx.Close = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = admin.ExecContext(ctx, `DROP SCHEMA IF EXISTS "`+schema+`" CASCADE`)
		_ = db.Close()
		_ = admin.Close()
	}
	return sbx, nil
}
