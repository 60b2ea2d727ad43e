package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/seedloom/seedloom/internal/catalog"
	"github.com/seedloom/seedloom/internal/engine"
)

// Store is the SQLite implementation of engine.Store.
type Store struct {
	db    *sql.DB
	cat   *catalog.Catalog
	ids   IdentityGenerator
	joins map[string]joinSpec
}

// Option configures a Store.
type Option func(*Store)

// WithIdentityGenerator overrides the identity source. Tests use this to get
// deterministic identities.
func WithIdentityGenerator(g IdentityGenerator) Option {
	return func(s *Store) {
		if g != nil {
			s.ids = g
		}
	}
}

// Open creates or opens a SQLite database at the given path and ensures the
// schema derived from the catalog exists.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, cat *catalog.Catalog, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := ensureSchema(db, cat); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	joins, err := buildJoinSpecs(cat)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, cat: cat, ids: UUIDv7Generator{}, joins: joins}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer the engine.Tx surface when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Begin implements engine.Store.
func (s *Store) Begin(ctx context.Context) (engine.Tx, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &tx{store: s, tx: sqlTx}, nil
}

// Count returns the number of records of one entity type.
func (s *Store) Count(ctx context.Context, entityType string) (int, error) {
	if _, ok := s.cat.Entity(entityType); !ok {
		return 0, fmt.Errorf("store: unknown entity type %q", entityType)
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName(entityType))).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", entityType, err)
	}
	return n, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// ensureSchema creates the catalog-derived tables if they don't exist.
func ensureSchema(db *sql.DB, cat *catalog.Catalog) error {
	for _, stmt := range schemaDDL(cat) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}
