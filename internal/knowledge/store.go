// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package knowledge persists fetched text structures: one record per work,
// its citation levels, and one text element per citable unit.
package knowledge

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/cts-structure/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "structures.db"

	driverSQLite   = "sqlite3"
	driverPostgres = "pgx"
)

// ErrNotFound is returned when a structure or element is not stored.
var ErrNotFound = errors.New("not found in knowledge base")

// Store manages the knowledge base database.
type Store struct {
	db           *sql.DB
	driver       string
	knowledgeDir string
}

// NewStore opens the knowledge base. With the default sqlite3 driver it
// opens or creates knowledgeDir/index/structures.db; with the pgx driver it
// connects to cfg.DSN. The schema is created if it does not exist.
func NewStore(cfg types.KnowledgeBaseConfig) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = driverSQLite
	}

	var dsn string
	switch driver {
	case driverSQLite:
		dbDir := filepath.Join(cfg.KnowledgeDir, indexDir)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
		dsn = filepath.Join(dbDir, dbFile) + "?_journal_mode=WAL&_foreign_keys=on"
	case driverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("driver %s requires a dsn", driver)
		}
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("unsupported driver %q: use %s or %s", driver, driverSQLite, driverPostgres)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:           db,
		driver:       driver,
		knowledgeDir: cfg.KnowledgeDir,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for the pgx driver.
func (s *Store) rebind(query string) string {
	if s.driver != driverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS text_structures (
			urn TEXT PRIMARY KEY,
			provenance TEXT NOT NULL,
			checksum TEXT NOT NULL,
			populated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS citation_levels (
			structure_urn TEXT NOT NULL REFERENCES text_structures(urn) ON DELETE CASCADE,
			level_number INTEGER NOT NULL,
			label TEXT NOT NULL,
			PRIMARY KEY (structure_urn, level_number)
		)`,
		`CREATE TABLE IF NOT EXISTS text_elements (
			structure_urn TEXT NOT NULL REFERENCES text_structures(urn) ON DELETE CASCADE,
			level_number INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			urn TEXT NOT NULL,
			parent TEXT,
			previous TEXT,
			following TEXT,
			PRIMARY KEY (structure_urn, level_number, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_text_elements_urn ON text_elements(urn)`,
		`CREATE INDEX IF NOT EXISTS idx_text_elements_parent ON text_elements(parent)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}
