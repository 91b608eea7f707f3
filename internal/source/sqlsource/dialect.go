// Package sqlsource reads and writes records stored in relational databases.
// ContentSource exposes a posts table with its key/value meta table and
// TableSource exposes arbitrary table rows keyed by primary key.
package sqlsource

import (
	"context"
	"database/sql"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"gitlab.com/tozd/go/errors"
	_ "modernc.org/sqlite"
)

// Dialect names a supported SQL backend
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

var (
	// ErrUnknownDialect is returned for backends this package cannot talk to
	ErrUnknownDialect = errors.Base("unknown sql dialect")
	// ErrInvalidIdentifier is returned for table or column names that cannot be quoted safely
	ErrInvalidIdentifier = errors.Base("invalid identifier")
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// ParseDialect accepts the dialect names used in configuration
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mysql", "mariadb":
		return MySQL, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", errors.WithDetails(ErrUnknownDialect, "dialect", s)
}

// DriverName returns the database/sql driver registered for the dialect
func (d Dialect) DriverName() string {
	switch d {
	case Postgres:
		return "pgx"
	case SQLite:
		return "sqlite"
	}
	return "mysql"
}

// Open connects to dsn and verifies the connection
func Open(ctx context.Context, d Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, errors.Errorf("failed to open %s database: %w", d, err)
	}

	if d == SQLite {
		// single writer, avoids SQLITE_BUSY between the scan reader and writes
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(1 * time.Hour)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Errorf("failed to connect to %s database: %w", d, err)
	}
	return db, nil
}

// quote validates name and wraps it in the dialect's identifier quotes
func (d Dialect) quote(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", errors.WithDetails(ErrInvalidIdentifier, "identifier", name)
	}
	if d == MySQL {
		return "`" + name + "`", nil
	}
	return `"` + name + `"`, nil
}

// rebind rewrites ? placeholders into $n for PostgreSQL
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
