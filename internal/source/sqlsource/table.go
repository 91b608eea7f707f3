package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/kilupskalvis/ure/internal/models"
	"github.com/kilupskalvis/ure/internal/source"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// DefaultTablePageSize is the number of rows fetched per page in table mode
const DefaultTablePageSize = 5000

var (
	// ErrTableNotFound is returned for tables without any visible column
	ErrTableNotFound = errors.Base("table not found")
	// ErrNoPrimaryKey is returned for tables rows cannot be addressed in
	ErrNoPrimaryKey = errors.Base("table has no primary key")
)

// TableOptions configures a TableSource
type TableOptions struct {
	// SkipGUID hides columns named guid, whose values must stay stable
	SkipGUID bool
}

// tableInfo is the introspected shape of a table
type tableInfo struct {
	name    string
	quoted  string
	pk      string
	quotePK string
	columns []string
}

// TableSource exposes rows of arbitrary tables as records. Record ids have
// the form table/primary-key and every non-key column is a column:<name> field.
type TableSource struct {
	db       *sql.DB
	dialect  Dialect
	skipGUID bool

	mu     sync.Mutex
	tables map[string]*tableInfo
}

var _ source.Store = (*TableSource)(nil)

// NewTableSource creates a TableSource over db
func NewTableSource(db *sql.DB, d Dialect, opts TableOptions) *TableSource {
	return &TableSource{
		db:       db,
		dialect:  d,
		skipGUID: opts.SkipGUID,
		tables:   make(map[string]*tableInfo),
	}
}

// RecordID builds the record id of a table row
func RecordID(table, pk string) string {
	return table + "/" + pk
}

func splitRecordID(id string) (string, string, error) {
	table, pk, ok := strings.Cut(id, "/")
	if !ok || table == "" || pk == "" {
		return "", "", errors.WithDetails(source.ErrRecordNotFound, "id", id)
	}
	return table, pk, nil
}

func (s *TableSource) columnsQuery() string {
	switch s.dialect {
	case SQLite:
		return `SELECT name, CASE WHEN pk = 1 THEN 'PRI' ELSE '' END FROM pragma_table_info(?) ORDER BY cid`
	case Postgres:
		return `SELECT c.column_name, CASE WHEN k.column_name IS NULL THEN '' ELSE 'PRI' END
FROM information_schema.columns c
LEFT JOIN information_schema.table_constraints tc
	ON tc.table_schema = c.table_schema AND tc.table_name = c.table_name AND tc.constraint_type = 'PRIMARY KEY'
LEFT JOIN information_schema.key_column_usage k
	ON k.constraint_name = tc.constraint_name AND k.table_schema = tc.table_schema AND k.column_name = c.column_name
WHERE c.table_schema = current_schema() AND c.table_name = $1
ORDER BY c.ordinal_position`
	}
	return `SELECT COLUMN_NAME, COLUMN_KEY FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`
}

// describe introspects a table once and caches the result
func (s *TableSource) describe(ctx context.Context, table string) (*tableInfo, error) {
	s.mu.Lock()
	info, ok := s.tables[table]
	s.mu.Unlock()
	if ok {
		return info, nil
	}

	quoted, err := s.dialect.quote(table)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.columnsQuery(), table)
	if err != nil {
		return nil, errors.Errorf("failed to describe table %s: %w", table, err)
	}
	defer rows.Close()

	info = &tableInfo{name: table, quoted: quoted}
	for rows.Next() {
		var name, key string
		if err := rows.Scan(&name, &key); err != nil {
			return nil, errors.Errorf("failed to scan column of %s: %w", table, err)
		}
		info.columns = append(info.columns, name)
		// composite keys address rows by their first column
		if key == "PRI" && info.pk == "" {
			info.pk = name
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	if len(info.columns) == 0 {
		return nil, errors.WithDetails(ErrTableNotFound, "table", table)
	}
	if info.pk == "" {
		return nil, errors.WithDetails(ErrNoPrimaryKey, "table", table)
	}
	if info.quotePK, err = s.dialect.quote(info.pk); err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().Str("table", table).Str("pk", info.pk).Int("columns", len(info.columns)).Msg("described table")

	s.mu.Lock()
	s.tables[table] = info
	s.mu.Unlock()
	return info, nil
}

// searchable reports whether a column takes part in search and replace
func (s *TableSource) searchable(info *tableInfo, column string) bool {
	if column == info.pk {
		return false
	}
	return !s.skipGUID || !strings.EqualFold(column, "guid")
}

func (s *TableSource) ListRecordIDs(ctx context.Context, recordTypes []string, pageSize, pageNumber int) (*source.Page, error) {
	infos := make([]*tableInfo, len(recordTypes))
	counts := make([]int, len(recordTypes))
	for i, t := range recordTypes {
		info, err := s.describe(ctx, t)
		if err != nil {
			return nil, err
		}
		infos[i] = info

		q := fmt.Sprintf("SELECT COUNT(*) FROM %s", info.quoted)
		if err := s.db.QueryRowContext(ctx, q).Scan(&counts[i]); err != nil {
			return nil, errors.Errorf("failed to count rows of %s: %w", t, err)
		}
	}

	segments, total, hasMore := source.Paginate(recordTypes, counts, pageSize, pageNumber)
	page := &source.Page{HasMore: hasMore, Total: total}
	for _, seg := range segments {
		info, err := s.describe(ctx, seg.Type)
		if err != nil {
			return nil, err
		}

		q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT ? OFFSET ?", info.quotePK, info.quoted, info.quotePK)
		rows, err := s.db.QueryContext(ctx, s.dialect.rebind(q), seg.Limit, seg.Offset)
		if err != nil {
			return nil, errors.Errorf("failed to list rows of %s: %w", seg.Type, err)
		}
		for rows.Next() {
			var pk string
			if err := rows.Scan(&pk); err != nil {
				rows.Close()
				return nil, errors.Errorf("failed to scan key of %s: %w", seg.Type, err)
			}
			page.IDs = append(page.IDs, RecordID(seg.Type, pk))
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return page, nil
}

func (s *TableSource) lookup(ctx context.Context, id string) (*tableInfo, string, error) {
	table, pk, err := splitRecordID(id)
	if err != nil {
		return nil, "", err
	}
	info, err := s.describe(ctx, table)
	if errors.Is(err, ErrTableNotFound) {
		return nil, "", errors.WithDetails(source.ErrRecordNotFound, "id", id)
	}
	if err != nil {
		return nil, "", err
	}
	return info, pk, nil
}

// GetRecord returns the row without any content field; its columns come from GetAllFieldsWithPrefix
func (s *TableSource) GetRecord(ctx context.Context, id string) (*models.Record, error) {
	info, pk, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", info.quoted, info.quotePK)
	var n int
	if err := s.db.QueryRowContext(ctx, s.dialect.rebind(q), pk).Scan(&n); err != nil {
		return nil, errors.Errorf("failed to look up %s: %w", id, err)
	}
	if n == 0 {
		return nil, errors.WithDetails(source.ErrRecordNotFound, "id", id)
	}

	return &models.Record{
		ID:     id,
		Type:   info.name,
		Title:  id,
		Fields: map[models.FieldLocation]string{},
	}, nil
}

// GetAllFieldsWithPrefix returns the row's non-empty text columns
func (s *TableSource) GetAllFieldsWithPrefix(ctx context.Context, id string, excludePrefixes []string) (map[models.FieldLocation]string, error) {
	info, pk, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	quotedCols := make([]string, len(info.columns))
	for i, c := range info.columns {
		if quotedCols[i], err = s.dialect.quote(c); err != nil {
			return nil, err
		}
	}

	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", strings.Join(quotedCols, ", "), info.quoted, info.quotePK)
	values := make([]sql.NullString, len(info.columns))
	dest := make([]any, len(values))
	for i := range values {
		dest[i] = &values[i]
	}

	err = s.db.QueryRowContext(ctx, s.dialect.rebind(q), pk).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithDetails(source.ErrRecordNotFound, "id", id)
	}
	if err != nil {
		return nil, errors.Errorf("failed to load %s: %w", id, err)
	}

	fields := make(map[models.FieldLocation]string)
	for i, c := range info.columns {
		if !s.searchable(info, c) || !values[i].Valid || values[i].String == "" {
			continue
		}
		loc := models.ColumnLocation(c)
		if source.Excluded(loc, excludePrefixes) {
			continue
		}
		fields[loc] = values[i].String
	}
	return fields, nil
}

func (s *TableSource) WriteField(ctx context.Context, id string, loc models.FieldLocation, value string) error {
	info, pk, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}

	column := loc.Key()
	known := false
	for _, c := range info.columns {
		if c == column {
			known = true
			break
		}
	}
	if loc.Kind() != models.LocationColumn || !known || !s.searchable(info, column) {
		return errors.WithDetails(source.ErrRejected, "id", id, "field", string(loc), "reason", "not a writable column")
	}

	quotedCol, err := s.dialect.quote(column)
	if err != nil {
		return err
	}

	var n int
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", info.quoted, info.quotePK)
	if err := s.db.QueryRowContext(ctx, s.dialect.rebind(q), pk).Scan(&n); err != nil {
		return errors.Errorf("failed to look up %s: %w", id, err)
	}
	if n == 0 {
		return errors.WithDetails(source.ErrRecordNotFound, "id", id)
	}

	q = fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", info.quoted, quotedCol, info.quotePK)
	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(q), value, pk); err != nil {
		return errors.Errorf("failed to update %s: %w", id, err)
	}
	return nil
}
