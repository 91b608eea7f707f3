package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/kilupskalvis/ure/internal/models"
	"github.com/kilupskalvis/ure/internal/source"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"gitlab.com/tozd/go/errors"
)

// DefaultTablePrefix is the table prefix of a stock WordPress install
const DefaultTablePrefix = "wp_"

// DefaultStructuredKeys are meta keys holding page-builder JSON
var DefaultStructuredKeys = []string{"_elementor_data"}

// ContentOptions configures a ContentSource
type ContentOptions struct {
	TablePrefix    string
	StructuredKeys []string
}

// ContentSource exposes rows of {prefix}posts as records. The post body is
// the content field and every {prefix}postmeta row becomes a meta or
// structured field.
type ContentSource struct {
	db         *sql.DB
	dialect    Dialect
	posts      string
	meta       string
	structured map[string]bool
}

var _ source.Store = (*ContentSource)(nil)

// NewContentSource creates a ContentSource over db
func NewContentSource(db *sql.DB, d Dialect, opts ContentOptions) (*ContentSource, error) {
	prefix := opts.TablePrefix
	if prefix == "" {
		prefix = DefaultTablePrefix
	}
	posts, err := d.quote(prefix + "posts")
	if err != nil {
		return nil, err
	}
	meta, err := d.quote(prefix + "postmeta")
	if err != nil {
		return nil, err
	}

	keys := opts.StructuredKeys
	if keys == nil {
		keys = DefaultStructuredKeys
	}
	structured := make(map[string]bool, len(keys))
	for _, k := range keys {
		structured[k] = true
	}

	return &ContentSource{db: db, dialect: d, posts: posts, meta: meta, structured: structured}, nil
}

// location maps a meta key onto the field location it is searched under
func (s *ContentSource) location(key string) models.FieldLocation {
	if s.structured[key] {
		return models.StructuredLocation(key)
	}
	return models.MetaLocation(key)
}

func (s *ContentSource) query(q string) string {
	return s.dialect.rebind(q)
}

func (s *ContentSource) ListRecordIDs(ctx context.Context, recordTypes []string, pageSize, pageNumber int) (*source.Page, error) {
	types := recordTypes
	if len(types) == 0 {
		types = []string{""}
	}

	counts := make([]int, len(types))
	for i, t := range types {
		n, err := s.countPosts(ctx, t)
		if err != nil {
			return nil, err
		}
		counts[i] = n
	}

	segments, total, hasMore := source.Paginate(types, counts, pageSize, pageNumber)
	page := &source.Page{HasMore: hasMore, Total: total}
	for _, seg := range segments {
		ids, err := s.postIDs(ctx, seg)
		if err != nil {
			return nil, err
		}
		page.IDs = append(page.IDs, ids...)
	}
	return page, nil
}

func (s *ContentSource) countPosts(ctx context.Context, postType string) (int, error) {
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.posts)
	var args []any
	if postType != "" {
		q += " WHERE post_type = ?"
		args = append(args, postType)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, s.query(q), args...).Scan(&n); err != nil {
		return 0, errors.Errorf("failed to count posts: %w", err)
	}
	return n, nil
}

func (s *ContentSource) postIDs(ctx context.Context, seg source.Segment) ([]string, error) {
	q := fmt.Sprintf("SELECT ID FROM %s", s.posts)
	var args []any
	if seg.Type != "" {
		q += " WHERE post_type = ?"
		args = append(args, seg.Type)
	}
	q += " ORDER BY ID LIMIT ? OFFSET ?"
	args = append(args, seg.Limit, seg.Offset)

	rows, err := s.db.QueryContext(ctx, s.query(q), args...)
	if err != nil {
		return nil, errors.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Errorf("failed to scan post id: %w", err)
		}
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	return ids, errors.WithStack(rows.Err())
}

func parsePostID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, errors.WithDetails(source.ErrRecordNotFound, "id", id)
	}
	return n, nil
}

func (s *ContentSource) GetRecord(ctx context.Context, id string) (*models.Record, error) {
	postID, err := parsePostID(id)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf("SELECT post_type, post_title, post_content FROM %s WHERE ID = ?", s.posts)
	var postType, title, content sql.NullString
	err = s.db.QueryRowContext(ctx, s.query(q), postID).Scan(&postType, &title, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithDetails(source.ErrRecordNotFound, "id", id)
	}
	if err != nil {
		return nil, errors.Errorf("failed to load post %s: %w", id, err)
	}

	return &models.Record{
		ID:     id,
		Type:   postType.String,
		Title:  title.String,
		Fields: map[models.FieldLocation]string{models.ContentLocation: content.String},
	}, nil
}

// exists reports an unknown post as ErrRecordNotFound
func (s *ContentSource) exists(ctx context.Context, id string) (int64, error) {
	postID, err := parsePostID(id)
	if err != nil {
		return 0, err
	}

	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE ID = ?", s.posts)
	var n int
	if err := s.db.QueryRowContext(ctx, s.query(q), postID).Scan(&n); err != nil {
		return 0, errors.Errorf("failed to look up post %s: %w", id, err)
	}
	if n == 0 {
		return 0, errors.WithDetails(source.ErrRecordNotFound, "id", id)
	}
	return postID, nil
}

// GetAllFieldsWithPrefix returns the first value stored for every meta key of the post
func (s *ContentSource) GetAllFieldsWithPrefix(ctx context.Context, id string, excludePrefixes []string) (map[models.FieldLocation]string, error) {
	postID, err := s.exists(ctx, id)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf("SELECT meta_key, meta_value FROM %s WHERE post_id = ? ORDER BY meta_id", s.meta)
	rows, err := s.db.QueryContext(ctx, s.query(q), postID)
	if err != nil {
		return nil, errors.Errorf("failed to load meta for post %s: %w", id, err)
	}
	defer rows.Close()

	fields := make(map[models.FieldLocation]string)
	for rows.Next() {
		var key, value sql.NullString
		if err := rows.Scan(&key, &value); err != nil {
			return nil, errors.Errorf("failed to scan meta row: %w", err)
		}
		loc := s.location(key.String)
		if _, seen := fields[loc]; seen || source.Excluded(loc, excludePrefixes) {
			continue
		}
		fields[loc] = value.String
	}
	return fields, errors.WithStack(rows.Err())
}

func (s *ContentSource) WriteField(ctx context.Context, id string, loc models.FieldLocation, value string) error {
	postID, err := s.exists(ctx, id)
	if err != nil {
		return err
	}

	switch loc.Kind() {
	case models.LocationContent:
		q := fmt.Sprintf("UPDATE %s SET post_content = ? WHERE ID = ?", s.posts)
		if _, err := s.db.ExecContext(ctx, s.query(q), value, postID); err != nil {
			return errors.Errorf("failed to update post %s: %w", id, err)
		}
		return nil
	case models.LocationStructured:
		if !gjson.Valid(value) {
			return errors.WithDetails(source.ErrRejected, "id", id, "field", string(loc), "reason", "not valid JSON")
		}
		return s.writeMeta(ctx, postID, loc.Key(), value)
	case models.LocationMeta:
		return s.writeMeta(ctx, postID, loc.Key(), value)
	}
	return errors.WithDetails(source.ErrRejected, "id", id, "field", string(loc), "reason", "unsupported field")
}

// writeMeta updates every row stored under key, inserting one when none exists
func (s *ContentSource) writeMeta(ctx context.Context, postID int64, key, value string) error {
	var n int
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE post_id = ? AND meta_key = ?", s.meta)
	if err := s.db.QueryRowContext(ctx, s.query(q), postID, key).Scan(&n); err != nil {
		return errors.Errorf("failed to look up meta %s: %w", key, err)
	}

	if n == 0 {
		q = fmt.Sprintf("INSERT INTO %s (post_id, meta_key, meta_value) VALUES (?, ?, ?)", s.meta)
		if _, err := s.db.ExecContext(ctx, s.query(q), postID, key, value); err != nil {
			return errors.Errorf("failed to insert meta %s: %w", key, err)
		}
		zerolog.Ctx(ctx).Debug().Int64("post", postID).Str("key", key).Msg("inserted missing meta row")
		return nil
	}

	q = fmt.Sprintf("UPDATE %s SET meta_value = ? WHERE post_id = ? AND meta_key = ?", s.meta)
	if _, err := s.db.ExecContext(ctx, s.query(q), value, postID, key); err != nil {
		return errors.Errorf("failed to update meta %s: %w", key, err)
	}
	return nil
}
