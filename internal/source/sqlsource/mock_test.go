package sqlsource

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/kilupskalvis/ure/internal/models"
	"github.com/kilupskalvis/ure/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func TestContentSource_MySQLQueries(t *testing.T) {
	// Setup
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	src, err := NewContentSource(db, MySQL, ContentOptions{})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `wp_posts` WHERE ID = ?")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `wp_postmeta` WHERE post_id = ? AND meta_key = ?")).
		WithArgs(int64(5), "link").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `wp_postmeta` SET meta_value = ? WHERE post_id = ? AND meta_key = ?")).
		WithArgs("https://new.test", int64(5), "link").
		WillReturnResult(sqlmock.NewResult(0, 2))

	// Act
	err = src.WriteField(context.Background(), "5", models.MetaLocation("link"), "https://new.test")

	// Assert
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentSource_PostgresPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	src, err := NewContentSource(db, Postgres, ContentOptions{})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "wp_posts" WHERE post_type = $1`)).
		WithArgs("post").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ID FROM "wp_posts" WHERE post_type = $1 ORDER BY ID LIMIT $2 OFFSET $3`)).
		WithArgs("post", 2, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(4)).AddRow(int64(9)))

	page, err := src.ListRecordIDs(context.Background(), []string{"post"}, 100, 1)

	require.NoError(t, err)
	assert.Equal(t, []string{"4", "9"}, page.IDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentSource_QueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	src, err := NewContentSource(db, MySQL, ContentOptions{})
	require.NoError(t, err)

	boom := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT post_type, post_title, post_content FROM `wp_posts` WHERE ID = ?")).
		WithArgs(int64(3)).
		WillReturnError(boom)

	_, err = src.GetRecord(context.Background(), "3")

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, source.ErrRecordNotFound)
}

func TestTableSource_MySQLIntrospection(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	src := NewTableSource(db, MySQL, TableOptions{SkipGUID: true})

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COLUMN_NAME, COLUMN_KEY FROM information_schema.COLUMNS")).
		WithArgs("wp_posts").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_KEY"}).
			AddRow("ID", "PRI").
			AddRow("guid", "").
			AddRow("post_content", ""))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT `ID`, `guid`, `post_content` FROM `wp_posts` WHERE `ID` = ?")).
		WithArgs("12").
		WillReturnRows(sqlmock.NewRows([]string{"ID", "guid", "post_content"}).
			AddRow("12", "http://old.test/?p=12", "see http://old.test"))

	fields, err := src.GetAllFieldsWithPrefix(context.Background(), "wp_posts/12", nil)

	require.NoError(t, err)
	assert.Equal(t, map[models.FieldLocation]string{
		models.ColumnLocation("post_content"): "see http://old.test",
	}, fields)
	assert.NoError(t, mock.ExpectationsWereMet())
}
