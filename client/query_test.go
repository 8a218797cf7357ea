package client

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/tablodb/tablo/driver"
	"github.com/tablodb/tablo/schema"
)

const linkSchema = `entity User {
    id   int    @id
    name string
}

entity Post {
    id       int    @id
    title    string
    authorId int    @ref(User.id, posts)
}
`

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	snap, err := schema.Parse(linkSchema)
	require.NoError(t, err)
	return New(driver.OpenDB(driver.SQLite, db), snap), mock
}

func TestInclude_OneQueryPerRelation(t *testing.T) {
	c, mock := newMockClient(t)

	// Three users, then exactly one batched lookup for all their posts.
	mock.ExpectQuery(`SELECT "id", "name" FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "Ada").
			AddRow(2, "Bob").
			AddRow(3, "Cee"))
	mock.ExpectQuery(`SELECT "id", "title", "author_id" FROM "posts" WHERE "author_id" IN \(\?, \?, \?\)`).
		WithArgs(int64(1), int64(2), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author_id"}).
			AddRow(10, "a", 1).
			AddRow(11, "b", 1).
			AddRow(12, "c", 3))

	users, err := c.Query("User").Include("posts").All(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 3)
	require.Len(t, users[0]["posts"], 2)
	require.Len(t, users[1]["posts"], 0)
	require.Len(t, users[2]["posts"], 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInclude_ForwardBatchesDistinctKeys(t *testing.T) {
	c, mock := newMockClient(t)

	// Both posts share an author; the lookup carries the key once.
	mock.ExpectQuery(`SELECT "id", "title", "author_id" FROM "posts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author_id"}).
			AddRow(10, "a", 1).
			AddRow(11, "b", 1))
	mock.ExpectQuery(`SELECT "id", "name" FROM "users" WHERE "id" IN \(\?\)`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Ada"))

	posts, err := c.Query("Post").Include("author").All(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)
	author, ok := posts[0]["author"].(Record)
	require.True(t, ok)
	require.Equal(t, "Ada", author["name"])
	require.Equal(t, author, posts[1]["author"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestValidation_NoRoundTrip(t *testing.T) {
	// No expectations: an invalid payload must never reach the store.
	c, mock := newMockClient(t)
	ctx := context.Background()

	var ve *ValidationError
	_, err := c.Create(ctx, "User", Record{"id": 1, "nickname": "x"})
	require.ErrorAs(t, err, &ve)

	_, err = c.Create(ctx, "User", Record{"id": 1, "name": 42})
	require.ErrorAs(t, err, &ve)

	_, err = c.Query("User").Where(Eq("bogus", 1)).All(ctx)
	require.ErrorAs(t, err, &ve)

	_, err = c.Update(ctx, "User", []Cond{Eq("id", 1)}, Record{"bogus": "x"})
	require.ErrorAs(t, err, &ve)

	_, err = c.Delete(ctx, "Ghost", []Cond{Eq("id", 1)})
	require.ErrorAs(t, err, &ve)

	require.NoError(t, mock.ExpectationsWereMet())
}
