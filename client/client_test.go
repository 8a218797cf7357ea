package client

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/tablodb/tablo/driver"
	"github.com/tablodb/tablo/migrate"
	"github.com/tablodb/tablo/schema"
)

const blogSchema = `entity User {
    id        int       @id @default(autoincrement)
    email     string    @unique
    name      string?
    role      string    @default("member")
    createdAt timestamp @default(now)
    updatedAt timestamp @updated
}

entity Post {
    id        int    @id @default(autoincrement)
    title     string
    published bool   @default(false)
    authorId  int    @ref(User.id, posts) @onDelete(cascade)
}
`

func newTestClient(t *testing.T, src string) *Client {
	t.Helper()
	drv, err := driver.Open(driver.SQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { drv.Close() })

	snap, err := schema.Parse(src)
	require.NoError(t, err)
	_, err = migrate.NewMigrator(drv).Apply(context.Background(), "init", snap)
	require.NoError(t, err)

	return New(drv, snap)
}

func TestCreate_DefaultsGenerated(t *testing.T) {
	c := newTestClient(t, blogSchema)
	before := time.Now().UTC().Add(-time.Second)

	user, err := c.Create(context.Background(), "User", Record{
		"email": "ada@example.com",
		"name":  "Ada",
	})
	require.NoError(t, err)

	require.Equal(t, int64(1), user["id"])
	require.Equal(t, "ada@example.com", user["email"])
	require.Equal(t, "Ada", user["name"])
	require.Equal(t, "member", user["role"])

	created, ok := user["createdAt"].(time.Time)
	require.True(t, ok, "createdAt = %T", user["createdAt"])
	require.True(t, created.After(before))
	_, ok = user["updatedAt"].(time.Time)
	require.True(t, ok, "updatedAt = %T", user["updatedAt"])
}

func TestCreate_NullableOmitted(t *testing.T) {
	c := newTestClient(t, blogSchema)
	user, err := c.Create(context.Background(), "User", Record{"email": "x@example.com"})
	require.NoError(t, err)
	require.Nil(t, user["name"])
}

func TestCreate_ValidationErrors(t *testing.T) {
	c := newTestClient(t, blogSchema)
	ctx := context.Background()

	_, err := c.Create(ctx, "User", Record{"email": "a@b.c", "nickname": "x"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "nickname", ve.Field)

	_, err = c.Create(ctx, "User", Record{"name": "no email"})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "email", ve.Field)

	_, err = c.Create(ctx, "User", Record{"email": 42})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "email", ve.Field)

	_, err = c.Create(ctx, "User", Record{"email": "a@b.c", "id": 7})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "id", ve.Field)

	_, err = c.Create(ctx, "Account", Record{})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "Account", ve.Entity)
}

func TestCreate_UniqueViolation(t *testing.T) {
	c := newTestClient(t, blogSchema)
	ctx := context.Background()

	_, err := c.Create(ctx, "User", Record{"email": "dup@example.com"})
	require.NoError(t, err)
	_, err = c.Create(ctx, "User", Record{"email": "dup@example.com"})
	var ce *ConstraintError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, UniqueConstraint, ce.Kind)
}

func TestQuery_CondsOrderPaging(t *testing.T) {
	c := newTestClient(t, blogSchema)
	ctx := context.Background()
	for _, email := range []string{"c@x.io", "a@x.io", "b@x.io"} {
		_, err := c.Create(ctx, "User", Record{"email": email})
		require.NoError(t, err)
	}

	users, err := c.Query("User").OrderAsc("email").All(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	require.Equal(t, "a@x.io", users[0]["email"])
	require.Equal(t, "c@x.io", users[2]["email"])

	users, err = c.Query("User").Where(Gt("id", 1)).OrderDesc("id").Limit(1).All(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, int64(3), users[0]["id"])

	users, err = c.Query("User").Where(In("email", "a@x.io", "b@x.io")).All(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)

	users, err = c.Query("User").Where(Eq("name", nil)).All(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)

	_, err = c.Query("User").Where(Eq("nickname", "x")).All(ctx)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestQuery_OneNotFound(t *testing.T) {
	c := newTestClient(t, blogSchema)
	_, err := c.Query("User").Where(Eq("email", "ghost@x.io")).One(context.Background())
	var nfe *NotFoundError
	require.ErrorAs(t, err, &nfe)
	require.Equal(t, "User", nfe.Entity)
}

func TestGet_ByIdentity(t *testing.T) {
	c := newTestClient(t, blogSchema)
	ctx := context.Background()
	created, err := c.Create(ctx, "User", Record{"email": "g@x.io"})
	require.NoError(t, err)

	got, err := c.Get(ctx, "User", created["id"])
	require.NoError(t, err)
	require.Equal(t, "g@x.io", got["email"])
}

func TestInclude_InverseAndForward(t *testing.T) {
	c := newTestClient(t, blogSchema)
	ctx := context.Background()

	ada, err := c.Create(ctx, "User", Record{"email": "ada@x.io", "name": "Ada"})
	require.NoError(t, err)
	bob, err := c.Create(ctx, "User", Record{"email": "bob@x.io", "name": "Bob"})
	require.NoError(t, err)

	for _, title := range []string{"first", "second"} {
		_, err = c.Create(ctx, "Post", Record{"title": title, "authorId": ada["id"]})
		require.NoError(t, err)
	}

	users, err := c.Query("User").OrderAsc("id").Include("posts").All(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)

	adaPosts, ok := users[0]["posts"].([]Record)
	require.True(t, ok, "posts = %T", users[0]["posts"])
	require.Len(t, adaPosts, 2)
	require.Equal(t, "first", adaPosts[0]["title"])

	bobPosts, ok := users[1]["posts"].([]Record)
	require.True(t, ok)
	require.Empty(t, bobPosts)

	posts, err := c.Query("Post").Include("author").All(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	author, ok := posts[0]["author"].(Record)
	require.True(t, ok, "author = %T", posts[0]["author"])
	require.Equal(t, "Ada", author["name"])

	_, err = c.Query("User").Include("comments").All(ctx)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	_ = bob
}

func TestUpdate_RefreshesUpdatedAt(t *testing.T) {
	c := newTestClient(t, blogSchema)
	ctx := context.Background()

	user, err := c.Create(ctx, "User", Record{"email": "u@x.io", "name": "before"})
	require.NoError(t, err)
	firstStamp := user["updatedAt"].(time.Time)

	time.Sleep(5 * time.Millisecond)
	updated, err := c.Update(ctx, "User", []Cond{Eq("id", user["id"])}, Record{"name": "after"})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	require.Equal(t, "after", updated[0]["name"])
	require.True(t, updated[0]["updatedAt"].(time.Time).After(firstStamp))
}

func TestUpdate_Validation(t *testing.T) {
	c := newTestClient(t, blogSchema)
	ctx := context.Background()
	user, err := c.Create(ctx, "User", Record{"email": "v@x.io"})
	require.NoError(t, err)

	var ve *ValidationError
	_, err = c.Update(ctx, "User", []Cond{Eq("id", user["id"])}, Record{"id": 99})
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "identity is immutable", ve.Message)

	_, err = c.Update(ctx, "User", nil, Record{"name": "x"})
	require.ErrorAs(t, err, &ve)

	_, err = c.Update(ctx, "User", []Cond{Eq("id", user["id"])}, Record{})
	require.ErrorAs(t, err, &ve)

	var nfe *NotFoundError
	_, err = c.Update(ctx, "User", []Cond{Eq("email", "ghost@x.io")}, Record{"name": "x"})
	require.ErrorAs(t, err, &nfe)
}

func TestDelete_CascadesToOwnedRecords(t *testing.T) {
	c := newTestClient(t, blogSchema)
	ctx := context.Background()

	user, err := c.Create(ctx, "User", Record{"email": "d@x.io"})
	require.NoError(t, err)
	_, err = c.Create(ctx, "Post", Record{"title": "t", "authorId": user["id"]})
	require.NoError(t, err)

	gone, err := c.Delete(ctx, "User", []Cond{Eq("id", user["id"])})
	require.NoError(t, err)
	require.Len(t, gone, 1)
	require.Equal(t, "d@x.io", gone[0]["email"])

	posts, err := c.Query("Post").All(ctx)
	require.NoError(t, err)
	require.Empty(t, posts)
}

func TestDelete_ReturnsRemovedRecords(t *testing.T) {
	c := newTestClient(t, blogSchema)
	ctx := context.Background()

	for _, email := range []string{"r1@x.io", "r2@x.io", "r3@x.io"} {
		_, err := c.Create(ctx, "User", Record{"email": email})
		require.NoError(t, err)
	}

	gone, err := c.Delete(ctx, "User", []Cond{In("email", "r1@x.io", "r3@x.io")})
	require.NoError(t, err)
	require.Len(t, gone, 2)
	require.Equal(t, "r1@x.io", gone[0]["email"])
	require.Equal(t, "r3@x.io", gone[1]["email"])
	require.NotNil(t, gone[0]["id"])

	left, err := c.Query("User").All(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	require.Equal(t, "r2@x.io", left[0]["email"])
}

func TestDelete_ForeignKeyRestricts(t *testing.T) {
	c := newTestClient(t, `entity User {
    id    int    @id @default(autoincrement)
    email string @unique
    name  string?
}
entity Post {
    id       int    @id @default(autoincrement)
    title    string
    authorId int    @ref(User.id, posts)
}`)
	ctx := context.Background()

	user, err := c.Create(ctx, "User", Record{"email": "a@x.com", "name": "A"})
	require.NoError(t, err)
	require.Equal(t, int64(1), user["id"])
	_, err = c.Create(ctx, "Post", Record{"title": "T1", "authorId": user["id"]})
	require.NoError(t, err)

	got, err := c.Query("User").Where(Eq("id", user["id"])).Include("posts").One(ctx)
	require.NoError(t, err)
	posts := got["posts"].([]Record)
	require.Len(t, posts, 1)
	require.Equal(t, "T1", posts[0]["title"])

	// The post still references the user, so the delete is refused and
	// the store stays unchanged.
	_, err = c.Delete(ctx, "User", []Cond{Eq("id", user["id"])})
	var ce *ConstraintError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, ForeignKeyConstraint, ce.Kind)
	_, err = c.Get(ctx, "User", user["id"])
	require.NoError(t, err)

	// Dropping the post first unblocks the user delete.
	_, err = c.Delete(ctx, "Post", []Cond{Eq("authorId", user["id"])})
	require.NoError(t, err)
	_, err = c.Delete(ctx, "User", []Cond{Eq("id", user["id"])})
	require.NoError(t, err)
}

func TestDelete_RequiresConditions(t *testing.T) {
	c := newTestClient(t, blogSchema)
	_, err := c.Delete(context.Background(), "User", nil)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestDelete_NoMatch(t *testing.T) {
	c := newTestClient(t, blogSchema)
	_, err := c.Delete(context.Background(), "User", []Cond{Eq("id", 12345)})
	var nfe *NotFoundError
	require.ErrorAs(t, err, &nfe)
}

func TestCreate_MissingFKTarget(t *testing.T) {
	c := newTestClient(t, blogSchema)
	_, err := c.Create(context.Background(), "Post", Record{"title": "orphan", "authorId": 999})
	var ce *ConstraintError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, ForeignKeyConstraint, ce.Kind)
}
