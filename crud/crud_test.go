package crud

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crerrors "github.com/crudgen/crudgen/errors"
)

type Todo struct {
	Model
	Title string `crud:"size:200"`
	Done  bool   `crud:"default:false;index"`
	Notes *string
	Tags  map[string]string
}

type Ticket struct {
	SoftDeleteModel
	Subject string `crud:"size:200"`
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE todos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TIMESTAMP,
			updated_at TIMESTAMP,
			title TEXT,
			done BOOLEAN,
			notes TEXT,
			tags TEXT
		);
		CREATE TABLE tickets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TIMESTAMP,
			updated_at TIMESTAMP,
			is_deleted BOOLEAN DEFAULT 0,
			deleted_at TIMESTAMP,
			subject TEXT
		);
	`)
	require.NoError(t, err)
	return db
}

func todoRepo(t *testing.T) *Repository[Todo] {
	return NewRepository[Todo](openTestDB(t), "todos", "id")
}

func TestRepositoryColumnMapping(t *testing.T) {
	r := todoRepo(t)
	assert.Equal(t, []string{"id", "created_at", "updated_at", "title", "done", "notes", "tags"}, r.Columns())
	assert.Equal(t, "todos", r.Table())
	assert.Equal(t, "id", r.PrimaryKey())
	assert.False(t, r.SoftDelete())
}

func TestCreateAndGet(t *testing.T) {
	r := todoRepo(t)
	ctx := context.Background()

	todo := &Todo{Title: "write docs", Tags: map[string]string{"area": "docs"}}
	require.NoError(t, r.Create(ctx, todo))
	assert.Equal(t, int64(1), todo.ID)
	assert.False(t, todo.CreatedAt.IsZero())

	got, err := r.Get(ctx, todo.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "write docs", got.Title)
	assert.Equal(t, map[string]string{"area": "docs"}, got.Tags)
	assert.Nil(t, got.Notes)

	missing, err := r.Get(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = r.GetOrErr(ctx, 999)
	assert.True(t, errors.Is(err, crerrors.ErrNotFound))
}

func TestListFilterOrderPage(t *testing.T) {
	r := todoRepo(t)
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c"} {
		require.NoError(t, r.Create(ctx, &Todo{Title: title, Done: title == "b"}))
	}

	all, err := r.List(ctx, ListOptions{OrderBy: "title", Desc: true})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].Title)

	open, err := r.List(ctx, ListOptions{Filters: map[string]any{"done": false}, OrderBy: "title"})
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "a", open[0].Title)

	page, err := r.List(ctx, ListOptions{OrderBy: "title", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].Title)

	_, err = r.List(ctx, ListOptions{Filters: map[string]any{"bogus": 1}})
	assert.True(t, errors.Is(err, crerrors.ErrInvalidInput))

	_, err = r.List(ctx, ListOptions{OrderBy: "bogus"})
	assert.True(t, errors.Is(err, crerrors.ErrInvalidInput))
}

func TestFirstAndListBy(t *testing.T) {
	r := todoRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, &Todo{Title: "x", Done: true}))
	require.NoError(t, r.Create(ctx, &Todo{Title: "y", Done: true}))

	got, err := r.First(ctx, "title", "y")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "y", got.Title)

	none, err := r.First(ctx, "title", "zzz")
	require.NoError(t, err)
	assert.Nil(t, none)

	done, err := r.ListBy(ctx, "done", true)
	require.NoError(t, err)
	assert.Len(t, done, 2)

	_, err = r.First(ctx, "bogus", 1)
	assert.True(t, errors.Is(err, crerrors.ErrInvalidInput))
}

func TestUpdate(t *testing.T) {
	r := todoRepo(t)
	ctx := context.Background()

	todo := &Todo{Title: "draft"}
	require.NoError(t, r.Create(ctx, todo))
	before := todo.UpdatedAt

	updated, err := r.Update(ctx, todo.ID, map[string]any{"title": "final", "done": true})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Title)
	assert.True(t, updated.Done)
	assert.True(t, updated.UpdatedAt.After(before) || updated.UpdatedAt.Equal(before))

	_, err = r.Update(ctx, todo.ID, map[string]any{"id": 9})
	assert.True(t, errors.Is(err, crerrors.ErrInvalidInput))

	_, err = r.Update(ctx, todo.ID, map[string]any{"bogus": 9})
	assert.True(t, errors.Is(err, crerrors.ErrInvalidInput))

	_, err = r.Update(ctx, 999, map[string]any{"title": "nope"})
	assert.True(t, errors.Is(err, crerrors.ErrNotFound))
}

func TestDeleteHard(t *testing.T) {
	r := todoRepo(t)
	ctx := context.Background()

	todo := &Todo{Title: "temp"}
	require.NoError(t, r.Create(ctx, todo))
	require.NoError(t, r.Delete(ctx, todo.ID))

	got, err := r.Get(ctx, todo.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	err = r.Delete(ctx, todo.ID)
	assert.True(t, errors.Is(err, crerrors.ErrNotFound))
}

func TestSoftDeleteAndRestore(t *testing.T) {
	r := NewRepository[Ticket](openTestDB(t), "tickets", "id")
	ctx := context.Background()
	assert.True(t, r.SoftDelete())

	ticket := &Ticket{Subject: "help"}
	require.NoError(t, r.Create(ctx, ticket))
	require.NoError(t, r.Delete(ctx, ticket.ID))

	// hidden from default reads
	got, err := r.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	hidden, err := r.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, hidden)

	all, err := r.List(ctx, ListOptions{IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].IsDeleted)
	require.NotNil(t, all[0].DeletedAt)

	require.NoError(t, r.Restore(ctx, ticket.ID))
	restored, err := r.Get(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.False(t, restored.IsDeleted)
	assert.Nil(t, restored.DeletedAt)

	err = r.Restore(ctx, ticket.ID)
	assert.True(t, errors.Is(err, crerrors.ErrNotFound))
}

func TestRestoreOnHardDeleteTable(t *testing.T) {
	r := todoRepo(t)
	err := r.Restore(context.Background(), 1)
	assert.True(t, errors.Is(err, crerrors.ErrInvalidInput))
}

func TestCreateBatchAndCount(t *testing.T) {
	r := todoRepo(t)
	ctx := context.Background()

	batch := []*Todo{{Title: "one"}, {Title: "two"}, {Title: "three", Done: true}}
	require.NoError(t, r.CreateBatch(ctx, batch))
	for _, todo := range batch {
		assert.NotZero(t, todo.ID)
	}

	n, err := r.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = r.Count(ctx, map[string]any{"done": true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := r.Exists(ctx, batch[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Exists(ctx, 999)
	require.NoError(t, err)
	assert.False(t, ok)
}
