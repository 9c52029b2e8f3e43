package repo

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opendiscourse/corpusd/internal/model"
	appErr "github.com/opendiscourse/corpusd/internal/pkg/errors"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	require.NoError(t, ApplyMigrations(db))
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func TestCatalogRepo_SaveOverwritesByPath(t *testing.T) {
	repo := NewCatalogRepo(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &model.InboxFile{
		Path: "/inbox/a.txt", ContentHash: "h1", Chunks: 3, State: model.InboxFileStateDone, Mtime: 100,
	}))
	require.NoError(t, repo.Save(ctx, &model.InboxFile{
		Path: "/inbox/a.txt", ContentHash: "h2", Chunks: 5, State: model.InboxFileStateDone, Mtime: 200,
	}))

	file, err := repo.GetByPath(ctx, "/inbox/a.txt")
	require.NoError(t, err)
	require.Equal(t, "h2", file.ContentHash)
	require.Equal(t, 5, file.Chunks)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.Files)
}

func TestCatalogRepo_GetByPathNotFound(t *testing.T) {
	repo := NewCatalogRepo(openTestDB(t))

	_, err := repo.GetByPath(context.Background(), "/inbox/missing.txt")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestCatalogRepo_StatsAggregates(t *testing.T) {
	repo := NewCatalogRepo(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &model.InboxFile{Path: "a", ContentHash: "h", Chunks: 3, Nodes: 2, State: model.InboxFileStateDone, Mtime: 1}))
	require.NoError(t, repo.Save(ctx, &model.InboxFile{Path: "b", ContentHash: "h", Chunks: 4, Nodes: 1, State: model.InboxFileStateDone, Mtime: 2}))
	require.NoError(t, repo.Save(ctx, &model.InboxFile{Path: "c", ContentHash: "h", State: model.InboxFileStateFailed, Mtime: 3}))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.Files)
	require.EqualValues(t, 7, stats.Chunks)
	require.EqualValues(t, 3, stats.Nodes)
	require.EqualValues(t, 1, stats.Failed)
}

func TestCatalogRepo_DeleteBefore(t *testing.T) {
	repo := NewCatalogRepo(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &model.InboxFile{Path: "old", ContentHash: "h", State: model.InboxFileStateDone, Mtime: 10}))
	require.NoError(t, repo.Save(ctx, &model.InboxFile{Path: "new", ContentHash: "h", State: model.InboxFileStateDone, Mtime: 100}))

	deleted, err := repo.DeleteBefore(ctx, 50)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	_, err = repo.GetByPath(ctx, "old")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	_, err = repo.GetByPath(ctx, "new")
	require.NoError(t, err)
}
