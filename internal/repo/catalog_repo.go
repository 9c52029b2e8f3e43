package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/didi/gendry/builder"

	"github.com/opendiscourse/corpusd/internal/model"
	appErr "github.com/opendiscourse/corpusd/internal/pkg/errors"
)

// CatalogRepo is the per-file ledger behind the inbox watcher. The content
// hash lets restarts and duplicate events skip unchanged files.
type CatalogRepo struct {
	db *sql.DB
}

func NewCatalogRepo(db *sql.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

func (r *CatalogRepo) Save(ctx context.Context, file *model.InboxFile) error {
	data := map[string]interface{}{
		"path":         file.Path,
		"content_hash": file.ContentHash,
		"chunks":       file.Chunks,
		"nodes":        file.Nodes,
		"state":        file.State,
		"mtime":        file.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("inbox_files", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr = strings.Replace(sqlStr, "INSERT INTO", "INSERT OR REPLACE INTO", 1)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *CatalogRepo) GetByPath(ctx context.Context, path string) (*model.InboxFile, error) {
	where := map[string]interface{}{
		"path": path,
	}
	sqlStr, args, err := builder.BuildSelect("inbox_files", where,
		[]string{"path", "content_hash", "chunks", "nodes", "state", "mtime"})
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var file model.InboxFile
	if err := row.Scan(&file.Path, &file.ContentHash, &file.Chunks, &file.Nodes, &file.State, &file.Mtime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &file, nil
}

func (r *CatalogRepo) Stats(ctx context.Context) (*model.InboxStats, error) {
	const query = `
		SELECT COUNT(*),
			COALESCE(SUM(chunks), 0),
			COALESCE(SUM(nodes), 0),
			COALESCE(SUM(CASE WHEN state = ? THEN 1 ELSE 0 END), 0)
		FROM inbox_files
	`
	row := r.db.QueryRowContext(ctx, query, model.InboxFileStateFailed)
	var stats model.InboxStats
	if err := row.Scan(&stats.Files, &stats.Chunks, &stats.Nodes, &stats.Failed); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *CatalogRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM inbox_files WHERE mtime < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
