package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opendiscourse/corpusd/internal/entity"
	"github.com/opendiscourse/corpusd/internal/ingest"
	"github.com/opendiscourse/corpusd/internal/model"
	"github.com/opendiscourse/corpusd/internal/repo"
	"github.com/opendiscourse/corpusd/internal/vectorstore"
)

type memVectorStore struct {
	mu          sync.Mutex
	objects     map[string]model.Chunk
	upsertCalls int
}

func (m *memVectorStore) InitSchema(ctx context.Context, schema vectorstore.Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects = map[string]model.Chunk{}
	return nil
}

func (m *memVectorStore) Upsert(ctx context.Context, chunks []model.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	for _, chunk := range chunks {
		m.objects[chunk.ID] = chunk
	}
	return nil
}

func (m *memVectorStore) Query(ctx context.Context, query string, k int) ([]model.Match, error) {
	return nil, nil
}

type memGraphStore struct {
	mu    sync.Mutex
	nodes map[string]model.Node
	rels  map[string]model.Rel
}

func (m *memGraphStore) Merge(ctx context.Context, nodes []model.Node, rels []model.Rel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, node := range nodes {
		m.nodes[node.Key] = node
	}
	for _, rel := range rels {
		m.rels[rel.FromKey+"|"+rel.Type+"|"+rel.ToKey] = rel
	}
	return nil
}

func (m *memGraphStore) Neighbors(ctx context.Context, key string, depth int) ([]model.Node, []model.Rel, error) {
	return nil, nil, nil
}

func newTestWatcher(t *testing.T, dir string) (*Watcher, *memVectorStore, *memGraphStore, *repo.CatalogRepo) {
	t.Helper()
	vstore := &memVectorStore{objects: map[string]model.Chunk{}}
	gstore := &memGraphStore{nodes: map[string]model.Node{}, rels: map[string]model.Rel{}}
	extractor, err := entity.NewExtractor("keyword", map[string]interface{}{"vocabulary": []string{"climate"}})
	require.NoError(t, err)

	db, err := repo.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	require.NoError(t, repo.ApplyMigrations(db))
	t.Cleanup(func() { _ = db.Close() })
	catalog := repo.NewCatalogRepo(db)

	w, err := New(dir,
		ingest.NewService(vstore, ingest.NewSplitter(200, 40)),
		ingest.NewGraphService(gstore, extractor),
		catalog,
		nil,
	)
	require.NoError(t, err)
	return w, vstore, gstore, catalog
}

func TestSweep_IngestsDropFolderFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "speech.txt"), []byte("a speech about climate policy"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("skip me"), 0o644))

	w, vstore, gstore, catalog := newTestWatcher(t, dir)
	require.NoError(t, w.Sweep(context.Background()))

	require.Len(t, vstore.objects, 1)
	require.Contains(t, gstore.nodes, ingest.NodeKey("document", "speech.txt"))
	require.Contains(t, gstore.nodes, ingest.NodeKey("entity", "climate"))

	file, err := catalog.GetByPath(context.Background(), "speech.txt")
	require.NoError(t, err)
	require.Equal(t, model.InboxFileStateDone, file.State)
	require.Equal(t, 1, file.Chunks)

	_, err = catalog.GetByPath(context.Background(), ".hidden")
	require.Error(t, err)
}

func TestSweep_UnchangedFileIsSkippedOnSecondPass(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("stable content"), 0o644))

	w, vstore, _, _ := newTestWatcher(t, dir)
	require.NoError(t, w.Sweep(context.Background()))
	require.NoError(t, w.Sweep(context.Background()))
	require.Equal(t, 1, vstore.upsertCalls)
}

func TestSweep_ChangedContentIsReingested(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("first version"), 0o644))

	w, vstore, _, catalog := newTestWatcher(t, dir)
	require.NoError(t, w.Sweep(context.Background()))
	require.NoError(t, os.WriteFile(path, []byte("second version"), 0o644))
	require.NoError(t, w.Sweep(context.Background()))

	require.Equal(t, 2, vstore.upsertCalls)
	// Changed content means new chunk identifiers, old ones stay put.
	require.Len(t, vstore.objects, 2)

	file, err := catalog.GetByPath(context.Background(), "doc.txt")
	require.NoError(t, err)
	require.Equal(t, model.InboxFileStateDone, file.State)
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New("", nil, nil, nil, nil)
	require.Error(t, err)
}
