package watcher

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/opendiscourse/corpusd/internal/extract"
	"github.com/opendiscourse/corpusd/internal/filestore"
	"github.com/opendiscourse/corpusd/internal/ingest"
	"github.com/opendiscourse/corpusd/internal/model"
	"github.com/opendiscourse/corpusd/internal/repo"
)

// Watcher observes a drop folder and drives both ingestion services for
// every new file. The catalog's content hash makes duplicate events and
// restarts no-ops.
type Watcher struct {
	dir     string
	ingest  *ingest.Service
	graph   *ingest.GraphService
	catalog *repo.CatalogRepo
	archive filestore.Store
}

func New(dir string, ingestSvc *ingest.Service, graphSvc *ingest.GraphService, catalog *repo.CatalogRepo, archive filestore.Store) (*Watcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("inbox dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create inbox dir: %w", err)
	}
	return &Watcher{
		dir:     dir,
		ingest:  ingestSvc,
		graph:   graphSvc,
		catalog: catalog,
		archive: archive,
	}, nil
}

// Run blocks until ctx is cancelled. It sweeps existing files first, then
// reacts to filesystem events.
func (w *Watcher) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx).With(zap.String("dir", w.dir))
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("init watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch inbox dir: %w", err)
	}
	logger.Info("inbox watcher started")

	if err := w.Sweep(ctx); err != nil {
		logger.Warn("initial sweep failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("inbox watcher stopping")
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if err := w.handlePath(ctx, event.Name); err != nil {
				logger.Error("inbox file failed",
					zap.String("path", event.Name),
					zap.Error(err),
				)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))
		}
	}
}

// Sweep processes every file already sitting in the drop folder.
func (w *Watcher) Sweep(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read inbox dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := w.handlePath(ctx, filepath.Join(w.dir, entry.Name())); err != nil {
			logutil.GetLogger(ctx).Error("sweep: inbox file failed",
				zap.String("name", entry.Name()),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (w *Watcher) handlePath(ctx context.Context, path string) error {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	sum := sha256.Sum256(data)
	contentHash := hex.EncodeToString(sum[:])

	if existing, err := w.catalog.GetByPath(ctx, name); err == nil &&
		existing.ContentHash == contentHash && existing.State == model.InboxFileStateDone {
		return nil
	}

	logger := logutil.GetLogger(ctx).With(zap.String("name", name))
	text, err := extract.Text(ctx, name, data)
	if err != nil {
		w.record(ctx, name, contentHash, 0, 0, model.InboxFileStateFailed)
		return err
	}
	chunks, err := w.ingest.IngestTexts(ctx, []model.Document{{Text: text, Source: name}})
	if err != nil {
		w.record(ctx, name, contentHash, 0, 0, model.InboxFileStateFailed)
		return err
	}
	nodes, rels, err := w.graph.IngestDocument(ctx, name, text)
	if err != nil {
		w.record(ctx, name, contentHash, chunks, 0, model.InboxFileStateFailed)
		return err
	}
	w.record(ctx, name, contentHash, chunks, nodes, model.InboxFileStateDone)
	logger.Info("inbox file ingested",
		zap.Int("chunks", chunks),
		zap.Int("nodes", nodes),
		zap.Int("rels", rels),
	)

	if w.archive != nil {
		key := time.Now().UTC().Format("2006/01/02") + "/" + name
		if err := w.archive.Save(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
			logger.Warn("archive failed, keeping file in inbox", zap.Error(err))
			return nil
		}
		if err := os.Remove(path); err != nil {
			logger.Warn("remove archived file failed", zap.Error(err))
		}
	}
	return nil
}

func (w *Watcher) record(ctx context.Context, name, contentHash string, chunks, nodes int, state string) {
	err := w.catalog.Save(ctx, &model.InboxFile{
		Path:        name,
		ContentHash: contentHash,
		Chunks:      chunks,
		Nodes:       nodes,
		State:       state,
		Mtime:       time.Now().UnixMilli(),
	})
	if err != nil {
		logutil.GetLogger(ctx).Error("catalog save failed",
			zap.String("name", name),
			zap.Error(err),
		)
	}
}
