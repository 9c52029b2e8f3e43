package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/opendiscourse/corpusd/internal/model"
	appErr "github.com/opendiscourse/corpusd/internal/pkg/errors"
	"github.com/opendiscourse/corpusd/internal/vectorstore"
)

const maxQueryK = 50

// chunkNamespace seeds the deterministic chunk UUIDs. Never change it:
// identical chunk text must always map to the same stored identifier.
var chunkNamespace = uuid.MustParse("8e7f3f80-6c1e-4f8a-9d35-1b2a9e4c0d11")

// ChunkID derives the stable identifier and content hash for a segment.
// Both are pure functions of the text, which is what makes re-ingestion an
// overwrite instead of a duplicate.
func ChunkID(text string) (id string, contentHash string) {
	sum := sha256.Sum256([]byte(text))
	return uuid.NewSHA1(chunkNamespace, sum[:]).String(), hex.EncodeToString(sum[:])
}

// Service splits incoming texts into chunks and coordinates idempotent
// storage plus similarity retrieval against the vector store.
type Service struct {
	store    vectorstore.Store
	splitter *Splitter
	cache    *expirable.LRU[string, []model.Match]
}

func NewService(store vectorstore.Store, splitter *Splitter) *Service {
	cache := expirable.NewLRU[string, []model.Match](1024, nil, time.Minute)
	return &Service{
		store:    store,
		splitter: splitter,
		cache:    cache,
	}
}

// IngestTexts splits every document, derives content-based identifiers and
// submits all chunks as one batched upsert. Empty texts contribute zero
// chunks. On a mid-batch store failure already-committed chunks stay
// committed; identifiers are content-derived so retrying the whole batch
// converges to the same state.
func (s *Service) IngestTexts(ctx context.Context, docs []model.Document) (int, error) {
	logger := logutil.GetLogger(ctx)
	var chunks []model.Chunk
	seen := map[string]bool{}
	for _, doc := range docs {
		segments := s.splitter.Split(doc.Text)
		for _, segment := range segments {
			id, contentHash := ChunkID(segment)
			if seen[id] {
				continue
			}
			seen[id] = true
			chunks = append(chunks, model.Chunk{
				ID:          id,
				Text:        segment,
				Source:      doc.Source,
				Tags:        doc.Tags,
				ContentHash: contentHash,
			})
		}
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := s.store.Upsert(ctx, chunks); err != nil {
		logger.Error("chunk upsert failed", zap.Int("chunks", len(chunks)), zap.Error(err))
		return 0, err
	}
	logger.Info("texts ingested",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
	)
	return len(chunks), nil
}

// InitSchema rebinds the collection to an embedding provider. Destructive:
// the store drops previously ingested chunks, so the query cache is purged
// to keep stale matches from outliving them.
func (s *Service) InitSchema(ctx context.Context, schema vectorstore.Schema) error {
	if strings.TrimSpace(schema.Collection) == "" || strings.TrimSpace(schema.Model) == "" {
		return fmt.Errorf("%w: collection and model are required", appErr.ErrInvalid)
	}
	if err := s.store.InitSchema(ctx, schema); err != nil {
		return err
	}
	s.cache.Purge()
	return nil
}

// Search runs a similarity query and returns up to k matches in descending
// similarity order. k <= 0 short-circuits to an empty result without
// touching the store.
func (s *Service) Search(ctx context.Context, query string, k int) ([]model.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	if k > maxQueryK {
		k = maxQueryK
	}
	key := searchCacheKey(query, k)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}
	matches, err := s.store.Query(ctx, query, k)
	if err != nil {
		logutil.GetLogger(ctx).Error("similarity query failed", zap.Error(err))
		return nil, err
	}
	s.cache.Add(key, matches)
	return matches, nil
}

func searchCacheKey(query string, k int) string {
	sum := sha256.Sum256([]byte(query))
	return fmt.Sprintf("%s:%d", hex.EncodeToString(sum[:]), k)
}
