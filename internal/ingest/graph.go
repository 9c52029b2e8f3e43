package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/opendiscourse/corpusd/internal/entity"
	"github.com/opendiscourse/corpusd/internal/graphstore"
	"github.com/opendiscourse/corpusd/internal/model"
	appErr "github.com/opendiscourse/corpusd/internal/pkg/errors"
)

// NodeKey derives the stable graph key for a node. Kind prefixes keep a
// document named "climate" apart from the entity "climate".
func NodeKey(kind, value string) string {
	sum := sha256.Sum256([]byte(kind + ":" + strings.ToLower(value)))
	return hex.EncodeToString(sum[:])
}

// GraphService extracts entities from text and merges document/entity nodes
// plus MENTIONS edges into the graph store.
type GraphService struct {
	store     graphstore.Store
	extractor entity.Extractor
}

func NewGraphService(store graphstore.Store, extractor entity.Extractor) *GraphService {
	return &GraphService{store: store, extractor: extractor}
}

// IngestDocument runs extraction and submits one batched merge. An empty
// match set submits nothing and is a success.
func (s *GraphService) IngestDocument(ctx context.Context, source, text string) (int, int, error) {
	mentions, err := s.extractor.Extract(ctx, text)
	if err != nil {
		return 0, 0, err
	}
	if len(mentions) == 0 {
		return 0, 0, nil
	}

	docKey := NodeKey("document", source)
	nodes := []model.Node{{
		Key:   docKey,
		Label: "Document",
		Props: map[string]interface{}{"source": source},
	}}
	var rels []model.Rel
	seen := map[string]bool{}
	for _, mention := range mentions {
		entityKey := NodeKey("entity", mention.Label)
		if seen[entityKey] {
			continue
		}
		seen[entityKey] = true
		nodes = append(nodes, model.Node{
			Key:   entityKey,
			Label: mention.Type,
			Props: map[string]interface{}{"name": mention.Label},
		})
		rels = append(rels, model.Rel{FromKey: docKey, ToKey: entityKey, Type: "MENTIONS"})
	}
	if err := s.store.Merge(ctx, nodes, rels); err != nil {
		return 0, 0, err
	}
	logutil.GetLogger(ctx).Info("document merged into graph",
		zap.String("source", source),
		zap.Int("nodes", len(nodes)),
		zap.Int("rels", len(rels)),
	)
	return len(nodes), len(rels), nil
}

// MergeGraph merges caller-provided nodes and relationships directly.
func (s *GraphService) MergeGraph(ctx context.Context, nodes []model.Node, rels []model.Rel) (int, int, error) {
	for _, node := range nodes {
		if strings.TrimSpace(node.Key) == "" {
			return 0, 0, appErr.ErrInvalid
		}
	}
	for _, rel := range rels {
		if strings.TrimSpace(rel.FromKey) == "" || strings.TrimSpace(rel.ToKey) == "" {
			return 0, 0, appErr.ErrInvalid
		}
	}
	if len(nodes) == 0 && len(rels) == 0 {
		return 0, 0, nil
	}
	if err := s.store.Merge(ctx, nodes, rels); err != nil {
		return 0, 0, err
	}
	return len(nodes), len(rels), nil
}

func (s *GraphService) Neighbors(ctx context.Context, key string, depth int) ([]model.Node, []model.Rel, error) {
	if strings.TrimSpace(key) == "" {
		return nil, nil, appErr.ErrInvalid
	}
	return s.store.Neighbors(ctx, key, depth)
}
