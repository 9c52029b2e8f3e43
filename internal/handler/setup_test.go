package handler_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/opendiscourse/corpusd/internal/entity"
	"github.com/opendiscourse/corpusd/internal/handler"
	"github.com/opendiscourse/corpusd/internal/ingest"
	"github.com/opendiscourse/corpusd/internal/middleware"
	"github.com/opendiscourse/corpusd/internal/model"
	"github.com/opendiscourse/corpusd/internal/pkg/keyset"
	"github.com/opendiscourse/corpusd/internal/repo"
	"github.com/opendiscourse/corpusd/internal/vectorstore"
)

type memVectorStore struct {
	mu     sync.Mutex
	chunks map[string]model.Chunk
}

func newMemVectorStore() *memVectorStore {
	return &memVectorStore{chunks: map[string]model.Chunk{}}
}

func (s *memVectorStore) InitSchema(ctx context.Context, schema vectorstore.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = map[string]model.Chunk{}
	return nil
}

func (s *memVectorStore) Upsert(ctx context.Context, chunks []model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chunk := range chunks {
		s.chunks[chunk.ID] = chunk
	}
	return nil
}

// Query scores by shared lowercase words, good enough to test ordering and
// truncation without a real embedding backend.
func (s *memVectorStore) Query(ctx context.Context, query string, k int) ([]model.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queryWords := map[string]bool{}
	for _, word := range strings.Fields(strings.ToLower(query)) {
		queryWords[word] = true
	}
	var matches []model.Match
	for _, chunk := range s.chunks {
		var hits int
		for _, word := range strings.Fields(strings.ToLower(chunk.Text)) {
			if queryWords[word] {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		matches = append(matches, model.Match{
			Text:   chunk.Text,
			Source: chunk.Source,
			Tags:   chunk.Tags,
			Score:  float64(hits),
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

type memGraphStore struct {
	mu    sync.Mutex
	nodes map[string]model.Node
	rels  []model.Rel
}

func newMemGraphStore() *memGraphStore {
	return &memGraphStore{nodes: map[string]model.Node{}}
}

func (s *memGraphStore) Merge(ctx context.Context, nodes []model.Node, rels []model.Rel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, node := range nodes {
		s.nodes[node.Key] = node
	}
	for _, rel := range rels {
		exists := false
		for _, have := range s.rels {
			if have.FromKey == rel.FromKey && have.ToKey == rel.ToKey && have.Type == rel.Type {
				exists = true
				break
			}
		}
		if !exists {
			s.rels = append(s.rels, rel)
		}
	}
	return nil
}

func (s *memGraphStore) Neighbors(ctx context.Context, key string, depth int) ([]model.Node, []model.Rel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var nodes []model.Node
	var rels []model.Rel
	for _, rel := range s.rels {
		if rel.FromKey != key && rel.ToKey != key {
			continue
		}
		rels = append(rels, rel)
		if node, ok := s.nodes[rel.FromKey]; ok {
			nodes = append(nodes, node)
		}
		if node, ok := s.nodes[rel.ToKey]; ok {
			nodes = append(nodes, node)
		}
	}
	return nodes, rels, nil
}

func setupRouter(t *testing.T, verifier *keyset.Verifier) (http.Handler, *memVectorStore, *memGraphStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repo.Open(filepath.Join(t.TempDir(), "corpusd.db"))
	require.NoError(t, err)
	require.NoError(t, repo.ApplyMigrations(db))
	t.Cleanup(func() { _ = db.Close() })
	catalogRepo := repo.NewCatalogRepo(db)

	vectorStore := newMemVectorStore()
	graphStore := newMemGraphStore()
	extractor, err := entity.NewExtractor("keyword", map[string]interface{}{
		"vocabulary": []string{"solar", "wind"},
	})
	require.NoError(t, err)

	ingestService := ingest.NewService(vectorStore, ingest.NewSplitter(200, 20))
	graphService := ingest.NewGraphService(graphStore, extractor)

	deps := handler.RouterDeps{
		Schema:   handler.NewSchemaHandler(ingestService),
		Ingest:   handler.NewIngestHandler(ingestService, graphService),
		Query:    handler.NewQueryHandler(ingestService),
		Graph:    handler.NewGraphHandler(graphService),
		System:   handler.NewSystemHandler(catalogRepo, verifier.Required()),
		Verifier: verifier,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return engine, vectorStore, graphStore
}

func openVerifier() *keyset.Verifier {
	return keyset.NewVerifier(nil, false)
}

// jwksVerifier spins up a JWKS endpoint plus a signing helper for tests that
// exercise the enforced-auth path.
func jwksVerifier(t *testing.T) (*keyset.Verifier, func() string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	doc := map[string]interface{}{
		"keys": []map[string]string{
			{
				"kid": "test-kid",
				"kty": "RSA",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			},
		},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(server.Close)

	sign := func() string {
		token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, jwtlib.RegisteredClaims{
			Subject:   "tester",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		})
		token.Header["kid"] = "test-kid"
		signed, err := token.SignedString(key)
		require.NoError(t, err)
		return signed
	}
	return keyset.NewVerifier(keyset.NewCache(server.URL, 5*time.Second), true), sign
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(payload))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}
