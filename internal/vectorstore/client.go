package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/opendiscourse/corpusd/internal/model"
	appErr "github.com/opendiscourse/corpusd/internal/pkg/errors"
)

// Store is the narrow surface the ingestion and query services depend on,
// so the underlying vector store product stays swappable.
type Store interface {
	InitSchema(ctx context.Context, schema Schema) error
	Upsert(ctx context.Context, chunks []model.Chunk) error
	Query(ctx context.Context, query string, k int) ([]model.Match, error)
}

// Schema binds a collection to the embedding provider that vectorizes its
// objects. Applying it drops any existing collection of the same name.
type Schema struct {
	Collection      string `json:"collection"`
	Model           string `json:"model"`
	ProviderBaseURL string `json:"provider_base_url"`
}

type Config struct {
	BaseURL    string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Client is a minimal REST client to a Weaviate-compatible vector store.
// Embeddings are computed store-side by the text2vec module bound to the
// collection; this client never touches vectors directly.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client

	mu         sync.RWMutex
	collection string
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

func (c *Client) Collection() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collection
}

// InitSchema drops and recreates the collection. Destructive: every chunk
// previously ingested into it is discarded.
func (c *Client) InitSchema(ctx context.Context, schema Schema) error {
	logger := logutil.GetLogger(ctx).With(
		zap.String("collection", schema.Collection),
		zap.String("model", schema.Model),
	)
	// Drop is best-effort: the collection may not exist yet.
	if err := c.doJSON(ctx, http.MethodDelete, "/v1/schema/"+schema.Collection, nil, nil, true); err != nil {
		return err
	}
	body := map[string]interface{}{
		"class":      schema.Collection,
		"vectorizer": "text2vec-openai",
		"moduleConfig": map[string]interface{}{
			"text2vec-openai": map[string]interface{}{
				"model":   schema.Model,
				"baseURL": schema.ProviderBaseURL,
			},
		},
		"properties": []map[string]interface{}{
			{"name": "text", "dataType": []string{"text"}},
			{"name": "source", "dataType": []string{"text"}},
			{"name": "tags", "dataType": []string{"text[]"}},
			{"name": "content_hash", "dataType": []string{"text"}},
		},
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/schema", body, nil, false); err != nil {
		logger.Error("schema create failed", zap.Error(err))
		return err
	}
	c.mu.Lock()
	c.collection = schema.Collection
	c.mu.Unlock()
	logger.Info("schema recreated")
	return nil
}

// Upsert submits all chunks as one batch. IDs are content-derived, so the
// store overwrites existing objects instead of duplicating them.
func (c *Client) Upsert(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	collection := c.Collection()
	objects := make([]map[string]interface{}, 0, len(chunks))
	for _, chunk := range chunks {
		objects = append(objects, map[string]interface{}{
			"class": collection,
			"id":    chunk.ID,
			"properties": map[string]interface{}{
				"text":         chunk.Text,
				"source":       chunk.Source,
				"tags":         chunk.Tags,
				"content_hash": chunk.ContentHash,
			},
		})
	}
	body := map[string]interface{}{"objects": objects}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/batch/objects", body, nil, false); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Debug("chunks upserted",
		zap.String("collection", collection),
		zap.Int("count", len(chunks)),
	)
	return nil
}

func (c *Client) Query(ctx context.Context, query string, k int) ([]model.Match, error) {
	collection := c.Collection()
	concepts, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	gq := fmt.Sprintf(
		`{ Get { %s(nearText: {concepts: [%s]}, limit: %d) { text source tags _additional { certainty } } } }`,
		collection, concepts, k,
	)
	var resp struct {
		Data struct {
			Get map[string]json.RawMessage `json:"Get"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/graphql", map[string]string{"query": gq}, &resp, false); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("%w: query failed: %s", appErr.ErrStoreUnavailable, resp.Errors[0].Message)
	}
	raw, ok := resp.Data.Get[collection]
	if !ok {
		return nil, nil
	}
	var hits []struct {
		Text       string   `json:"text"`
		Source     string   `json:"source"`
		Tags       []string `json:"tags"`
		Additional struct {
			Certainty float64 `json:"certainty"`
		} `json:"_additional"`
	}
	if err := json.Unmarshal(raw, &hits); err != nil {
		return nil, fmt.Errorf("decode query result: %w", err)
	}
	matches := make([]model.Match, 0, len(hits))
	for _, hit := range hits {
		matches = append(matches, model.Match{
			Text:   hit.Text,
			Source: hit.Source,
			Tags:   hit.Tags,
			Score:  hit.Additional.Certainty,
		})
	}
	return matches, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}, ignoreStatus bool) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", appErr.ErrStoreUnavailable, method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && !ignoreStatus {
		return fmt.Errorf("%w: %s %s: %s", appErr.ErrStoreUnavailable, method, path, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
