package graphstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/opendiscourse/corpusd/internal/model"
	appErr "github.com/opendiscourse/corpusd/internal/pkg/errors"
)

// Store is the narrow graph surface the ingestion service depends on. Merge
// must be idempotent: submitting the same keys twice leaves one node/edge.
type Store interface {
	Merge(ctx context.Context, nodes []model.Node, rels []model.Rel) error
	Neighbors(ctx context.Context, key string, depth int) ([]model.Node, []model.Rel, error)
}

type Config struct {
	BaseURL  string
	Database string
	Username string
	Password string
	Timeout  time.Duration
}

// Client talks to a Neo4j-compatible transactional Cypher HTTP endpoint.
// All statements of one Merge call go into a single committed transaction.
type Client struct {
	baseURL  string
	database string
	username string
	password string
	client   *http.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		database: database,
		username: cfg.Username,
		password: cfg.Password,
		client:   &http.Client{Timeout: timeout},
	}
}

type statement struct {
	Statement  string                 `json:"statement"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

type txResponse struct {
	Results []struct {
		Columns []string `json:"columns"`
		Data    []struct {
			Row []json.RawMessage `json:"row"`
		} `json:"data"`
	} `json:"results"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) Merge(ctx context.Context, nodes []model.Node, rels []model.Rel) error {
	if len(nodes) == 0 && len(rels) == 0 {
		return nil
	}
	statements := make([]statement, 0, len(nodes)+len(rels))
	for _, node := range nodes {
		statements = append(statements, statement{
			Statement: fmt.Sprintf("MERGE (n:%s {key: $key}) SET n += $props", sanitizeIdent(node.Label, "Entity")),
			Parameters: map[string]interface{}{
				"key":   node.Key,
				"props": nonNilProps(node.Props),
			},
		})
	}
	for _, rel := range rels {
		statements = append(statements, statement{
			Statement: fmt.Sprintf(
				"MATCH (a {key: $from}) MATCH (b {key: $to}) MERGE (a)-[r:%s]->(b) SET r += $props",
				sanitizeIdent(rel.Type, "RELATED_TO"),
			),
			Parameters: map[string]interface{}{
				"from":  rel.FromKey,
				"to":    rel.ToKey,
				"props": nonNilProps(rel.Props),
			},
		})
	}
	if _, err := c.commit(ctx, statements); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Debug("graph merge committed",
		zap.Int("nodes", len(nodes)),
		zap.Int("rels", len(rels)),
	)
	return nil
}

func (c *Client) Neighbors(ctx context.Context, key string, depth int) ([]model.Node, []model.Rel, error) {
	if depth <= 0 {
		depth = 1
	}
	if depth > 3 {
		depth = 3
	}
	stmt := fmt.Sprintf(
		"MATCH p = (a {key: $key})-[*1..%d]-(b) "+
			"UNWIND nodes(p) AS n UNWIND relationships(p) AS r "+
			"RETURN DISTINCT n.key, labels(n)[0], properties(n), startNode(r).key, endNode(r).key, type(r)",
		depth,
	)
	resp, err := c.commit(ctx, []statement{{
		Statement:  stmt,
		Parameters: map[string]interface{}{"key": key},
	}})
	if err != nil {
		return nil, nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil, nil
	}

	seenNodes := map[string]bool{}
	seenRels := map[string]bool{}
	var nodes []model.Node
	var rels []model.Rel
	for _, row := range resp.Results[0].Data {
		if len(row.Row) != 6 {
			continue
		}
		var node model.Node
		var rel model.Rel
		if err := decodeRow(row.Row, &node.Key, &node.Label, &node.Props, &rel.FromKey, &rel.ToKey, &rel.Type); err != nil {
			return nil, nil, fmt.Errorf("decode neighbors row: %w", err)
		}
		if node.Key != "" && !seenNodes[node.Key] {
			seenNodes[node.Key] = true
			nodes = append(nodes, node)
		}
		relKey := rel.FromKey + "|" + rel.Type + "|" + rel.ToKey
		if rel.Type != "" && !seenRels[relKey] {
			seenRels[relKey] = true
			rels = append(rels, rel)
		}
	}
	return nodes, rels, nil
}

func (c *Client) commit(ctx context.Context, statements []statement) (*txResponse, error) {
	body, err := json.Marshal(map[string]interface{}{"statements": statements})
	if err != nil {
		return nil, fmt.Errorf("encode statements: %w", err)
	}
	url := fmt.Sprintf("%s/db/%s/tx/commit", c.baseURL, c.database)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: tx commit: %v", appErr.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: tx commit: %s", appErr.ErrStoreUnavailable, resp.Status)
	}
	var out txResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode tx response: %w", err)
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s: %s", appErr.ErrStoreUnavailable, out.Errors[0].Code, out.Errors[0].Message)
	}
	return &out, nil
}

func decodeRow(row []json.RawMessage, dsts ...interface{}) error {
	for i, dst := range dsts {
		if string(row[i]) == "null" {
			continue
		}
		if err := json.Unmarshal(row[i], dst); err != nil {
			return err
		}
	}
	return nil
}

func nonNilProps(props map[string]interface{}) map[string]interface{} {
	if props == nil {
		return map[string]interface{}{}
	}
	return props
}

// sanitizeIdent keeps labels and relationship types safe to interpolate into
// Cypher, which does not support parameterizing them.
func sanitizeIdent(ident, fallback string) string {
	var sb strings.Builder
	for _, r := range ident {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		}
	}
	out := sb.String()
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		return fallback
	}
	return out
}
