package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Mention is one entity occurrence found in a text.
type Mention struct {
	Label string `json:"label"`
	Type  string `json:"type"`
}

// Extractor turns free text into entity mentions. Implementations are
// pluggable: the keyword matcher can be swapped for a real model without
// touching the ingestion contract.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, text string) ([]Mention, error)
}

type Factory func(args interface{}) (Extractor, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func NewExtractor(name string, args interface{}) (Extractor, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported extractor: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("extractor config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode extractor config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode extractor config: %w", err)
	}
	return nil
}
