package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	DBPath      string           `json:"db_path"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Auth        AuthConfig       `json:"auth"`
	VectorStore VectorConfig     `json:"vector_store"`
	GraphStore  GraphConfig      `json:"graph_store"`
	Ingest      IngestConfig     `json:"ingest"`
	Inbox       InboxConfig      `json:"inbox"`
	CORSOrigins []string         `json:"cors_origins"`
}

type AuthConfig struct {
	Required       bool   `json:"required"`
	JWKSURL        string `json:"jwks_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type VectorConfig struct {
	BaseURL         string `json:"base_url"`
	APIKey          string `json:"api_key"`
	Collection      string `json:"collection"`
	Model           string `json:"model"`
	ProviderBaseURL string `json:"provider_base_url"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
}

type GraphConfig struct {
	BaseURL        string `json:"base_url"`
	Database       string `json:"database"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type IngestConfig struct {
	ChunkSize         int         `json:"chunk_size"`
	ChunkOverlap      int         `json:"chunk_overlap"`
	Vocabulary        []string    `json:"vocabulary"`
	Extractor         string      `json:"extractor"`
	ExtractorArgs     interface{} `json:"extractor_args"`
	RateLimitWindowMS int         `json:"rate_limit_window_ms"`
}

type InboxConfig struct {
	Dir       string          `json:"dir"`
	SweepCron string          `json:"sweep_cron"`
	Archive   FileStoreConfig `json:"archive"`
	Cleanup   CleanupConfig   `json:"cleanup"`
}

type CleanupConfig struct {
	Cron       string `json:"cron"`
	MaxAgeDays int    `json:"max_age_days"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db_path is required")
	}
	if cfg.VectorStore.BaseURL == "" {
		return nil, fmt.Errorf("vector_store.base_url is required")
	}
	if cfg.GraphStore.BaseURL == "" {
		return nil, fmt.Errorf("graph_store.base_url is required")
	}
	if cfg.Auth.Required && cfg.Auth.JWKSURL == "" {
		return nil, fmt.Errorf("auth.jwks_url is required when auth.required is true")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Auth.TimeoutSeconds <= 0 {
		cfg.Auth.TimeoutSeconds = 10
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "CorpusChunk"
	}
	if cfg.VectorStore.TimeoutSeconds <= 0 {
		cfg.VectorStore.TimeoutSeconds = 15
	}
	if cfg.GraphStore.Database == "" {
		cfg.GraphStore.Database = "neo4j"
	}
	if cfg.GraphStore.TimeoutSeconds <= 0 {
		cfg.GraphStore.TimeoutSeconds = 15
	}
	if cfg.Ingest.ChunkSize <= 0 {
		cfg.Ingest.ChunkSize = 1200
	}
	if cfg.Ingest.ChunkOverlap < 0 {
		cfg.Ingest.ChunkOverlap = 0
	}
	if cfg.Ingest.ChunkOverlap >= cfg.Ingest.ChunkSize {
		return nil, fmt.Errorf("ingest.chunk_overlap must be smaller than ingest.chunk_size")
	}
	if cfg.Ingest.Extractor == "" {
		cfg.Ingest.Extractor = "keyword"
	}
	if cfg.Inbox.SweepCron == "" {
		cfg.Inbox.SweepCron = "*/5 * * * *"
	}
	if cfg.Inbox.Cleanup.Cron == "" {
		cfg.Inbox.Cleanup.Cron = "30 3 * * *"
	}
	if cfg.Inbox.Cleanup.MaxAgeDays <= 0 {
		cfg.Inbox.Cleanup.MaxAgeDays = 90
	}
	if cfg.Inbox.Archive.Type == "" {
		cfg.Inbox.Archive.Type = "none"
	}
	return &cfg, nil
}
