package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	JWTSecret   string           `json:"jwt_secret"`
	JWTTTLHours int              `json:"jwt_ttl_hours"`
	CORSOrigins []string         `json:"cors_origins"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Database    DatabaseConfig   `json:"database"`
	RAG         RAGConfig        `json:"rag"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// ProviderConfig selects one registered model backend. Data carries
// provider-specific settings and is decoded by the provider factory.
type ProviderConfig struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type RAGConfig struct {
	Chat  []ProviderConfig `json:"chat"`
	Embed []ProviderConfig `json:"embed"`

	TopK             int    `json:"top_k"`
	MaxContextChars  int    `json:"max_context_chars"`
	MaxCharsPerChunk int    `json:"max_chars_per_chunk"`
	EmbedTimeout     int    `json:"embed_timeout_seconds"`
	ChatTimeout      int    `json:"chat_timeout_seconds"`
	StreamTimeout    int    `json:"stream_timeout_seconds"`
	StripMarkdown    bool   `json:"strip_markdown"`
	ReindexCron      string `json:"reindex_cron"`
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
	if cfg.Database.DSN == "" && cfg.Database.DBName == "" {
		return nil, fmt.Errorf("database.dsn or database.dbname is required")
	}
	if len(cfg.RAG.Chat) == 0 {
		return nil, fmt.Errorf("rag.chat requires at least one provider")
	}
	if len(cfg.RAG.Embed) == 0 {
		return nil, fmt.Errorf("rag.embed requires at least one provider")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 3
	}
	if cfg.RAG.MaxContextChars == 0 {
		cfg.RAG.MaxContextChars = 1200
	}
	if cfg.RAG.MaxCharsPerChunk == 0 {
		cfg.RAG.MaxCharsPerChunk = 1200
	}
	if cfg.RAG.EmbedTimeout == 0 {
		cfg.RAG.EmbedTimeout = 30
	}
	if cfg.RAG.ChatTimeout == 0 {
		cfg.RAG.ChatTimeout = 60
	}
	if cfg.RAG.StreamTimeout == 0 {
		cfg.RAG.StreamTimeout = 300
	}
	return &cfg, nil
}
