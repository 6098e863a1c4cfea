package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AppInfo holds basic application information.
type AppInfo struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"` // e.g. "development", "production"
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address string `yaml:"address"` // e.g. ":8080"
}

// LoggerConfig configures the logger.
type LoggerConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}

// ConfluenceConfig configures the Confluence source adapter.
type ConfluenceConfig struct {
	BaseURL  string `yaml:"baseURL"`
	Username string `yaml:"username"`
	APIToken string `yaml:"apiToken"`
	Token    string `yaml:"token"` // bearer token, alternative to username+apiToken
	MaxPages int    `yaml:"maxPages"`
}

// GitHubConfig configures the GitHub source adapter.
type GitHubConfig struct {
	Token       string   `yaml:"token"`
	MaxItems    int      `yaml:"maxItems"`
	MaxFileSize int64    `yaml:"maxFileSize"` // bytes
	IgnoreGlobs []string `yaml:"ignoreGlobs"`
}

// DocumentConfig configures the document upload adapter.
type DocumentConfig struct {
	UploadDir string `yaml:"uploadDir"`
}

// SourcesConfig groups per-adapter configuration.
type SourcesConfig struct {
	Confluence ConfluenceConfig `yaml:"confluence"`
	GitHub     GitHubConfig     `yaml:"github"`
	Document   DocumentConfig   `yaml:"document"`
}

// ChunkingConfig configures the conditional chunker.
type ChunkingConfig struct {
	TokenLimit int `yaml:"tokenLimit"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "openai", "gemini", "ollama"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
	BaseURL  string `yaml:"baseURL"` // only used by ollama
	Dim      int    `yaml:"dim"`     // vector dimension of the model
}

// LLMConfig selects and configures the chat model provider.
type LLMConfig struct {
	Provider string `yaml:"provider"` // "openai", "gemini"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// VectorStoreConfig selects the vector store backend.
type VectorStoreConfig struct {
	Backend    string `yaml:"backend"` // "milvus" or "qdrant"
	Collection string `yaml:"collection"`
}

// MilvusConfig configures the Milvus connection.
type MilvusConfig struct {
	Address string `yaml:"address"`
}

// QdrantConfig configures the Qdrant connection.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"apiKey"`
	UseTLS bool   `yaml:"useTLS"`
}

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MongoConfig configures the MongoDB connection.
type MongoConfig struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// MinIOConfig configures the MinIO object store.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Secure    bool   `yaml:"secure"`
}

// KafkaConfig configures the Kafka event publisher.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// DatabaseConfigs groups all backing store configuration.
type DatabaseConfigs struct {
	Milvus  MilvusConfig `yaml:"milvus"`
	Qdrant  QdrantConfig `yaml:"qdrant"`
	Redis   RedisConfig  `yaml:"redis"`
	MongoDB MongoConfig  `yaml:"mongodb"`
	MinIO   MinIOConfig  `yaml:"minio"`
	Kafka   KafkaConfig  `yaml:"kafka"`
}

// RateLimiterConfig configures the HTTP rate limiting middleware.
type RateLimiterConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Rate     float64 `yaml:"rate"` // tokens per second
	Capacity int     `yaml:"capacity"`
}

// MiddlewareConfig groups middleware configuration.
type MiddlewareConfig struct {
	RateLimiter RateLimiterConfig `yaml:"rateLimiter"`
}

// RetrievalConfig configures the query side.
type RetrievalConfig struct {
	TopK int `yaml:"topK"`
}

// AppConfig is the root of the YAML configuration file.
type AppConfig struct {
	App         AppInfo           `yaml:"app"`
	Server      ServerConfig      `yaml:"server"`
	Logger      LoggerConfig      `yaml:"logger"`
	Sources     SourcesConfig     `yaml:"sources"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	LLM         LLMConfig         `yaml:"llm"`
	VectorStore VectorStoreConfig `yaml:"vectorStore"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Databases   DatabaseConfigs   `yaml:"databases"`
	Middleware  MiddlewareConfig  `yaml:"middleware"`
}

// LoadConfig reads and parses the YAML configuration file at path, applies
// defaults and validates required fields.
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Chunking.TokenLimit == 0 {
		c.Chunking.TokenLimit = 8000
	}
	if c.Sources.Confluence.MaxPages == 0 {
		c.Sources.Confluence.MaxPages = 50
	}
	if c.Sources.GitHub.MaxItems == 0 {
		c.Sources.GitHub.MaxItems = 200
	}
	if c.Sources.GitHub.MaxFileSize == 0 {
		c.Sources.GitHub.MaxFileSize = 100 * 1024
	}
	if c.Sources.Document.UploadDir == "" {
		c.Sources.Document.UploadDir = os.TempDir()
	}
	if c.VectorStore.Backend == "" {
		c.VectorStore.Backend = "qdrant"
	}
	if c.VectorStore.Collection == "" {
		c.VectorStore.Collection = "minerva_content"
	}
	if c.Embedding.Dim == 0 {
		c.Embedding.Dim = 1536
	}
	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = 5
	}

	// API keys fall back to the conventional environment variables so
	// secrets stay out of checked-in config files.
	if c.Embedding.APIKey == "" {
		switch c.Embedding.Provider {
		case "openai":
			c.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
		case "gemini":
			c.Embedding.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "openai":
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "gemini":
			c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
	if c.Sources.GitHub.Token == "" {
		c.Sources.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
}

func (c *AppConfig) validate() error {
	if c.Embedding.Provider == "" {
		return fmt.Errorf("embedding.provider is required")
	}
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}
	switch c.VectorStore.Backend {
	case "milvus", "qdrant":
	default:
		return fmt.Errorf("unsupported vectorStore.backend: %q", c.VectorStore.Backend)
	}
	return nil
}
