package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/goretrieve/types"
)

// RetrievalConfig holds the process-wide retrieval defaults applied to
// requests that carry no explicit configuration.
type RetrievalConfig struct {
	VectorWeight  float64 `yaml:"vector_weight"`
	BM25Weight    float64 `yaml:"bm25_weight"`
	TopK          int     `yaml:"top_k"`
	Normalization string  `yaml:"normalization"`
	Mode          string  `yaml:"mode"`
	AllowDegraded bool    `yaml:"allow_degraded"`
}

// Duration wraps time.Duration so YAML values can be written either as
// duration strings ("30m", "1h30m") or as bare seconds (1800).
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var secs int64
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("%w: invalid duration %q", types.ErrInvalidConfig, value.Value)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: invalid duration %q", types.ErrInvalidConfig, s)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// CacheConfig configures the optional query cache wrapper.
type CacheConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Capacity int      `yaml:"capacity"`
	TTL      Duration `yaml:"ttl"`
}

// EmbedderConfig selects and configures the embedding provider. The
// API key is read from the environment variable named by APIKeyEnv,
// never from the file itself.
type EmbedderConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	CacheSize int    `yaml:"cache_size"`
}

// StorageConfig selects the index backend.
type StorageConfig struct {
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Storage   StorageConfig   `yaml:"storage"`
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	return &AppConfig{
		Retrieval: RetrievalConfig{
			VectorWeight:  0.6,
			BM25Weight:    0.4,
			TopK:          10,
			Normalization: string(types.NormMinMax),
			Mode:          string(types.SearchModeHybrid),
		},
		Cache: CacheConfig{
			Capacity: 1000,
			TTL:      Duration(time.Hour),
		},
		Embedder: EmbedderConfig{
			Provider:  "local",
			CacheSize: 10000,
		},
		Storage: StorageConfig{
			SQLitePath: "goretrieve.db",
		},
	}
}

// Load reads a config from path. A missing file returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the loaded configuration is usable.
func (c *AppConfig) Validate() error {
	if _, err := c.RetrievalDefaults(); err != nil {
		return err
	}
	if c.Cache.Enabled && c.Cache.Capacity <= 0 {
		return fmt.Errorf("%w: cache capacity must be > 0", types.ErrInvalidConfig)
	}
	return nil
}

// RetrievalDefaults converts the file representation into a validated
// types.Config.
func (c *AppConfig) RetrievalDefaults() (types.Config, error) {
	cfg := types.Config{
		VectorWeight:  c.Retrieval.VectorWeight,
		BM25Weight:    c.Retrieval.BM25Weight,
		TopK:          c.Retrieval.TopK,
		Normalization: types.Normalization(c.Retrieval.Normalization),
		Mode:          types.SearchMode(c.Retrieval.Mode),
		AllowDegraded: c.Retrieval.AllowDegraded,
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// EmbedderAPIKey resolves the provider API key from the environment.
func (c *AppConfig) EmbedderAPIKey() string {
	if c.Embedder.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Embedder.APIKeyEnv)
}
