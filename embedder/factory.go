package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted by the factory.
const (
	EnvProvider     = "GORETRIEVE_EMBEDDING_PROVIDER"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvJinaAPIKey   = "JINA_API_KEY"
)

// Config holds explicit embedder configuration.
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	BaseURL   string
	CacheSize int
}

// New creates an embedder from explicit configuration.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	var opts []HTTPOption
	if cache != nil {
		opts = append(opts, WithCache(cache))
	}
	if cfg.Model != "" {
		opts = append(opts, WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		return NewOpenAI(cfg.APIKey, opts...)
	case ProviderJina:
		return NewJina(cfg.APIKey, opts...)
	case ProviderLocal:
		return NewLocal(cache), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNoProvider, cfg.Provider)
	}
}

// NewFromEnv creates an embedder from the environment. Priority:
//
//  1. GORETRIEVE_EMBEDDING_PROVIDER selects explicitly (openai, jina, local)
//  2. OPENAI_API_KEY / JINA_API_KEY are auto-detected
//  3. Fallback is the offline local provider
func NewFromEnv() (Embedder, error) {
	cache := NewCache(DefaultCacheSize)

	if provider := strings.ToLower(os.Getenv(EnvProvider)); provider != "" {
		switch provider {
		case ProviderOpenAI:
			return NewOpenAI(os.Getenv(EnvOpenAIAPIKey), WithCache(cache))
		case ProviderJina:
			return NewJina(os.Getenv(EnvJinaAPIKey), WithCache(cache))
		case ProviderLocal:
			return NewLocal(cache), nil
		default:
			return nil, fmt.Errorf("%w: unknown provider %q", ErrNoProvider, provider)
		}
	}

	if key := os.Getenv(EnvOpenAIAPIKey); key != "" {
		return NewOpenAI(key, WithCache(cache))
	}
	if key := os.Getenv(EnvJinaAPIKey); key != "" {
		return NewJina(key, WithCache(cache))
	}
	return NewLocal(cache), nil
}
