package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider names and defaults. Both hosted providers speak the same
// request/response shape, so they share one HTTP implementation.
const (
	ProviderOpenAI = "openai"
	ProviderJina   = "jina"

	OpenAIBaseURL = "https://api.openai.com/v1/embeddings"
	JinaBaseURL   = "https://api.jina.ai/v1/embeddings"

	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultJinaModel   = "jina-embeddings-v3"

	OpenAIDimension = 1536
	JinaDimension   = 1024
)

// HTTPProvider embeds text through an OpenAI-compatible embeddings
// endpoint with exponential-backoff retries and an optional LRU cache.
type HTTPProvider struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	dim     int
	client  *http.Client
	cache   *Cache
	retry   retryPolicy
}

// HTTPOption configures an HTTPProvider.
type HTTPOption func(*HTTPProvider)

// WithModel overrides the provider's default model.
func WithModel(model string) HTTPOption {
	return func(p *HTTPProvider) { p.model = model }
}

// WithBaseURL points the provider at a different endpoint, e.g. a
// self-hosted OpenAI-compatible server.
func WithBaseURL(url string) HTTPOption {
	return func(p *HTTPProvider) { p.baseURL = url }
}

// WithCache attaches an embedding cache.
func WithCache(cache *Cache) HTTPOption {
	return func(p *HTTPProvider) { p.cache = cache }
}

// WithHTTPClient overrides the default 30s-timeout client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(p *HTTPProvider) { p.client = client }
}

// NewOpenAI creates an embedder backed by the OpenAI embeddings API.
func NewOpenAI(apiKey string, opts ...HTTPOption) (*HTTPProvider, error) {
	return newHTTPProvider(ProviderOpenAI, OpenAIBaseURL, DefaultOpenAIModel, OpenAIDimension, apiKey, opts...)
}

// NewJina creates an embedder backed by the Jina AI embeddings API.
func NewJina(apiKey string, opts ...HTTPOption) (*HTTPProvider, error) {
	return newHTTPProvider(ProviderJina, JinaBaseURL, DefaultJinaModel, JinaDimension, apiKey, opts...)
}

func newHTTPProvider(name, baseURL, model string, dim int, apiKey string, opts ...HTTPOption) (*HTTPProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s API key not set", ErrNoProvider, name)
	}
	p := &HTTPProvider{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		dim:     dim,
		client:  &http.Client{Timeout: 30 * time.Second},
		retry:   defaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Embed generates a single embedding, consulting the cache first.
func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	hash := hashText(text)
	if p.cache != nil {
		if vec, ok := p.cache.Get(hash); ok {
			return vec, nil
		}
	}

	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for up to MaxBatchSize texts in one
// API call, retrying transient failures with exponential backoff.
func (p *HTTPProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}

	vectors, err := withRetry(ctx, p.retry, func() ([][]float32, error) {
		return p.callAPI(ctx, texts)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}

	if p.cache != nil {
		for i, vec := range vectors {
			p.cache.Set(hashText(texts[i]), vec)
		}
	}
	return vectors, nil
}

// callAPI performs one embeddings request.
func (p *HTTPProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]any{
		"input": texts,
		"model": p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(msg))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Data))
	}

	vectors := make([][]float32, len(apiResp.Data))
	for _, d := range apiResp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func (p *HTTPProvider) Dimension() int {
	return p.dim
}

func (p *HTTPProvider) Provider() string {
	return p.name
}

func (p *HTTPProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
