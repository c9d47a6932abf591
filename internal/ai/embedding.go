package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/itchyny/gojq"
	"github.com/sashabaranov/go-openai"

	"github.com/1weso1/aw-nexus-folio-sub001/internal/metrics"
)

// Embedding service flavors.
const (
	FlavorOpenAI = "openai"
	FlavorOllama = "ollama"
	FlavorCustom = "custom"
)

const maxEmbeddingResponseBytes = 16 << 20

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// EmbeddingConfig configures NewEmbedder.
type EmbeddingConfig struct {
	Flavor  string
	BaseURL string
	APIKey  string
	Model   string
	// Path is the endpoint path of the custom flavor.
	Path string
	// ResponsePath is a jq expression selecting the vector from the custom
	// flavor's response.
	ResponsePath string
	Timeout      time.Duration
}

// NewEmbedder returns the adapter for cfg.Flavor. Search and enrichment only
// see the Embedder interface, so the response shape stays local to the
// adapter.
func NewEmbedder(cfg EmbeddingConfig) (Embedder, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	switch cfg.Flavor {
	case FlavorOpenAI, "":
		return NewOpenAIEmbedder(cfg), nil
	case FlavorOllama:
		return NewHTTPEmbedder(cfg.BaseURL+"/api/embed", cfg.APIKey, cfg.Model, ".embeddings[0]", cfg.Timeout)
	case FlavorCustom:
		return NewHTTPEmbedder(cfg.BaseURL+cfg.Path, cfg.APIKey, cfg.Model, cfg.ResponsePath, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown embedding flavor %q", cfg.Flavor)
	}
}

// OpenAIEmbedder calls the /embeddings endpoint and reads data[0].embedding.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedder creates an OpenAIEmbedder.
func NewOpenAIEmbedder(cfg EmbeddingConfig) *OpenAIEmbedder {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}
}

// Model returns the embedding model name.
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// Embed returns the embedding of text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	metrics.AIRequestDuration.WithLabelValues("embedding").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp.Data[0].Embedding, nil
}

// HTTPEmbedder posts {model, input} to an endpoint and extracts the vector
// from the response with a jq expression.
type HTTPEmbedder struct {
	url    string
	apiKey string
	model  string
	query  *gojq.Code
	client *http.Client
}

// NewHTTPEmbedder creates an HTTPEmbedder. The jq expression is compiled up
// front so a bad response_path fails at startup.
func NewHTTPEmbedder(url, apiKey, model, responsePath string, timeout time.Duration) (*HTTPEmbedder, error) {
	parsed, err := gojq.Parse(responsePath)
	if err != nil {
		return nil, fmt.Errorf("invalid response path %q: %w", responsePath, err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to compile response path %q: %w", responsePath, err)
	}
	return &HTTPEmbedder{
		url:    url,
		apiKey: apiKey,
		model:  model,
		query:  code,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Model returns the embedding model name.
func (e *HTTPEmbedder) Model() string {
	return e.model
}

// Embed returns the embedding of text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	requestBody, err := json.Marshal(map[string]string{"model": e.model, "input": text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	metrics.AIRequestDuration.WithLabelValues("embedding").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("failed to get embedding: status code %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var payload any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxEmbeddingResponseBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	return e.extract(payload)
}

func (e *HTTPEmbedder) extract(payload any) ([]float32, error) {
	iter := e.query.Run(payload)
	v, ok := iter.Next()
	if !ok || v == nil {
		return nil, ErrEmptyResponse
	}
	if err, isErr := v.(error); isErr {
		return nil, fmt.Errorf("response path failed: %w", err)
	}
	return toVector(v)
}

func toVector(v any) ([]float32, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("response path selected %T, want an array of numbers", v)
	}
	if len(items) == 0 {
		return nil, ErrEmptyResponse
	}
	vec := make([]float32, len(items))
	for i, item := range items {
		switch n := item.(type) {
		case float64:
			vec[i] = float32(n)
		case int:
			vec[i] = float32(n)
		default:
			return nil, fmt.Errorf("element %d is %T, want a number", i, item)
		}
	}
	return vec, nil
}
