package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

type summary struct {
	Description string   `json:"description"`
	UseCases    []string `json:"use_cases"`
}

func summaryHeuristic(text string) (summary, bool) {
	paras := Paragraphs(text)
	if len(paras) == 0 {
		return summary{}, false
	}
	return summary{Description: paras[0], UseCases: ListItems(text)}, true
}

func nonEmpty(s summary) bool { return s.Description != "" }

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}\n```":     `{"a":1}`,
		"```{\"a\":1}```":         `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
		"plain prose":             "plain prose",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripFences(in), in)
	}
}

func TestParseResponse_Structured(t *testing.T) {
	p, err := ParseResponse("```json\n{\"description\":\"Syncs contacts\",\"use_cases\":[\"CRM\"]}\n```", nonEmpty, summaryHeuristic)
	require.NoError(t, err)
	assert.True(t, p.Structured())
	assert.Equal(t, "Syncs contacts", p.Value.Description)
	assert.Equal(t, []string{"CRM"}, p.Value.UseCases)
}

func TestParseResponse_JSONInsideProse(t *testing.T) {
	p, err := ParseResponse("Sure! Here it is: {\"description\":\"Sends alerts\"} Hope this helps.", nonEmpty, summaryHeuristic)
	require.NoError(t, err)
	assert.Equal(t, models.QualityStructured, p.Quality)
	assert.Equal(t, "Sends alerts", p.Value.Description)
}

func TestParseResponse_ProseFallsBack(t *testing.T) {
	content := "This workflow copies new HubSpot contacts into a sheet.\n\nUse cases:\n- Lead tracking\n2. Reporting"
	p, err := ParseResponse(content, nonEmpty, summaryHeuristic)
	require.NoError(t, err)
	assert.Equal(t, models.QualityHeuristic, p.Quality)
	assert.Equal(t, "This workflow copies new HubSpot contacts into a sheet.", p.Value.Description)
	assert.Equal(t, []string{"Lead tracking", "Reporting"}, p.Value.UseCases)
}

func TestParseResponse_InvalidStructuredFallsBack(t *testing.T) {
	p, err := ParseResponse(`{"description":""}`, nonEmpty, summaryHeuristic)
	require.NoError(t, err)
	assert.Equal(t, models.QualityHeuristic, p.Quality)
	assert.NotEmpty(t, p.Value.Description)
}

func TestParseResponse_Empty(t *testing.T) {
	_, err := ParseResponse("   ", nonEmpty, summaryHeuristic)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 60))
	got := Truncate(strings.Repeat("word ", 30), 60)
	assert.LessOrEqual(t, len(got), 60)
	assert.False(t, strings.HasSuffix(got, " "))
}

func TestChatClient_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","model":"m","choices":[{"index":0,"message":{"role":"assistant","content":"  hello  "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewChatClient(ChatConfig{BaseURL: srv.URL + "/v1", APIKey: "key", Model: "m", Temperature: 0.5, Timeout: time.Second})
	out, err := c.Complete(context.Background(), "system", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, "m", got["model"])
	assert.Len(t, got["messages"], 2)
}

func TestChatClient_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":{"message":"upstream down"}}`))
	}))
	defer srv.Close()

	c := NewChatClient(ChatConfig{BaseURL: srv.URL, APIKey: "key", Model: "m", Timeout: time.Second})
	_, err := c.Complete(context.Background(), "system", "prompt")
	assert.Error(t, err)
}

func TestEmbedders_ResponseShapes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","model":"m","data":[{"object":"embedding","index":0,"embedding":[0.5,0.25]}]}`))
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "nomic", body["model"])
		assert.Equal(t, "hello", body["input"])
		w.Write([]byte(`{"model":"nomic","embeddings":[[1,0.5,0]]}`))
	})
	mux.HandleFunc("/custom/vec", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"vectors":[{"values":[0.1,0.2,0.3]}]}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tests := []struct {
		name string
		cfg  EmbeddingConfig
		want []float32
	}{
		{"openai", EmbeddingConfig{Flavor: FlavorOpenAI, BaseURL: srv.URL + "/v1", APIKey: "k", Model: "m"}, []float32{0.5, 0.25}},
		{"ollama", EmbeddingConfig{Flavor: FlavorOllama, BaseURL: srv.URL, Model: "nomic"}, []float32{1, 0.5, 0}},
		{"custom", EmbeddingConfig{Flavor: FlavorCustom, BaseURL: srv.URL, Path: "/custom/vec", Model: "x", ResponsePath: ".result.vectors[0].values"}, []float32{0.1, 0.2, 0.3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEmbedder(tt.cfg)
			require.NoError(t, err)
			vec, err := e.Embed(context.Background(), "hello")
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, vec, 1e-6)
		})
	}
}

func TestNewEmbedder_Errors(t *testing.T) {
	_, err := NewEmbedder(EmbeddingConfig{Flavor: "nope"})
	assert.Error(t, err)

	_, err = NewEmbedder(EmbeddingConfig{Flavor: FlavorCustom, ResponsePath: ".a[["})
	assert.Error(t, err)
}

func TestHTTPEmbedder_BadShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embeddings":[]}`))
	}))
	defer srv.Close()

	e, err := NewEmbedder(EmbeddingConfig{Flavor: FlavorOllama, BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestHTTPEmbedder_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e, err := NewEmbedder(EmbeddingConfig{Flavor: FlavorOllama, BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
