package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOllama(t *testing.T, srv *httptest.Server, baseURL, model string, jsonMode bool) Generator {
	t.Helper()
	g, err := NewOllama(srv.Client(), baseURL, model, jsonMode)
	require.NoError(t, err)
	return g
}

func TestGenerate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req api.GenerateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "deepseek-r1:1.5b", req.Model)
		assert.Equal(t, "hello", req.Prompt)
		if assert.NotNil(t, req.Stream) {
			assert.False(t, *req.Stream)
		}
		assert.JSONEq(t, `"json"`, string(req.Format))

		w.Write([]byte(`{"model":"deepseek-r1:1.5b","response":"{\"explanation\":\"hi\"}","done":true}`))
	}))
	defer srv.Close()

	g := newTestOllama(t, srv, srv.URL+"/", "deepseek-r1:1.5b", true)
	got, err := g.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"explanation":"hi"}`, got)
}

func TestGenerate_JoinsStreamedChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{\"response\":\"{\\\"a\\\":\",\"done\":false}\n{\"response\":\"1}\",\"done\":true}\n"))
	}))
	defer srv.Close()

	g := newTestOllama(t, srv, srv.URL, "m", true)
	got, err := g.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, got)
}

func TestGenerate_NoJSONModeOmitsFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		json.NewDecoder(r.Body).Decode(&raw)
		assert.NotContains(t, raw, "format")
		w.Write([]byte(`{"response":"ok","done":true}`))
	}))
	defer srv.Close()

	g := newTestOllama(t, srv, srv.URL, "m", false)
	_, err := g.Generate(context.Background(), "p")
	assert.NoError(t, err)
}

func TestGenerate_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'nope' not found"}`))
	}))
	defer srv.Close()

	g := newTestOllama(t, srv, srv.URL, "nope", true)
	_, err := g.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestGenerate_InvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	g := newTestOllama(t, srv, srv.URL, "m", true)
	_, err := g.Generate(context.Background(), "p")
	assert.Error(t, err)
}

func TestGenerate_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"ok"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := newTestOllama(t, srv, srv.URL, "m", true)
	_, err := g.Generate(ctx, "p")
	assert.Error(t, err)
}

func TestNewOllama_URLs(t *testing.T) {
	_, err := NewOllama(nil, "", "m", true)
	assert.NoError(t, err, "empty URL falls back to the default")

	for _, u := range []string{"localhost:11434", "://bad"} {
		_, err := NewOllama(nil, u, "m", true)
		assert.Error(t, err, "url %q", u)
	}
}
