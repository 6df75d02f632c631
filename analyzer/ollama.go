package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaURL is where a local Ollama server listens by default.
const DefaultOllamaURL = "http://localhost:11434"

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type ollamaClient struct {
	client   *api.Client
	model    string
	jsonMode bool
}

// NewOllama creates a Generator backed by the Ollama generate API. When
// jsonMode is set the server is asked to constrain output to JSON.
func NewOllama(client *http.Client, baseURL, model string, jsonMode bool) (Generator, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing Ollama URL %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid Ollama URL %q", baseURL)
	}
	return &ollamaClient{
		client:   api.NewClient(base, client),
		model:    model,
		jsonMode: jsonMode,
	}, nil
}

func (o *ollamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: &stream,
	}
	if o.jsonMode {
		req.Format = json.RawMessage(`"json"`)
	}

	// Chunks are concatenated in case the server streams anyway.
	var sb strings.Builder
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("calling Ollama: %w", err)
	}
	return sb.String(), nil
}
