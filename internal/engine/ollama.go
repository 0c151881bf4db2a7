package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/murmurhq/murmur/internal/errors"
)

const (
	defaultOllamaTimeout = 3 * time.Minute
	ollamaGeneratePath   = "/api/generate"
)

// OllamaClient talks to a local Ollama server for text generation.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// OllamaOption configures an OllamaClient.
type OllamaOption func(*OllamaClient)

// WithOllamaHTTPClient sets the HTTP client used for generation calls.
func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(c *OllamaClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewOllamaClient creates a client for the given Ollama base URL and model.
func NewOllamaClient(baseURL, model string, opts ...OllamaOption) *OllamaClient {
	c := &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: defaultOllamaTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Generate runs a single non-streaming completion and returns the response text.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{Model: c.model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.EngineFailed, "encode generation request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ollamaGeneratePath, bytes.NewReader(payload))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.EngineFailed, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(err, "generation engine")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.EngineFailed, "read generation response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.Newf(apperrors.EngineFailed, "generation engine returned %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return "", apperrors.Wrap(err, apperrors.EngineFailed, "decode generation response")
	}
	if gr.Error != "" {
		return "", apperrors.Newf(apperrors.EngineFailed, "generation engine error: %s", gr.Error)
	}

	return gr.Response, nil
}

var _ Generator = (*OllamaClient)(nil)
