package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/murmurhq/murmur/internal/errors"
)

func TestOllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s, want /api/generate", r.URL.Path)
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "llama3.2" {
			t.Errorf("model = %q", req.Model)
		}
		if req.Stream {
			t.Error("stream must be false")
		}
		if req.Prompt == "" {
			t.Error("prompt missing")
		}

		json.NewEncoder(w).Encode(generateResponse{Response: "A short meeting recap.", Done: true})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "llama3.2")
	out, err := client.Generate(context.Background(), "summarize this")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "A short meeting recap." {
		t.Errorf("response = %q", out)
	}
}

func TestOllamaGenerateModelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Error: "model not found"})
	}))
	defer srv.Close()

	client := NewOllamaClient(srv.URL, "missing-model")
	_, err := client.Generate(context.Background(), "summarize this")
	if err == nil {
		t.Fatal("expected error from engine error field")
	}
	if !apperrors.IsCode(err, apperrors.EngineFailed) {
		t.Errorf("code = %v, want EngineFailed", apperrors.CodeOf(err))
	}
}

func TestOllamaGenerateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewOllamaClient(url, "llama3.2")
	_, err := client.Generate(context.Background(), "summarize this")
	if !apperrors.IsCode(err, apperrors.EngineUnavailable) {
		t.Errorf("code = %v, want EngineUnavailable", apperrors.CodeOf(err))
	}
}
