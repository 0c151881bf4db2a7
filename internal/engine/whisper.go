package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/murmurhq/murmur/internal/errors"
)

const (
	defaultWhisperTimeout = 2 * time.Minute
	whisperInferencePath  = "/inference"
)

// WhisperClient talks to a whisper-server HTTP endpoint.
type WhisperClient struct {
	baseURL    string
	httpClient *http.Client
}

// WhisperOption configures a WhisperClient.
type WhisperOption func(*WhisperClient)

// WithWhisperHTTPClient sets the HTTP client used for inference calls.
func WithWhisperHTTPClient(client *http.Client) WhisperOption {
	return func(c *WhisperClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewWhisperClient creates a client for the given whisper-server base URL.
func NewWhisperClient(baseURL string, opts ...WhisperOption) *WhisperClient {
	c := &WhisperClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultWhisperTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// whisperResponse mirrors the verbose-json response of whisper-server.
type whisperResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
	Error string `json:"error"`
}

// Transcribe uploads a WAV buffer and returns the transcription.
// The call is synchronous and may take seconds.
func (c *WhisperClient) Transcribe(ctx context.Context, wav []byte) (*Transcription, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.EngineFailed, "build multipart request")
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, apperrors.Wrap(err, apperrors.EngineFailed, "write audio payload")
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return nil, apperrors.Wrap(err, apperrors.EngineFailed, "write form field")
	}
	if err := mw.Close(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.EngineFailed, "finalize multipart request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+whisperInferencePath, &body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.EngineFailed, "build request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err, "transcription engine")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.EngineFailed, "read transcription response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Newf(apperrors.EngineFailed, "transcription engine returned %d: %s", resp.StatusCode, truncate(payload, 200))
	}

	var wr whisperResponse
	if err := json.Unmarshal(payload, &wr); err != nil {
		return nil, apperrors.Wrap(err, apperrors.EngineFailed, "decode transcription response")
	}
	if wr.Error != "" {
		return nil, apperrors.Newf(apperrors.EngineFailed, "transcription engine error: %s", wr.Error)
	}

	tr := &Transcription{Text: wr.Text}
	for _, s := range wr.Segments {
		tr.Segments = append(tr.Segments, TranscriptSegment{Text: s.Text, Start: s.Start, End: s.End})
	}
	return tr, nil
}

// classifyTransportError maps transport failures to the engine error taxonomy.
func classifyTransportError(err error, what string) error {
	if isTimeout(err) {
		return apperrors.Wrapf(err, apperrors.EngineTimeout, "%s timed out", what)
	}
	return apperrors.Wrapf(err, apperrors.EngineUnavailable, "%s unreachable", what)
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	for e := err; e != nil; {
		if t, ok := e.(timeout); ok && t.Timeout() {
			return true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		e = u.Unwrap()
	}
	return false
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

var _ Transcriber = (*WhisperClient)(nil)
