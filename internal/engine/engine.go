// Package engine provides HTTP clients for the external transcription and
// text-generation engines. Both are treated as remote calls with network
// failure modes; callers decide what a failure costs them.
package engine

import "context"

// TranscriptSegment is one timed piece of a transcription result, seconds
// relative to the submitted audio.
type TranscriptSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcription is the full result of transcribing one audio buffer.
// Segments may be empty when the engine returns no per-segment timing.
type Transcription struct {
	Text     string              `json:"text"`
	Segments []TranscriptSegment `json:"segments"`
}

// Transcriber converts a WAV-encoded audio buffer to text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (*Transcription, error)
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
