// Package server provides HTTP and WebSocket handlers
package server

// Server configuration constants
const (
	// Summaries listing bounds
	SummariesDefaultLimit = 10
	SummariesMaxLimit     = 100
)
