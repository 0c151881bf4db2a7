// Package server provides HTTP and WebSocket handlers
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	apperrors "github.com/murmurhq/murmur/internal/errors"
	"github.com/murmurhq/murmur/internal/recorder"
	"github.com/murmurhq/murmur/internal/store"
	"github.com/murmurhq/murmur/internal/trace"
)

// Recorder is the recording lifecycle surface exposed over HTTP.
type Recorder interface {
	Start(ctx context.Context) error
	Pause() error
	Resume() error
	Stop() error
	Status() recorder.State
}

// SummaryReader serves the summaries listing endpoint.
type SummaryReader interface {
	RecentSummaries(ctx context.Context, n int) ([]store.Summary, error)
}

type statusResponse struct {
	State string `json:"state"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type summaryResponse struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Text        string    `json:"text"`
	SourceCount int       `json:"source_count"`
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	rec       Recorder
	summaries SummaryReader

	// baseCtx outlives individual requests; a recording started over HTTP
	// keeps capturing after the request returns.
	baseCtx context.Context

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// New creates a server and starts broadcasting transcript events to
// connected WebSocket clients.
func New(ctx context.Context, rec Recorder, summaries SummaryReader, events <-chan recorder.Event) *Server {
	s := &Server{
		rec:       rec,
		summaries: summaries,
		baseCtx:   ctx,
		conns:     make(map[*websocket.Conn]struct{}),
	}

	go s.broadcastEvents(events)

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("POST /api/recording/start", s.handleRecordingStart)
	mux.HandleFunc("POST /api/recording/pause", s.handleRecordingPause)
	mux.HandleFunc("POST /api/recording/resume", s.handleRecordingResume)
	mux.HandleFunc("POST /api/recording/stop", s.handleRecordingStop)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/summaries", s.handleSummaries)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	log := trace.Logger(r.Context())
	log.Info("websocket connected", "remote", r.RemoteAddr)

	// Broadcast-only: drain client messages until the connection closes.
	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			log.Debug("websocket closed", "error", err)
			return
		}
	}
}

func (s *Server) broadcastEvents(events <-chan recorder.Event) {
	for evt := range events {
		s.mu.RLock()
		for conn := range s.conns {
			go func(c *websocket.Conn) {
				_ = wsjson.Write(context.Background(), c, evt)
			}(conn)
		}
		s.mu.RUnlock()
	}
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	if err := s.rec.Start(s.baseCtx); err != nil {
		writeError(w, r, err)
		return
	}
	writeStatus(w, s.rec.Status())
}

func (s *Server) handleRecordingPause(w http.ResponseWriter, r *http.Request) {
	if err := s.rec.Pause(); err != nil {
		writeError(w, r, err)
		return
	}
	writeStatus(w, s.rec.Status())
}

func (s *Server) handleRecordingResume(w http.ResponseWriter, r *http.Request) {
	if err := s.rec.Resume(); err != nil {
		writeError(w, r, err)
		return
	}
	writeStatus(w, s.rec.Status())
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	if err := s.rec.Stop(); err != nil {
		writeError(w, r, err)
		return
	}
	writeStatus(w, s.rec.Status())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, s.rec.Status())
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	limit := SummariesDefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > SummariesMaxLimit {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Code:    apperrors.ConfigInvalid.String(),
				Message: "limit must be between 1 and " + strconv.Itoa(SummariesMaxLimit),
			})
			return
		}
		limit = n
	}

	summaries, err := s.summaries.RecentSummaries(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]summaryResponse, 0, len(summaries))
	for _, sm := range summaries {
		out = append(out, summaryResponse{
			ID:          sm.ID,
			CreatedAt:   sm.CreatedAt,
			WindowStart: sm.WindowStart,
			WindowEnd:   sm.WindowEnd,
			Text:        sm.Text,
			SourceCount: sm.SourceCount,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeStatus(w http.ResponseWriter, state recorder.State) {
	writeJSON(w, http.StatusOK, statusResponse{State: state.String()})
}

// writeError maps pipeline errors to HTTP status codes: invalid lifecycle
// transitions are client errors, everything else is on us.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if isLifecycleError(err) {
		status = http.StatusConflict
	}

	trace.Logger(r.Context()).Warn("request failed", "path", r.URL.Path, "status", status, "error", err)
	writeJSON(w, status, errorResponse{
		Code:    apperrors.CodeOf(err).String(),
		Message: err.Error(),
	})
}

func isLifecycleError(err error) bool {
	return errors.Is(err, recorder.ErrAlreadyActive) ||
		errors.Is(err, recorder.ErrNotRecording) ||
		errors.Is(err, recorder.ErrNotPaused) ||
		errors.Is(err, recorder.ErrNotActive)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
