// Package server exposes the store over a local HTTP surface: a media
// byte-serving endpoint for the UI plus thin JSON routes over the
// operation surface. No logic lives here, it is plumbing around the
// store.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/mediastash/mediastash/internal/config"
	"github.com/mediastash/mediastash/internal/parser"
	"github.com/mediastash/mediastash/internal/store"
)

// Server routes HTTP requests to the store.
type Server struct {
	store  *store.Store
	log    zerolog.Logger
	router chi.Router
}

// New builds the route table.
func New(log zerolog.Logger, st *store.Store) *Server {
	s := &Server{store: st, log: log}

	r := chi.NewRouter()
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/conversations", s.handleConversations)
	r.Get("/api/senders", s.handleSenders)
	r.Get("/api/media", s.handleMedia)
	r.Get("/api/media/{id}/context", s.handleContext)
	r.Get("/api/timeline", s.handleTimeline)
	r.Get("/api/sources", s.handleSources)
	r.Get("/api/storage", s.handleStorage)
	r.Get("/api/detect", s.handleDetect)
	r.Get("/media/*", s.handleMediaFile)
	s.router = r

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.store.Status(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := s.store.Conversations(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, conversations)
}

func (s *Server) handleSenders(w http.ResponseWriter, r *http.Request) {
	senders, err := s.store.Senders(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, senders)
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := store.MediaFilters{
		ConversationID: queryInt(q, "conversation_id"),
		SenderID:       queryInt(q, "sender_id"),
		FileType:       q.Get("file_type"),
		Month:          q.Get("month"),
		Search:         q.Get("search"),
		Sort:           q.Get("sort"),
		Limit:          queryInt(q, "limit"),
		Offset:         queryInt(q, "offset"),
	}

	items, err := s.store.Media(r.Context(), filters)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	context, err := s.store.Context(r.Context(), id)
	if errors.Is(err, store.ErrMediaNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, context)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	timeline, err := s.store.Timeline(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, timeline)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.store.Sources(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sources)
}

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.Storage()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("path is required"))
		return
	}
	format, err := parser.Detect(path)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"format": string(format)})
}

// handleMediaFile streams the bytes of a local media file. The rest of
// the URL path is a percent-encoded absolute filesystem path.
func (s *Server) handleMediaFile(w http.ResponseWriter, r *http.Request) {
	encoded := strings.TrimPrefix(r.URL.EscapedPath(), "/media/")
	decoded, err := url.PathUnescape(encoded)
	if err != nil {
		http.Error(w, "bad path", http.StatusBadRequest)
		return
	}

	if _, err := os.Stat(decoded); err != nil {
		http.NotFound(w, r)
		return
	}

	data, err := os.ReadFile(decoded)
	if err != nil {
		http.Error(w, "read error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", guessMIME(decoded))
	w.Write(data)
}

// guessMIME maps a file extension to a best-effort content type.
func guessMIME(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	}
	return "application/octet-stream"
}

// ListenAndServe runs the server on the configured address.
func ListenAndServe(log zerolog.Logger, st *store.Store, cfg config.ServeConfig) error {
	srv := New(log, st)
	log.Info().Str("addr", cfg.Addr).Msg("Serving local API")
	return http.ListenAndServe(cfg.Addr, srv)
}

func queryInt(q url.Values, key string) int64 {
	v, err := strconv.ParseInt(q.Get(key), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
