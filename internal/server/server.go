// Package server exposes the pipeline over HTTP: video generation
// endpoints, article review, ingestion, and a read-only static route for
// the produced MP4s.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"newsreel/internal/compose"
	"newsreel/internal/frames"
	"newsreel/internal/segmenter"
	"newsreel/internal/store"
	"newsreel/internal/types"
	"newsreel/internal/videogen"
)

// Generator is the video generation surface the handlers depend on.
type Generator interface {
	Generate(ctx context.Context, req videogen.VideoRequest) (*videogen.Result, error)
	GenerateCompilation(ctx context.Context, req videogen.CompilationRequest) (*videogen.Result, error)
}

// Ingester triggers a source ingest run.
type Ingester interface {
	Ingest(ctx context.Context) (int, error)
}

// Publisher uploads a finished video to an external platform.
type Publisher interface {
	Upload(ctx context.Context, videoPath, title, description string) (string, error)
}

// Server wires the HTTP boundary.
type Server struct {
	generator  Generator
	store      *store.Store
	ingester   Ingester
	publisher  Publisher
	videosDir  string
	port       int
	logger     *slog.Logger
	httpServer *http.Server
}

func New(gen Generator, st *store.Store, ing Ingester, pub Publisher, videosDir string, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		generator: gen,
		store:     st,
		ingester:  ing,
		publisher: pub,
		videosDir: videosDir,
		port:      port,
		logger:    logger,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/videos", s.handleGenerate)
	mux.HandleFunc("/api/videos/compilation", s.handleCompilation)
	mux.HandleFunc("/api/articles", s.handleArticles)
	mux.HandleFunc("/api/articles/status", s.handleSetStatus)
	mux.HandleFunc("/api/ingest", s.handleIngest)
	mux.HandleFunc("/api/publish", s.handlePublish)
	mux.HandleFunc("/videos/", s.handleServeVideo)
	mux.HandleFunc("/health", s.handleHealth)
	return s.loggingMiddleware(mux)
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}

	go func() {
		s.logger.Info("starting HTTP server", "port", s.port)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req videogen.VideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	res, err := s.generator.Generate(r.Context(), req)
	if err != nil {
		s.writeGenerateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type compilationBody struct {
	ArticleIDs       []string `json:"articleIds"`
	CompilationTitle string   `json:"compilationTitle"`
	Hook             string   `json:"hook"`
	ThumbnailText    string   `json:"thumbnailText"`
}

func (s *Server) handleCompilation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body compilationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.ArticleIDs) == 0 {
		writeError(w, http.StatusBadRequest, "articleIds is required")
		return
	}

	articles := make([]types.Article, 0, len(body.ArticleIDs))
	for _, id := range body.ArticleIDs {
		art, err := s.store.GetArticle(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, err.Error())
			} else {
				writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}
		articles = append(articles, *art)
	}

	res, err := s.generator.GenerateCompilation(r.Context(), videogen.CompilationRequest{
		Articles:         articles,
		CompilationTitle: body.CompilationTitle,
		Hook:             body.Hook,
		ThumbnailText:    body.ThumbnailText,
	})
	if err != nil {
		s.writeGenerateError(w, err)
		return
	}

	// Flag the originating articles so the review dashboard stops offering
	// them for another compilation.
	for _, id := range body.ArticleIDs {
		if err := s.store.SetStatus(r.Context(), id, types.StatusRendered); err != nil {
			s.logger.Warn("flag rendered failed", "article", id, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	articles, err := s.store.ListArticles(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if articles == nil {
		articles = []types.Article{}
	}
	writeJSON(w, http.StatusOK, articles)
}

type statusBody struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body statusBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	switch body.Status {
	case types.StatusPending, types.StatusApproved, types.StatusRejected, types.StatusRendered:
	default:
		writeError(w, http.StatusBadRequest, "unknown status "+body.Status)
		return
	}

	if err := s.store.SetStatus(r.Context(), body.ID, body.Status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": body.ID, "status": body.Status})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.ingester == nil {
		writeError(w, http.StatusServiceUnavailable, "no sources configured")
		return
	}

	saved, err := s.ingester.Ingest(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"saved": saved})
}

type publishBody struct {
	VideoName   string `json:"videoName"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "publishing disabled")
		return
	}

	var body publishBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	name := body.VideoName
	if name == "" || name != filepath.Base(name) || filepath.Ext(name) != ".mp4" {
		writeError(w, http.StatusBadRequest, "videoName must be a bare .mp4 file name")
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	url, err := s.publisher.Upload(r.Context(), filepath.Join(s.videosDir, name), body.Title, body.Description)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// handleServeVideo serves finished videos read-only. Only bare .mp4 file
// names are accepted; anything path-like is rejected before it can reach
// the filesystem.
func (s *Server) handleServeVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/videos/")
	if name == "" || name != filepath.Base(name) || filepath.Ext(name) != ".mp4" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	http.ServeFile(w, r, filepath.Join(s.videosDir, name))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeGenerateError maps pipeline failures to status codes, preserving
// the backend diagnostic in the message.
func (s *Server) writeGenerateError(w http.ResponseWriter, err error) {
	var renderErr *frames.RenderError
	var compErr *compose.CompositionError

	switch {
	case errors.Is(err, segmenter.ErrNoSegments):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &renderErr), errors.As(err, &compErr):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start).Round(time.Millisecond))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
