package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alevsk/gwbundle/internal/builder"
	"github.com/alevsk/gwbundle/internal/export"
	"github.com/alevsk/gwbundle/internal/filter"
	"github.com/alevsk/gwbundle/internal/folder"
	"github.com/alevsk/gwbundle/internal/formatter"
	"github.com/alevsk/gwbundle/internal/ingestor"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// maxBundleSize bounds the request body of the summary endpoint
const maxBundleSize = 64 << 20

// Options configures the API server
type Options struct {
	// SourceDir is the source tree served by the bundle endpoint
	SourceDir string
	// EnvFile holds the values of environment bundles
	EnvFile string
	// Timeout bounds reading requests and writing responses
	Timeout time.Duration
	Version string
	Fs      afero.Fs
	Logger  zerolog.Logger
}

// DefaultOptions serves the current directory from the OS filesystem
func DefaultOptions() *Options {
	return &Options{
		SourceDir: ".",
		Timeout:   30 * time.Second,
		Version:   "dev",
		Fs:        afero.NewOsFs(),
		Logger:    log.Logger,
	}
}

// Server represents the API server
type Server struct {
	router *mux.Router
	opts   *Options
	log    zerolog.Logger
}

// NewServer creates a new API server instance
func NewServer(opts *Options) *Server {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	s := &Server{
		router: mux.NewRouter(),
		opts:   opts,
		log:    opts.Logger,
	}
	s.routes()
	return s
}

// routes sets up the API routes
func (s *Server) routes() {
	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/health", s.healthCheck).Methods(http.MethodGet)
	v1.HandleFunc("/bundle", s.buildBundle).Methods(http.MethodGet)
	v1.HandleFunc("/explode/summary", s.explodeSummary).Methods(http.MethodPost)
}

// Handler returns the router serving the API
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Str("source", s.opts.SourceDir).Msg("starting server")
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.Timeout,
		WriteTimeout: s.opts.Timeout,
	}
	return srv.ListenAndServe()
}

// healthCheck handles the health check endpoint
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": s.opts.Version,
	}); err != nil {
		s.log.Error().Err(err).Msg("failed to encode health check response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
}

// buildBundle builds the source tree and returns the bundle document.
// The type query parameter selects deployment (default) or environment.
func (s *Server) buildBundle(w http.ResponseWriter, r *http.Request) {
	bundleType := r.URL.Query().Get("type")
	if bundleType == "" {
		bundleType = string(builder.Deployment)
	}

	ing := ingestor.New(&ingestor.Options{
		BundleType: bundleType,
		EnvFile:    s.opts.EnvFile,
		Version:    s.opts.Version,
		Fs:         s.opts.Fs,
		Logger:     s.log,
	})
	result, err := ing.Build(r.Context(), s.opts.SourceDir)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("X-Entity-Count", fmt.Sprint(result.Total()))
	if _, err := w.Write([]byte(result.Document)); err != nil {
		s.log.Error().Err(err).Msg("failed to write bundle")
	}
}

// explodeSummary lists the entities an explode of the posted bundle would
// write. The folder query parameter scopes the selection.
func (s *Server) explodeSummary(w http.ResponseWriter, r *http.Request) {
	ing := ingestor.New(&ingestor.Options{
		FolderPath:      r.URL.Query().Get("folder"),
		OutputFormat:    string(formatter.TypeJSON),
		IncludeMetadata: true,
		Version:         s.opts.Version,
		Fs:              s.opts.Fs,
		Logger:          s.log,
	})
	body := http.MaxBytesReader(w, r.Body, maxBundleSize)
	result, err := ing.Summarize(r.Context(), body, r.RemoteAddr)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(result.OutputFormatted)); err != nil {
		s.log.Error().Err(err).Msg("failed to write summary")
	}
}

// writeError maps err to a status code and writes it as a JSON document
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	} else {
		s.log.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	var notFound *filter.NotFoundError
	switch {
	case errors.Is(err, builder.ErrUnknownBundleType),
		errors.Is(err, ingestor.ErrNoEnvFile),
		errors.Is(err, export.ErrInvalidBundle),
		errors.Is(err, export.ErrDuplicateEntity),
		errors.Is(err, folder.ErrInvalidTree):
		return http.StatusBadRequest
	case errors.As(err, &notFound), errors.Is(err, folder.ErrFolderNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
