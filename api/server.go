// Package api serves statement extraction and assembly over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aqlanhadi/stmtfold/assembler"
	"github.com/aqlanhadi/stmtfold/extractor"
	"github.com/aqlanhadi/stmtfold/extractor/common"
	"github.com/rs/zerolog/log"
)

// Config holds the API server configuration
type Config struct {
	Port     string
	MaxBytes int64
	Extract  extractor.Options
}

// DefaultConfig returns the default API configuration
func DefaultConfig() Config {
	return Config{
		Port:     ":8080",
		MaxBytes: 32 << 20,
		Extract:  extractor.DefaultOptions(),
	}
}

// Server represents the HTTP API server
type Server struct {
	config Config
	mux    *http.ServeMux
}

// New creates a new API server with the given configuration
func New(cfg Config) *Server {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 32 << 20
	}
	s := &Server{
		config: cfg,
		mux:    http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/extract", s.handleExtract)
	s.mux.HandleFunc("/assemble", s.handleAssemble)
	s.mux.HandleFunc("/health", s.handleHealth)
}

// Handler returns the http.Handler for the server
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Port,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.config.Port).Msg("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleExtract turns one uploaded statement into partial statements.
// The optional "hints" form field carries the document hints as JSON.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	log.Debug().Str("remote", r.RemoteAddr).Msg("extract request")

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(s.config.MaxBytes); err != nil {
		log.Warn().Err(err).Msg("error parsing multipart form")
		http.Error(w, "Could not parse multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, handler, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Could not get uploaded file: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		log.Error().Err(err).Msg("error reading upload")
		http.Error(w, "Could not read file: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if !common.IsSupported(handler.Filename) {
		http.Error(w, "Unsupported file type: "+handler.Filename, http.StatusUnsupportedMediaType)
		return
	}

	if flag(r, "text_only") {
		s.handleTextOnlyExtract(w, fileBytes, handler.Filename)
		return
	}

	var hints common.Hints
	if raw := strings.TrimSpace(r.FormValue("hints")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &hints); err != nil {
			http.Error(w, "Invalid hints: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	statements, err := extractor.ProcessReader(bytes.NewReader(fileBytes), handler.Filename, hints, s.config.Extract)
	if err != nil {
		log.Warn().Err(err).Str("file", handler.Filename).Msg("extraction failed")
		http.Error(w, "Could not extract statement: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if len(statements) == 1 && !flag(r, "always_list") {
		writeJSON(w, http.StatusOK, statements[0])
		return
	}
	writeJSON(w, http.StatusOK, statements)
}

// handleTextOnlyExtract returns the page text of the document without parsing it.
func (s *Server) handleTextOnlyExtract(w http.ResponseWriter, data []byte, filename string) {
	src, err := common.ReadSourceReader(bytes.NewReader(data), filename)
	if err != nil {
		http.Error(w, "Could not extract text from file: "+err.Error(), http.StatusBadRequest)
		return
	}

	var text []string
	for _, p := range src.Pages {
		text = append(text, p.Text)
	}
	for _, t := range src.Tables {
		if len(src.Pages) == 0 {
			text = append(text, t.Text())
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"filename": filename,
		"text":     strings.Join(text, "\n"),
	})
}

// AssembleResponse is one merged bundle with its file name.
type AssembleResponse struct {
	File   string           `json:"file"`
	Bundle common.Statement `json:"bundle"`
}

// handleAssemble merges a JSON array (or single object) of partials.
func (s *Server) handleAssemble(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBytes))
	if err != nil {
		http.Error(w, "Could not read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	partials, err := assembler.DecodePartials(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	bundles := assembler.Assemble(partials, s.config.Extract.Workers)
	out := make([]AssembleResponse, 0, len(bundles))
	for _, b := range bundles {
		out = append(out, AssembleResponse{File: b.Key.FileName(), Bundle: b.Statement})
	}
	log.Info().Int("partials", len(partials)).Int("accounts", len(out)).Msg("assembled")
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("error encoding response")
	}
}

func flag(r *http.Request, name string) bool {
	return r.FormValue(name) == "true" || r.URL.Query().Get(name) == "true"
}
