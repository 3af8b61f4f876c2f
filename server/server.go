// Package server exposes the conversion pipeline over HTTP.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pdfslides/converter"
	"pdfslides/converter/deck"
	"pdfslides/converter/domain"
	"pdfslides/converter/themes"
)

// Factory builds a converter for one conversion job
type Factory func(theme themes.Theme, format deck.Format) *converter.Converter

// Config holds server settings.
type Config struct {
	MaxUploadBytes int64
	JobTTL         time.Duration
	DefaultTheme   string
	DefaultFormat  deck.Format
}

// Server keeps conversion jobs in memory between preview and confirmation.
type Server struct {
	logger  zerolog.Logger
	factory Factory
	cfg     Config
	now     func() time.Time

	mu   sync.Mutex
	jobs map[string]*job
}

type job struct {
	id      string
	conv    *converter.Converter
	created time.Time
}

// New creates a server.
func New(logger zerolog.Logger, factory Factory, cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	if cfg.DefaultTheme == "" {
		cfg.DefaultTheme = themes.DefaultID
	}
	if cfg.DefaultFormat == "" {
		cfg.DefaultFormat = deck.FormatPPTX
	}
	return &Server{
		logger:  logger,
		factory: factory,
		cfg:     cfg,
		now:     time.Now,
		jobs:    make(map[string]*job),
	}
}

// Router returns the HTTP handler with all routes configured.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "pdfslides"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/themes", s.listThemes)

		r.Route("/conversions", func(r chi.Router) {
			r.Post("/", s.createConversion)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getConversion)
				r.Post("/confirm", s.confirmConversion)
				r.Post("/cancel", s.cancelConversion)
			})
		})
	})

	return r
}

// SlideDTO is a slide as shown in the preview
type SlideDTO struct {
	PageNumber   int      `json:"pageNumber"`
	Title        string   `json:"title"`
	Points       []string `json:"points"`
	Notes        string   `json:"notes,omitempty"`
	Image        string   `json:"image,omitempty"` // data URI
	ImageAltText string   `json:"imageAltText,omitempty"`
}

// ConversionDTO represents a conversion job in API responses.
type ConversionDTO struct {
	ID       string          `json:"id"`
	State    domain.Progress `json:"state"`
	FileName string          `json:"fileName,omitempty"`
	Theme    string          `json:"theme"`
	Format   deck.Format     `json:"format"`
	Slides   []SlideDTO      `json:"slides,omitempty"`
	Manifest *deck.Manifest  `json:"manifest,omitempty"`
}

// createConversion handles POST /api/conversions.
func (s *Server) createConversion(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload", err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required", err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload", err.Error())
		return
	}

	themeID := r.FormValue("theme")
	if themeID == "" {
		themeID = s.cfg.DefaultTheme
	}
	theme, err := themes.Get(themeID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown theme", err.Error())
		return
	}

	format := s.cfg.DefaultFormat
	if v := r.FormValue("format"); v != "" {
		if format, err = deck.ParseFormat(v); err != nil {
			writeError(w, http.StatusBadRequest, "unknown format", err.Error())
			return
		}
	}

	j := &job{
		id:      uuid.NewString(),
		conv:    s.factory(theme, format),
		created: s.now(),
	}
	s.store(j)

	s.logger.Info().
		Str("job_id", j.id).
		Str("file", header.Filename).
		Int("bytes", len(data)).
		Str("theme", theme.ID).
		Msg("starting conversion")

	// generic uploads are sniffed instead of rejected
	contentType := header.Header.Get("Content-Type")
	if contentType == "application/octet-stream" {
		contentType = ""
	}

	_, err = j.conv.Generate(r.Context(), converter.Input{
		Name:        header.Filename,
		Data:        data,
		ContentType: contentType,
	})
	if err != nil {
		writeJSON(w, statusFor(err), toDTO(j))
		return
	}

	writeJSON(w, http.StatusCreated, toDTO(j))
}

// getConversion handles GET /api/conversions/{id}.
func (s *Server) getConversion(w http.ResponseWriter, r *http.Request) {
	j, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "conversion not found", "")
		return
	}
	writeJSON(w, http.StatusOK, toDTO(j))
}

// confirmConversion handles POST /api/conversions/{id}/confirm and streams the deck.
func (s *Server) confirmConversion(w http.ResponseWriter, r *http.Request) {
	j, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "conversion not found", "")
		return
	}

	// buffered so a failure can still be reported as JSON
	var buf bytes.Buffer
	if _, err := j.conv.Confirm(r.Context(), &buf); err != nil {
		writeError(w, statusFor(err), domain.UserMessage(err), err.Error())
		return
	}

	state := j.conv.State()
	w.Header().Set("Content-Type", j.conv.Format().MediaType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", state.FileName))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn().Err(err).Str("job_id", j.id).Msg("failed to stream presentation")
	}
}

// cancelConversion handles POST /api/conversions/{id}/cancel.
func (s *Server) cancelConversion(w http.ResponseWriter, r *http.Request) {
	j, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "conversion not found", "")
		return
	}
	if err := j.conv.Cancel(); err != nil {
		writeError(w, statusFor(err), domain.UserMessage(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toDTO(j))
}

// listThemes handles GET /api/themes.
func (s *Server) listThemes(w http.ResponseWriter, r *http.Request) {
	list := themes.List()
	out := make([]themes.Definition, len(list))
	for i, t := range list {
		out[i] = t.ToDefinition()
	}
	writeJSON(w, http.StatusOK, map[string]any{"default": s.cfg.DefaultTheme, "themes": out})
}

// store saves a job and drops expired ones
func (s *Server) store(j *job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, old := range s.jobs {
		if j.created.Sub(old.created) > s.cfg.JobTTL {
			delete(s.jobs, id)
		}
	}
	s.jobs[j.id] = j
}

func (s *Server) lookup(id string) (*job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	return j, ok
}

func toDTO(j *job) ConversionDTO {
	state := j.conv.State()
	dto := ConversionDTO{
		ID:       j.id,
		State:    state.Progress(),
		FileName: state.FileName,
		Theme:    j.conv.Theme().ID,
		Format:   j.conv.Format(),
		Manifest: state.Manifest,
	}
	for _, s := range state.Slides {
		slide := SlideDTO{
			PageNumber:   s.PageNumber,
			Title:        s.Title,
			Points:       s.Points,
			Notes:        s.Notes,
			ImageAltText: s.ImageAltText,
		}
		if s.HasImage() {
			slide.Image = s.Image.DataURI()
		}
		dto.Slides = append(dto.Slides, slide)
	}
	return dto
}

// statusFor maps a pipeline error to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidFileType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrMissingCredential):
		return http.StatusServiceUnavailable
	}
	switch domain.TypeOf(err) {
	case domain.ErrorTypePrecondition:
		return http.StatusBadRequest
	case domain.ErrorTypeExtraction, domain.ErrorTypeEmptyResult:
		return http.StatusUnprocessableEntity
	case domain.ErrorTypeSynthesis:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	resp := map[string]string{"error": message}
	if details != "" {
		resp["details"] = details
	}
	writeJSON(w, status, resp)
}

// requestLogger logs each request through zerolog
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
