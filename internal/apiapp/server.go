// Package apiapp serves the tracker over JSON. It is the only process
// that touches the event store; the HTML client goes through it.
package apiapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/phillip-england/habitlog/internal/badge"
	"github.com/phillip-england/habitlog/internal/cooldown"
	"github.com/phillip-england/habitlog/internal/eventlog"
	"github.com/phillip-england/habitlog/internal/middleware"
	"github.com/phillip-england/habitlog/internal/tracker"
)

const maxBodyBytes = 1 << 10

type Config struct {
	Addr         string
	HistoryLimit int
}

type server struct {
	svc          *tracker.Service
	historyLimit int
	logger       *slog.Logger
}

type recordRequest struct {
	Emergency bool `json:"emergency"`
}

type categoriesResponse struct {
	Categories []tracker.View `json:"categories"`
}

type cooldownResponse struct {
	Error  string          `json:"error"`
	Status cooldown.Status `json:"status"`
}

// NewHandler builds the API router around svc.
func NewHandler(svc *tracker.Service, cfg Config, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{svc: svc, historyLimit: cfg.HistoryLimit, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/api/health", s.health)
	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", s.listCategories)
		r.Get("/{category}", s.getCategory)
		r.Post("/{category}/events", s.recordEvent)
		r.Get("/{category}/badge.png", s.categoryBadge)
	})
	return r
}

func Run(ctx context.Context, cfg Config, svc *tracker.Service, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(svc, cfg, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", "addr", "http://localhost"+cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) listCategories(w http.ResponseWriter, r *http.Request) {
	limit, err := s.limitFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, categoriesResponse{Categories: s.svc.Views(r.Context(), limit)})
}

func (s *server) getCategory(w http.ResponseWriter, r *http.Request) {
	limit, err := s.limitFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.svc.View(r.Context(), chi.URLParam(r, "category"), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *server) recordEvent(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recorded, err := s.svc.Record(r.Context(), chi.URLParam(r, "category"), req.Emergency)
	if errors.Is(err, cooldown.ErrCoolingDown) {
		writeJSON(w, http.StatusConflict, cooldownResponse{
			Error:  "cooldown in effect, wait " + tracker.FormatDuration(recorded.Status.Remaining),
			Status: recorded.Status,
		})
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, recorded)
}

func (s *server) categoryBadge(w http.ResponseWriter, r *http.Request) {
	scale := 1
	if raw := strings.TrimSpace(r.URL.Query().Get("scale")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "scale must be a number")
			return
		}
		scale = n
	}
	view, err := s.svc.View(r.Context(), chi.URLParam(r, "category"), 1)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	b := badge.ForView(view)
	var buf bytes.Buffer
	if err := b.WritePNG(&buf, scale); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *server) limitFromQuery(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return s.historyLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative number")
	}
	return n, nil
}

func (s *server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tracker.ErrUnknownCategory):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tracker.ErrEmergencyNotAllowed):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, eventlog.ErrStoreUnavailable):
		s.logger.Error("store unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "event log unavailable, try again")
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON accepts an empty body as the zero value.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.New("invalid json")
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
