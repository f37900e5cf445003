// Package clientapp renders the tracker form. It holds no state of its
// own: every page load asks the API for fresh category views and every
// button press is forwarded to the API.
package clientapp

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/phillip-england/habitlog/internal/eventlog"
	"github.com/phillip-england/habitlog/internal/middleware"
	"github.com/phillip-england/habitlog/internal/tracker"
)

//go:embed templates/index.html assets/app.css
var templatesFS embed.FS

const (
	modeRegular   = "regular"
	modeEmergency = "emergency"
)

type Config struct {
	Addr           string
	APIBaseURL     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	CSRFKey        []byte
	TrustedOrigins []string
}

type server struct {
	apiBaseURL string
	apiClient  *http.Client
	indexTmpl  *template.Template
	logger     *slog.Logger
}

type pageData struct {
	Error      string
	Message    string
	Categories []categoryView
}

type categoriesResponse struct {
	Categories []tracker.View `json:"categories"`
}

type apiErrorResponse struct {
	Error string `json:"error"`
}

// NewHandler builds the client routes. cfg.APIBaseURL must point at a
// running API server.
func NewHandler(cfg Config, logger *slog.Logger) (http.Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, errors.New("api base url is required")
	}
	tmpl, err := template.New("index.html").Funcs(templateFuncs).ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s := &server{
		apiBaseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		apiClient:  &http.Client{Timeout: 8 * time.Second},
		indexTmpl:  tmpl,
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.indexPage)
	mux.HandleFunc("POST /record/{category}", s.recordEvent)
	mux.HandleFunc("GET /assets/app.css", s.appCSSFile)

	csp := strings.Join([]string{
		"default-src 'self'",
		"style-src 'self'",
		"img-src 'self' data:",
		"script-src 'none'",
		"form-action 'self'",
		"frame-ancestors 'none'",
	}, "; ")

	return middleware.Chain(
		mux,
		middleware.RequestLogger(logger),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{ContentSecurityPolicy: csp}),
		middleware.CSRF(middleware.CSRFConfig{
			AuthKey:        cfg.CSRFKey,
			TrustedOrigins: cfg.TrustedOrigins,
			Logger:         logger,
		}),
	), nil
}

func Run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	handler, err := NewHandler(cfg, logger)
	if err != nil {
		return err
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("client listening", "addr", "http://localhost"+cfg.Addr)
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

func (s *server) indexPage(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Error:   r.URL.Query().Get("error"),
		Message: r.URL.Query().Get("message"),
	}
	views, err := s.fetchViews(r)
	if err != nil {
		s.logger.Warn("fetch categories failed", "error", err)
		if data.Error == "" {
			data.Error = "Event log service unavailable"
		}
	}
	for _, v := range views {
		data.Categories = append(data.Categories, newCategoryView(v))
	}

	if err := renderHTMLTemplate(w, s.indexTmpl, data); err != nil {
		http.Error(w, "template render failed", http.StatusInternalServerError)
		s.logger.Error("index template render failed", "error", err)
	}
}

func (s *server) recordEvent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectWith(w, r, "error", "Invalid form submission")
		return
	}
	var emergency bool
	switch r.FormValue("mode") {
	case "", modeRegular:
	case modeEmergency:
		emergency = true
	default:
		redirectWith(w, r, "error", "Unknown record mode")
		return
	}

	category := r.PathValue("category")
	body, _ := json.Marshal(map[string]bool{"emergency": emergency})
	apiReq, err := http.NewRequestWithContext(
		r.Context(),
		http.MethodPost,
		s.apiBaseURL+"/api/categories/"+url.PathEscape(category)+"/events",
		bytes.NewReader(body),
	)
	if err != nil {
		redirectWith(w, r, "error", "Unable to record event")
		return
	}
	apiReq.Header.Set("Content-Type", "application/json")
	apiResp, err := s.apiClient.Do(apiReq)
	if err != nil {
		s.logger.Warn("record proxy failed", "category", category, "error", err)
		redirectWith(w, r, "error", "Event log service unavailable")
		return
	}
	defer apiResp.Body.Close()

	if apiResp.StatusCode != http.StatusCreated {
		var payload apiErrorResponse
		_ = json.NewDecoder(apiResp.Body).Decode(&payload)
		message := payload.Error
		if message == "" {
			message = "Unable to record event"
		}
		redirectWith(w, r, "error", capitalize(message))
		return
	}

	var recorded tracker.Recorded
	if err := json.NewDecoder(apiResp.Body).Decode(&recorded); err != nil {
		redirectWith(w, r, "message", "Event recorded")
		return
	}
	redirectWith(w, r, "message", fmt.Sprintf("Saved %s for %s at %s",
		recorded.Event.Label, recorded.Category.Title, recorded.Event.Time.Format("15:04")))
}

func (s *server) fetchViews(r *http.Request) ([]tracker.View, error) {
	apiReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, s.apiBaseURL+"/api/categories", nil)
	if err != nil {
		return nil, err
	}
	apiResp, err := s.apiClient.Do(apiReq)
	if err != nil {
		return nil, err
	}
	defer apiResp.Body.Close()
	if apiResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api returned %s", apiResp.Status)
	}
	var payload categoriesResponse
	if err := json.NewDecoder(apiResp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return payload.Categories, nil
}

func (s *server) appCSSFile(w http.ResponseWriter, r *http.Request) {
	data, err := templatesFS.ReadFile("assets/app.css")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "private, max-age=300")
	_, _ = w.Write(data)
}

func redirectWith(w http.ResponseWriter, r *http.Request, key, value string) {
	http.Redirect(w, r, "/?"+url.Values{key: {value}}.Encode(), http.StatusSeeOther)
}

func renderHTMLTemplate(w http.ResponseWriter, tmpl *template.Template, data pageData) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := w.Write(buf.Bytes())
	return err
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

var templateFuncs = template.FuncMap{
	"isEmergency": func(label eventlog.Label) bool { return label == eventlog.LabelEmergency },
}
