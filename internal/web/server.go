// Package web serves a small server-rendered HTML front for a sharezone
// backend. Every browser visitor gets its own session.Page and backend
// cookie jar, so the local server never mixes logins.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"sharezone-cli/internal/api"
)

//go:embed templates/*.html static/*.js static/*.css
var assetsFS embed.FS

type ServerConfig struct {
	Addr string
	// BackendURL is the sharezone backend the visitors are proxied to.
	BackendURL string

	Timeout        time.Duration
	MaxUploadBytes int64
	// DeleteRedirectDelay is how long the "Space deleted" page stays up.
	DeleteRedirectDelay time.Duration
	// VisitorTTL drops visitor sessions idle for longer. Zero means 12h.
	VisitorTTL time.Duration

	Logger logrus.FieldLogger
	// Transport overrides the backend HTTP transport (tests).
	Transport http.RoundTripper
}

type Server struct {
	cfg  ServerConfig
	tmpl *template.Template
	log  logrus.FieldLogger

	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

const defaultVisitorTTL = 12 * time.Hour

func NewServer(cfg ServerConfig) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	cfg.BackendURL = strings.TrimSpace(cfg.BackendURL)
	if cfg.BackendURL == "" {
		return nil, errors.New("web: backend url is empty")
	}
	// Validate the URL once up front; visitors build their own clients.
	if _, err := api.New(api.Config{BaseURL: cfg.BackendURL}); err != nil {
		return nil, err
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = api.MaxUploadBytes
	}
	if cfg.VisitorTTL <= 0 {
		cfg.VisitorTTL = defaultVisitorTTL
	}
	if cfg.DeleteRedirectDelay < 0 {
		cfg.DeleteRedirectDelay = 0
	}
	if cfg.Transport == nil {
		// Shared by every visitor's client.
		cfg.Transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	log := cfg.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	tmpl, err := template.New("base").Funcs(template.FuncMap{
		"trim": strings.TrimSpace,
	}).ParseFS(assetsFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:      cfg,
		tmpl:     tmpl,
		log:      log.WithField("component", "web"),
		visitors: map[string]*visitor{},
		now:      time.Now,
	}, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /static/app.css", s.handleStatic("static/app.css", "text/css; charset=utf-8"))
	mux.HandleFunc("GET /static/app.js", s.handleStatic("static/app.js", "application/javascript; charset=utf-8"))

	mux.HandleFunc("GET /login", s.handleLoginGet)
	mux.HandleFunc("POST /login", s.handleLoginPost)
	mux.HandleFunc("POST /logout", s.handleLogoutPost)

	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /home", s.handleHome)
	mux.HandleFunc("POST /spaces", s.handleSpaceCreate)
	mux.HandleFunc("POST /spaces/enter", s.handleSpaceEnter)

	mux.HandleFunc("GET /space/{id}", s.handleSpace)
	mux.HandleFunc("POST /space/{id}/text", s.handleTextSubmit)
	mux.HandleFunc("POST /space/{id}/upload", s.handleUpload)
	mux.HandleFunc("POST /space/{id}/paste", s.handlePaste)
	mux.HandleFunc("POST /space/{id}/extend", s.handleSpaceExtend)
	mux.HandleFunc("POST /space/{id}/delete", s.handleSpaceDelete)

	mux.HandleFunc("GET /files/{id}/edit", s.handleEditGet)
	mux.HandleFunc("POST /files/{id}/edit", s.handleEditPost)
	mux.HandleFunc("GET /files/{id}/delete", s.handleDeleteGet)
	mux.HandleFunc("POST /files/{id}/delete", s.handleDeletePost)
	mux.HandleFunc("GET /files/{id}/content", s.handleContent)
	mux.HandleFunc("GET /files/{id}/download", s.handleDownload)
	return s.logRequests(mux)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	}
}
