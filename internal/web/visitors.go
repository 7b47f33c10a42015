package web

import (
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sharezone-cli/internal/api"
	"sharezone-cli/internal/session"
)

const visitorCookieName = "sharezone_visitor"

// visitor is one browser: its own backend session (cookie jar) and page state.
type visitor struct {
	id       string
	page     *session.Page
	lastSeen time.Time
}

// visitorFor returns the visitor behind the request cookie, creating one (and
// setting the cookie) for new browsers.
func (s *Server) visitorFor(w http.ResponseWriter, r *http.Request) (*visitor, error) {
	now := s.now()
	if c, err := r.Cookie(visitorCookieName); err == nil && c.Value != "" {
		s.mu.Lock()
		v, ok := s.visitors[c.Value]
		if ok {
			v.lastSeen = now
		}
		s.mu.Unlock()
		if ok {
			return v, nil
		}
	}

	v, err := s.newVisitor(now)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     visitorCookieName,
		Value:    v.id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return v, nil
}

func (s *Server) newVisitor(now time.Time) (*visitor, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	log := s.log.WithField("visitor", id[:8])
	client, err := api.New(api.Config{
		BaseURL:   s.cfg.BackendURL,
		Jar:       jar,
		Logger:    log,
		Transport: s.cfg.Transport,
	})
	if err != nil {
		return nil, err
	}
	v := &visitor{
		id: id,
		page: session.New(client, session.Options{
			Timeout:        s.cfg.Timeout,
			MaxUploadBytes: s.cfg.MaxUploadBytes,
			// The browser waits on the "Space deleted" page instead.
			DeleteRedirectDelay: 0,
			Logger:              log,
		}),
		lastSeen: now,
	}

	s.mu.Lock()
	s.pruneLocked(now)
	s.visitors[id] = v
	s.mu.Unlock()
	log.Debug("new visitor")
	return v, nil
}

// pruneLocked forgets visitors idle for longer than the TTL.
func (s *Server) pruneLocked(now time.Time) {
	for id, v := range s.visitors {
		if now.Sub(v.lastSeen) > s.cfg.VisitorTTL {
			delete(s.visitors, id)
		}
	}
}

func (s *Server) visitorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).Round(time.Millisecond).String(),
		}).Debug("request")
	})
}
