package store

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CookieJar is an http.CookieJar whose cookies outlive the process.
//
// Matching is delegated to net/http/cookiejar; this type only mirrors every
// SetCookies call into the cookies table and replays the table on load.
type CookieJar struct {
	st    *State
	inner *cookiejar.Jar
	now   func() time.Time

	mu sync.Mutex
}

var _ http.CookieJar = (*CookieJar)(nil)

// CookieJar loads the persisted cookies. Expired rows are deleted.
func (s *State) CookieJar(ctx context.Context) (*CookieJar, error) {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	j := &CookieJar{st: s, inner: inner, now: time.Now}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cookies WHERE expires_unix IS NOT NULL AND expires_unix <= ?`,
		j.now().Unix(),
	); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT origin, path, name, value, secure, http_only, expires_unix FROM cookies`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byOrigin := map[string][]*http.Cookie{}
	for rows.Next() {
		var (
			origin, path, name, value string
			secure, httpOnly          bool
			expires                   sql.NullInt64
		)
		if err := rows.Scan(&origin, &path, &name, &value, &secure, &httpOnly, &expires); err != nil {
			return nil, err
		}
		c := &http.Cookie{Name: name, Value: value, Path: path, Secure: secure, HttpOnly: httpOnly}
		if expires.Valid {
			c.Expires = time.Unix(expires.Int64, 0)
		}
		byOrigin[origin] = append(byOrigin[origin], c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for origin, cs := range byOrigin {
		u, err := url.Parse(origin)
		if err != nil {
			s.log.WithField("origin", origin).WithError(err).Warn("skipping stored cookies")
			continue
		}
		inner.SetCookies(u, cs)
	}
	return j, nil
}

func (j *CookieJar) Cookies(u *url.URL) []*http.Cookie {
	return j.inner.Cookies(u)
}

// SetCookies records cookies for u. Persistence failures are logged; the
// in-memory jar stays authoritative for the running process.
func (j *CookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.inner.SetCookies(u, cookies)
	if len(cookies) == 0 {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	ctx := context.Background()
	origin := u.Scheme + "://" + u.Host
	host := u.Hostname()
	now := j.now()
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		path := c.Path
		if !strings.HasPrefix(path, "/") {
			path = "/"
		}

		var expires sql.NullInt64
		switch {
		case c.MaxAge < 0:
			j.remove(ctx, host, path, c.Name)
			continue
		case c.MaxAge > 0:
			expires = sql.NullInt64{Int64: now.Add(time.Duration(c.MaxAge) * time.Second).Unix(), Valid: true}
		case !c.Expires.IsZero():
			if !c.Expires.After(now) {
				j.remove(ctx, host, path, c.Name)
				continue
			}
			expires = sql.NullInt64{Int64: c.Expires.Unix(), Valid: true}
		}

		_, err := j.st.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO cookies(host, path, name, origin, value, secure, http_only, expires_unix)
			 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
			host, path, c.Name, origin, c.Value, c.Secure, c.HttpOnly, expires,
		)
		if err != nil {
			j.st.log.WithFields(logrus.Fields{"host": host, "cookie": c.Name}).WithError(err).Warn("persist cookie")
		}
	}
}

func (j *CookieJar) remove(ctx context.Context, host, path, name string) {
	if _, err := j.st.db.ExecContext(ctx, `DELETE FROM cookies WHERE host = ? AND path = ? AND name = ?`, host, path, name); err != nil {
		j.st.log.WithFields(logrus.Fields{"host": host, "cookie": name}).WithError(err).Warn("remove cookie")
	}
}

// Forget drops every stored cookie for the host of server.
func (s *State) Forget(ctx context.Context, server string) error {
	u, err := url.Parse(server)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM cookies WHERE host = ?`, u.Hostname())
	return err
}
