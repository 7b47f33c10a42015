package store

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func openState(t *testing.T, dir string) *State {
	t.Helper()
	st, err := Open(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func cookieValue(cs []*http.Cookie, name string) (string, bool) {
	for _, c := range cs {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func TestCookieJar_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	u := mustURL(t, "http://127.0.0.1:3333/api/auth/login")

	st := openState(t, dir)
	jar, err := st.CookieJar(ctx)
	if err != nil {
		t.Fatalf("CookieJar: %v", err)
	}
	jar.SetCookies(u, []*http.Cookie{
		{Name: "auth_token", Value: "tok-1", Path: "/", MaxAge: 3600, HttpOnly: true},
		{Name: "space_7", Value: "granted", Path: "/"},
	})
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st2 := openState(t, dir)
	jar2, err := st2.CookieJar(ctx)
	if err != nil {
		t.Fatalf("CookieJar (reopen): %v", err)
	}
	got := jar2.Cookies(mustURL(t, "http://127.0.0.1:3333/api/spaces"))
	if v, ok := cookieValue(got, "auth_token"); !ok || v != "tok-1" {
		t.Fatalf("auth_token after reopen = %q (present=%v); all=%v", v, ok, got)
	}
	if v, ok := cookieValue(got, "space_7"); !ok || v != "granted" {
		t.Fatalf("session cookie after reopen = %q (present=%v)", v, ok)
	}
	if other := jar2.Cookies(mustURL(t, "http://example.com/")); len(other) != 0 {
		t.Fatalf("cookies leaked to another host: %v", other)
	}
}

func TestCookieJar_ExpiredDroppedOnLoad(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	u := mustURL(t, "http://127.0.0.1:3333/")

	st := openState(t, dir)
	jar, err := st.CookieJar(ctx)
	if err != nil {
		t.Fatalf("CookieJar: %v", err)
	}
	jar.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	jar.SetCookies(u, []*http.Cookie{{Name: "auth_token", Value: "old", Path: "/", MaxAge: 60}})
	_ = st.Close()

	st2 := openState(t, dir)
	jar2, err := st2.CookieJar(ctx)
	if err != nil {
		t.Fatalf("CookieJar (reopen): %v", err)
	}
	if _, ok := cookieValue(jar2.Cookies(u), "auth_token"); ok {
		t.Fatalf("expected expired cookie to be dropped")
	}
	var n int
	if err := st2.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cookies`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected expired row deleted, have %d rows", n)
	}
}

func TestCookieJar_NegativeMaxAgeDeletes(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	u := mustURL(t, "http://127.0.0.1:3333/")

	st := openState(t, dir)
	jar, err := st.CookieJar(ctx)
	if err != nil {
		t.Fatalf("CookieJar: %v", err)
	}
	jar.SetCookies(u, []*http.Cookie{{Name: "auth_token", Value: "tok", Path: "/", MaxAge: 3600}})
	jar.SetCookies(u, []*http.Cookie{{Name: "auth_token", Value: "", Path: "/", MaxAge: -1}})
	_ = st.Close()

	st2 := openState(t, dir)
	jar2, err := st2.CookieJar(ctx)
	if err != nil {
		t.Fatalf("CookieJar (reopen): %v", err)
	}
	if _, ok := cookieValue(jar2.Cookies(u), "auth_token"); ok {
		t.Fatalf("expected logout cookie to be gone")
	}
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	st := openState(t, t.TempDir())
	jar, err := st.CookieJar(ctx)
	if err != nil {
		t.Fatalf("CookieJar: %v", err)
	}
	jar.SetCookies(mustURL(t, "http://127.0.0.1:3333/"), []*http.Cookie{{Name: "auth_token", Value: "x", Path: "/"}})
	if err := st.Forget(ctx, "http://127.0.0.1:3333"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	jar2, err := st.CookieJar(ctx)
	if err != nil {
		t.Fatalf("CookieJar: %v", err)
	}
	if got := jar2.Cookies(mustURL(t, "http://127.0.0.1:3333/")); len(got) != 0 {
		t.Fatalf("expected no cookies, got %v", got)
	}
}

func TestCurrentSpace_PerServer(t *testing.T) {
	ctx := context.Background()
	st := openState(t, t.TempDir())

	if _, ok, err := st.CurrentSpace(ctx, "http://a"); err != nil || ok {
		t.Fatalf("expected unset, ok=%v err=%v", ok, err)
	}
	if err := st.SetCurrentSpace(ctx, "http://a/", 12); err != nil {
		t.Fatalf("SetCurrentSpace: %v", err)
	}
	id, ok, err := st.CurrentSpace(ctx, "http://a")
	if err != nil || !ok || id != 12 {
		t.Fatalf("CurrentSpace = %d %v %v", id, ok, err)
	}
	if _, ok, _ := st.CurrentSpace(ctx, "http://b"); ok {
		t.Fatalf("current space leaked across servers")
	}
	if err := st.ClearCurrentSpace(ctx, "http://a"); err != nil {
		t.Fatalf("ClearCurrentSpace: %v", err)
	}
	if _, ok, _ := st.CurrentSpace(ctx, "http://a"); ok {
		t.Fatalf("expected cleared")
	}
}
