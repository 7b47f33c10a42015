// Package apitest provides an in-memory sharezone backend for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

const authCookie = "auth_token"

type space struct {
	ID        int64
	Name      string
	Password  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type file struct {
	ID        int64
	SpaceID   int64
	Type      string
	Filename  string
	Content   string
	MimeType  string
	Data      []byte
	CreatedAt time.Time
}

// Backend mimics the sharezone REST API closely enough for client tests.
type Backend struct {
	Password string
	Server   *httptest.Server

	mu      sync.Mutex
	tokens  map[string]bool
	spaces  map[int64]*space
	files   map[int64]*file
	nextID  int64
	hits    map[string]int
	stalled map[string]bool
	fail    map[string]string
}

// New starts a backend accepting password as the system password.
func New(t testing.TB, password string) *Backend {
	t.Helper()
	b := &Backend{
		Password: password,
		tokens:   map[string]bool{},
		spaces:   map[int64]*space{},
		files:    map[int64]*file{},
		hits:     map[string]int{},
		stalled:  map[string]bool{},
		fail:     map[string]string{},
	}
	mux := http.NewServeMux()
	b.handle(mux, "POST /api/auth/login", b.login)
	b.handle(mux, "POST /api/auth/logout", b.logout)
	b.handle(mux, "GET /api/auth/verify", b.verify)
	b.handle(mux, "GET /api/spaces", b.authed(b.listSpaces))
	b.handle(mux, "POST /api/spaces", b.authed(b.createSpace))
	b.handle(mux, "POST /api/spaces/enter", b.authed(b.enterSpace))
	b.handle(mux, "DELETE /api/spaces/{id}", b.authed(b.deleteSpace))
	b.handle(mux, "PUT /api/spaces/{id}/access", b.authed(b.touchSpace))
	b.handle(mux, "POST /api/spaces/{id}/extend", b.authed(b.extendSpace))
	b.handle(mux, "GET /api/spaces/{id}/files", b.authed(b.listFiles))
	b.handle(mux, "POST /api/spaces/{id}/files", b.authed(b.createFile))
	b.handle(mux, "GET /api/files/{id}", b.authed(b.getFile))
	b.handle(mux, "PUT /api/files/{id}", b.authed(b.updateFile))
	b.handle(mux, "DELETE /api/files/{id}", b.authed(b.deleteFile))
	b.handle(mux, "GET /api/files/{id}/content", b.authed(b.fileContent))
	b.handle(mux, "GET /api/files/{id}/download", b.authed(b.fileDownload))

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the backend root.
func (b *Backend) URL() string { return b.Server.URL }

// Hits returns how often a route pattern (e.g. "GET /api/spaces/{id}/files") was served.
func (b *Backend) Hits(pattern string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[pattern]
}

// TotalHits counts all requests served.
func (b *Backend) TotalHits() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, v := range b.hits {
		n += v
	}
	return n
}

// Stall makes the route block until the client gives up.
func (b *Backend) Stall(pattern string) {
	b.mu.Lock()
	b.stalled[pattern] = true
	b.mu.Unlock()
}

// Fail makes the route answer success:false with message.
func (b *Backend) Fail(pattern, message string) {
	b.mu.Lock()
	b.fail[pattern] = message
	b.mu.Unlock()
}

// SeedSpace inserts a space directly and returns its id.
func (b *Backend) SeedSpace(name, password string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	now := time.Now()
	b.spaces[b.nextID] = &space{ID: b.nextID, Name: name, Password: password, CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour)}
	return b.nextID
}

// SeedText inserts a text file directly and returns its id.
func (b *Backend) SeedText(spaceID int64, content string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.files[b.nextID] = &file{ID: b.nextID, SpaceID: spaceID, Type: "text", Content: content, CreatedAt: time.Now()}
	return b.nextID
}

// FileCount returns the number of files stored in a space.
func (b *Backend) FileCount(spaceID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, f := range b.files {
		if f.SpaceID == spaceID {
			n++
		}
	}
	return n
}

// FileNames returns the stored filenames of uploaded files in a space, sorted.
func (b *Backend) FileNames(spaceID int64) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, f := range b.files {
		if f.SpaceID == spaceID && f.Filename != "" {
			out = append(out, f.Filename)
		}
	}
	sort.Strings(out)
	return out
}

// Texts returns the stored text snippets of a space, sorted.
func (b *Backend) Texts(spaceID int64) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, f := range b.files {
		if f.SpaceID == spaceID && f.Type == "text" {
			out = append(out, f.Content)
		}
	}
	sort.Strings(out)
	return out
}

func (b *Backend) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[pattern]++
		stalled := b.stalled[pattern]
		failMsg, failing := b.fail[pattern]
		b.mu.Unlock()
		if stalled {
			<-r.Context().Done()
			return
		}
		if failing {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": failMsg})
			return
		}
		h(w, r)
	})
}

func (b *Backend) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(authCookie)
		b.mu.Lock()
		ok := err == nil && b.tokens[c.Value]
		b.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "not logged in"})
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request) map[string]any {
	var m map[string]any
	_ = json.NewDecoder(r.Body).Decode(&m)
	if m == nil {
		m = map[string]any{}
	}
	return m
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id
}

func sqliteTime(t time.Time) string { return t.Format("2006-01-02 15:04:05") }

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	in := readJSON(r)
	pw, _ := in["password"].(string)
	if pw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "password required"})
		return
	}
	if pw != b.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "wrong password"})
		return
	}
	b.mu.Lock()
	tok := fmt.Sprintf("tok-%d", len(b.tokens)+1)
	b.tokens[tok] = true
	b.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: authCookie, Value: tok, Path: "/", MaxAge: 7 * 24 * 3600, HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(authCookie); err == nil {
		b.mu.Lock()
		delete(b.tokens, c.Value)
		b.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: authCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *Backend) verify(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(authCookie)
	b.mu.Lock()
	ok := err == nil && b.tokens[c.Value]
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": ok})
}

func (b *Backend) spaceJSON(s *space) map[string]any {
	return map[string]any{
		"id":         s.ID,
		"name":       s.Name,
		"created_at": sqliteTime(s.CreatedAt),
		"expires_at": sqliteTime(s.ExpiresAt),
	}
}

func (b *Backend) fileJSON(f *file, full bool) map[string]any {
	m := map[string]any{
		"id":         f.ID,
		"space_id":   f.SpaceID,
		"file_type":  f.Type,
		"created_at": sqliteTime(f.CreatedAt),
		"filename":   nil,
		"mime_type":  nil,
		"file_size":  nil,
	}
	if f.Filename != "" {
		m["filename"] = f.Filename
		m["mime_type"] = f.MimeType
		m["file_size"] = len(f.Data)
	}
	if f.Type == "text" {
		preview := f.Content
		if len(preview) > 100 {
			preview = preview[:100] + "..."
		}
		m["preview_text"] = preview
		if full {
			m["content"] = f.Content
		}
	}
	return m
}

func (b *Backend) listSpaces(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := make([]map[string]any, 0, len(b.spaces))
	ids := make([]int64, 0, len(b.spaces))
	for id := range b.spaces {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		out = append(out, b.spaceJSON(b.spaces[id]))
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "spaces": out})
}

func (b *Backend) createSpace(w http.ResponseWriter, r *http.Request) {
	in := readJSON(r)
	name, _ := in["name"].(string)
	pw, _ := in["password"].(string)
	if name == "" || pw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "name and password are required"})
		return
	}
	b.mu.Lock()
	for _, s := range b.spaces {
		if s.Name == name {
			b.mu.Unlock()
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "space name already exists"})
			return
		}
	}
	b.mu.Unlock()
	id := b.SeedSpace(name, pw)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "space_id": id, "password_hash": "x"})
}

func (b *Backend) enterSpace(w http.ResponseWriter, r *http.Request) {
	in := readJSON(r)
	pw, _ := in["password"].(string)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.spaces {
		if s.Password == pw {
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "space": b.spaceJSON(s)})
			return
		}
	}
	writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "wrong password or space does not exist"})
}

func (b *Backend) deleteSpace(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.spaces[id]; !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "space does not exist"})
		return
	}
	delete(b.spaces, id)
	for fid, f := range b.files {
		if f.SpaceID == id {
			delete(b.files, fid)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *Backend) touchSpace(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *Backend) extendSpace(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	in := readJSON(r)
	hours, _ := in["hours"].(float64)
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.spaces[id]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "space does not exist"})
		return
	}
	s.ExpiresAt = s.ExpiresAt.Add(time.Duration(hours) * time.Hour)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "new_expires_at": s.ExpiresAt.Format("2006-01-02T15:04:05.000000")})
}

func (b *Backend) listFiles(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.spaces[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "space does not exist"})
		return
	}
	var fs []*file
	for _, f := range b.files {
		if f.SpaceID == id {
			fs = append(fs, f)
		}
	}
	sort.Slice(fs, func(i, j int) bool { return fs[i].ID > fs[j].ID })
	out := make([]map[string]any, 0, len(fs))
	for _, f := range fs {
		out = append(out, b.fileJSON(f, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "files": out, "space": b.spaceJSON(s)})
}

func (b *Backend) createFile(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	b.mu.Lock()
	_, ok := b.spaces[id]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "space does not exist"})
		return
	}

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		in := readJSON(r)
		typ, _ := in["type"].(string)
		content, _ := in["content"].(string)
		if typ != "text" || content == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "bad parameters"})
			return
		}
		fid := b.SeedText(id, content)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "file_id": fid})
		return
	}

	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "no file"})
		return
	}
	defer f.Close()
	data, _ := io.ReadAll(f)
	typ := "file"
	if strings.HasPrefix(hdr.Header.Get("Content-Type"), "image/") {
		typ = "image"
	}
	b.mu.Lock()
	b.nextID++
	fid := b.nextID
	b.files[fid] = &file{ID: fid, SpaceID: id, Type: typ, Filename: hdr.Filename, MimeType: hdr.Header.Get("Content-Type"), Data: data, CreatedAt: time.Now()}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "file_id": fid})
}

func (b *Backend) lookupFile(w http.ResponseWriter, r *http.Request) (*file, bool) {
	b.mu.Lock()
	f, ok := b.files[pathID(r)]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "file does not exist"})
	}
	return f, ok
}

func (b *Backend) getFile(w http.ResponseWriter, r *http.Request) {
	f, ok := b.lookupFile(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	m := b.fileJSON(f, true)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "file": m})
}

func (b *Backend) updateFile(w http.ResponseWriter, r *http.Request) {
	f, ok := b.lookupFile(w, r)
	if !ok {
		return
	}
	in := readJSON(r)
	content, has := in["content"].(string)
	if !has {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "content must not be empty"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if f.Type != "text" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "file is not text"})
		return
	}
	f.Content = content
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *Backend) deleteFile(w http.ResponseWriter, r *http.Request) {
	f, ok := b.lookupFile(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	delete(b.files, f.ID)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *Backend) fileContent(w http.ResponseWriter, r *http.Request) {
	f, ok := b.lookupFile(w, r)
	if !ok {
		return
	}
	if f.Type == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, f.Content)
		return
	}
	w.Header().Set("Content-Type", f.MimeType)
	_, _ = w.Write(f.Data)
}

func (b *Backend) fileDownload(w http.ResponseWriter, r *http.Request) {
	f, ok := b.lookupFile(w, r)
	if !ok {
		return
	}
	if f.Type == "text" {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Disposition", "attachment; filename=text.txt")
		_, _ = io.WriteString(w, f.Content)
		return
	}
	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Filename))
	_, _ = w.Write(f.Data)
}
