package web

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sharezone-cli/internal/api"
	"sharezone-cli/internal/session"
	"sharezone-cli/internal/view"
)

type baseVM struct {
	Title    string
	Server   string
	LoggedIn bool
	Notice   *session.Notice
}

type loginVM struct {
	baseVM
	Error string
}

type homeVM struct {
	baseVM
	Spaces      template.HTML
	CreateError string
	EnterError  string
}

type spaceVM struct {
	baseVM
	SpaceID   int64
	SpaceName string
	Expires   string
	Sidebar   template.HTML
	Files     template.HTML
	Preview   template.HTML
	FileID    int64
	Editing   bool
	Raw       bool
	MaxMB     int64
}

type confirmVM struct {
	baseVM
	Prompt     string
	Action     string
	CancelHref string
}

type deletedVM struct {
	baseVM
	Next string
}

func (s *Server) writeHTMLTemplate(w http.ResponseWriter, status int, name string, data any) {
	var b bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&b, name, data); err != nil {
		s.log.WithError(err).WithField("template", name).Error("render failed")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = b.WriteTo(w)
}

// pageFor resolves the visitor's page, answering 500 on failure.
func (s *Server) pageFor(w http.ResponseWriter, r *http.Request) (*session.Page, bool) {
	v, err := s.visitorFor(w, r)
	if err != nil {
		s.log.WithError(err).Error("visitor setup failed")
		http.Error(w, "session setup failed", http.StatusInternalServerError)
		return nil, false
	}
	return v.page, true
}

// loggedIn sends the visitor to /login when the page is on the login route.
func loggedIn(w http.ResponseWriter, r *http.Request, p *session.Page) bool {
	if p.Snapshot().Route == session.RouteLogin {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return false
	}
	return true
}

// redirectAfter follows an action: a rejected session goes to login, anything
// else to next.
func redirectAfter(w http.ResponseWriter, r *http.Request, p *session.Page, next string) {
	if p.Snapshot().Route == session.RouteLogin {
		next = "/login"
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// base consumes the one-shot notice for rendering.
func (s *Server) base(p *session.Page, title string) baseVM {
	snap := p.Snapshot()
	p.ClearNotice()
	return baseVM{
		Title:    title,
		Server:   s.cfg.BackendURL,
		LoggedIn: snap.Route != session.RouteLogin,
		Notice:   snap.Notice,
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func spaceURL(snap session.State) string {
	if snap.SpaceID == 0 {
		return "/home"
	}
	u := view.SpaceHref(snap.SpaceID)
	if snap.SelectedFileID != 0 {
		u += "?file=" + strconv.FormatInt(snap.SelectedFileID, 10)
	}
	return u
}

// ensureSpace opens id unless it is already the open space.
func ensureSpace(ctx context.Context, p *session.Page, id int64) error {
	snap := p.Snapshot()
	if snap.Route == session.RouteSpace && snap.SpaceID == id {
		return nil
	}
	return p.OpenSpace(ctx, id)
}

// focusFile selects a file and, for direct links, opens its space first.
func focusFile(ctx context.Context, p *session.Page, id int64) error {
	snap := p.Snapshot()
	if snap.SelectedFileID == id && snap.Selected != nil && snap.Selected.ID == id && snap.SpaceID != 0 {
		return nil
	}
	if err := p.SelectFile(ctx, id); err != nil {
		return err
	}
	snap = p.Snapshot()
	if snap.Selected != nil && snap.Selected.SpaceID != 0 && snap.Selected.SpaceID != snap.SpaceID {
		if err := p.OpenSpace(ctx, snap.Selected.SpaceID); err != nil {
			return err
		}
		return p.SelectFile(ctx, id)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleStatic(name, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := assetsFS.ReadFile(name)
		if err != nil || len(b) == 0 {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b)
	}
}

func (s *Server) handleLoginGet(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFor(w, r)
	if !ok {
		return
	}
	snap := p.Snapshot()
	if snap.Route != session.RouteLogin {
		http.Redirect(w, r, "/home", http.StatusSeeOther)
		return
	}
	vm := loginVM{baseVM: s.base(p, "Login"), Error: snap.LoginError}
	p.ClearErrors()
	s.writeHTMLTemplate(w, http.StatusOK, "login.html", vm)
}

func (s *Server) handleLoginPost(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFor(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := p.Login(r.Context(), r.PostForm.Get("password")); err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/home", http.StatusSeeOther)
}

func (s *Server) handleLogoutPost(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFor(w, r)
	if !ok {
		return
	}
	if err := p.Logout(r.Context()); err != nil {
		p.Notify(session.LevelError, "Logout failed, please retry")
		redirectAfter(w, r, p, spaceURL(p.Snapshot()))
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFor(w, r)
	if !ok || !loggedIn(w, r, p) {
		return
	}
	_ = p.GoHome(r.Context())
	snap := p.Snapshot()
	if snap.Route == session.RouteLogin {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	list, err := view.RenderSpaceList(snap.Spaces)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	vm := homeVM{
		baseVM:      s.base(p, "Spaces"),
		Spaces:      list,
		CreateError: snap.CreateError,
		EnterError:  snap.EnterError,
	}
	p.ClearErrors()
	s.writeHTMLTemplate(w, http.StatusOK, "home.html", vm)
}

func (s *Server) handleSpaceCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFor(w, r)
	if !ok || !loggedIn(w, r, p) {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(r.PostForm.Get("name"))
	pw := r.PostForm.Get("password")
	if _, err := p.CreateSpace(r.Context(), name, pw); err != nil && p.Snapshot().Route != session.RouteSpace {
		redirectAfter(w, r, p, "/home")
		return
	}
	redirectAfter(w, r, p, spaceURL(p.Snapshot()))
}

func (s *Server) handleSpaceEnter(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFor(w, r)
	if !ok || !loggedIn(w, r, p) {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := p.EnterSpace(r.Context(), r.PostForm.Get("password")); err != nil && p.Snapshot().Route != session.RouteSpace {
		redirectAfter(w, r, p, "/home")
		return
	}
	redirectAfter(w, r, p, spaceURL(p.Snapshot()))
}

func (s *Server) handleSpace(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFor(w, r)
	if !ok || !loggedIn(w, r, p) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()
	if err := p.OpenSpace(ctx, id); err != nil {
		redirectAfter(w, r, p, "/home")
		return
	}
	_ = p.TouchSpace(ctx)
	if fid, err := strconv.ParseInt(r.URL.Query().Get("file"), 10, 64); err == nil && fid > 0 {
		_ = p.SelectFile(ctx, fid)
	}
	s.renderSpace(w, r, p, false)
}

func (s *Server) renderSpace(w http.ResponseWriter, r *http.Request, p *session.Page, editing bool) {
	snap := p.Snapshot()
	if snap.Route != session.RouteSpace {
		redirectAfter(w, r, p, "/home")
		return
	}
	raw := r.URL.Query().Get("raw") == "1"

	sidebar, err := view.RenderSidebar(snap.Spaces)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	files, err := view.RenderFileList(snap.SpaceID, snap.Files)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var preview template.HTML
	if editing && snap.Editing {
		preview, err = view.RenderEdit(view.EditVM{SpaceID: snap.SpaceID, FileID: snap.SelectedFileID, Draft: snap.Draft})
	} else {
		md := !raw && view.LooksLikeMarkdown(snap.Preview.Content)
		preview, err = view.RenderPreview(snap.Preview, md)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	vm := spaceVM{
		baseVM:    s.base(p, snap.SpaceName),
		SpaceID:   snap.SpaceID,
		SpaceName: snap.SpaceName,
		Sidebar:   sidebar,
		Files:     files,
		Preview:   preview,
		FileID:    snap.SelectedFileID,
		Editing:   editing && snap.Editing,
		Raw:       raw,
		MaxMB:     p.MaxUploadBytes() >> 20,
	}
	for _, it := range snap.Spaces.Items {
		if it.Active {
			vm.Expires = it.Expires
		}
	}
	s.writeHTMLTemplate(w, http.StatusOK, "space.html", vm)
}

func (s *Server) handleTextSubmit(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFor(w, r)
	if !ok || !loggedIn(w, r, p) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	if err := ensureSpace(ctx, p, id); err != nil {
		redirectAfter(w, r, p, "/home")
		return
	}
	content := r.PostForm.Get("content")
	if strings.TrimSpace(content) == "" {
		p.Notify(session.LevelInfo, "Nothing to submit")
	} else {
		_, _ = p.SubmitText(ctx, content)
	}
	redirectAfter(w, r, p, view.SpaceHref(id))
}

// parseUploads reads a multipart form. Oversized parts are still accepted here
// so the page can reject them by size without contacting the backend.
func (s *Server) parseUploads(w http.ResponseWriter, r *http.Request) ([]session.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, 8*s.cfg.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return nil, err
	}
	var out []session.Upload
	for _, fh := range r.MultipartForm.File["file"] {
		out = append(out, uploadFromHeader(fh))
	}
	return out, nil
}

func uploadFromHeader(fh *multipart.FileHeader) session.Upload {
	return session.Upload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFor(w, r)
	if !ok || !loggedIn(w, r, p) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	uploads, err := s.parseUploads(w, r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			p.Notify(session.LevelError, (&session.TooLargeError{Limit: s.cfg.MaxUploadBytes}).Error())
		} else {
			p.Notify(session.LevelError, "Upload failed, please retry")
		}
		redirectAfter(w, r, p, view.SpaceHref(id))
		return
	}
	ctx := r.Context()
	if err := ensureSpace(ctx, p, id); err != nil {
		redirectAfter(w, r, p, "/home")
		return
	}
	if len(uploads) == 0 {
		p.Notify(session.LevelInfo, "No file selected")
	} else {
		_ = p.UploadAll(ctx, uploads)
	}
	redirectAfter(w, r, p, view.SpaceHref(id))
}

func (s *Server) handlePaste(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFor(w, r)
	if !ok || !loggedIn(w, r, p) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	uploads, err := s.parseUploads(w, r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	if err := ensureSpace(ctx, p, id); err != nil {
		redirectAfter(w, r, p, "/home")
		return
	}
	var items []session.PasteItem
	for _, u := range uploads {
		items = append(items, session.FileItem(u))
	}
	if text := r.FormValue("text"); text != "" {
		items = append(items, session.TextItem(text))
	}
	_, _ = p.HandlePaste(ctx, items)
	redirectAfter(w, r, p, view.SpaceHref(id))
}

func (s *Server) handleSpaceExtend(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFor(w, r)
	if !ok || !loggedIn(w, r, p) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	hours, _ := strconv.Atoi(r.PostForm.Get("hours"))
	ctx := r.Context()
	if err := ensureSpace(ctx, p, id); err != nil {
		redirectAfter(w, r, p, "/home")
		return
	}
	_, _ = p.ExtendSpace(ctx, hours)
	redirectAfter(w, r, p, spaceURL(p.Snapshot()))
}

func (s *Server) handleSpaceDelete(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFor(w, r)
	if !ok || !loggedIn(w, r, p) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	ctx := r.Context()
	if err := ensureSpace(ctx, p, id); err != nil {
		redirectAfter(w, r, p, "/home")
		return
	}
	if err := p.DeleteSpace(ctx); err != nil {
		redirectAfter(w, r, p, spaceURL(p.Snapshot()))
		return
	}
	delay := int(s.cfg.DeleteRedirectDelay.Round(time.Second) / time.Second)
	w.Header().Set("Refresh", strconv.Itoa(delay)+"; url=/home")
	s.writeHTMLTemplate(w, http.StatusOK, "deleted.html", deletedVM{
		baseVM: s.base(p, "Space deleted"),
		Next:   "/home",
	})
}

func (s *Server) handleEditGet(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFor(w, r)
	if !ok || !loggedIn(w, r, p) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := focusFile(r.Context(), p, id); err != nil {
		redirectAfter(w, r, p, spaceURL(p.Snapshot()))
		return
	}
	if err := p.BeginEdit(); err != nil {
		p.Notify(session.LevelError, "Only text files can be edited")
		redirectAfter(w, r, p, spaceURL(p.Snapshot()))
		return
	}
	s.renderSpace(w, r, p, true)
}

func (s *Server) handleEditPost(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFor(w, r)
	if !ok || !loggedIn(w, r, p) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	if err := focusFile(ctx, p, id); err != nil {
		redirectAfter(w, r, p, spaceURL(p.Snapshot()))
		return
	}
	if err := p.SaveText(ctx, r.PostForm.Get("content")); err != nil {
		if p.Snapshot().Route == session.RouteLogin {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		// The draft is kept; show the form again with the error notice.
		s.renderSpace(w, r, p, true)
		return
	}
	redirectAfter(w, r, p, spaceURL(p.Snapshot()))
}

func (s *Server) handleDeleteGet(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFor(w, r)
	if !ok || !loggedIn(w, r, p) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.writeHTMLTemplate(w, http.StatusOK, "confirm.html", confirmVM{
		baseVM:     s.base(p, "Delete file"),
		Prompt:     "Delete this file?",
		Action:     "/files/" + strconv.FormatInt(id, 10) + "/delete",
		CancelHref: spaceURL(p.Snapshot()),
	})
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	p, ok := s.pageFor(w, r)
	if !ok || !loggedIn(w, r, p) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	// The confirmation page already asked.
	_, _ = p.DeleteFile(r.Context(), id, session.Yes)
	redirectAfter(w, r, p, spaceURL(p.Snapshot()))
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	s.proxyFile(w, r, false)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.proxyFile(w, r, true)
}

// proxyFile streams a backend file to the browser.
func (s *Server) proxyFile(w http.ResponseWriter, r *http.Request, attachment bool) {
	p, ok := s.pageFor(w, r)
	if !ok || !loggedIn(w, r, p) {
		return
	}
	id, ok := pathID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}

	var (
		st  *api.Stream
		err error
	)
	if attachment {
		st, err = p.Download(r.Context(), id)
	} else {
		st, err = p.Content(r.Context(), id)
	}
	if err != nil {
		if api.IsUnauthorized(err) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		status := http.StatusBadGateway
		if ae, ok := api.AsAppError(err); ok && ae.Status >= 400 {
			status = ae.Status
		}
		http.Error(w, http.StatusText(status), status)
		return
	}
	defer st.Body.Close()

	if st.ContentType != "" {
		w.Header().Set("Content-Type", st.ContentType)
	}
	if st.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(st.Size, 10))
	}
	if attachment {
		name := st.Filename
		if name == "" {
			name = "file-" + strconv.FormatInt(id, 10)
		}
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, st.Body); err != nil {
		s.log.WithError(err).WithField("file_id", id).Debug("stream interrupted")
	}
}
