// Package session holds the client-side state of one viewer and the actions
// that change it.
//
// A Page is the explicit replacement for page-global variables: it knows the
// current route, space, selected file, pending edit and the last notice. Every
// action is a request/response task: issue the backend call, then re-fetch the
// affected list and rebuild its view model. Nothing is patched in place.
package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"sharezone-cli/internal/api"
	"sharezone-cli/internal/model"
	"sharezone-cli/internal/view"
)

// Backend is the subset of the REST client a Page drives. *api.Client implements it.
type Backend interface {
	Login(ctx context.Context, password string) error
	Logout(ctx context.Context) error
	Verify(ctx context.Context) (bool, error)

	ListSpaces(ctx context.Context) ([]model.Space, error)
	CreateSpace(ctx context.Context, name, password string) (int64, error)
	EnterSpace(ctx context.Context, password string) (model.Space, error)
	DeleteSpace(ctx context.Context, id int64) error
	TouchSpace(ctx context.Context, id int64) error
	ExtendSpace(ctx context.Context, id int64, hours int) (model.Timestamp, error)

	ListFiles(ctx context.Context, spaceID int64) (*api.Listing, error)
	SubmitText(ctx context.Context, spaceID int64, text string) (int64, error)
	UploadFile(ctx context.Context, spaceID int64, filename, contentType string, r io.Reader) (int64, error)
	GetFile(ctx context.Context, id int64) (model.File, error)
	UpdateText(ctx context.Context, id int64, content string) error
	DeleteFile(ctx context.Context, id int64) error
	Content(ctx context.Context, id int64) (*api.Stream, error)
	Download(ctx context.Context, id int64) (*api.Stream, error)
	DownloadURL(id int64) string
}

var _ Backend = (*api.Client)(nil)

type Route string

const (
	RouteLogin Route = "login"
	RouteHome  Route = "home"
	RouteSpace Route = "space"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notice is the transient banner shown after an action.
type Notice struct {
	Level Level
	Text  string
	At    time.Time
}

// State is a point-in-time copy of a Page. View-model slices are rebuilt on
// every fetch and never mutated afterwards, so sharing them is safe.
type State struct {
	Route Route

	SpaceID        int64
	SpaceName      string
	SelectedFileID int64

	SpaceRecords []model.Space
	FileRecords  []model.File
	Selected     *model.File

	Spaces  view.SpaceList
	Files   view.FileList
	Preview view.PreviewVM

	Editing bool
	Draft   string

	Notice *Notice

	LoginError  string
	CreateError string
	EnterError  string
}

// Options tune a Page. Zero values fall back to the defaults below.
type Options struct {
	// Timeout bounds every task. Zero disables the per-task deadline.
	Timeout             time.Duration
	MaxUploadBytes      int64
	DeleteRedirectDelay time.Duration
	Logger              logrus.FieldLogger
}

const DefaultDeleteRedirectDelay = time.Second

// Page is the state of one viewer. Methods are safe for concurrent use; the
// lock is never held across a backend call.
type Page struct {
	be   Backend
	opts Options
	log  logrus.FieldLogger
	now  func() time.Time

	mu sync.Mutex
	st State
}

func New(be Backend, opts Options) *Page {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = api.MaxUploadBytes
	}
	if opts.DeleteRedirectDelay < 0 {
		opts.DeleteRedirectDelay = 0
	}
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Page{
		be:   be,
		opts: opts,
		log:  log,
		now:  time.Now,
		st: State{
			Route:   RouteLogin,
			Spaces:  view.Spaces(nil, 0, time.Time{}),
			Files:   view.Files(nil, 0),
			Preview: view.EmptyPreview(),
		},
	}
}

// Snapshot returns a copy of the current state for rendering.
func (p *Page) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.st
	if p.st.Selected != nil {
		f := *p.st.Selected
		st.Selected = &f
	}
	if p.st.Notice != nil {
		n := *p.st.Notice
		st.Notice = &n
	}
	return st
}

// Backend exposes the client the page drives (for surfaces that stream
// content directly).
func (p *Page) Backend() Backend { return p.be }

func (p *Page) MaxUploadBytes() int64 { return p.opts.MaxUploadBytes }

// Notify replaces the current notice.
func (p *Page) Notify(level Level, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.st.Notice = &Notice{Level: level, Text: text, At: p.now()}
}

func (p *Page) ClearNotice() {
	p.mu.Lock()
	p.st.Notice = nil
	p.mu.Unlock()
}

// ClearErrors drops the inline form errors once they have been shown.
func (p *Page) ClearErrors() {
	p.mu.Lock()
	p.st.LoginError = ""
	p.st.CreateError = ""
	p.st.EnterError = ""
	p.mu.Unlock()
}

// task derives the context for one action.
func (p *Page) task(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.Timeout > 0 {
		return context.WithTimeout(ctx, p.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

func (p *Page) update(fn func(st *State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.st)
}

// describe turns an action failure into the message shown to the user.
func describe(action, fallback string, err error) string {
	if ae, ok := api.AsAppError(err); ok {
		if ae.Message != "" {
			return ae.Message
		}
		return fallback
	}
	var tooLarge *TooLargeError
	if errors.As(err, &tooLarge) {
		return tooLarge.Error()
	}
	return action + " failed, please retry"
}

// fail logs err and reports it. A rejected session sends the viewer back to
// login; set stores the message where the action displays it (nil means the
// notice banner).
func (p *Page) fail(action, fallback string, err error, set func(st *State, msg string)) string {
	msg := describe(action, fallback, err)
	p.log.WithField("action", action).WithError(err).Warn("action failed")
	p.update(func(st *State) {
		if api.IsUnauthorized(err) {
			p.resetLocked(st)
			st.Route = RouteLogin
		}
		if set != nil {
			set(st, msg)
			return
		}
		st.Notice = &Notice{Level: LevelError, Text: msg, At: p.now()}
	})
	return msg
}

func (p *Page) succeed(text string) {
	p.update(func(st *State) {
		st.Notice = &Notice{Level: LevelSuccess, Text: text, At: p.now()}
	})
}

// resetLocked clears everything tied to the current space.
func (p *Page) resetLocked(st *State) {
	st.SpaceID = 0
	st.SpaceName = ""
	st.FileRecords = nil
	st.Files = view.Files(nil, 0)
	p.clearSelectionLocked(st)
}

func (p *Page) clearSelectionLocked(st *State) {
	st.SelectedFileID = 0
	st.Selected = nil
	st.Preview = view.EmptyPreview()
	st.Editing = false
	st.Draft = ""
}
