package session

import (
	"context"
	"errors"
	"io"
	"net/http/cookiejar"
	"strings"
	"testing"
	"time"

	"sharezone-cli/internal/api"
	"sharezone-cli/internal/api/apitest"
	"sharezone-cli/internal/view"
)

const (
	routeListFiles  = "GET /api/spaces/{id}/files"
	routeCreateFile = "POST /api/spaces/{id}/files"
	routeGetFile    = "GET /api/files/{id}"
	routeUpdateFile = "PUT /api/files/{id}"
	routeDeleteFile = "DELETE /api/files/{id}"
	routeListSpaces = "GET /api/spaces"
)

func newPage(t *testing.T, b *apitest.Backend, opts Options) *Page {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	c, err := api.New(api.Config{BaseURL: b.URL(), Jar: jar})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	return New(c, opts)
}

// loggedInSpace returns a page logged in and positioned in a fresh space.
func loggedInSpace(t *testing.T, opts Options) (*Page, *apitest.Backend, int64) {
	t.Helper()
	b := apitest.New(t, "secret")
	p := newPage(t, b, opts)
	ctx := context.Background()
	if err := p.Login(ctx, "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	id := b.SeedSpace("notes", "pw")
	if err := p.OpenSpace(ctx, id); err != nil {
		t.Fatalf("open space: %v", err)
	}
	return p, b, id
}

func TestLogin_EmptyPasswordSendsNothing(t *testing.T) {
	b := apitest.New(t, "secret")
	p := newPage(t, b, Options{})

	err := p.Login(context.Background(), "")
	if !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("err = %v", err)
	}
	if b.TotalHits() != 0 {
		t.Fatalf("expected no request, got %d", b.TotalHits())
	}
	st := p.Snapshot()
	if st.LoginError != MsgPasswordRequired || st.Route != RouteLogin {
		t.Fatalf("state = %+v", st)
	}
}

func TestLogin_WrongPasswordShowsBackendMessage(t *testing.T) {
	b := apitest.New(t, "secret")
	p := newPage(t, b, Options{})

	if err := p.Login(context.Background(), "nope"); err == nil {
		t.Fatalf("expected error")
	}
	st := p.Snapshot()
	if st.LoginError != "wrong password" || st.Route != RouteLogin {
		t.Fatalf("state = %+v", st)
	}
}

func TestLogin_SuccessLoadsHome(t *testing.T) {
	b := apitest.New(t, "secret")
	b.SeedSpace("a", "pa")
	p := newPage(t, b, Options{})

	if err := p.Login(context.Background(), "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	st := p.Snapshot()
	if st.Route != RouteHome || st.LoginError != "" {
		t.Fatalf("state = %+v", st)
	}
	if b.Hits(routeListSpaces) != 1 || len(st.Spaces.Items) != 1 {
		t.Fatalf("expected spaces loaded once: hits=%d list=%+v", b.Hits(routeListSpaces), st.Spaces)
	}
}

func TestUnauthorizedRoutesToLogin(t *testing.T) {
	b := apitest.New(t, "secret")
	id := b.SeedSpace("a", "pa")
	p := newPage(t, b, Options{})

	if err := p.OpenSpace(context.Background(), id); !api.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	st := p.Snapshot()
	if st.Route != RouteLogin || st.SpaceID != 0 {
		t.Fatalf("state = %+v", st)
	}
	if st.Notice == nil || st.Notice.Level != LevelError || st.Notice.Text != "not logged in" {
		t.Fatalf("notice = %+v", st.Notice)
	}
}

func TestCreateAndEnterSpace_Navigate(t *testing.T) {
	b := apitest.New(t, "secret")
	p := newPage(t, b, Options{})
	ctx := context.Background()
	if err := p.Login(ctx, "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}

	id, err := p.CreateSpace(ctx, "work", "pw1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	st := p.Snapshot()
	if st.Route != RouteSpace || st.SpaceID != id || st.SpaceName != "work" {
		t.Fatalf("after create: %+v", st)
	}
	if b.Hits(routeListFiles) != 1 {
		t.Fatalf("expected file list fetched after create, hits=%d", b.Hits(routeListFiles))
	}
	if st.Files.Empty != view.EmptyFiles {
		t.Fatalf("files = %+v", st.Files)
	}
	active := 0
	for _, it := range st.Spaces.Items {
		if it.Active {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("expected the new space to be active in the sidebar: %+v", st.Spaces)
	}

	if _, err := p.CreateSpace(ctx, "work", "pw2"); err == nil {
		t.Fatalf("expected duplicate to fail")
	}
	if got := p.Snapshot().CreateError; got != "space name already exists" {
		t.Fatalf("create error = %q", got)
	}

	if err := p.GoHome(ctx); err != nil {
		t.Fatalf("home: %v", err)
	}
	before := b.Hits(routeListFiles)
	sp, err := p.EnterSpace(ctx, "pw1")
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	if sp.ID != id || p.Snapshot().SpaceID != id {
		t.Fatalf("entered %+v", sp)
	}
	if b.Hits(routeListFiles) != before+1 {
		t.Fatalf("expected re-fetch after enter")
	}

	if _, err := p.EnterSpace(ctx, "bad"); err == nil {
		t.Fatalf("expected wrong password to fail")
	}
	if got := p.Snapshot().EnterError; got != "wrong password or space does not exist" {
		t.Fatalf("enter error = %q", got)
	}
}

func TestUpload_OverLimitSendsNoRequest(t *testing.T) {
	p, b, _ := loggedInSpace(t, Options{})
	before := b.TotalHits()

	opened := false
	_, err := p.Upload(context.Background(), Upload{
		Name: "big.iso",
		Size: 20*1024*1024 + 1,
		Open: func() (io.ReadCloser, error) {
			opened = true
			return io.NopCloser(strings.NewReader("")), nil
		},
	})
	var tooLarge *TooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected TooLargeError, got %v", err)
	}
	if opened {
		t.Fatalf("content must not be read for an oversized upload")
	}
	if b.TotalHits() != before {
		t.Fatalf("expected no request, hits went %d -> %d", before, b.TotalHits())
	}
	st := p.Snapshot()
	if st.Notice == nil || st.Notice.Text != "File exceeds the 20 MB limit" {
		t.Fatalf("notice = %+v", st.Notice)
	}
}

func TestMutationsRefetchList(t *testing.T) {
	p, b, spaceID := loggedInSpace(t, Options{})
	ctx := context.Background()

	hits := func() int { return b.Hits(routeListFiles) }
	n := hits()

	if _, err := p.Upload(ctx, UploadFromBytes("a.txt", "text/plain", []byte("hello"))); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if hits() != n+1 {
		t.Fatalf("upload: expected re-fetch")
	}
	n = hits()
	if st := p.Snapshot(); st.Notice == nil || st.Notice.Text != "File uploaded" || len(st.Files.Items) != 1 {
		t.Fatalf("after upload: %+v", st)
	}

	textID, err := p.SubmitText(ctx, "note")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if hits() != n+1 {
		t.Fatalf("submit: expected re-fetch")
	}
	if st := p.Snapshot(); st.Notice.Text != "Text submitted" || len(st.FileRecords) != 2 {
		t.Fatalf("after submit: %+v", st)
	}

	if err := p.SelectFile(ctx, textID); err != nil {
		t.Fatalf("select: %v", err)
	}
	st := p.Snapshot()
	if st.Preview.Kind != view.PreviewText || st.Preview.Content != "note" {
		t.Fatalf("preview = %+v", st.Preview)
	}
	highlighted := 0
	for _, it := range st.Files.Items {
		if it.Active {
			highlighted++
			if it.ID != textID {
				t.Fatalf("wrong row highlighted: %+v", it)
			}
		}
	}
	if highlighted != 1 {
		t.Fatalf("expected one highlighted row, got %d", highlighted)
	}

	if err := p.BeginEdit(); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	getHits := b.Hits(routeGetFile)
	n = hits()
	if err := p.SaveText(ctx, "edited"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if b.Hits(routeGetFile) != getHits+1 || hits() != n+1 {
		t.Fatalf("save: expected re-select and re-fetch")
	}
	st = p.Snapshot()
	if st.Editing || st.Preview.Content != "edited" {
		t.Fatalf("after save: %+v", st)
	}
	if got := b.Texts(spaceID); len(got) != 1 || got[0] != "edited" {
		t.Fatalf("backend texts = %v", got)
	}
}

func TestDeleteSelectedFile_ClearsSelectionPreviewAndDraft(t *testing.T) {
	p, b, spaceID := loggedInSpace(t, Options{})
	ctx := context.Background()
	id := b.SeedText(spaceID, "doomed")

	if err := p.SelectFile(ctx, id); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := p.BeginEdit(); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	p.SetDraft("half typed")

	n := b.Hits(routeListFiles)
	ok, err := p.DeleteFile(ctx, id, Yes)
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	st := p.Snapshot()
	if st.SelectedFileID != 0 || st.Selected != nil {
		t.Fatalf("selection not cleared: %+v", st)
	}
	if st.Preview.Kind != view.PreviewNone || st.Preview.Placeholder != view.PreviewPlaceholder {
		t.Fatalf("preview not reset: %+v", st.Preview)
	}
	if st.Editing || st.Draft != "" {
		t.Fatalf("edit draft survived deletion: editing=%v draft=%q", st.Editing, st.Draft)
	}
	if b.Hits(routeListFiles) != n+1 || st.Files.Empty != view.EmptyFiles {
		t.Fatalf("expected re-fetch to empty list: %+v", st.Files)
	}
}

func TestDeleteOtherFile_KeepsSelection(t *testing.T) {
	p, b, spaceID := loggedInSpace(t, Options{})
	ctx := context.Background()
	keep := b.SeedText(spaceID, "keep")
	drop := b.SeedText(spaceID, "drop")

	if err := p.SelectFile(ctx, keep); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := p.DeleteFile(ctx, drop, Yes); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if st := p.Snapshot(); st.SelectedFileID != keep || st.Preview.Content != "keep" {
		t.Fatalf("selection changed: %+v", st)
	}
}

func TestDeleteFile_DeclinedSendsNothing(t *testing.T) {
	p, b, spaceID := loggedInSpace(t, Options{})
	id := b.SeedText(spaceID, "stay")

	var asked string
	c := ConfirmFunc(func(_ context.Context, prompt string) (bool, error) {
		asked = prompt
		return false, nil
	})
	ok, err := p.DeleteFile(context.Background(), id, c)
	if ok || err != nil {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if asked != "Delete this file?" {
		t.Fatalf("prompt = %q", asked)
	}
	if b.Hits(routeDeleteFile) != 0 || b.FileCount(spaceID) != 1 {
		t.Fatalf("declined delete reached the backend")
	}
}

func TestHandlePaste_FilesWinOverText(t *testing.T) {
	p, b, spaceID := loggedInSpace(t, Options{})

	res, err := p.HandlePaste(context.Background(), []PasteItem{
		TextItem("ignored text"),
		FileItem(UploadFromBytes("one.png", "image/png", []byte("1"))),
		FileItem(UploadFromBytes("two.txt", "text/plain", []byte("2"))),
	})
	if err != nil {
		t.Fatalf("paste: %v", err)
	}
	if res.Uploaded != 2 || res.TextSubmitted {
		t.Fatalf("result = %+v", res)
	}
	if got := b.FileNames(spaceID); len(got) != 2 || got[0] != "one.png" || got[1] != "two.txt" {
		t.Fatalf("uploaded = %v", got)
	}
	if got := b.Texts(spaceID); len(got) != 0 {
		t.Fatalf("text should have been ignored, got %v", got)
	}
}

func TestHandlePaste_Text(t *testing.T) {
	p, b, spaceID := loggedInSpace(t, Options{})
	ctx := context.Background()

	res, err := p.HandlePaste(ctx, []PasteItem{{Kind: PasteString, Type: "text/html", Text: "<b>x</b>"}, TextItem("   \n")})
	if err != nil || res.TextSubmitted {
		t.Fatalf("blank paste: res=%+v err=%v", res, err)
	}
	if b.Hits(routeCreateFile) != 0 {
		t.Fatalf("blank paste reached the backend")
	}

	res, err = p.HandlePaste(ctx, []PasteItem{TextItem("first"), TextItem("second")})
	if err != nil || !res.TextSubmitted {
		t.Fatalf("text paste: res=%+v err=%v", res, err)
	}
	if got := b.Texts(spaceID); len(got) != 1 || got[0] != "first" {
		t.Fatalf("texts = %v", got)
	}
}

func TestUploadAll_Sequential(t *testing.T) {
	p, b, spaceID := loggedInSpace(t, Options{MaxUploadBytes: 4})
	err := p.UploadAll(context.Background(), []Upload{
		UploadFromBytes("a.bin", "", []byte("aa")),
		UploadFromBytes("big.bin", "", []byte("too big")),
		UploadFromBytes("c.bin", "", []byte("cc")),
	})
	var tooLarge *TooLargeError
	if !errors.As(err, &tooLarge) || tooLarge.Name != "big.bin" {
		t.Fatalf("err = %v", err)
	}
	if got := b.FileNames(spaceID); len(got) != 2 || got[0] != "a.bin" || got[1] != "c.bin" {
		t.Fatalf("uploaded = %v", got)
	}
}

func TestTaskTimeout_StopsStalledRequest(t *testing.T) {
	p, b, _ := loggedInSpace(t, Options{Timeout: 50 * time.Millisecond})
	b.Stall(routeListFiles)

	done := make(chan error, 1)
	go func() { done <- p.LoadFiles(context.Background()) }()

	select {
	case err := <-done:
		if !api.IsTransport(err) || !api.IsCanceled(err) {
			t.Fatalf("expected cancelled transport error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("task did not give up on a stalled request")
	}
	st := p.Snapshot()
	if st.Notice == nil || st.Notice.Text != "Loading files failed, please retry" {
		t.Fatalf("notice = %+v", st.Notice)
	}
	if st.Route != RouteSpace {
		t.Fatalf("transport failure must not log the viewer out: %+v", st)
	}
}

func TestCancel_StopsInFlightUpload(t *testing.T) {
	p, b, _ := loggedInSpace(t, Options{})
	b.Stall(routeCreateFile)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Upload(ctx, UploadFromBytes("a.txt", "", []byte("a")))
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled in chain, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("cancel did not stop the upload")
	}
}

func TestDeleteSpace_ReturnsHome(t *testing.T) {
	p, b, spaceID := loggedInSpace(t, Options{DeleteRedirectDelay: 10 * time.Millisecond})
	n := b.Hits(routeListSpaces)

	if err := p.DeleteSpace(context.Background()); err != nil {
		t.Fatalf("delete space: %v", err)
	}
	st := p.Snapshot()
	if st.Route != RouteHome || st.SpaceID != 0 {
		t.Fatalf("state = %+v", st)
	}
	if b.Hits(routeListSpaces) != n+1 || st.Spaces.Empty != view.EmptySpaces {
		t.Fatalf("expected space list re-fetched and empty: %+v", st.Spaces)
	}
	if st.Notice == nil || st.Notice.Text != "Space deleted" {
		t.Fatalf("notice = %+v", st.Notice)
	}
	if b.FileCount(spaceID) != 0 {
		t.Fatalf("backend still has files")
	}
}

func TestDeleteSpace_CancelCutsDelayShort(t *testing.T) {
	p, _, _ := loggedInSpace(t, Options{DeleteRedirectDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.DeleteSpace(ctx) }()

	deadline := time.After(5 * time.Second)
	for {
		if n := p.Snapshot().Notice; n != nil && n.Text == "Space deleted" {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("delete did not complete")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("delete space: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("cancel did not cut the redirect delay short")
	}
	if st := p.Snapshot(); st.Route != RouteHome || st.SpaceID != 0 {
		t.Fatalf("state = %+v", st)
	}
}

func TestBeginEdit_RequiresTextSelection(t *testing.T) {
	p, _, _ := loggedInSpace(t, Options{})
	ctx := context.Background()

	if err := p.BeginEdit(); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("err = %v", err)
	}
	id, err := p.Upload(ctx, UploadFromBytes("pic.png", "image/png", []byte("x")))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := p.SelectFile(ctx, id); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := p.BeginEdit(); !errors.Is(err, ErrNotEditable) {
		t.Fatalf("err = %v", err)
	}
	if p.Snapshot().Preview.Kind != view.PreviewImage {
		t.Fatalf("preview = %+v", p.Snapshot().Preview)
	}
}

func TestLogout_ClearsState(t *testing.T) {
	p, _, _ := loggedInSpace(t, Options{})
	if err := p.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	st := p.Snapshot()
	if st.Route != RouteLogin || st.SpaceID != 0 || len(st.SpaceRecords) != 0 {
		t.Fatalf("state = %+v", st)
	}
	ok, err := p.Verify(context.Background())
	if err != nil || ok {
		t.Fatalf("verify after logout: ok=%v err=%v", ok, err)
	}
}

func assertNoSelection(t *testing.T, st State) {
	t.Helper()
	if st.SelectedFileID != 0 || st.Selected != nil || st.Preview.Kind != view.PreviewNone {
		t.Fatalf("selection split: id=%d selected=%+v preview=%+v", st.SelectedFileID, st.Selected, st.Preview)
	}
	if st.Editing || st.Draft != "" {
		t.Fatalf("draft survived: editing=%v draft=%q", st.Editing, st.Draft)
	}
}

func TestSelectFile_FailedFetchDropsPreviousFile(t *testing.T) {
	p, b, spaceID := loggedInSpace(t, Options{})
	ctx := context.Background()
	alpha := b.SeedText(spaceID, "alpha")
	bravo := b.SeedText(spaceID, "bravo")

	if err := p.SelectFile(ctx, alpha); err != nil {
		t.Fatalf("select alpha: %v", err)
	}
	b.Fail(routeGetFile, "file unavailable")
	if err := p.SelectFile(ctx, bravo); err == nil {
		t.Fatalf("expected select to fail")
	}
	assertNoSelection(t, p.Snapshot())

	if err := p.BeginEdit(); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("begin edit: %v", err)
	}
	if err := p.SaveText(ctx, "alpha (edited)"); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("save: %v", err)
	}
	if b.Hits(routeUpdateFile) != 0 {
		t.Fatalf("save reached the backend")
	}
	if got := b.Texts(spaceID); len(got) != 2 || got[0] != "alpha" || got[1] != "bravo" {
		t.Fatalf("backend texts = %v", got)
	}
}

func TestSelectFile_CancelledFetchDropsPreviousFile(t *testing.T) {
	p, b, spaceID := loggedInSpace(t, Options{})
	alpha := b.SeedText(spaceID, "alpha")
	bravo := b.SeedText(spaceID, "bravo")

	if err := p.SelectFile(context.Background(), alpha); err != nil {
		t.Fatalf("select alpha: %v", err)
	}
	if err := p.BeginEdit(); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	b.Stall(routeGetFile)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := p.SelectFile(ctx, bravo); !api.IsCanceled(err) {
		t.Fatalf("expected cancelled select, got %v", err)
	}
	assertNoSelection(t, p.Snapshot())
}

func TestSaveText_RefusesWhenLoadedFileDiffers(t *testing.T) {
	p, b, spaceID := loggedInSpace(t, Options{})
	ctx := context.Background()
	alpha := b.SeedText(spaceID, "alpha")
	bravo := b.SeedText(spaceID, "bravo")

	if err := p.SelectFile(ctx, alpha); err != nil {
		t.Fatalf("select: %v", err)
	}
	p.update(func(st *State) { st.SelectedFileID = bravo })

	if err := p.SaveText(ctx, "alpha (edited)"); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("save: %v", err)
	}
	if b.Hits(routeUpdateFile) != 0 {
		t.Fatalf("save reached the backend")
	}
}

func TestUpload_SmallLimitMessage(t *testing.T) {
	p, _, _ := loggedInSpace(t, Options{MaxUploadBytes: 512})

	_, err := p.Upload(context.Background(), UploadFromBytes("a.txt", "text/plain", make([]byte, 513)))
	if err == nil || err.Error() != "File exceeds the 512 B limit" {
		t.Fatalf("err = %v", err)
	}
}
