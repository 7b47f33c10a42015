package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"sharezone-cli/internal/api"
	"sharezone-cli/internal/view"
)

var (
	// ErrNoSelection is returned by edit actions when no file is selected.
	ErrNoSelection = errors.New("no file selected")
	// ErrNotEditable is returned by BeginEdit for non-text files.
	ErrNotEditable = errors.New("only text files can be edited")
)

// TooLargeError rejects an upload before any request is made.
type TooLargeError struct {
	Name  string
	Size  int64
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("File exceeds the %s limit", view.FormatLimit(e.Limit))
}

// Upload is one file to send. Size must be known up front so the size guard
// can run without reading the content.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// UploadFromPath describes a local file.
func UploadFromPath(path string) (Upload, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Upload{}, err
	}
	if fi.IsDir() {
		return Upload{}, fmt.Errorf("%s is a directory", path)
	}
	return Upload{
		Name: filepath.Base(path),
		Size: fi.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// UploadFromBytes wraps in-memory content (clipboard images, form parts).
func UploadFromBytes(name, contentType string, data []byte) Upload {
	return Upload{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func (p *Page) currentSpace() (int64, error) {
	id := p.Snapshot().SpaceID
	if id == 0 {
		return 0, ErrNoSpace
	}
	return id, nil
}

// LoadFiles re-fetches the file list of the open space and its name.
func (p *Page) LoadFiles(ctx context.Context) error {
	spaceID, err := p.currentSpace()
	if err != nil {
		return err
	}
	ctx, cancel := p.task(ctx)
	defer cancel()
	listing, err := p.be.ListFiles(ctx, spaceID)
	if err != nil {
		p.fail("Loading files", "Loading files failed", err, nil)
		return err
	}
	p.update(func(st *State) {
		if st.SpaceID != spaceID {
			// Navigated away while the request was in flight.
			return
		}
		if listing.Space.Name != "" {
			st.SpaceName = listing.Space.Name
		}
		st.FileRecords = listing.Files
		st.Files = view.Files(listing.Files, st.SelectedFileID)
	})
	return nil
}

// SelectFile shows a file in the preview pane and re-fetches the list so the
// highlight follows the selection.
func (p *Page) SelectFile(ctx context.Context, id int64) error {
	p.update(func(st *State) {
		st.SelectedFileID = id
		st.Editing = false
		st.Draft = ""
	})

	tctx, cancel := p.task(ctx)
	f, err := p.be.GetFile(tctx, id)
	cancel()
	if err != nil {
		// The previous file's preview must not stand in for id.
		p.update(func(st *State) {
			if st.SelectedFileID == id {
				p.clearSelectionLocked(st)
			}
		})
		p.fail("Loading file", "Loading file failed", err, nil)
		return err
	}
	p.update(func(st *State) {
		if st.SelectedFileID != id {
			return
		}
		st.Selected = &f
		st.Preview = view.Preview(&f, p.now())
	})
	return p.refreshFiles(ctx)
}

// refreshFiles re-fetches the list when a space is open. Actions addressed by
// file id (CLI show/delete) may run without one.
func (p *Page) refreshFiles(ctx context.Context) error {
	if p.Snapshot().SpaceID == 0 {
		return nil
	}
	return p.LoadFiles(ctx)
}

// SubmitText stores a text snippet in the open space.
func (p *Page) SubmitText(ctx context.Context, text string) (int64, error) {
	spaceID, err := p.currentSpace()
	if err != nil {
		return 0, err
	}
	tctx, cancel := p.task(ctx)
	id, err := p.be.SubmitText(tctx, spaceID, text)
	cancel()
	if err != nil {
		p.fail("Submit", "Submit failed", err, nil)
		return 0, err
	}
	p.succeed("Text submitted")
	return id, p.LoadFiles(ctx)
}

// Upload sends one file. Files over the size limit are rejected locally and
// never reach the backend.
func (p *Page) Upload(ctx context.Context, u Upload) (int64, error) {
	spaceID, err := p.currentSpace()
	if err != nil {
		return 0, err
	}
	if u.Size > p.opts.MaxUploadBytes {
		err := &TooLargeError{Name: u.Name, Size: u.Size, Limit: p.opts.MaxUploadBytes}
		p.fail("Upload", "Upload failed", err, nil)
		return 0, err
	}
	if u.Open == nil {
		return 0, fmt.Errorf("upload %s: no content", u.Name)
	}

	rc, err := u.Open()
	if err != nil {
		p.fail("Upload", "Upload failed", err, nil)
		return 0, err
	}
	tctx, cancel := p.task(ctx)
	id, err := p.be.UploadFile(tctx, spaceID, u.Name, u.ContentType, rc)
	cancel()
	_ = rc.Close()
	if err != nil {
		p.fail("Upload", "Upload failed", err, nil)
		return 0, err
	}
	p.log.WithFields(logrus.Fields{"space_id": spaceID, "file_id": id, "name": u.Name}).Info("file uploaded")
	p.succeed("File uploaded")
	return id, p.LoadFiles(ctx)
}

// UploadAll uploads files one after another. A failed upload does not stop the
// rest; cancelling ctx does.
func (p *Page) UploadAll(ctx context.Context, uploads []Upload) error {
	var errs []error
	for _, u := range uploads {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := p.Upload(ctx, u); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", u.Name, err))
		}
	}
	return errors.Join(errs...)
}

// BeginEdit opens the edit draft for the selected text file.
func (p *Page) BeginEdit() error {
	var err error
	p.update(func(st *State) {
		switch {
		case st.Selected == nil:
			err = ErrNoSelection
		case !st.Selected.IsText():
			err = ErrNotEditable
		default:
			st.Editing = true
			st.Draft = st.Selected.Content
		}
	})
	return err
}

// SetDraft records the in-progress edit text.
func (p *Page) SetDraft(text string) {
	p.update(func(st *State) {
		if st.Editing {
			st.Draft = text
		}
	})
}

// CancelEdit drops the draft and re-selects the file.
func (p *Page) CancelEdit(ctx context.Context) error {
	id := p.Snapshot().SelectedFileID
	p.update(func(st *State) {
		st.Editing = false
		st.Draft = ""
	})
	if id == 0 {
		return nil
	}
	return p.SelectFile(ctx, id)
}

// SaveText writes content to the selected text file, then re-selects it.
func (p *Page) SaveText(ctx context.Context, content string) error {
	snap := p.Snapshot()
	id := snap.SelectedFileID
	if id == 0 || snap.Selected == nil || snap.Selected.ID != id {
		return ErrNoSelection
	}
	if !snap.Selected.IsText() {
		return ErrNotEditable
	}
	tctx, cancel := p.task(ctx)
	err := p.be.UpdateText(tctx, id, content)
	cancel()
	if err != nil {
		p.update(func(st *State) {
			st.Editing = true
			st.Draft = content
		})
		p.fail("Save", "Save failed", err, nil)
		return err
	}
	p.succeed("Saved")
	return p.SelectFile(ctx, id)
}

// DeleteFile asks c before deleting. A declined prompt sends nothing and
// reports false. Deleting the selected file clears the selection, the preview
// and any pending edit draft.
func (p *Page) DeleteFile(ctx context.Context, id int64, c Confirmer) (bool, error) {
	if c == nil {
		c = No
	}
	ok, err := c.Confirm(ctx, "Delete this file?")
	if err != nil || !ok {
		return false, err
	}
	tctx, cancel := p.task(ctx)
	err = p.be.DeleteFile(tctx, id)
	cancel()
	if err != nil {
		p.fail("Delete", "Delete failed", err, nil)
		return false, err
	}
	p.update(func(st *State) {
		if st.SelectedFileID == id {
			p.clearSelectionLocked(st)
		}
	})
	p.succeed("File deleted")
	return true, p.refreshFiles(ctx)
}

// DownloadURL is the backend download link for a file.
func (p *Page) DownloadURL(id int64) string {
	return p.be.DownloadURL(id)
}

// Download streams a file as an attachment. The stream outlives the call, so
// no per-task deadline is applied; ctx governs the whole transfer.
func (p *Page) Download(ctx context.Context, id int64) (*api.Stream, error) {
	s, err := p.be.Download(ctx, id)
	if err != nil {
		p.fail("Download", "Download failed", err, nil)
		return nil, err
	}
	return s, nil
}

// Content streams the inline representation of a file. As with Download, ctx
// governs the whole transfer.
func (p *Page) Content(ctx context.Context, id int64) (*api.Stream, error) {
	s, err := p.be.Content(ctx, id)
	if err != nil {
		p.log.WithField("file_id", id).WithError(err).Debug("content fetch failed")
		return nil, err
	}
	return s, nil
}

// SelectedText returns the text of the selected file (copy support).
func (p *Page) SelectedText() (string, bool) {
	snap := p.Snapshot()
	if snap.Selected == nil {
		return "", false
	}
	switch {
	case snap.Selected.IsText(), snap.Selected.HasInlineContent():
		return snap.Selected.Content, true
	}
	return "", false
}

func trimmedEmpty(s string) bool { return strings.TrimSpace(s) == "" }
