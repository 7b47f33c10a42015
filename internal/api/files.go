package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"sharezone-cli/internal/model"
)

// Listing is the file list of one space together with the space record.
type Listing struct {
	Space model.Space  `json:"space"`
	Files []model.File `json:"files"`
}

// ListFiles returns the files of a space, newest first.
func (c *Client) ListFiles(ctx context.Context, spaceID int64) (*Listing, error) {
	var out Listing
	if err := c.doJSON(ctx, http.MethodGet, idPath("/api/spaces", spaceID, "/files"), nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitText stores a text snippet in the space and returns the new file id.
func (c *Client) SubmitText(ctx context.Context, spaceID int64, text string) (int64, error) {
	var out struct {
		FileID int64 `json:"file_id"`
	}
	in := map[string]string{"type": string(model.FileTypeText), "content": text}
	if err := c.postJSON(ctx, http.MethodPost, idPath("/api/spaces", spaceID, "/files"), in, &out); err != nil {
		return 0, err
	}
	return out.FileID, nil
}

// UploadFile sends r as the multipart field "file". The body is buffered so the
// request carries a Content-Length; callers enforce the size limit beforehand.
func (c *Client) UploadFile(ctx context.Context, spaceID int64, filename, contentType string, r io.Reader) (int64, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if contentType == "" {
		contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return 0, &TransportError{Op: "upload", Err: err}
	}
	if _, err := io.Copy(part, r); err != nil {
		return 0, &TransportError{Op: "upload", Err: fmt.Errorf("read %s: %w", filename, err)}
	}
	if err := mw.Close(); err != nil {
		return 0, &TransportError{Op: "upload", Err: err}
	}

	var out struct {
		FileID int64 `json:"file_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, idPath("/api/spaces", spaceID, "/files"), &buf, mw.FormDataContentType(), &out); err != nil {
		return 0, err
	}
	return out.FileID, nil
}

// GetFile returns one file including its full content.
func (c *Client) GetFile(ctx context.Context, id int64) (model.File, error) {
	var out struct {
		File model.File `json:"file"`
	}
	if err := c.doJSON(ctx, http.MethodGet, idPath("/api/files", id, ""), nil, "", &out); err != nil {
		return model.File{}, err
	}
	return out.File, nil
}

// UpdateText replaces the content of a text file.
func (c *Client) UpdateText(ctx context.Context, id int64, content string) error {
	return c.postJSON(ctx, http.MethodPut, idPath("/api/files", id, ""), map[string]string{"content": content}, nil)
}

func (c *Client) DeleteFile(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, idPath("/api/files", id, ""), nil, "", nil)
}

// Content streams the inline representation of a file (image preview).
// The caller closes Body.
func (c *Client) Content(ctx context.Context, id int64) (*Stream, error) {
	return c.stream(ctx, ContentPath(id))
}

// Download streams the file as an attachment. The caller closes Body.
func (c *Client) Download(ctx context.Context, id int64) (*Stream, error) {
	return c.stream(ctx, DownloadPath(id))
}

// DownloadURL is the absolute download link for a file.
func (c *Client) DownloadURL(id int64) string {
	return c.URL(DownloadPath(id))
}

func ContentPath(id int64) string  { return idPath("/api/files", id, "/content") }
func DownloadPath(id int64) string { return idPath("/api/files", id, "/download") }
