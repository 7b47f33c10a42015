package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DownloadTo saves a file into dir and returns the written path. Existing
// files are never overwritten; a numeric suffix is added instead.
func (p *Page) DownloadTo(ctx context.Context, id int64, dir string) (string, error) {
	s, err := p.Download(ctx, id)
	if err != nil {
		return "", err
	}
	defer s.Body.Close()

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := safeFilename(s.Filename)
	if name == "" {
		name = "file-" + strconv.FormatInt(id, 10)
	}

	f, path, err := createUnique(dir, name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, s.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		p.fail("Download", "Download failed", err, nil)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	p.log.WithField("file_id", id).WithField("path", path).Info("file downloaded")
	p.succeed("Saved to " + path)
	return path, nil
}

// safeFilename keeps only the final path element of a server-supplied name.
func safeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.Clean("/" + name))
	switch name {
	case "/", ".", "..":
		return ""
	}
	return strings.TrimSpace(name)
}

func createUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; i < 1000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("no free name for %s in %s", name, dir)
}
