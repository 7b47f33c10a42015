package session

import (
	"context"
	"fmt"
	"strings"
)

type PasteKind string

const (
	PasteFile   PasteKind = "file"
	PasteString PasteKind = "string"
)

// PasteItem is one entry of a clipboard payload.
type PasteItem struct {
	Kind PasteKind
	// Type is the MIME type of the item ("text/plain", "image/png", ...).
	Type string
	Text string
	File *Upload
}

// TextItem is a text/plain clipboard entry.
func TextItem(s string) PasteItem {
	return PasteItem{Kind: PasteString, Type: "text/plain", Text: s}
}

// FileItem wraps an upload as a clipboard entry.
func FileItem(u Upload) PasteItem {
	return PasteItem{Kind: PasteFile, Type: u.ContentType, File: &u}
}

// PasteResult reports what HandlePaste did.
type PasteResult struct {
	Uploaded      int
	TextSubmitted bool
}

// HandlePaste stores a clipboard payload in the open space. When any file
// items are present, only those are uploaded, in order. Otherwise the first
// text/plain item is submitted if it is not blank.
func (p *Page) HandlePaste(ctx context.Context, items []PasteItem) (PasteResult, error) {
	var res PasteResult
	if _, err := p.currentSpace(); err != nil {
		return res, err
	}

	var uploads []Upload
	hasFile := false
	for _, it := range items {
		if it.Kind != PasteFile {
			continue
		}
		hasFile = true
		if it.File != nil {
			uploads = append(uploads, *it.File)
		}
	}
	if hasFile {
		var firstErr error
		for _, u := range uploads {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if _, err := p.Upload(ctx, u); err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", u.Name, err)
				}
				continue
			}
			res.Uploaded++
		}
		return res, firstErr
	}

	for _, it := range items {
		if it.Kind != PasteString || !strings.HasPrefix(it.Type, "text/plain") {
			continue
		}
		if trimmedEmpty(it.Text) {
			return res, nil
		}
		if _, err := p.SubmitText(ctx, it.Text); err != nil {
			return res, err
		}
		res.TextSubmitted = true
		return res, nil
	}
	return res, nil
}
