// Package view turns backend entities into view models.
//
// Everything here is a pure function of its inputs: the same spaces, files and
// selection always produce the same view model, so surfaces (terminal, HTML)
// can be tested without running either.
package view

import (
	"strconv"
	"strings"
	"time"

	"sharezone-cli/internal/model"
)

const (
	EmptySpaces        = "No spaces yet"
	EmptyFiles         = "No content yet"
	PreviewPlaceholder = "Select an item to preview"
	UnknownMime        = "unknown"
	UnknownSize        = "unknown size"
)

// SpaceItem is one row of a space list (home page or sidebar).
type SpaceItem struct {
	ID      int64
	Name    string
	Created string
	Expires string
	Active  bool
	Href    string
}

// SpaceList is a rendered list of spaces. Empty is set exactly when Items is empty.
type SpaceList struct {
	Items []SpaceItem
	Empty string
}

// FileItem is one row of a space's file list.
type FileItem struct {
	ID      int64
	Type    model.FileType
	Icon    string
	Summary string
	// SummaryIsName is true when Summary shows the filename rather than text.
	SummaryIsName bool
	Created       string
	Active        bool
}

// FileList is a rendered file list. Empty is set exactly when Items is empty.
type FileList struct {
	Items []FileItem
	Empty string
}

// Spaces builds the space list, marking activeID (0 for none). Expiry labels
// are relative to now.
func Spaces(spaces []model.Space, activeID int64, now time.Time) SpaceList {
	if len(spaces) == 0 {
		return SpaceList{Empty: EmptySpaces}
	}
	out := SpaceList{Items: make([]SpaceItem, 0, len(spaces))}
	for _, s := range spaces {
		it := SpaceItem{
			ID:      s.ID,
			Name:    s.Name,
			Created: FormatTime(s.CreatedAt),
			Active:  activeID != 0 && s.ID == activeID,
			Href:    SpaceHref(s.ID),
		}
		if s.ExpiresAt != nil {
			it.Expires = Expiry(*s.ExpiresAt, now)
		}
		out.Items = append(out.Items, it)
	}
	return out
}

// Files builds the file list, highlighting selectedID (0 for none).
func Files(files []model.File, selectedID int64) FileList {
	if len(files) == 0 {
		return FileList{Empty: EmptyFiles}
	}
	out := FileList{Items: make([]FileItem, 0, len(files))}
	for _, f := range files {
		it := FileItem{
			ID:      f.ID,
			Type:    f.Type,
			Icon:    Icon(f.Type),
			Created: FormatTime(f.CreatedAt),
			Active:  selectedID != 0 && f.ID == selectedID,
		}
		switch {
		case f.Type == model.FileTypeText && f.PreviewText != "":
			it.Summary = f.PreviewText
		case f.Filename != "":
			it.Summary = f.Filename
			it.SummaryIsName = true
		}
		out.Items = append(out.Items, it)
	}
	return out
}

// Icon picks the list glyph for a file type.
func Icon(t model.FileType) string {
	switch t {
	case model.FileTypeText:
		return "📝"
	case model.FileTypeImage:
		return "🖼️"
	default:
		return "📄"
	}
}

type PreviewKind string

const (
	PreviewNone   PreviewKind = ""
	PreviewText   PreviewKind = "text"
	PreviewImage  PreviewKind = "image"
	PreviewInline PreviewKind = "inline"
	PreviewOther  PreviewKind = "other"
)

// PreviewVM describes the preview pane. The zero value (Kind == PreviewNone)
// is the placeholder state.
type PreviewVM struct {
	Kind   PreviewKind
	FileID int64

	// Content is set for text and inline previews.
	Content string
	// Alt is the image description (filename, or "image").
	Alt      string
	Filename string
	Size     string
	MimeType string
	Created  string
	Expires  string

	ContentPath  string
	DownloadPath string

	CanCopy     bool
	CanEdit     bool
	CanDownload bool

	Placeholder string
}

// EmptyPreview is the pane with nothing selected.
func EmptyPreview() PreviewVM {
	return PreviewVM{Kind: PreviewNone, Placeholder: PreviewPlaceholder}
}

// Preview builds the preview pane for f; nil gives the placeholder.
func Preview(f *model.File, now time.Time) PreviewVM {
	if f == nil {
		return EmptyPreview()
	}
	vm := PreviewVM{
		FileID:       f.ID,
		Filename:     f.Filename,
		Created:      FormatTime(f.CreatedAt),
		ContentPath:  contentPath(f.ID),
		DownloadPath: downloadPath(f.ID),
	}
	if f.ExpiresAt != nil {
		vm.Expires = Expiry(*f.ExpiresAt, now)
	}
	switch {
	case f.Type == model.FileTypeText:
		vm.Kind = PreviewText
		vm.Content = f.Content
		vm.CanCopy = true
		vm.CanEdit = true
	case f.Type == model.FileTypeImage:
		vm.Kind = PreviewImage
		vm.Alt = f.Filename
		if vm.Alt == "" {
			vm.Alt = "image"
		}
		vm.CanDownload = true
	case f.HasInlineContent():
		vm.Kind = PreviewInline
		vm.Content = f.Content
		vm.CanCopy = true
		vm.CanDownload = true
	default:
		vm.Kind = PreviewOther
		vm.Size = FormatSize(f.FileSize)
		vm.MimeType = strings.TrimSpace(f.MimeType)
		if vm.MimeType == "" {
			vm.MimeType = UnknownMime
		}
		vm.CanDownload = true
	}
	return vm
}

func SpaceHref(id int64) string { return "/space/" + strconv.FormatInt(id, 10) }

func contentPath(id int64) string  { return "/files/" + strconv.FormatInt(id, 10) + "/content" }
func downloadPath(id int64) string { return "/files/" + strconv.FormatInt(id, 10) + "/download" }
