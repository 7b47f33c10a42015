package cli

import (
	"fmt"
	"strings"
	"time"

	"sharezone-cli/internal/model"
	"sharezone-cli/internal/view"
)

var timeNow = time.Now

type spacesOut struct {
	Current int64         `json:"current,omitempty"`
	Spaces  []model.Space `json:"spaces"`
}

func (o spacesOut) Text() string {
	l := view.Spaces(o.Spaces, o.Current, timeNow())
	if len(l.Items) == 0 {
		return l.Empty
	}
	var b strings.Builder
	for _, it := range l.Items {
		mark := " "
		if it.Active {
			mark = "*"
		}
		fmt.Fprintf(&b, "%s %-6d %s", mark, it.ID, it.Name)
		if it.Expires != "" {
			fmt.Fprintf(&b, "  (%s)", it.Expires)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

type spaceOut struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name,omitempty"`
	ExpiresAt *model.Timestamp `json:"expires_at,omitempty"`
}

func (o spaceOut) Text() string {
	s := fmt.Sprintf("#%d %s", o.ID, o.Name)
	if o.ExpiresAt != nil {
		s += "  (" + view.Expiry(*o.ExpiresAt, timeNow()) + ")"
	}
	return strings.TrimSpace(s)
}

type filesOut struct {
	Space spaceOut     `json:"space"`
	Files []model.File `json:"files"`
}

func (o filesOut) Text() string {
	var b strings.Builder
	b.WriteString(o.Space.Text())
	b.WriteByte('\n')
	l := view.Files(o.Files, 0)
	if len(l.Items) == 0 {
		b.WriteString(l.Empty)
		return b.String()
	}
	for _, it := range l.Items {
		summary := it.Summary
		if summary == "" {
			summary = "(" + string(it.Type) + ")"
		}
		fmt.Fprintf(&b, "%s %-6d %s  %s\n", it.Icon, it.ID, firstLine(summary), it.Created)
	}
	return b.String()
}

type fileOut struct {
	model.File
}

func (o fileOut) Text() string {
	if o.IsText() {
		return o.Content
	}
	mime := strings.TrimSpace(o.MimeType)
	if mime == "" {
		mime = view.UnknownMime
	}
	lines := []string{
		fmt.Sprintf("%s %s", view.Icon(o.Type), o.Filename),
		"size: " + view.FormatSize(o.FileSize),
		"type: " + mime,
		"created: " + view.FormatTime(o.CreatedAt),
	}
	if o.HasInlineContent() {
		lines = append(lines, "", o.Content)
	}
	return strings.Join(lines, "\n")
}

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
