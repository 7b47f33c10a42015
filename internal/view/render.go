package view

import (
	"bytes"
	"embed"
	"html/template"
)

//go:embed fragments/*.html
var fragmentsFS embed.FS

// Fragments holds the HTML fragment templates. Pages embed them by name
// ("space_list", "sidebar", "file_list", "preview", "edit").
var Fragments = template.Must(template.New("fragments").ParseFS(fragmentsFS, "fragments/*.html"))

type fileListData struct {
	SpaceID int64
	List    FileList
}

type previewData struct {
	VM       PreviewVM
	Markdown template.HTML
}

// EditVM is the edit form for a text file.
type EditVM struct {
	SpaceID int64
	FileID  int64
	Draft   string
}

func render(name string, data any) (template.HTML, error) {
	var b bytes.Buffer
	if err := Fragments.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return template.HTML(b.String()), nil
}

// RenderSpaceList renders the home page list container.
func RenderSpaceList(l SpaceList) (template.HTML, error) {
	return render("space_list", l)
}

// RenderSidebar renders the space navigation with the active space highlighted.
func RenderSidebar(l SpaceList) (template.HTML, error) {
	return render("sidebar", l)
}

// RenderFileList renders the file list container of a space.
func RenderFileList(spaceID int64, l FileList) (template.HTML, error) {
	return render("file_list", fileListData{SpaceID: spaceID, List: l})
}

// RenderPreview renders the preview pane. markdown selects the rendered view
// for text files.
func RenderPreview(vm PreviewVM, markdown bool) (template.HTML, error) {
	if vm.Kind == PreviewNone && vm.Placeholder == "" {
		vm.Placeholder = PreviewPlaceholder
	}
	d := previewData{VM: vm}
	if markdown && vm.Kind == PreviewText {
		d.Markdown = Markdown(vm.Content)
	}
	return render("preview", d)
}

func RenderEdit(vm EditVM) (template.HTML, error) {
	return render("edit", vm)
}
