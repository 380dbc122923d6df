package ui

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"

	"github.com/teemow/drivedesk/internal/drive"
	"github.com/teemow/drivedesk/internal/filemanager"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page is the data for the main page.
type Page struct {
	Title string

	// SignedIn shows the content area and the sign-out button
	SignedIn bool

	// AuthorizeEnabled enables the sign-in button once the identity and
	// Drive clients are ready
	AuthorizeEnabled bool

	Query string
	Files []drive.FileRecord

	SuccessMessage string
	ErrorMessage   string
}

// ConfirmPage is the data for the delete confirmation page.
type ConfirmPage struct {
	Title  string
	FileID string
	Prompt string
}

// Renderer renders the HTML pages.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("ui").Funcs(template.FuncMap{
		"formatSize":   FormatSizeOf,
		"formatDate":   FormatDate,
		"thumbnail":    ThumbnailURL,
		"deletePrompt": deletePrompt,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// RenderPage writes the full page.
func (r *Renderer) RenderPage(w io.Writer, p Page) error {
	if p.Title == "" {
		p.Title = DefaultTitle
	}
	return r.templates.ExecuteTemplate(w, "page.html", p)
}

// RenderFileList writes only the file list: the empty state, or one card per file.
func (r *Renderer) RenderFileList(w io.Writer, files []drive.FileRecord) error {
	return r.templates.ExecuteTemplate(w, "fileList", files)
}

// RenderConfirm writes the delete confirmation page.
func (r *Renderer) RenderConfirm(w io.Writer, c ConfirmPage) error {
	if c.Title == "" {
		c.Title = DefaultTitle
	}
	return r.templates.ExecuteTemplate(w, "confirm.html", c)
}

// StaticFS returns the stylesheet and script served under /static/.
func StaticFS() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// DefaultTitle is the page title.
const DefaultTitle = "Drive File Manager"

func deletePrompt() string {
	return filemanager.MsgDeleteConfirm
}
