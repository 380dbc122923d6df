package ui

import (
	"bytes"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/teemow/drivedesk/internal/drive"
)

var requiredIDs = []string{
	"fileList", "searchInput", "searchButton", "uploadButton", "fileInput",
	"authorizeButton", "signoutButton", "content", "loading",
	"errorMessage", "successMessage",
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)
	return r
}

func parse(t *testing.T, markup string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func findByID(doc *html.Node, id string) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode {
			if v, ok := attr(n, "id"); ok && v == id {
				found = n
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

func findByClass(doc *html.Node, class string) []*html.Node {
	var nodes []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if v, ok := attr(n, "class"); ok {
				for _, c := range strings.Fields(v) {
					if c == class {
						nodes = append(nodes, n)
						break
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return nodes
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func hidden(n *html.Node) bool {
	_, ok := attr(n, "hidden")
	return ok
}

func TestRenderPage_SignedOut(t *testing.T) {
	r := newTestRenderer(t)

	var buf bytes.Buffer
	require.NoError(t, r.RenderPage(&buf, Page{AuthorizeEnabled: false}))
	doc := parse(t, buf.String())

	for _, id := range requiredIDs {
		assert.NotNil(t, findByID(doc, id), "element #%s missing", id)
	}

	authorize := findByID(doc, "authorizeButton")
	_, disabled := attr(authorize, "disabled")
	assert.True(t, disabled, "sign-in stays disabled until the clients are ready")

	assert.True(t, hidden(findByID(doc, "content")))
	assert.True(t, hidden(findByID(doc, "successMessage")))
	assert.True(t, hidden(findByID(doc, "errorMessage")))
	assert.True(t, hidden(findByID(doc, "loading")))
	assert.Empty(t, findByClass(doc, "file-card"))
	assert.Contains(t, buf.String(), "<title>"+DefaultTitle+"</title>")
}

func TestRenderPage_AuthorizeEnabledWhenReady(t *testing.T) {
	r := newTestRenderer(t)

	var buf bytes.Buffer
	require.NoError(t, r.RenderPage(&buf, Page{AuthorizeEnabled: true}))
	doc := parse(t, buf.String())

	_, disabled := attr(findByID(doc, "authorizeButton"), "disabled")
	assert.False(t, disabled)
}

func TestRenderPage_SignedInWithFiles(t *testing.T) {
	r := newTestRenderer(t)

	files := []drive.FileRecord{
		{
			ID:            "abc",
			Name:          "report.pdf",
			MimeType:      "application/pdf",
			Size:          1536,
			ModifiedTime:  time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
			ThumbnailLink: "https://lh3.example.com/thumb",
		},
		{
			ID:       "doc1",
			Name:     "Plan",
			MimeType: "application/vnd.google-apps.document",
			IconLink: "https://drive-thirdparty.example.com/icon",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, r.RenderPage(&buf, Page{
		SignedIn:       true,
		Query:          "rep",
		Files:          files,
		SuccessMessage: "File uploaded successfully!",
	}))
	doc := parse(t, buf.String())

	assert.False(t, hidden(findByID(doc, "content")))
	assert.True(t, hidden(findByID(doc, "errorMessage")))

	success := findByID(doc, "successMessage")
	assert.False(t, hidden(success))
	assert.Equal(t, "File uploaded successfully!", text(success))

	search, _ := attr(findByID(doc, "searchInput"), "value")
	assert.Equal(t, "rep", search)

	cards := findByClass(doc, "file-card")
	require.Len(t, cards, 2)

	id, _ := attr(cards[0], "data-id")
	assert.Equal(t, "abc", id)
	assert.Contains(t, text(cards[0]), "report.pdf")
	assert.Contains(t, text(cards[0]), "1.5 KB")
	assert.Contains(t, text(cards[0]), "1/2/2026")

	img := findByClass(cards[0], "file-thumbnail")
	require.Len(t, img, 1)
	src, _ := attr(img[0], "src")
	assert.Equal(t, "https://lh3.example.com/thumb", src)

	assert.Contains(t, text(cards[1]), "-")
	icon := findByClass(cards[1], "file-thumbnail")
	src, _ = attr(icon[0], "src")
	assert.Equal(t, "https://drive-thirdparty.example.com/icon", src)

	del := findByClass(cards[0], "delete-btn")
	require.Len(t, del, 1)
	href, _ := attr(del[0], "href")
	assert.Equal(t, "/files/abc/delete", href)
	prompt, _ := attr(del[0], "data-confirm")
	assert.Equal(t, "Are you sure you want to delete this file?", prompt)

	download := findByClass(cards[0], "download-btn")
	href, _ = attr(download[0], "href")
	assert.Equal(t, "/files/abc/download", href)
}

func TestRenderPage_EscapesFileNames(t *testing.T) {
	r := newTestRenderer(t)

	var buf bytes.Buffer
	require.NoError(t, r.RenderPage(&buf, Page{
		SignedIn: true,
		Files:    []drive.FileRecord{{ID: "x", Name: `<script>alert("x")</script>`}},
	}))

	assert.NotContains(t, buf.String(), `<script>alert`)
	assert.Contains(t, buf.String(), "&lt;script&gt;")
}

func TestRenderFileList_Empty(t *testing.T) {
	r := newTestRenderer(t)

	var buf bytes.Buffer
	require.NoError(t, r.RenderFileList(&buf, nil))

	doc := parse(t, buf.String())
	empty := findByClass(doc, "empty-state")
	require.Len(t, empty, 1)
	assert.Equal(t, "No files found", text(empty[0]))
	assert.Empty(t, findByClass(doc, "file-card"))
}

func TestRenderFileList_DefaultThumbnail(t *testing.T) {
	r := newTestRenderer(t)

	var buf bytes.Buffer
	require.NoError(t, r.RenderFileList(&buf, []drive.FileRecord{{ID: "1", Name: "a.bin"}}))

	doc := parse(t, buf.String())
	img := findByClass(doc, "file-thumbnail")
	require.Len(t, img, 1)
	src, _ := attr(img[0], "src")
	assert.Equal(t, DefaultThumbnailURL, src)
}

func TestRenderConfirm(t *testing.T) {
	r := newTestRenderer(t)

	var buf bytes.Buffer
	require.NoError(t, r.RenderConfirm(&buf, ConfirmPage{
		FileID: "abc",
		Prompt: "Are you sure you want to delete this file?",
	}))

	out := buf.String()
	assert.Contains(t, out, "Are you sure you want to delete this file?")
	assert.Contains(t, out, `action="/files/abc/delete"`)
	assert.Contains(t, out, `value="yes"`)
	assert.Contains(t, out, `value="no"`)
}

func TestStaticFS(t *testing.T) {
	for _, name := range []string{"app.js", "app.css"} {
		data, err := fs.ReadFile(StaticFS(), name)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}

	js, err := fs.ReadFile(StaticFS(), "app.js")
	require.NoError(t, err)
	assert.Contains(t, string(js), "5000")
}
