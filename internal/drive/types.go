package drive

import (
	"io"
	"strings"
	"time"
)

const (
	// DefaultPageSize is the number of files requested per list call
	DefaultPageSize = 50

	// ListFields is the field projection requested from files.list
	ListFields = "files(id, name, mimeType, iconLink, modifiedTime, size, thumbnailLink)"

	// UploadFields is the field projection requested for an uploaded file
	UploadFields = "id, name, mimeType, iconLink, modifiedTime, size, thumbnailLink"

	// DefaultOrderBy sorts the most recently modified files first
	DefaultOrderBy = "modifiedTime desc"

	// DefaultMimeType is used when the uploaded file has no content type
	DefaultMimeType = "application/octet-stream"

	// GoogleAppsMimePrefix prefixes MIME types of Google-native documents
	GoogleAppsMimePrefix = "application/vnd.google-apps."

	// DefaultUploadURL is the Drive multipart upload endpoint
	DefaultUploadURL = "https://www.googleapis.com/upload/drive/v3/files"

	viewURLFormat = "https://drive.google.com/file/d/%s/view"
)

// FileRecord is a metadata snapshot of one Drive file, as returned by a list call
type FileRecord struct {
	// ID is the unique identifier for the file
	ID string `json:"id"`

	// Name is the name of the file
	Name string `json:"name"`

	// MimeType is the MIME type of the file
	MimeType string `json:"mimeType"`

	// IconLink is a static icon for the file type
	IconLink string `json:"iconLink,omitempty"`

	// ModifiedTime is when the file was last modified
	ModifiedTime time.Time `json:"modifiedTime"`

	// Size is the size of the file in bytes (zero for Google-native documents)
	Size int64 `json:"size,omitempty"`

	// ThumbnailLink is a short-lived thumbnail link, if Drive generated one
	ThumbnailLink string `json:"thumbnailLink,omitempty"`
}

// IsGoogleNative reports whether the file is a Docs/Sheets/Slides style document
// without binary content of its own.
func (f FileRecord) IsGoogleNative() bool {
	return strings.HasPrefix(f.MimeType, GoogleAppsMimePrefix)
}

// UploadRequest describes a file selected for upload
type UploadRequest struct {
	// Name is the file name to create in Drive
	Name string

	// MimeType is the content type (DefaultMimeType when empty)
	MimeType string

	// Content is the file content
	Content io.Reader
}

// Download is the result of fetching a file's content
type Download struct {
	// Name is the file name, used for the attachment filename
	Name string

	// MimeType is the content type reported for the media
	MimeType string

	// ContentLength is the media length, or -1 if unknown
	ContentLength int64

	// Body is the media stream; the caller must close it
	Body io.ReadCloser
}
