package drive

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"

	drive "google.golang.org/api/drive/v3"
)

// MultipartBoundary separates the metadata and content parts of an upload body
const MultipartBoundary = "-------314159265358979323846"

// ErrEncoding is returned when the file content could not be read or encoded
var ErrEncoding = errors.New("failed to encode file content")

// MultipartContentType is the Content-Type header sent with an upload body
func MultipartContentType() string {
	return fmt.Sprintf(`multipart/related; boundary="%s"`, MultipartBoundary)
}

// BuildMultipartBody builds the two-part upload payload: the JSON metadata
// followed by the base64-encoded content.
func BuildMultipartBody(name, mimeType string, content io.Reader) ([]byte, string, error) {
	if mimeType == "" {
		mimeType = DefaultMimeType
	}

	raw, err := io.ReadAll(content)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	metadata, err := (&drive.File{Name: name, MimeType: mimeType}).MarshalJSON()
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode file metadata: %w", err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.SetBoundary(MultipartBoundary); err != nil {
		return nil, "", fmt.Errorf("failed to set multipart boundary: %w", err)
	}

	metaPart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"application/json"},
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create metadata part: %w", err)
	}
	if _, err := metaPart.Write(metadata); err != nil {
		return nil, "", fmt.Errorf("failed to write metadata part: %w", err)
	}

	contentPart, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {mimeType},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create content part: %w", err)
	}
	encoder := base64.NewEncoder(base64.StdEncoding, contentPart)
	if _, err := encoder.Write(raw); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	if err := encoder.Close(); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	return body.Bytes(), MultipartContentType(), nil
}
