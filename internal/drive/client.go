package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrFileIDRequired is returned when an operation is called without a file ID
var ErrFileIDRequired = errors.New("fileID is required")

// Options configures the endpoints a Client talks to
type Options struct {
	// Endpoint overrides the Drive API base path (e.g. an httptest server)
	Endpoint string

	// UploadURL overrides the multipart upload endpoint (default: DefaultUploadURL)
	UploadURL string
}

// Client wraps the Google Drive API service for one signed-in session
type Client struct {
	service    *drive.Service
	httpClient *http.Client
	uploadURL  string
}

// NewClient creates a Drive client that authorizes every request through the
// given token source.
func NewClient(ctx context.Context, ts oauth2.TokenSource, opts Options) (*Client, error) {
	if ts == nil {
		return nil, fmt.Errorf("token source is required")
	}
	return NewClientWithHTTPClient(ctx, oauth2.NewClient(ctx, ts), opts)
}

// NewClientWithHTTPClient creates a Drive client on top of an already
// authorized HTTP client.
func NewClientWithHTTPClient(ctx context.Context, httpClient *http.Client, opts Options) (*Client, error) {
	clientOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	service, err := drive.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}

	uploadURL := opts.UploadURL
	if uploadURL == "" {
		uploadURL = DefaultUploadURL
	}

	return &Client{
		service:    service,
		httpClient: httpClient,
		uploadURL:  uploadURL,
	}, nil
}

// ListFiles lists the most recently modified files, filtered by name when query is non-empty
func (c *Client) ListFiles(ctx context.Context, query string) ([]FileRecord, error) {
	call := c.service.Files.List().
		Context(ctx).
		PageSize(DefaultPageSize).
		Fields(ListFields).
		OrderBy(DefaultOrderBy)

	if q := BuildQuery(query); q != "" {
		call = call.Q(q)
	}

	fileList, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	files := make([]FileRecord, 0, len(fileList.Files))
	for _, f := range fileList.Files {
		files = append(files, convertToFileRecord(f))
	}

	return files, nil
}

// Upload sends the file as a multipart/related body in a single POST
func (c *Client) Upload(ctx context.Context, req UploadRequest) (*FileRecord, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("file name is required")
	}
	if req.Content == nil {
		return nil, fmt.Errorf("file content is required")
	}

	body, contentType, err := BuildMultipartBody(req.Name, req.MimeType, req.Content)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("uploadType", "multipart")
	params.Set("fields", UploadFields)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL+"?"+params.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file %s: %w", req.Name, err)
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return nil, fmt.Errorf("failed to upload file %s: %w", req.Name, err)
	}

	var created drive.File
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}

	record := convertToFileRecord(&created)
	return &record, nil
}

// Download fetches the file name, then the file content
func (c *Client) Download(ctx context.Context, fileID string) (*Download, error) {
	if fileID == "" {
		return nil, ErrFileIDRequired
	}

	meta, err := c.service.Files.Get(fileID).
		Context(ctx).
		Fields("name, mimeType").
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", fileID, err)
	}

	resp, err := c.service.Files.Get(fileID).
		Context(ctx).
		Download()
	if err != nil {
		return nil, fmt.Errorf("failed to download file %s: %w", fileID, err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = DefaultMimeType
	}

	return &Download{
		Name:          meta.Name,
		MimeType:      mimeType,
		ContentLength: resp.ContentLength,
		Body:          resp.Body,
	}, nil
}

// DeleteFile permanently deletes a file
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	if fileID == "" {
		return ErrFileIDRequired
	}

	if err := c.service.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", fileID, err)
	}

	return nil
}

// ValidateToken checks that the current access token is accepted by Drive and
// returns the email address of the signed-in user.
func (c *Client) ValidateToken(ctx context.Context) (string, error) {
	about, err := c.service.About.Get().Context(ctx).Fields("user").Do()
	if err != nil {
		return "", fmt.Errorf("failed to validate token: %w", err)
	}
	if about.User == nil {
		return "", nil
	}
	return about.User.EmailAddress, nil
}

// StatusCode returns the HTTP status carried by a Drive API error, or 0
func StatusCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

// Reason returns a short, user-presentable description of err: the message
// Drive sent with an API error, or the error text otherwise.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// IsNotFound reports whether err is a Drive 404
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// convertToFileRecord converts a Drive API File to our FileRecord type
func convertToFileRecord(f *drive.File) FileRecord {
	record := FileRecord{
		ID:            f.Id,
		Name:          f.Name,
		MimeType:      f.MimeType,
		IconLink:      f.IconLink,
		Size:          f.Size,
		ThumbnailLink: f.ThumbnailLink,
	}

	if f.ModifiedTime != "" {
		if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
			record.ModifiedTime = t
		}
	}

	return record
}
