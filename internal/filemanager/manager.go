package filemanager

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/drivedesk/internal/auth"
	"github.com/teemow/drivedesk/internal/drive"
	"github.com/teemow/drivedesk/internal/instrumentation"
	"github.com/teemow/drivedesk/internal/logging"
)

// Authenticator reports whether a session may call Drive.
type Authenticator interface {
	EnsureAuthenticated(ctx context.Context, s *auth.Session) bool
}

// Drive is the subset of the Drive client the manager uses.
type Drive interface {
	ListFiles(ctx context.Context, query string) ([]drive.FileRecord, error)
	Upload(ctx context.Context, req drive.UploadRequest) (*drive.FileRecord, error)
	Download(ctx context.Context, fileID string) (*drive.Download, error)
	DeleteFile(ctx context.Context, fileID string) error
}

// ClientFactory returns a Drive client authorized as the session's user.
type ClientFactory interface {
	ClientFor(ctx context.Context, s *auth.Session) (Drive, error)
}

// ClientFactoryFunc adapts a function to ClientFactory.
type ClientFactoryFunc func(ctx context.Context, s *auth.Session) (Drive, error)

// ClientFor calls f.
func (f ClientFactoryFunc) ClientFor(ctx context.Context, s *auth.Session) (Drive, error) {
	return f(ctx, s)
}

// Manager runs the user-facing file operations. Each operation checks
// authentication first, performs one Drive call, and turns the outcome into
// a Result with a banner. Nothing is retried.
type Manager struct {
	auth    Authenticator
	clients ClientFactory
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *instrumentation.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithAuditLogger sets the audit logger.
func WithAuditLogger(audit *instrumentation.AuditLogger) Option {
	return func(m *Manager) {
		m.audit = audit
	}
}

// NewManager creates a Manager.
func NewManager(authenticator Authenticator, clients ClientFactory, opts ...Option) *Manager {
	m := &Manager{
		auth:    authenticator,
		clients: clients,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// List returns the most recently modified files matching query.
func (m *Manager) List(ctx context.Context, s *auth.Session, query string) Result {
	return m.list(ctx, s, instrumentation.OperationList, query)
}

// Search trims the raw search input and lists the matching files.
func (m *Manager) Search(ctx context.Context, s *auth.Session, rawQuery string) Result {
	return m.list(ctx, s, instrumentation.OperationSearch, strings.TrimSpace(rawQuery))
}

func (m *Manager) list(ctx context.Context, s *auth.Session, operation, query string) Result {
	result := Result{Query: query}

	client, ok := m.client(ctx, s)
	if !ok {
		result.Notice = Failure(MsgSignInRequired)
		return result
	}

	var files []drive.FileRecord
	err := m.observe(ctx, s, operation, "", "", func(ctx context.Context) error {
		var err error
		files, err = client.ListFiles(ctx, query)
		return err
	}, attribute.String(instrumentation.SpanAttrQuery, query))
	if err != nil {
		m.logger.ErrorContext(ctx, "Error fetching files", logging.Query(query), logging.Err(err))
		result.Files = []drive.FileRecord{}
		result.Notice = Failure(MsgLoadFailed)
		return result
	}

	m.logger.InfoContext(ctx, "Listed files", logging.Query(query), slog.Int("count", len(files)))
	result.Files = files
	result.Listed = true
	return result
}

// Upload sends one file to Drive. On success the list is refreshed once and
// the created record is returned.
func (m *Manager) Upload(ctx context.Context, s *auth.Session, req *drive.UploadRequest) (Result, *drive.FileRecord) {
	client, ok := m.client(ctx, s)
	if !ok {
		return Result{Notice: Failure(MsgSignInRequired)}, nil
	}
	if req == nil || req.Name == "" || req.Content == nil {
		m.logger.WarnContext(ctx, "Upload aborted: no file selected")
		return Result{Notice: Failure(MsgSelectFile)}, nil
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = drive.DefaultMimeType
	}

	var created *drive.FileRecord
	err := m.observe(ctx, s, instrumentation.OperationUpload, "", req.Name, func(ctx context.Context) error {
		var err error
		created, err = client.Upload(ctx, drive.UploadRequest{Name: req.Name, MimeType: mimeType, Content: req.Content})
		return err
	}, attribute.String(instrumentation.SpanAttrMimeType, mimeType))
	if err != nil {
		m.logger.ErrorContext(ctx, "Error uploading file", logging.FileName(req.Name), logging.Err(err))
		return Result{Notice: Failure(MsgUploadFailed + failureReason(err))}, nil
	}

	m.metrics.RecordUpload(ctx, mimeType, created.Size)
	m.logger.InfoContext(ctx, "File uploaded", logging.FileID(created.ID), logging.FileName(req.Name))

	return m.refreshAfterChange(ctx, s, Success(MsgUploadSucceeded)), created
}

// Download opens the content of one file. The caller must close the body.
func (m *Manager) Download(ctx context.Context, s *auth.Session, fileID string) (*drive.Download, *Notice) {
	if fileID == "" {
		return nil, Failure(MsgDownloadInvalid)
	}

	client, ok := m.client(ctx, s)
	if !ok {
		return nil, Failure(MsgSignInRequired)
	}

	var dl *drive.Download
	err := m.observe(ctx, s, instrumentation.OperationDownload, fileID, "", func(ctx context.Context) error {
		var err error
		dl, err = client.Download(ctx, fileID)
		return err
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "Error downloading file", logging.FileID(fileID), logging.Err(err))
		return nil, Failure(MsgDownloadFailed)
	}

	m.logger.InfoContext(ctx, "File downloaded", logging.FileID(fileID), logging.FileName(dl.Name))
	return dl, nil
}

// View returns the Drive web URL of a file.
func (m *Manager) View(fileID string) (string, *Notice) {
	if fileID == "" {
		return "", Failure(MsgViewInvalid)
	}
	return drive.ViewURL(fileID), nil
}

// Delete asks for confirmation and deletes one file. A declined confirmation
// makes no Drive call at all; a successful delete refreshes the list once.
func (m *Manager) Delete(ctx context.Context, s *auth.Session, fileID string, confirmer Confirmer) Result {
	if fileID == "" {
		return Result{Notice: Failure(MsgDeleteInvalid)}
	}

	client, ok := m.client(ctx, s)
	if !ok {
		return Result{Notice: Failure(MsgSignInRequired)}
	}

	if confirmer == nil || !confirmer.Confirm(MsgDeleteConfirm) {
		m.logger.InfoContext(ctx, "File deletion cancelled by user", logging.FileID(fileID))
		m.metrics.RecordDriveOperation(ctx, instrumentation.OperationDelete, instrumentation.StatusCancelled, 0)
		m.audit.LogFileOperation(ctx, instrumentation.NewFileOperation(ctx, instrumentation.OperationDelete).
			WithUser(s.Email()).
			WithFile(fileID, "").
			Cancel())
		return Result{Cancelled: true}
	}

	err := m.observe(ctx, s, instrumentation.OperationDelete, fileID, "", func(ctx context.Context) error {
		return client.DeleteFile(ctx, fileID)
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "Error deleting file", logging.FileID(fileID), logging.Err(err))
		return Result{Notice: Failure(MsgDeleteFailed)}
	}

	m.logger.InfoContext(ctx, "File deleted", logging.FileID(fileID))

	return m.refreshAfterChange(ctx, s, Success(MsgDeleteSucceeded))
}

// refreshAfterChange lists the files once after a successful change. The
// change's notice is kept even when the list fails; the list error is carried
// separately so both banners show.
func (m *Manager) refreshAfterChange(ctx context.Context, s *auth.Session, done *Notice) Result {
	result := m.List(ctx, s, "")
	if result.Notice.IsError() {
		result.LoadError = result.Notice
	}
	result.Notice = done
	return result
}

// client checks authentication and returns a Drive client for the session.
func (m *Manager) client(ctx context.Context, s *auth.Session) (Drive, bool) {
	if s == nil || !m.auth.EnsureAuthenticated(ctx, s) {
		m.logger.WarnContext(ctx, "operation requires sign-in")
		return nil, false
	}

	client, err := m.clients.ClientFor(ctx, s)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to create Drive client", logging.Err(err))
		return nil, false
	}
	return client, true
}

// observe runs one Drive call inside a span and records its metric and audit line.
func (m *Manager) observe(ctx context.Context, s *auth.Session, operation, fileID, fileName string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	if fileID != "" {
		attrs = append(attrs, attribute.String(instrumentation.SpanAttrFileID, fileID))
	}
	ctx, span := instrumentation.StartDriveSpan(ctx, operation, attrs...)
	defer span.End()

	op := instrumentation.NewFileOperation(ctx, operation).
		WithUser(s.Email()).
		WithFile(fileID, fileName)

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	status := instrumentation.StatusSuccess
	switch {
	case errors.Is(err, context.Canceled):
		status = instrumentation.StatusCancelled
		instrumentation.SetSpanError(span, err)
	case err != nil:
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	default:
		instrumentation.SetSpanSuccess(span)
	}

	m.metrics.RecordDriveOperation(ctx, operation, status, duration)
	m.audit.LogFileOperation(ctx, op.Complete(err))

	return err
}

func failureReason(err error) string {
	if reason := drive.Reason(err); reason != "" {
		return reason
	}
	return MsgUnknownError
}
