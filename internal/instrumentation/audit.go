package instrumentation

import (
	"context"
	"log/slog"
	"time"
)

// FileOperation captures one user-initiated Drive operation for audit logging.
//
// # Privacy Considerations
//
// UserEmail and FileName are PII. Unless the audit logger is configured with
// IncludePII, only the user's domain is written and the file name is omitted.
type FileOperation struct {
	// Operation is one of the Operation* constants
	Operation string

	// UserEmail identifies the signed-in user, when known
	UserEmail string

	// FileID and FileName identify the target file, when there is one
	FileID   string
	FileName string

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Status    string
	Error     string

	// Tracing context
	TraceID string
	SpanID  string
}

// NewFileOperation starts timing an operation.
func NewFileOperation(ctx context.Context, operation string) *FileOperation {
	return &FileOperation{
		Operation: operation,
		StartTime: time.Now(),
		TraceID:   GetTraceID(ctx),
		SpanID:    GetSpanID(ctx),
	}
}

// WithUser sets the user identity.
func (op *FileOperation) WithUser(email string) *FileOperation {
	op.UserEmail = email
	return op
}

// WithFile sets the target file.
func (op *FileOperation) WithFile(id, name string) *FileOperation {
	op.FileID = id
	op.FileName = name
	return op
}

// Complete records the outcome and duration. A nil err means success.
func (op *FileOperation) Complete(err error) *FileOperation {
	op.Duration = time.Since(op.StartTime)
	if err != nil {
		op.Status = StatusError
		op.Error = err.Error()
	} else {
		op.Status = StatusSuccess
	}
	return op
}

// Cancel records an operation the user declined.
func (op *FileOperation) Cancel() *FileOperation {
	op.Duration = time.Since(op.StartTime)
	op.Status = StatusCancelled
	return op
}

// UserDomain returns the domain portion of the user's email.
func (op *FileOperation) UserDomain() string {
	return ExtractUserDomain(op.UserEmail)
}

// LogAttrs returns the attributes written for the operation. Full email and
// file name are only included when includePII is set.
func (op *FileOperation) LogAttrs(includePII bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("operation", op.Operation),
		slog.String("status", op.Status),
		slog.Duration("duration", op.Duration),
	}

	if includePII {
		attrs = append(attrs, slog.String("user", op.UserEmail))
		if op.FileName != "" {
			attrs = append(attrs, slog.String("file_name", op.FileName))
		}
	} else {
		attrs = append(attrs, slog.String("user_domain", op.UserDomain()))
	}

	if op.FileID != "" {
		attrs = append(attrs, slog.String("file_id", op.FileID))
	}
	if op.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", op.TraceID))
	}
	if op.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", op.SpanID))
	}
	if op.Error != "" {
		attrs = append(attrs, slog.String("error", op.Error))
	}

	return attrs
}

// AuditLogger writes one structured line per file operation.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an enabled AuditLogger that omits PII.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates an AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogFileOperation writes the operation at info level, or warn when it failed.
// A nil receiver is a no-op.
func (al *AuditLogger) LogFileOperation(ctx context.Context, op *FileOperation) {
	if al == nil || !al.enabled || op == nil {
		return
	}

	level := slog.LevelInfo
	msg := "file_operation"
	if op.Status == StatusError {
		level = slog.LevelWarn
		msg = "file_operation_failed"
	}

	al.logger.LogAttrs(ctx, level, msg, op.LogAttrs(al.includePII)...)
}
