// Package logging provides structured logging utilities for drivedesk.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Handler construction from configuration (json or text, level by name)
//   - Consistent attribute naming across the codebase
//   - Session ID, email and token sanitization
//   - Logger adapter interface for background components
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "drive.list")
//	logger.Info("listed files",
//	    logging.Query(q),
//	    logging.Status(logging.StatusSuccess))
//
// # Security Considerations
//
//   - Session cookie values are hashed before they reach a log line
//   - User emails are hashed to prevent PII leakage while allowing correlation
//   - Tokens are never logged directly, only their length
package logging
