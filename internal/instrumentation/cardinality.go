package instrumentation

import "strings"

// Cardinality management helpers for metrics.
// Label values derived from users or request paths must pass through these
// helpers so that a busy instance cannot create unbounded series.

// Drive operation label values.
const (
	OperationList     = "list"
	OperationSearch   = "search"
	OperationUpload   = "upload"
	OperationDownload = "download"
	OperationDelete   = "delete"
	OperationValidate = "validate"
)

// RouteUnmatched labels requests that matched no registered route.
const RouteUnmatched = "unmatched"

// ExtractUserDomain extracts the domain part from an email address.
//
// Example:
//
//	ExtractUserDomain("jane@example.com")  // "example.com"
//	ExtractUserDomain("invalid")           // "unknown"
//	ExtractUserDomain("")                  // "unknown"
func ExtractUserDomain(email string) string {
	if email == "" {
		return "unknown"
	}

	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}

	return "unknown"
}

// RouteLabel returns the route pattern a request matched, without the method
// prefix, so file IDs never become label values.
//
// Example:
//
//	RouteLabel("GET /files/{id}/download")  // "/files/{id}/download"
//	RouteLabel("")                           // "unmatched"
func RouteLabel(pattern string) string {
	if pattern == "" {
		return RouteUnmatched
	}
	if _, path, ok := strings.Cut(pattern, " "); ok {
		return path
	}
	return pattern
}
