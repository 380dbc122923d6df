// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for drivedesk.
//
// # Metrics
//
// HTTP:
//   - http_requests_total: requests by method, route pattern and status
//   - http_request_duration_seconds: request durations
//   - active_sessions: browser sessions held in memory
//
// Google Drive:
//   - drive_api_operations_total: operations by operation and status
//   - drive_api_call_duration_seconds: operation durations
//   - drive_upload_size_bytes: uploaded file sizes
//
// OAuth:
//   - oauth_auth_total: sign-in attempts by result
//   - oauth_token_refresh_total: refresh attempts by result (success, failure, skipped)
//
// # Tracing
//
// Spans are created for HTTP requests (through otelhttp in the server package),
// Drive operations (drive.<operation>) and identity provider calls (auth.<step>).
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED: enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: service name (default: drivedesk)
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_PII: audit log behavior
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordDriveOperation(ctx, instrumentation.OperationList, instrumentation.StatusSuccess, time.Since(start))
package instrumentation
