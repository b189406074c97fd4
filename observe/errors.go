package observe

import (
	"errors"

	"github.com/jonwraymond/satauth/observe/exporters"
)

// Configuration errors.
var (
	ErrMissingServiceName     = errors.New("observe: service name is required")
	ErrInvalidSamplePct       = errors.New("observe: sample percentage must be between 0.0 and 1.0")
	ErrInvalidTracingExporter = errors.New("observe: invalid tracing exporter")
	ErrInvalidMetricsExporter = errors.New("observe: invalid metrics exporter")
	ErrInvalidLogLevel        = errors.New("observe: invalid log level")
)

// Runtime errors.
var (
	ErrNilObserver          = errors.New("observe: observer is nil")
	ErrMissingOperationName = errors.New("observe: operation name is required")
)

// ErrEndpointNotConfigured indicates a required exporter endpoint variable is unset.
var ErrEndpointNotConfigured = exporters.ErrEndpointNotConfigured

// RedactedFields lists field keys whose values never reach log output.
var RedactedFields = []string{
	"password",
	"secret",
	"token",
	"id_token",
	"access_token",
	"code",
	"signature",
	"session_key",
	"delegation",
	"seed",
	"client_secret",
	"credential",
}

var redacted = func() map[string]bool {
	m := make(map[string]bool, len(RedactedFields))
	for _, k := range RedactedFields {
		m[k] = true
	}
	return m
}()
