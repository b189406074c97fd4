// Package observe provides tracing, metrics and structured logging for
// authentication flows.
//
// Every sign-in, sign-up and sign-out runs through Middleware, which opens a
// span named after the Operation, records the auth.signin.* instruments and
// logs the outcome. Sensitive fields (tokens, signatures, session keys) are
// redacted by the logger regardless of the caller.
package observe
