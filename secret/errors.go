package secret

import "errors"

// Sentinel errors for secret resolution.
var (
	ErrInvalidRegistration   = errors.New("secret: invalid provider registration")
	ErrDuplicateProvider     = errors.New("secret: provider already registered")
	ErrProviderNotRegistered = errors.New("secret: provider not registered")
	ErrMissingEnv            = errors.New("secret: missing required environment variables")
	ErrEmptySecret           = errors.New("secret: provider returned empty value")
	ErrSecretNotFound        = errors.New("secret: reference not found")
)
