package config

import "errors"

var (
	ErrParse           = errors.New("config: parse environment")
	ErrInvalidStorage  = errors.New("config: invalid storage backend")
	ErrInvalidBus      = errors.New("config: invalid broadcast backend")
	ErrMissingPath     = errors.New("config: bbolt storage requires a path")
	ErrMissingRedisURL = errors.New("config: redis backend requires a url")
	ErrInvalidInterval = errors.New("config: durations must be positive")
	ErrDevInProduction = errors.New("config: dev sign-in requires a local container")
)
