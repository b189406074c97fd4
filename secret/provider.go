package secret

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// Provider resolves secrets by reference string.
//
// Implementations must be safe for concurrent use and must not log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}

// EnvProvider resolves a reference as an environment variable name.
type EnvProvider struct{}

// Name returns "env".
func (EnvProvider) Name() string { return "env" }

// Resolve returns the variable's value.
func (EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("%w: env %s", ErrSecretNotFound, ref)
	}
	return v, nil
}

// Close is a no-op.
func (EnvProvider) Close() error { return nil }

// FileProvider resolves a reference as a file path, as used by mounted
// container secrets. Trailing newlines are trimmed.
type FileProvider struct{}

// Name returns "file".
func (FileProvider) Name() string { return "file" }

// Resolve returns the file's content.
func (FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	data, err := os.ReadFile(ref)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: file %s", ErrSecretNotFound, ref)
	}
	if err != nil {
		return "", fmt.Errorf("secret: read %s: %w", ref, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// Close is a no-op.
func (FileProvider) Close() error { return nil }

// DotenvProvider resolves a reference as a key of a dotenv file that is not
// loaded into the process environment.
type DotenvProvider struct {
	path string

	once   sync.Once
	values map[string]string
	err    error
}

// NewDotenvProvider reads keys from the dotenv file at path on first use.
func NewDotenvProvider(path string) *DotenvProvider {
	return &DotenvProvider{path: path}
}

// Name returns "dotenv".
func (p *DotenvProvider) Name() string { return "dotenv" }

// Resolve returns the value of key ref.
func (p *DotenvProvider) Resolve(_ context.Context, ref string) (string, error) {
	p.once.Do(func() {
		p.values, p.err = godotenv.Read(p.path)
	})
	if p.err != nil {
		return "", fmt.Errorf("secret: read dotenv %s: %w", p.path, p.err)
	}
	v, ok := p.values[ref]
	if !ok {
		return "", fmt.Errorf("%w: dotenv %s", ErrSecretNotFound, ref)
	}
	return v, nil
}

// Close is a no-op.
func (p *DotenvProvider) Close() error { return nil }

var (
	_ Provider = EnvProvider{}
	_ Provider = FileProvider{}
	_ Provider = (*DotenvProvider)(nil)
)
