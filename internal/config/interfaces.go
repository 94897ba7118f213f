package config

import "context"

// SecretProvider abstracts the retrieval of secrets so that AWS SSM Parameter
// Store and plain environment variables can back the same loader.
type SecretProvider interface {
	// GetParametersBatch resolves the given parameter paths and returns a
	// map of path -> plaintext value for every path it could resolve.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
