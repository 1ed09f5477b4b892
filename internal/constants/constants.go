// Package constants provides shared constants used across the codebase.
package constants

// Processing constants
const (
	// WorkerPoolSize is the default number of images encoded in parallel by batch commands
	WorkerPoolSize = 4

	// ImageFetchTimeoutSeconds bounds a whole batch encode in the CLI
	ImageFetchTimeoutSeconds = 600
)

// Search constants
const (
	// DefaultSearchLimit is the default number of stored faces returned by a search
	DefaultSearchLimit = 10

	// MaxSearchLimit caps the k accepted by the search endpoint
	MaxSearchLimit = 1000
)

// File upload constants
const (
	// MaxUploadSize is the maximum image upload size in bytes (32MB)
	MaxUploadSize = 32 << 20

	// MaxJSONBodySize is the maximum JSON request body size in bytes (16MB)
	MaxJSONBodySize = 16 << 20
)
