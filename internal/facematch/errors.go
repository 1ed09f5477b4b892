package facematch

import "errors"

var (
	// ErrInvalidInput is returned for mismatched embedding dimensions or malformed parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownIdentity is returned when an identity has no stored embeddings.
	ErrUnknownIdentity = errors.New("unknown identity")

	// ErrOracleFailure is returned when the embedding server could not encode an image.
	// An image without faces is not a failure.
	ErrOracleFailure = errors.New("embedding oracle failure")

	// ErrStoreCorrupt is returned when the durable identity store cannot be decoded.
	ErrStoreCorrupt = errors.New("identity store corrupt")
)
