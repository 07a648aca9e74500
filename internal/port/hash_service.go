package port

import "context"

// HashResult represents the result of a hash calculation.
// It contains the hash algorithm and the encoded hash value.
type HashResult struct {
	Algorithm string // Hash algorithm (e.g., "sha256")
	Value     string // Encoded hash value (e.g., "h1:<base64>" from the dirhash adapter)
}

// HashService calculates a directory's content hash, used by the Lifecycle
// to record the post-install state of a skill directory on its descriptor
// (Descriptor.ContentHash).
type HashService interface {
	CalculateHash(ctx context.Context, dirPath string) (*HashResult, error)
}
