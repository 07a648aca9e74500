package adapter

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/mod/sumdb/dirhash"

	"github.com/skillspkg/spm/internal/port"
)

// DirhashService implements port.HashService with golang.org/x/mod/sumdb/dirhash,
// the same module used to fingerprint go.sum directory trees, repurposed here
// to record the content hash of a freshly installed or updated skill
// directory (Lifecycle.recordContentHash).
type DirhashService struct{}

// NewDirhashService creates a new DirhashService instance.
func NewDirhashService() *DirhashService {
	return &DirhashService{}
}

// CalculateHash hashes dirPath's file names and contents recursively. The
// lifecycle stores the result on the descriptor after an install or update;
// it does not compare hashes (local edits are detected through git status).
func (s *DirhashService) CalculateHash(ctx context.Context, dirPath string) (*port.HashResult, error) {
	// Verify that the directory exists
	info, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory does not exist: %s: %w", dirPath, err)
		}
		return nil, fmt.Errorf("failed to access directory %s: %w", dirPath, err)
	}

	// Verify that the path is a directory, not a file
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dirPath)
	}

	// Calculate hash using dirhash.HashDir (SHA-256 based)
	// HashDir returns format "h1:<base64-encoded-sha256>" which is the standard Go module hash format
	hashValue, err := dirhash.HashDir(dirPath, "", dirhash.Hash1)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash for directory %s: %w", dirPath, err)
	}

	// HashDir returns format "h1:<base64>" - we use this as-is for consistency with Go module ecosystem
	return &port.HashResult{
		Algorithm: "sha256",
		Value:     hashValue,
	}, nil
}

// HashAlgorithm returns the hash algorithm name used by this service.
func (s *DirhashService) HashAlgorithm() string {
	return "sha256"
}
