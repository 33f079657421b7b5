// Package compilationcache lets a Runtime skip re-running the validator
// (spec.md §4.2) over a Wasm binary it has already validated once, keyed by
// the binary's content hash (SPEC_FULL.md §3 supplemented features).
package compilationcache

import (
	"crypto/sha256"
	"io"
)

// Cache records which Wasm binaries (by content hash) have already passed
// validation, so a repeat CompileModule on the same bytes can decode without
// re-running the validator. Implementations must be goroutine-safe.
//
// See NewFileCache for the on-disk implementation.
type Cache interface {
	// Get reports whether key was previously Add-ed. When ok is true,
	// content is an empty marker stream the caller must Close; no decoded
	// module data is round-tripped through the cache, only the fact that
	// validation already succeeded for this exact byte sequence.
	Get(key Key) (content io.ReadCloser, ok bool, err error)
	// Add records that key's binary has been validated successfully.
	Add(key Key, content io.Reader) (err error)
	// Delete purges key, forcing the next CompileModule on those bytes to
	// re-validate.
	Delete(key Key) (err error)
}

// Key is the SHA-256 digest of a Wasm binary's raw bytes.
type Key = [sha256.Size]byte
