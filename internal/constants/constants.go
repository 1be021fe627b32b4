// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Face matching constants
const (
	// MatchThreshold is the maximum Euclidean distance (exclusive) for a face to be
	// considered the same person. Tied to the embedding model; recalibrate when the
	// extractor changes.
	MatchThreshold = 0.6

	// DuplicateSearchLimit is how many nearest neighbours are inspected when looking
	// for an already enrolled person that resembles a new enrollment
	DuplicateSearchLimit = 3
)

// Scanning constants
const (
	// DefaultScanInterval is the period between two scan ticks
	DefaultScanInterval = 500 * time.Millisecond

	// DefaultTickTimeout bounds a single frame grab + extraction
	DefaultTickTimeout = 10 * time.Second

	// DegradedAfterFailures is the number of consecutive failed ticks after which
	// the scanner reports degraded mode
	DegradedAfterFailures = 5
)

// Registry constants
const (
	// RegistryKey is the storage key holding the whole face registry
	RegistryKey = "memoryanchor_faces"

	// RegistryFormatVersion is the current version of the persisted registry envelope
	RegistryFormatVersion = 1
)

// Image constants
const (
	// MaxImageSize is the maximum dimension (width or height) for frames sent to the
	// embedding service
	MaxImageSize = 1920

	// SnapshotJPEGQuality is the JPEG quality used when re-encoding downscaled frames
	SnapshotJPEGQuality = 90
)

// HNSW index parameters for the duplicate-face index
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	HNSWEfSearch = 64
)
