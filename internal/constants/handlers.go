package constants

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for display listener channels
	EventChannelBuffer = 100
)

// File upload constants
const (
	// MaxUploadSize is the maximum enrollment image size in bytes (20MB)
	MaxUploadSize = 20 << 20
)
