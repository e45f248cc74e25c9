package tilera

import "errors"

// Allocation errors.
var (
	// ErrDescriptorsExhausted is returned when every descriptor slot is taken.
	ErrDescriptorsExhausted = errors.New("tilera: no free descriptor slots")

	// ErrQueriesExhausted is returned when the timer query pool is full.
	ErrQueriesExhausted = errors.New("tilera: timer query pool exhausted")
)

// Compilation errors.
var (
	// ErrCompileFailed wraps shader compiler failures.
	ErrCompileFailed = errors.New("tilera: shader compilation failed")
)

// Synchronization errors.
var (
	// ErrSyncFailed is returned when a blocking fence wait does not succeed.
	// It wraps tile.ErrQueueError or tile.ErrNeverSignaled.
	ErrSyncFailed = errors.New("tilera: fence wait failed")
)

// Capability and parameter errors.
var (
	// ErrUnknownFormat is returned for formats missing from the format table.
	ErrUnknownFormat = errors.New("tilera: unknown format")

	// ErrInvalidDimensions is returned for texture dimensionality other than 1, 2 or 3.
	ErrInvalidDimensions = errors.New("tilera: invalid texture dimensions")

	// ErrTextureTooLarge is returned when a texture exceeds Limits.MaxTextureSize.
	ErrTextureTooLarge = errors.New("tilera: texture exceeds size limit")

	// ErrInvalidVertexAttrib is returned for vertex attribute types the
	// hardware cannot fetch.
	ErrInvalidVertexAttrib = errors.New("tilera: unsupported vertex attribute")

	// ErrInvalidRunParams is returned when Run values do not match the pipeline inputs.
	ErrInvalidRunParams = errors.New("tilera: invalid run parameters")

	// ErrInvalidUsage is returned when a resource lacks the usage an operation needs.
	ErrInvalidUsage = errors.New("tilera: resource usage does not allow operation")

	// ErrUnsupportedProvider is returned when a device provider does not
	// expose HAL objects.
	ErrUnsupportedProvider = errors.New("tilera: provider does not expose HAL types")

	// ErrOutOfRange is returned for buffer or host memory accesses outside bounds.
	ErrOutOfRange = errors.New("tilera: access out of range")
)
