package source

import "errors"

// Sentinel errors classifying every failure an adapter or the registry can
// produce. Adapters wrap these with context via fmt.Errorf("...: %w", ...)
// so callers can both match the class with errors.Is and read the detail.
var (
	// ErrInvalidInput means the input shape or content is unusable for the
	// adapter. Raised before any network I/O.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAuthentication means the source rejected the configured credentials.
	ErrAuthentication = errors.New("authentication failed")

	// ErrConnectivity means the source could not be reached or answered
	// with a server-side failure.
	ErrConnectivity = errors.New("source unreachable")

	// ErrRateLimited means the source throttled the request.
	ErrRateLimited = errors.New("rate limited by source")

	// ErrNotFound means the requested content does not exist at the source.
	ErrNotFound = errors.New("content not found")

	// ErrExtraction means content was fetched but could not be parsed into
	// usable text.
	ErrExtraction = errors.New("content extraction failed")

	// ErrNotInitialized means ProcessSource was called before Initialize
	// succeeded, or after Cleanup.
	ErrNotInitialized = errors.New("adapter not initialized")

	// ErrUnknownSourceType means no adapter is registered for the type.
	ErrUnknownSourceType = errors.New("unknown source type")

	// ErrDuplicateRegistration means a constructor was registered twice for
	// the same type without AllowOverride.
	ErrDuplicateRegistration = errors.New("source type already registered")
)

// Retryable reports whether retrying the same request later could succeed.
// Input, credential, and not-found failures are permanent; throttling and
// connectivity failures are transient.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrRateLimited):
		return true
	case errors.Is(err, ErrConnectivity):
		return true
	default:
		return false
	}
}
