package shared

import (
	"errors"
	"fmt"
)

var (
	// Fatal: reported before any remote state is touched
	ErrConfiguration      = fmt.Errorf("configuration error")
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrAuthentication     = fmt.Errorf("authentication failed")
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")
	ErrTokenExpired       = fmt.Errorf("access token expired")

	// Recoverable: retried with backoff, then degraded into report entries
	ErrRateLimited      = fmt.Errorf("rate limited")
	ErrTransientNetwork = fmt.Errorf("transient network error")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Remote resources
	ErrNotFound           = fmt.Errorf("not found")
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found: %w", ErrNotFound)
	ErrFolderNotFound     = fmt.Errorf("collection folder not found: %w", ErrNotFound)
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Outcomes that never abort a run
	ErrNoMatch                = fmt.Errorf("no match found")
	ErrPartialPlaylistFailure = fmt.Errorf("partial playlist failure")

	// Run level
	ErrSyncIncomplete = fmt.Errorf("sync finished with unrecoverable failures")
	ErrSyncInProgress = fmt.Errorf("another sync is already running")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// IsRecoverable reports whether err belongs to the retryable class (rate limiting, transient network, timeouts).
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransientNetwork) || errors.Is(err, ErrTimeout)
}

// IsFatal reports whether err must abort a run before processing starts.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrMissingConfig)
}
