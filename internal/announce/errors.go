package announce

import (
	"fmt"
	"strings"
)

// MissingCredentialError is returned when a platform's stored credentials
// are absent or incomplete.
type MissingCredentialError struct {
	Platform string
	Keys     []string
}

func (e MissingCredentialError) Error() string {
	if len(e.Keys) == 0 {
		return fmt.Sprintf("%s credentials not configured", e.Platform)
	}
	return fmt.Sprintf("%s credentials not configured (missing %s)", e.Platform, strings.Join(e.Keys, ", "))
}

// ValidationError captures platform-specific precondition failures.
type ValidationError struct {
	Platform string
	Reason   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Platform, e.Reason)
}

// ResolutionError is returned when a quote target permalink cannot be
// matched to a platform post.
type ResolutionError struct {
	Platform  string
	Permalink string
}

func (e ResolutionError) Error() string {
	return fmt.Sprintf("%s: no post found matching permalink %q", e.Platform, e.Permalink)
}

// PublishError reports which post of a thread failed. Posts published before
// the failing index stay published; there is no rollback, and re-running the
// thread will publish them again.
type PublishError struct {
	Platform string
	Index    int
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%s: publishing post %d failed: %v", e.Platform, e.Index, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
