package portal

import "fmt"

// FailureReason classifies a portal fetch failure.
type FailureReason string

const (
	// ReasonLoginFailed means the portal rejected the credentials.
	ReasonLoginFailed FailureReason = "LOGIN_FAILED"
	// ReasonAccountLocked means the portal account is locked out.
	ReasonAccountLocked FailureReason = "ACCOUNT_LOCKED"
	// ReasonScrapeFailed covers transient or structural scrape errors.
	ReasonScrapeFailed FailureReason = "SCRAPE_FAILED"
)

// Error is a classified portal fetch failure. All fetch failures are
// terminal for the owning job; retry requires a new user-initiated
// sync.
type Error struct {
	Reason FailureReason
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("portal fetch failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("portal fetch failed (%s)", e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified portal error.
func NewError(reason FailureReason, err error) *Error {
	return &Error{Reason: reason, Err: err}
}
