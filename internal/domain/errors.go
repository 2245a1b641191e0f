package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job id does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrUserNotFound is returned when a user id does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrSessionExpired is returned when no cached portal credentials
	// exist for the job's user. Terminal for the job; credentials are
	// operator-supplied per attempt, not auto-renewable.
	ErrSessionExpired = errors.New("portal session expired")

	// ErrStudentAlreadyConnected is returned by the initial-sync path
	// when another local user already linked the same external student
	// code. Treated as a success-equivalent no-op, not a failure.
	ErrStudentAlreadyConnected = errors.New("student already connected to another account")
)
