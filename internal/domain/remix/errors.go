package remix

import "errors"

var (
	// ErrInvalidRepoURL is returned when a repository URL cannot be parsed
	ErrInvalidRepoURL = errors.New("invalid github repository url")

	// ErrMissingToken is returned when no usable token covers the destination
	ErrMissingToken = errors.New("missing github token")

	// ErrRateLimited is returned when the hourly remix limit is reached
	ErrRateLimited = errors.New("hourly remix limit reached")

	// ErrSourceNotFound is returned when the source repository or its tree
	// cannot be read with the given token
	ErrSourceNotFound = errors.New("source repository not found or not accessible")

	// ErrDestinationUnavailable is returned when the destination repository
	// cannot be created or does not become readable in time
	ErrDestinationUnavailable = errors.New("destination repository unavailable")

	// ErrNotFound is returned when a remix record does not exist
	ErrNotFound = errors.New("remix not found")

	ErrInternal = errors.New("internal error")
)
