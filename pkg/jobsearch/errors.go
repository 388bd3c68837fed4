package jobsearch

import "errors"

var (
	// ErrNoJobsMatched is returned when the provider answered with no postings.
	ErrNoJobsMatched = errors.New("no jobs matched")

	// ErrTransport is returned when the provider could not be reached or
	// answered with an error or an unreadable payload.
	ErrTransport = errors.New("job search transport failure")
)
