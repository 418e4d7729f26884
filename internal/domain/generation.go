package domain

import "time"

// Generation is the derived artifact produced when a job completes. It is
// one-to-one with its job and written in the same transaction as the
// completed transition.
type Generation struct {
	ID          string
	JobID       string
	UserID      string
	MediaRef    string
	ContentType string
	Provider    string
	Params      Params
	CreatedAt   time.Time
}
