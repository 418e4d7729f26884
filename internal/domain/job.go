package domain

import "time"

// JobType enumerates supported generation job categories.
type JobType string

const (
	JobTypeTextToImage  JobType = "text_to_image"
	JobTypeImageToImage JobType = "image_to_image"
	JobTypeTextToVideo  JobType = "text_to_video"
	JobTypeImageToVideo JobType = "image_to_video"
)

// IsVideo reports whether the job produces video output.
func (t JobType) IsVideo() bool {
	return t == JobTypeTextToVideo || t == JobTypeImageToVideo
}

// NeedsInputMedia reports whether the job type requires a source media reference.
func (t JobType) NeedsInputMedia() bool {
	return t == JobTypeImageToImage || t == JobTypeImageToVideo
}

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeTextToImage, JobTypeImageToImage, JobTypeTextToVideo, JobTypeImageToVideo:
		return true
	}
	return false
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether moving from s to next is a legal edge of the
// job state machine. Terminal states have no outgoing edges.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed
	}
	return false
}

// MaxPromptLength bounds user prompts before any credit movement.
const MaxPromptLength = 2000

// Job encapsulates one generation request and its lifecycle record.
// Rows are never deleted; they form the audit trail.
type Job struct {
	ID           string
	UserID       string
	Type         JobType
	Prompt       string
	InputRef     string
	Provider     string
	CostCredits  int64
	Status       JobStatus
	ResultRef    string
	ErrorMessage string
	Params       Params
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
