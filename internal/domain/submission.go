package domain

import (
	"errors"
	"time"
)

// SubmissionFeedback is the user's verdict on one suggested link.
type SubmissionFeedback string

// Feedback codes as stored in the submissions table.
const (
	FeedbackAccepted SubmissionFeedback = "a"
	FeedbackRejected SubmissionFeedback = "r"
	FeedbackSkipped  SubmissionFeedback = "s"
)

// Common validation errors for Submission
var (
	ErrInvalidUserID   = errors.New("user ID must be positive")
	ErrInvalidTargetID = errors.New("target page ID must be positive")
	ErrInvalidFeedback = errors.New("invalid submission feedback code")
)

// Submission records one user's verdict on one suggested link of one
// recommendation revision. Submissions are append-only; they are written in
// one batch per user decision and never updated in place.
type Submission struct {
	PageID     int64 `json:"page_id"`
	RevisionID int64 `json:"revision_id"`
	// EditRevisionID is the revision created by the user's edit, or nil
	// when the decision produced no edit (everything rejected/skipped).
	EditRevisionID *int64             `json:"edit_revision_id,omitempty"`
	UserID         int64              `json:"user_id"`
	TargetID       int64              `json:"target_id"`
	Feedback       SubmissionFeedback `json:"feedback"`
	AnchorOffset   int                `json:"anchor_offset"`
	AnchorLength   int                `json:"anchor_length"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Validate checks if the Submission has valid data.
func (s *Submission) Validate() error {
	if s.PageID <= 0 {
		return ErrInvalidPageID
	}

	if s.RevisionID <= 0 {
		return ErrInvalidRevisionID
	}

	if s.UserID <= 0 {
		return ErrInvalidUserID
	}

	if s.TargetID <= 0 {
		return ErrInvalidTargetID
	}

	if !isValidFeedback(s.Feedback) {
		return ErrInvalidFeedback
	}

	return nil
}

func isValidFeedback(f SubmissionFeedback) bool {
	switch f {
	case FeedbackAccepted, FeedbackRejected, FeedbackSkipped:
		return true
	default:
		return false
	}
}
