// Package service orchestrates the link-recommendation lifecycle: serving
// stored recommendations, refreshing them from the external generator and
// handling user submissions with their validation and side effects.
package service

import "errors"

// Service-level errors. Validation failures are expected conditions and
// travel as values to the API boundary; only programming errors and
// infrastructure failures are unexpected.
var (
	// ErrTaskTypeNotConfigured means the add-link task type is missing
	// from the wiki configuration or failed to parse. The feature is
	// effectively disabled until the config page is fixed.
	ErrTaskTypeNotConfigured = errors.New("link recommendation task type is not configured")

	// ErrUserBlocked means the acting user is blocked and may not submit.
	ErrUserBlocked = errors.New("user is blocked from submitting")

	// ErrInvalidSubmission means the submitted target sets do not match
	// the stored recommendation. This covers both tampered payloads and
	// clients that went stale past the revision check.
	ErrInvalidSubmission = errors.New("submission does not match stored recommendation")

	// ErrAlreadySubmitted means a submission was already recorded for
	// this recommendation revision.
	ErrAlreadySubmitted = errors.New("recommendation revision already has a submission")
)
