package engine

import "errors"

var (
	// ErrConflict indicates existing instance directories blocked jobs.
	ErrConflict = errors.New("conflict detected")

	// ErrValidation indicates a validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a feeder, mix or instance was not found.
	ErrNotFound = errors.New("not found")

	// ErrNoFeeders indicates discovery found nothing to deploy.
	ErrNoFeeders = errors.New("no feeders found")

	// ErrTemplateUnreadable indicates a feeder template could not be read.
	// It aborts the whole batch.
	ErrTemplateUnreadable = errors.New("template unreadable")

	// ErrJobsFailed indicates one or more jobs of a batch failed.
	ErrJobsFailed = errors.New("jobs failed")

	// ErrCheckFailed indicates instances failed the export check.
	ErrCheckFailed = errors.New("export check failed")
)
