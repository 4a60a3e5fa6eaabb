package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound            = errors.New("not found")
	ErrStageNotConfigured  = errors.New("stage not configured")
	ErrActivityNotAuthored = errors.New("activity type is system generated")
	ErrInvalidSnapshot     = errors.New("invalid snapshot")
)
