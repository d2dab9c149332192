package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNoFetcher    = errors.New("no live source configured")
	ErrNoArchive    = errors.New("no archive source configured")
	ErrInvalidLimit = errors.New("invalid rankings limit")
)
