package domain

import "errors"

var (
	// ErrInvalidRequest wraps every request validation failure.
	ErrInvalidRequest = errors.New("invalid assessment request")
	// ErrUnknownDeliverable is returned for deliverable names outside the catalog.
	ErrUnknownDeliverable = errors.New("unknown deliverable")
	// ErrUnknownStrategy is returned for unsupported mosaic strategy names.
	ErrUnknownStrategy = errors.New("unknown mosaic strategy")
	// ErrInvalidGeometry is returned when the region of interest cannot be used.
	ErrInvalidGeometry = errors.New("invalid geometry")
	// ErrNoScenes is returned when a composite window contains no imagery.
	ErrNoScenes = errors.New("no images found")
)
