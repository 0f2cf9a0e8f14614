package eventtype

import "errors"

// Sentinel errors for hierarchy operations.
var (
	// ErrInvalidTag is returned when a tag is empty or malformed.
	ErrInvalidTag = errors.New("invalid event type tag")

	// ErrUnknownTag is returned when a tag has not been defined.
	ErrUnknownTag = errors.New("unknown event type")

	// ErrAlreadyDefined is returned when a tag is redefined with different parents.
	ErrAlreadyDefined = errors.New("event type already defined")
)
