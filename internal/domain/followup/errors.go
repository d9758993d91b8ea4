package followup

import "errors"

var (
	ErrMissingField   = errors.New("follow-up missing required field")
	ErrUnknownField   = errors.New("unknown follow-up field")
	ErrInvalidStatus  = errors.New("invalid follow-up status")
	ErrUnknownSection = errors.New("unknown section")
	ErrInvalidHeader  = errors.New("invalid follow-up header")
)
