package domain

import "errors"

var (
	ErrMalformedOffense  = errors.New("malformed offense")
	ErrUnpricedOffense   = errors.New("unpriced offense")
	ErrActuationTimeout  = errors.New("actuation timeout")
	ErrActuationFailure  = errors.New("actuation failure")
	ErrConfiguration     = errors.New("configuration error")
	ErrUnknownResource   = errors.New("unknown resource")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrCaseNotFound      = errors.New("rico case not found")
)
