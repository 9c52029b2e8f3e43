package errors

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalid          = errors.New("invalid")
	ErrTooMany          = errors.New("too many requests")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrDecodeFailure    = errors.New("decode failure")
	ErrInternal         = errors.New("internal")
)

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
