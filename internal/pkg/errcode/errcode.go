package errcode

const (
	Unauthorized     = "unauthorized"
	NotFound         = "not_found"
	Invalid          = "invalid"
	TooMany          = "too_many"
	StoreUnavailable = "store_unavailable"
	DecodeFailure    = "decode_failure"
	Internal         = "internal"
)
