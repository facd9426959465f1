package fetch

import "errors"

var (
	// ErrInvalidProxyAddress is returned when the proxy address format is invalid.
	// Expected format is "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// errNoRelativeBase is returned when the relative origin is tried but no
	// site URL was configured to resolve it against.
	errNoRelativeBase = errors.New("relative origin has no site URL to resolve against")

	// errNotJSON marks a response whose content type does not declare JSON.
	errNotJSON = errors.New("response is not JSON")

	// errBodyTooLarge marks a response body above the configured limit.
	errBodyTooLarge = errors.New("response body exceeds size limit")
)
