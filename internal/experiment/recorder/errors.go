package recorder

import "errors"

var (
	ErrMalformedRow = errors.New("malformed session row")
	ErrNoProvider   = errors.New("scene snapshot provider is nil")
)
