package bus

import (
	"errors"
	"strings"
)

var (
	ErrNilHandler = errors.New("nil event handler")
	ErrNilEvent   = errors.New("nil event")
)

// Host input event types.
const (
	TypeAdvance = "trial.advance"
	TypeKey     = "trial.key"
)

// NewAdvance is the "next trial" trigger.
func NewAdvance(source string) Event {
	return NewEvent(TypeAdvance, source, nil)
}

// NewKey carries a released key, normalized to upper case.
func NewKey(source, key string) Event {
	return NewEvent(TypeKey, source, strings.ToUpper(strings.TrimSpace(key)))
}

// KeyOf extracts the key of a TypeKey event.
func KeyOf(e Event) (string, bool) {
	if e == nil || e.Type() != TypeKey {
		return "", false
	}
	k, ok := e.Data().(string)
	return k, ok
}
