package experiment

import "errors"

// Session protocol errors
var (
	ErrInvalidConfig   = errors.New("invalid experiment configuration")
	ErrNotStarted      = errors.New("no trial is active yet")
	ErrSessionComplete = errors.New("session complete")
	ErrAdvancePastEnd  = errors.New("advance after session completed")
	ErrNoSession       = errors.New("recording session not started")
	ErrTrialOutOfRange = errors.New("trial index out of range")
	ErrSlotOverwritten = errors.New("trial slot already recorded")
	ErrUnknownValue    = errors.New("unknown enum value")
)
