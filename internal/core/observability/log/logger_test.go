package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LevelInfo, l)

	l, err = ParseLevel(" WARN ")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, l)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestSetLevelIsSharedWithChildren(t *testing.T) {
	l := NewNop()
	child := l.With(String("component", "test"))

	l.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, l.GetLevel())
	assert.Equal(t, LevelDebug, child.GetLevel())
}

func TestNopLoggerAcceptsAllFieldTypes(t *testing.T) {
	l := NewNop()
	assert.NotPanics(t, func() {
		l.Info("fields",
			Bool("b", true), Float64("f", 1.5), Int("i", 1), Int64("i64", 2),
			String("s", "x"), Stringer("level", LevelWarn), Error(errors.New("boom")),
			Any("any", []int{1}),
		)
	})
}
