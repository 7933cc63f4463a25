package main

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/spotlight/internal/core/events/bus"
	"github.com/zeusync/spotlight/internal/core/observability/log"
	"github.com/zeusync/spotlight/internal/experiment"
	"github.com/zeusync/spotlight/internal/experiment/recorder"
	"github.com/zeusync/spotlight/internal/experiment/session"
	"github.com/zeusync/spotlight/internal/host/console"
)

type failingSink struct{ err error }

func (f failingSink) Store(context.Context, experiment.SubjectSession) error { return f.err }

func lockedDo(mu *sync.Mutex) func(func()) {
	return func(fn func()) {
		mu.Lock()
		defer mu.Unlock()
		fn()
	}
}

func finishedSession(t *testing.T, sinks ...recorder.Sink) *session.Session {
	t.Helper()
	host := console.New(strings.NewReader(""), io.Discard, bus.New(), log.NewNop())
	sess, err := session.New(session.Config{
		SubjectID:     3,
		TotalTrials:   1,
		TasksPerTrial: 2,
		Seed:          1,
	}, host, recorder.New(), log.NewNop(), sinks...)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, _ = sess.Advance(context.Background())
	}
	require.True(t, sess.Finished())
	return sess
}

func TestAwaitCompletionReturnsStorageFailure(t *testing.T) {
	boom := errors.New("disk full")
	sess := finishedSession(t, failingSink{err: boom})

	var mu sync.Mutex
	err := awaitCompletion(context.Background(), lockedDo(&mu), sess, time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestAwaitCompletionCleanFinish(t *testing.T) {
	sess := finishedSession(t, recorder.FileSink{Dir: t.TempDir()})

	var mu sync.Mutex
	assert.NoError(t, awaitCompletion(context.Background(), lockedDo(&mu), sess, time.Millisecond))
}

type pending struct{}

func (pending) Finished() bool { return false }
func (pending) Err() error     { return nil }

func TestAwaitCompletionStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	done := make(chan error, 1)
	go func() { done <- awaitCompletion(ctx, lockedDo(&mu), pending{}, time.Millisecond) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("awaitCompletion did not return after cancel")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := loadConfig("", 12, "right")
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Subject.ID)
	assert.Equal(t, experiment.HandednessRight, cfg.Subject.Handedness)

	_, err = loadConfig("", -1, "ambidextrous")
	assert.Error(t, err)
}
