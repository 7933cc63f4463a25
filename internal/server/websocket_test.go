package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/spotlight/internal/core/events/bus"
	"github.com/zeusync/spotlight/internal/core/observability/log"
	"github.com/zeusync/spotlight/internal/experiment"
	"github.com/zeusync/spotlight/internal/experiment/recorder"
	"github.com/zeusync/spotlight/internal/experiment/scheduler"
	"github.com/zeusync/spotlight/internal/experiment/session"
)

const testToken = "supersecrettoken"

type fixture struct {
	bridge *EngineBridge
	sess   *session.Session
	rec    *recorder.Recorder
}

func newFixture(t *testing.T, sinks ...recorder.Sink) *fixture {
	t.Helper()
	b := bus.New()
	bridge := NewEngineBridge(b, TokenAuth{Token: testToken}, log.NewNop())
	rec := recorder.New()
	sess, err := session.New(session.Config{
		SubjectID:     7,
		Handedness:    experiment.HandednessRight,
		TotalTrials:   3,
		TasksPerTrial: 4,
		Seed:          1,
		LightTargets:  session.DefaultLightTargets,
	}, bridge, rec, log.NewNop(), sinks...)
	require.NoError(t, err)

	unbind, err := sess.Bind(context.Background(), b)
	require.NoError(t, err)
	t.Cleanup(unbind)

	return &fixture{bridge: bridge, sess: sess, rec: rec}
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestEngineBridgeRejectsBadToken(t *testing.T) {
	f := newFixture(t)
	s := httptest.NewServer(f.bridge)
	defer s.Close()

	u := "ws" + strings.TrimPrefix(s.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, _, err = websocket.DefaultDialer.Dial(u+"?token=invalid", nil)
	assert.Error(t, err)
	assert.False(t, f.bridge.Connected())
}

func TestEngineBridgeDrivesSession(t *testing.T) {
	f := newFixture(t)
	s := httptest.NewServer(f.bridge)
	defer s.Close()

	u := "ws" + strings.TrimPrefix(s.URL, "http") + "?token=" + testToken
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Only one engine at a time.
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	first := f.sess.Scheduler().TrialList()[0]
	wantScene := scheduler.SpecFor(first, 4).SceneIndex

	require.NoError(t, conn.WriteJSON(Message{Type: MsgAdvance}))
	load := readMessage(t, conn)
	require.Equal(t, MsgLoadScene, load.Type)
	require.NotNil(t, load.Scene)
	assert.Equal(t, wantScene, *load.Scene)

	deactivate := readMessage(t, conn)
	require.Equal(t, MsgDeactivate, deactivate.Type)
	require.NotNil(t, deactivate.Scene)
	assert.Equal(t, wantScene, *deactivate.Scene)

	require.NoError(t, conn.WriteJSON(Message{Type: MsgKey, Key: "z"}))
	mode := readMessage(t, conn)
	require.Equal(t, MsgInputMode, mode.Type)
	require.NotNil(t, mode.Mode)
	assert.Equal(t, session.InputModeSensorRotate, *mode.Mode)

	snap := Snapshot{
		Position:    experiment.Vec3{X: 1, Y: 2, Z: 3},
		Orientation: experiment.Vec3{X: 0, Y: 90, Z: 0},
		Intensity:   1.25,
		Elapsed:     4.5,
	}
	require.NoError(t, conn.WriteJSON(Message{Type: MsgAdvance, Snapshot: &snap}))
	load = readMessage(t, conn)
	require.Equal(t, MsgLoadScene, load.Type)
	_ = readMessage(t, conn)

	var m experiment.TrialMeasurement
	f.bridge.Do(func() { m, err = f.rec.Measurement(0) })
	require.NoError(t, err)
	assert.Equal(t, 0, m.TrialNumber)
	assert.Equal(t, experiment.DeviceSensor, m.Device)
	assert.Equal(t, experiment.TaskTranslateRotate, m.Task)
	assert.Equal(t, snap.Position, m.Position)
	assert.Equal(t, snap.Orientation, m.Orientation)
	assert.Equal(t, 1.25, m.Intensity)
	assert.Equal(t, 4.5, m.ElapsedTime)
}

func TestEngineBridgeReportsInvalidMessages(t *testing.T) {
	f := newFixture(t)
	s := httptest.NewServer(f.bridge)
	defer s.Close()

	u := "ws" + strings.TrimPrefix(s.URL, "http") + "?token=" + testToken
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	reply := readMessage(t, conn)
	assert.Equal(t, MsgError, reply.Type)
	assert.Contains(t, reply.Error, ErrInvalidMessage.Error())

	require.NoError(t, conn.WriteJSON(Message{Type: "teleport"}))
	reply = readMessage(t, conn)
	assert.Equal(t, MsgError, reply.Type)
	assert.Contains(t, reply.Error, "teleport")

	require.NoError(t, conn.WriteJSON(Message{Type: MsgSnapshot}))
	reply = readMessage(t, conn)
	assert.Equal(t, MsgError, reply.Type)

	// The connection survives bad input.
	require.NoError(t, conn.WriteJSON(Message{Type: MsgAdvance}))
	assert.Equal(t, MsgLoadScene, readMessage(t, conn).Type)
}

func dialEngine(t *testing.T, s *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.URL, "http") + "?token=" + testToken
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	return conn
}

func TestEngineBridgeForgetsSnapshotOnDisconnect(t *testing.T) {
	f := newFixture(t)
	s := httptest.NewServer(f.bridge)
	defer s.Close()

	conn := dialEngine(t, s)
	snap := Snapshot{Position: experiment.Vec3{X: 4, Y: 5, Z: 6}, Intensity: 2, Elapsed: 7}
	require.NoError(t, conn.WriteJSON(Message{Type: MsgSnapshot, Snapshot: &snap}))
	require.Eventually(t, func() bool { return f.bridge.LightIntensity() == 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return !f.bridge.Connected() }, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, experiment.Vec3{}, f.bridge.LightPosition())
	assert.Equal(t, 0.0, f.bridge.LightIntensity())
	assert.Equal(t, 0.0, f.bridge.ElapsedSelectionTime())

	// A reconnected engine advancing without a snapshot records zeros.
	conn = dialEngine(t, s)
	defer conn.Close()
	require.NoError(t, conn.WriteJSON(Message{Type: MsgAdvance}))
	_, _ = readMessage(t, conn), readMessage(t, conn)
	require.NoError(t, conn.WriteJSON(Message{Type: MsgAdvance}))
	_, _ = readMessage(t, conn), readMessage(t, conn)

	var m experiment.TrialMeasurement
	var err error
	f.bridge.Do(func() { m, err = f.rec.Measurement(0) })
	require.NoError(t, err)
	assert.Equal(t, experiment.Vec3{}, m.Position)
	assert.Equal(t, 0.0, m.Intensity)
}

type failingSink struct{ err error }

func (f failingSink) Store(context.Context, experiment.SubjectSession) error { return f.err }

func TestEngineBridgeReportsStorageFailure(t *testing.T) {
	boom := errors.New("disk full")
	f := newFixture(t, failingSink{err: boom})
	s := httptest.NewServer(f.bridge)
	defer s.Close()

	conn := dialEngine(t, s)
	defer conn.Close()

	for i := 0; i < 12; i++ {
		require.NoError(t, conn.WriteJSON(Message{Type: MsgAdvance}))
		require.Equal(t, MsgLoadScene, readMessage(t, conn).Type)
		require.Equal(t, MsgDeactivate, readMessage(t, conn).Type)
	}
	require.NoError(t, conn.WriteJSON(Message{Type: MsgAdvance}))
	assert.Equal(t, MsgLoadEnd, readMessage(t, conn).Type)
	reply := readMessage(t, conn)
	assert.Equal(t, MsgError, reply.Type)
	assert.Contains(t, reply.Error, "disk full")

	var finished bool
	var sessErr error
	f.bridge.Do(func() { finished, sessErr = f.sess.Finished(), f.sess.Err() })
	assert.True(t, finished)
	assert.ErrorIs(t, sessErr, boom)
}

func TestEngineBridgeNotConnected(t *testing.T) {
	bridge := NewEngineBridge(bus.New(), TokenAuth{}, log.NewNop())
	assert.ErrorIs(t, bridge.LoadScene(0), ErrEngineNotConnected)
	assert.ErrorIs(t, bridge.SetInputMode(session.InputModeSensorDisabled), ErrEngineNotConnected)
	assert.Equal(t, experiment.Vec3{}, bridge.LightPosition())
}

func TestHTTPServerServeUntilCancel(t *testing.T) {
	f := newFixture(t)
	srv := NewHTTPServer("127.0.0.1:0", "/engine", f.bridge, f.sess, log.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	require.Eventually(t, func() bool { return !strings.HasSuffix(srv.Addr(), ":0") }, 2*time.Second, 10*time.Millisecond)
	resp, err := http.Get("http://" + srv.Addr() + "/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestHTTPServerServeListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	f := newFixture(t)
	srv := NewHTTPServer(ln.Addr().String(), "/engine", f.bridge, f.sess, log.NewNop())
	assert.Error(t, srv.Serve(context.Background()))
}

func TestHTTPServerStatus(t *testing.T) {
	f := newFixture(t)
	srv := NewHTTPServer("127.0.0.1:0", "/engine", f.bridge, f.sess, log.NewNop())
	require.NoError(t, srv.Start(context.Background()))
	assert.ErrorIs(t, srv.Start(context.Background()), ErrServerAlreadyRunning)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, srv.Stop(ctx))
		assert.ErrorIs(t, srv.Stop(ctx), ErrServerNotRunning)
	}()

	resp, err := http.Get("http://" + srv.Addr() + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view statusView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, -1, view.Trial)
	assert.Equal(t, 12, view.Total)
	assert.Equal(t, "Training", view.Scene)
	assert.False(t, view.Finished)
	assert.False(t, view.Engine)

	post, err := http.Post("http://"+srv.Addr()+"/status", "application/json", nil)
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
}
