package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/spotlight/internal/core/events/bus"
	"github.com/zeusync/spotlight/internal/core/observability/log"
	"github.com/zeusync/spotlight/internal/experiment"
	"github.com/zeusync/spotlight/internal/experiment/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const writeWait = 5 * time.Second

var _ session.Host = (*EngineBridge)(nil)

// EngineBridge connects one rendering engine over a websocket. Engine input
// is published on the event bus; the bridge itself is the session.Host, so
// scene requests travel back over the same connection and light snapshots
// come from the last state the engine reported.
type EngineBridge struct {
	bus    bus.EventBus
	auth   TokenAuth
	logger log.Log

	// dispatch serializes every call into the session: bus publishes from
	// the reader and status reads from HTTP handlers.
	dispatch sync.Mutex

	mu       sync.Mutex
	attached bool
	conn     *websocket.Conn
	snap     Snapshot

	writeMu sync.Mutex
}

func NewEngineBridge(b bus.EventBus, auth TokenAuth, logger log.Log) *EngineBridge {
	return &EngineBridge{
		bus:    b,
		auth:   auth,
		logger: logger.With(log.String("component", "engine_bridge")),
	}
}

// Do runs fn while holding the session dispatch lock.
func (br *EngineBridge) Do(fn func()) {
	br.dispatch.Lock()
	defer br.dispatch.Unlock()
	fn()
}

func (br *EngineBridge) Connected() bool {
	br.mu.Lock()
	defer br.mu.Unlock()
	return br.conn != nil
}

// reserve claims the single engine slot before the handshake completes.
func (br *EngineBridge) reserve() bool {
	br.mu.Lock()
	defer br.mu.Unlock()
	if br.attached {
		return false
	}
	br.attached = true
	return true
}

// release frees the engine slot and forgets the light state the engine
// reported, so a reconnecting engine starts from a zero snapshot.
func (br *EngineBridge) release(conn *websocket.Conn) {
	br.mu.Lock()
	defer br.mu.Unlock()
	if br.conn == conn {
		br.conn = nil
	}
	br.attached = false
	br.snap = Snapshot{}
}

func (br *EngineBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := br.auth.OnConnect(r); err != nil {
		br.logger.Warn("engine rejected", log.String("remote", r.RemoteAddr), log.Error(err))
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if !br.reserve() {
		http.Error(w, ErrEngineConnected.Error(), http.StatusConflict)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		br.release(nil)
		br.logger.Warn("websocket upgrade failed", log.Error(err))
		return
	}

	br.mu.Lock()
	br.conn = conn
	br.mu.Unlock()

	br.logger.Info("engine connected", log.String("remote", r.RemoteAddr))
	defer func() {
		br.release(conn)
		_ = conn.Close()
		br.logger.Info("engine disconnected", log.String("remote", r.RemoteAddr))
	}()

	br.readLoop(conn, r.RemoteAddr)
}

func (br *EngineBridge) readLoop(conn *websocket.Conn, source string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				br.logger.Warn("engine connection lost", log.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			err = fmt.Errorf("%w: %w", ErrInvalidMessage, err)
			br.reportError(err)
			continue
		}
		if err := br.handle(source, msg); err != nil {
			br.reportError(err)
		}
	}
}

func (br *EngineBridge) reportError(err error) {
	br.logger.Warn("engine message failed", log.Error(err))
	if sendErr := br.send(Message{Type: MsgError, Error: err.Error()}); sendErr != nil {
		br.logger.Debug("error reply not sent", log.Error(sendErr))
	}
}

func (br *EngineBridge) handle(source string, msg Message) error {
	switch msg.Type {
	case MsgSnapshot:
		if msg.Snapshot == nil {
			return fmt.Errorf("%w: snapshot without payload", ErrInvalidMessage)
		}
		br.setSnapshot(*msg.Snapshot)
		return nil
	case MsgAdvance:
		if msg.Snapshot != nil {
			br.setSnapshot(*msg.Snapshot)
		}
		return br.publish(bus.NewAdvance(source))
	case MsgKey:
		if msg.Key == "" {
			return fmt.Errorf("%w: key without value", ErrInvalidMessage)
		}
		return br.publish(bus.NewKey(source, msg.Key))
	default:
		return fmt.Errorf("%w: type %q", ErrInvalidMessage, msg.Type)
	}
}

func (br *EngineBridge) publish(e bus.Event) error {
	br.dispatch.Lock()
	defer br.dispatch.Unlock()
	return br.bus.Publish(e)
}

func (br *EngineBridge) setSnapshot(s Snapshot) {
	br.mu.Lock()
	br.snap = s
	br.mu.Unlock()
}

func (br *EngineBridge) snapshot() Snapshot {
	br.mu.Lock()
	defer br.mu.Unlock()
	return br.snap
}

func (br *EngineBridge) send(msg Message) error {
	br.mu.Lock()
	conn := br.conn
	br.mu.Unlock()
	if conn == nil {
		return ErrEngineNotConnected
	}

	br.writeMu.Lock()
	defer br.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

func (br *EngineBridge) LightPosition() experiment.Vec3    { return br.snapshot().Position }
func (br *EngineBridge) LightOrientation() experiment.Vec3 { return br.snapshot().Orientation }
func (br *EngineBridge) LightIntensity() float64           { return br.snapshot().Intensity }
func (br *EngineBridge) ElapsedSelectionTime() float64     { return br.snapshot().Elapsed }

func (br *EngineBridge) LoadScene(sceneIndex int) error {
	return br.send(Message{Type: MsgLoadScene, Scene: &sceneIndex})
}

func (br *EngineBridge) DeactivateNonCurrentScenes(exceptIndex int) error {
	return br.send(Message{Type: MsgDeactivate, Scene: &exceptIndex})
}

func (br *EngineBridge) LoadEndScene() error {
	return br.send(Message{Type: MsgLoadEnd})
}

func (br *EngineBridge) SetInputMode(mode int) error {
	return br.send(Message{Type: MsgInputMode, Mode: &mode})
}
