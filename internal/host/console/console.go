// Package console runs a session from a terminal. It stands in for the
// rendering engine: scene changes are printed and the spotlight state is
// simulated from a seeded source, which is enough for dry runs and for
// operator training.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/zeusync/spotlight/internal/core/events/bus"
	"github.com/zeusync/spotlight/internal/core/observability/log"
	"github.com/zeusync/spotlight/internal/experiment"
	"github.com/zeusync/spotlight/internal/experiment/session"
)

const source = "console"

const help = "commands: n (next trial), z/x/c/v (override), s (status), q (quit)"

var _ session.Host = (*Host)(nil)

// StatusSource reports the session state after each command and, once the
// session is finished, whether it was stored.
type StatusSource interface {
	Status() session.Status
	Err() error
}

type Option func(*Host)

// WithClock replaces time.Now for selection timing.
func WithClock(now func() time.Time) Option {
	return func(h *Host) { h.now = now }
}

// WithSeed seeds the simulated spotlight.
func WithSeed(seed int64) Option {
	return func(h *Host) { h.rng = rand.New(rand.NewSource(seed)) }
}

// Host reads operator commands line by line and publishes them on the bus.
// It is driven from the goroutine running Run, which is also the only caller
// into the session, so it needs no locking.
type Host struct {
	in     io.Reader
	out    io.Writer
	bus    bus.EventBus
	logger log.Log

	now func() time.Time
	rng *rand.Rand

	scene       int
	mode        int
	loadedAt    time.Time
	position    experiment.Vec3
	orientation experiment.Vec3
	intensity   float64
}

func New(in io.Reader, out io.Writer, b bus.EventBus, logger log.Log, opts ...Option) *Host {
	h := &Host{
		in:     in,
		out:    out,
		bus:    b,
		logger: logger.With(log.String("component", "console_host")),
		now:    time.Now,
		rng:    rand.New(rand.NewSource(1)),
		scene:  -1,
		mode:   session.InputModeSensorDisabled,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.loadedAt = h.now()
	return h
}

// Run processes commands until q, end of input, the end of the session or
// ctx is cancelled. A finished session that could not be stored is an error.
func (h *Host) Run(ctx context.Context, status StatusSource) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(h.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	h.println(help)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read commands: %w", err)
					}
				default:
				}
				return nil
			}
			quit, err := h.command(strings.TrimSpace(line), status)
			if err != nil {
				h.logger.Warn("command failed", log.String("command", line), log.Error(err))
				h.println("error: " + err.Error())
			}
			if status.Status().Finished {
				if err := status.Err(); err != nil {
					return fmt.Errorf("store session: %w", err)
				}
				return nil
			}
			if quit {
				return nil
			}
		}
	}
}

func (h *Host) command(line string, status StatusSource) (quit bool, err error) {
	switch cmd := strings.ToLower(line); cmd {
	case "n", "":
		return false, h.bus.Publish(bus.NewAdvance(source))
	case "z", "x", "c", "v":
		return false, h.bus.Publish(bus.NewKey(source, cmd))
	case "s":
		h.println(status.Status().String())
		return false, nil
	case "q":
		return true, nil
	default:
		h.println(help)
		return false, nil
	}
}

func (h *Host) println(s string) {
	_, _ = fmt.Fprintln(h.out, s)
}

func (h *Host) LoadScene(sceneIndex int) error {
	h.scene = sceneIndex
	h.loadedAt = h.now()
	h.position = experiment.Vec3{X: h.span(3), Y: 2 + h.span(2), Z: 2 + h.span(3)}
	h.orientation = experiment.Vec3{X: h.rng.Float64() * 90, Y: h.rng.Float64() * 360}
	h.intensity = 0.5 + h.rng.Float64()*1.5
	h.println(fmt.Sprintf("scene %d loaded", sceneIndex))
	return nil
}

func (h *Host) DeactivateNonCurrentScenes(exceptIndex int) error {
	h.logger.Debug("scenes deactivated", log.Int("except", exceptIndex))
	return nil
}

func (h *Host) LoadEndScene() error {
	h.scene = -1
	h.println("End")
	return nil
}

func (h *Host) SetInputMode(mode int) error {
	h.mode = mode
	h.println(fmt.Sprintf("input mode %d", mode))
	return nil
}

func (h *Host) InputMode() int { return h.mode }

func (h *Host) LightPosition() experiment.Vec3    { return h.position }
func (h *Host) LightOrientation() experiment.Vec3 { return h.orientation }
func (h *Host) LightIntensity() float64           { return h.intensity }

func (h *Host) ElapsedSelectionTime() float64 {
	return h.now().Sub(h.loadedAt).Seconds()
}

// span is uniform in [-r, r).
func (h *Host) span(r float64) float64 {
	return (h.rng.Float64()*2 - 1) * r
}
