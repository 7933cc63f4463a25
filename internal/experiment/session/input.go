package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/zeusync/spotlight/internal/core/events/bus"
	"github.com/zeusync/spotlight/internal/core/observability/log"
	"github.com/zeusync/spotlight/internal/experiment"
)

type override struct {
	device experiment.Device
	task   experiment.Task
}

// Operator keys forcing a device/task combination.
var overrideKeys = map[string]override{
	"Z": {experiment.DeviceSensor, experiment.TaskTranslateRotate},
	"X": {experiment.DeviceSensor, experiment.TaskTranslateIntensity},
	"C": {experiment.DeviceMouse, experiment.TaskTranslateRotate},
	"V": {experiment.DeviceMouse, experiment.TaskTranslateIntensity},
}

// InputModeFor is the sensor mode matching a device/task pair.
func InputModeFor(device experiment.Device, task experiment.Task) int {
	if device != experiment.DeviceSensor {
		return InputModeSensorDisabled
	}
	if task == experiment.TaskTranslateRotate {
		return InputModeSensorRotate
	}
	return InputModeSensorIntensity
}

// HandleKey applies the manual override bound to key. It reports false for
// keys without a binding.
func (s *Session) HandleKey(key string) (bool, error) {
	o, ok := overrideKeys[strings.ToUpper(key)]
	if !ok {
		return false, nil
	}
	s.sched.Override(o.device, o.task)
	s.logger.Info("manual override",
		log.String("key", key),
		log.Stringer("device", o.device),
		log.Stringer("task", o.task),
	)
	if err := s.host.SetInputMode(InputModeFor(o.device, o.task)); err != nil {
		return true, fmt.Errorf("set input mode: %w", err)
	}
	return true, nil
}

// Bind subscribes the session to host input on b. The returned function
// cancels the subscriptions.
func (s *Session) Bind(ctx context.Context, b bus.EventBus) (func(), error) {
	advance, err := b.Subscribe(bus.TypeAdvance, func(bus.Event) error {
		_, err := s.Advance(ctx)
		// A bare completion signal is the normal end of the run; wrapped
		// completions carry storage failures.
		if err == experiment.ErrSessionComplete {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	keys, err := b.Subscribe(bus.TypeKey, func(e bus.Event) error {
		key, _ := bus.KeyOf(e)
		_, err := s.HandleKey(key)
		return err
	})
	if err != nil {
		_ = advance.Cancel()
		return nil, err
	}
	return func() {
		_ = advance.Cancel()
		_ = keys.Cancel()
	}, nil
}
