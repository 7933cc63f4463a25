package recorder

import (
	"fmt"

	"github.com/zeusync/spotlight/internal/core/observability/log"
	"github.com/zeusync/spotlight/internal/experiment"
)

// SceneSnapshotProvider reads the spotlight state of the scene currently
// loaded by the host engine.
type SceneSnapshotProvider interface {
	LightPosition() experiment.Vec3
	LightOrientation() experiment.Vec3
	LightIntensity() float64
	ElapsedSelectionTime() float64
}

type Option func(*Recorder)

// WithStrict makes RecordCompletion report ErrSlotOverwritten when a slot is
// written twice. The write still happens.
func WithStrict(strict bool) Option {
	return func(r *Recorder) { r.strict = strict }
}

func WithLogger(l log.Log) Option {
	return func(r *Recorder) { r.logger = l }
}

// Recorder keeps one measurement slot per trial of the active subject session.
// It is not safe for concurrent use.
type Recorder struct {
	logger log.Log
	strict bool

	session  *experiment.SubjectSession
	recorded []bool
}

func New(opts ...Option) *Recorder {
	r := &Recorder{logger: log.Provide()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BeginSession allocates trialCount empty slots. Slot i is pre-numbered as
// trial i so that unrecorded slots still serialize in order.
func (r *Recorder) BeginSession(subjectID int, handedness experiment.Handedness, trialCount int) error {
	if trialCount <= 0 {
		return fmt.Errorf("%w: trial count must be positive, got %d", experiment.ErrInvalidConfig, trialCount)
	}
	s := &experiment.SubjectSession{
		SubjectID:    subjectID,
		Handedness:   handedness,
		Measurements: make([]experiment.TrialMeasurement, trialCount),
	}
	for i := range s.Measurements {
		s.Measurements[i].TrialNumber = i
	}
	r.session = s
	r.recorded = make([]bool, trialCount)

	r.logger.Info("recording session started",
		log.Int("subject_id", subjectID),
		log.Stringer("handedness", handedness),
		log.Int("trials", trialCount),
	)
	return nil
}

func (r *Recorder) checkIndex(trialIndex int) error {
	if r.session == nil {
		return experiment.ErrNoSession
	}
	if trialIndex < 0 || trialIndex >= len(r.session.Measurements) {
		return fmt.Errorf("%w: %d not in [0, %d)", experiment.ErrTrialOutOfRange, trialIndex, len(r.session.Measurements))
	}
	return nil
}

// RecordCompletion stores the measurement of a finished trial. Writing a slot
// twice keeps the last write.
func (r *Recorder) RecordCompletion(
	trialIndex int,
	elapsedTime float64,
	device experiment.Device,
	task experiment.Task,
	position, orientation experiment.Vec3,
	intensity float64,
) error {
	if err := r.checkIndex(trialIndex); err != nil {
		return err
	}

	overwritten := r.recorded[trialIndex]
	r.session.Measurements[trialIndex] = experiment.TrialMeasurement{
		TrialNumber: trialIndex,
		Device:      device,
		Task:        task,
		ElapsedTime: elapsedTime,
		Position:    position,
		Orientation: orientation,
		Intensity:   intensity,
	}
	r.recorded[trialIndex] = true

	r.logger.Debug("trial recorded",
		log.Int("trial", trialIndex),
		log.Stringer("device", device),
		log.Stringer("task", task),
		log.Float64("elapsed", elapsedTime),
		log.Stringer("position", position),
		log.Stringer("orientation", orientation),
		log.Float64("intensity", intensity),
	)

	if overwritten {
		r.logger.Warn("trial slot recorded twice", log.Int("trial", trialIndex))
		if r.strict {
			return fmt.Errorf("%w: trial %d", experiment.ErrSlotOverwritten, trialIndex)
		}
	}
	return nil
}

// Capture pulls the current light state from p and records it for trialIndex.
// It must run before the host tears the trial's scene down.
func (r *Recorder) Capture(trialIndex int, device experiment.Device, task experiment.Task, p SceneSnapshotProvider) error {
	if p == nil {
		return ErrNoProvider
	}
	return r.RecordCompletion(
		trialIndex,
		p.ElapsedSelectionTime(),
		device,
		task,
		p.LightPosition(),
		p.LightOrientation(),
		p.LightIntensity(),
	)
}

func (r *Recorder) Measurement(trialIndex int) (experiment.TrialMeasurement, error) {
	if err := r.checkIndex(trialIndex); err != nil {
		return experiment.TrialMeasurement{}, err
	}
	return r.session.Measurements[trialIndex], nil
}

func (r *Recorder) Recorded(trialIndex int) bool {
	if r.checkIndex(trialIndex) != nil {
		return false
	}
	return r.recorded[trialIndex]
}

// Complete reports whether every slot has been recorded.
func (r *Recorder) Complete() bool {
	if r.session == nil {
		return false
	}
	for _, ok := range r.recorded {
		if !ok {
			return false
		}
	}
	return true
}

// Session returns a copy of the active subject session.
func (r *Recorder) Session() (experiment.SubjectSession, error) {
	if r.session == nil {
		return experiment.SubjectSession{}, experiment.ErrNoSession
	}
	out := *r.session
	out.Measurements = make([]experiment.TrialMeasurement, len(r.session.Measurements))
	copy(out.Measurements, r.session.Measurements)
	return out, nil
}
