package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zeusync/spotlight/internal/core/observability/log"
	"github.com/zeusync/spotlight/internal/experiment"
	"github.com/zeusync/spotlight/internal/experiment/recorder"
	"github.com/zeusync/spotlight/internal/experiment/scheduler"
)

// Config describes one subject's run.
type Config struct {
	SubjectID     int
	Handedness    experiment.Handedness
	TotalTrials   int
	TasksPerTrial int
	Seed          int64
	// LightTargets holds the reference light position of each scene.
	LightTargets []experiment.Vec3
}

// DefaultLightTargets are the reference light positions of the three study scenes.
var DefaultLightTargets = []experiment.Vec3{
	{X: -1.554065, Y: 2.502152, Z: 1.987616},
	{X: 2.439487, Y: 3.929598, Z: 5.44588},
	{X: 0.2521598, Y: 2.502152, Z: 1.575271},
}

// Session drives one subject through the trial order: it captures the
// finished trial, advances the scheduler and asks the host for the next
// scene. It is owned by whoever runs the control loop and must be driven from
// a single goroutine.
type Session struct {
	cfg    Config
	runID  string
	logger log.Log

	sched *scheduler.Scheduler
	rec   *recorder.Recorder
	host  Host
	sinks []recorder.Sink

	// err is the storage failure of the completed session, if any.
	err error
}

// New initializes the trial order and the measurement slots. Sinks receive
// the finished session in order.
func New(cfg Config, host Host, rec *recorder.Recorder, logger log.Log, sinks ...recorder.Sink) (*Session, error) {
	if host == nil {
		return nil, fmt.Errorf("%w: host is required", experiment.ErrInvalidConfig)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: recorder is required", experiment.ErrInvalidConfig)
	}
	sched, err := scheduler.New(cfg.TotalTrials, cfg.TasksPerTrial, cfg.Seed)
	if err != nil {
		return nil, err
	}
	if err := rec.BeginSession(cfg.SubjectID, cfg.Handedness, sched.Len()); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	s := &Session{
		cfg:   cfg,
		runID: runID,
		logger: logger.With(
			log.String("run_id", runID),
			log.Int("subject_id", cfg.SubjectID),
		),
		sched: sched,
		rec:   rec,
		host:  host,
		sinks: sinks,
	}
	s.logger.Info("session initialized",
		log.Stringer("handedness", cfg.Handedness),
		log.Int64("seed", cfg.Seed),
		log.Stringer("order", sched),
	)
	return s, nil
}

func (s *Session) RunID() string                   { return s.runID }
func (s *Session) Scheduler() *scheduler.Scheduler { return s.sched }
func (s *Session) Recorder() *recorder.Recorder    { return s.rec }
func (s *Session) Finished() bool                  { return s.sched.Finished() }

// Err reports why the finished session could not be stored. It is nil while
// the session runs and after a clean completion.
func (s *Session) Err() error { return s.err }

// Advance completes the active trial, if any, and starts the next one.
//
// When the last trial is completed the session is handed to every sink, the
// end scene is requested and experiment.ErrSessionComplete is returned,
// wrapped together with any storage error. Calling Advance after that returns
// experiment.ErrAdvancePastEnd.
func (s *Session) Advance(ctx context.Context) (experiment.TrialSpec, error) {
	if s.sched.Finished() {
		return experiment.TrialSpec{}, experiment.ErrAdvancePastEnd
	}

	if s.sched.Started() {
		if err := s.captureCurrent(); err != nil {
			return experiment.TrialSpec{}, err
		}
	}

	spec, err := s.sched.Advance()
	switch {
	case errors.Is(err, experiment.ErrSessionComplete):
		return experiment.TrialSpec{}, s.finish(ctx)
	case err != nil:
		return experiment.TrialSpec{}, err
	}

	if err := s.host.LoadScene(spec.SceneIndex); err != nil {
		return spec, fmt.Errorf("load scene %d: %w", spec.SceneIndex, err)
	}
	if err := s.host.DeactivateNonCurrentScenes(spec.SceneIndex); err != nil {
		return spec, fmt.Errorf("deactivate scenes except %d: %w", spec.SceneIndex, err)
	}

	s.logger.Info("trial started",
		log.Int("trial", spec.TrialNumber),
		log.Int("scene", spec.SceneIndex),
		log.Stringer("device", spec.Device),
		log.Stringer("task", spec.Task),
	)
	return spec, nil
}

func (s *Session) captureCurrent() error {
	trial := s.sched.Current()
	device, task, _ := s.sched.Active()
	if err := s.rec.Capture(trial, device, task, s.host); err != nil {
		return fmt.Errorf("capture trial %d: %w", trial, err)
	}
	return nil
}

func (s *Session) finish(ctx context.Context) error {
	snapshot, err := s.rec.Session()
	if err != nil {
		s.err = err
		return fmt.Errorf("%w: %w", experiment.ErrSessionComplete, err)
	}

	var failures error
	for _, sink := range s.sinks {
		if err := sink.Store(ctx, snapshot); err != nil {
			s.logger.Error("storing session failed", log.Error(err))
			failures = errors.Join(failures, err)
		}
	}
	if err := s.host.LoadEndScene(); err != nil {
		failures = errors.Join(failures, fmt.Errorf("load end scene: %w", err))
	}

	if failures != nil {
		s.err = failures
		return fmt.Errorf("%w: %w", experiment.ErrSessionComplete, failures)
	}
	s.logger.Info("session complete",
		log.Int("trials", len(snapshot.Measurements)),
		log.Int("sinks", len(s.sinks)),
	)
	return experiment.ErrSessionComplete
}

// LightTarget returns the reference light position of a scene, or the zero
// vector for scenes without one.
func (s *Session) LightTarget(sceneIndex int) experiment.Vec3 {
	if sceneIndex < 0 || sceneIndex >= len(s.cfg.LightTargets) {
		return experiment.Vec3{}
	}
	return s.cfg.LightTargets[sceneIndex]
}
