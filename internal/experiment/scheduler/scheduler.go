package scheduler

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/zeusync/spotlight/internal/experiment"
)

const notStarted = -1

// Scheduler owns the randomized trial order of one session and the index of
// the active trial. It is not safe for concurrent use; a session is driven
// from a single goroutine.
type Scheduler struct {
	totalTrials   int
	tasksPerTrial int

	// trials is the totalTrials x tasksPerTrial order matrix, row-major. After
	// shuffling it doubles as the flattened trial list.
	trials  []int
	current int

	override *assignment
}

type assignment struct {
	device experiment.Device
	task   experiment.Task
}

// New builds and shuffles the trial order. Rows (scenes) are shuffled first,
// then the combinations inside every row, so the combinations of a scene stay
// consecutive.
func New(totalTrials, tasksPerTrial int, seed int64) (*Scheduler, error) {
	if totalTrials <= 0 {
		return nil, fmt.Errorf("%w: total trials must be positive, got %d", experiment.ErrInvalidConfig, totalTrials)
	}
	if tasksPerTrial <= 0 || tasksPerTrial%2 != 0 {
		return nil, fmt.Errorf("%w: tasks per trial must be a positive even number, got %d", experiment.ErrInvalidConfig, tasksPerTrial)
	}

	s := &Scheduler{
		totalTrials:   totalTrials,
		tasksPerTrial: tasksPerTrial,
		trials:        make([]int, totalTrials*tasksPerTrial),
		current:       notStarted,
	}
	for i := range s.trials {
		s.trials[i] = i
	}
	s.shuffle(rand.New(rand.NewSource(seed)))
	return s, nil
}

func (s *Scheduler) shuffle(r *rand.Rand) {
	for i := s.totalTrials - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		s.swapRows(i, j)
	}
	for i := 0; i < s.totalTrials; i++ {
		row := s.row(i)
		for j := s.tasksPerTrial - 1; j > 0; j-- {
			k := r.Intn(j + 1)
			row[j], row[k] = row[k], row[j]
		}
	}
}

func (s *Scheduler) row(i int) []int {
	return s.trials[i*s.tasksPerTrial : (i+1)*s.tasksPerTrial]
}

func (s *Scheduler) swapRows(a, b int) {
	if a == b {
		return
	}
	ra, rb := s.row(a), s.row(b)
	for k := range ra {
		ra[k], rb[k] = rb[k], ra[k]
	}
}

// SpecFor maps a raw trial value to its assignment. Device comes from
// raw%tasksPerTrial compared against half, task from raw%2; with four tasks
// per trial this yields
//
//	0 Mouse/TranslateRotate   1 Mouse/TranslateIntensity
//	2 Sensor/TranslateRotate  3 Sensor/TranslateIntensity
func SpecFor(raw, tasksPerTrial int) experiment.TrialSpec {
	spec := experiment.TrialSpec{
		Device:     experiment.DeviceMouse,
		Task:       experiment.TaskTranslateRotate,
		SceneIndex: raw / tasksPerTrial,
	}
	if raw%tasksPerTrial >= tasksPerTrial/2 {
		spec.Device = experiment.DeviceSensor
	}
	if raw%2 != 0 {
		spec.Task = experiment.TaskTranslateIntensity
	}
	return spec
}

// Advance moves to the next trial and clears any manual override. Moving past
// the last trial returns experiment.ErrSessionComplete once; later calls
// return experiment.ErrAdvancePastEnd and leave the index where it is.
func (s *Scheduler) Advance() (experiment.TrialSpec, error) {
	if s.Finished() {
		return experiment.TrialSpec{}, experiment.ErrAdvancePastEnd
	}
	s.current++
	s.override = nil
	if s.Finished() {
		return experiment.TrialSpec{}, experiment.ErrSessionComplete
	}
	return s.CurrentSpec()
}

// CurrentSpec returns the assignment of the active trial.
func (s *Scheduler) CurrentSpec() (experiment.TrialSpec, error) {
	switch {
	case s.current == notStarted:
		return experiment.TrialSpec{}, experiment.ErrNotStarted
	case s.Finished():
		return experiment.TrialSpec{}, experiment.ErrSessionComplete
	}
	spec := SpecFor(s.trials[s.current], s.tasksPerTrial)
	spec.TrialNumber = s.current
	return spec, nil
}

// Override forces the device and task of the active trial without touching
// the trial order. It lasts until the next Advance.
func (s *Scheduler) Override(device experiment.Device, task experiment.Task) {
	s.override = &assignment{device: device, task: task}
}

func (s *Scheduler) ClearOverride() {
	s.override = nil
}

func (s *Scheduler) Overridden() bool {
	return s.override != nil
}

// Active reports the device and task in effect: the override if one is set,
// otherwise the scheduled assignment. Before the first trial and after the
// last, only an override yields a value.
func (s *Scheduler) Active() (experiment.Device, experiment.Task, bool) {
	if s.override != nil {
		return s.override.device, s.override.task, true
	}
	spec, err := s.CurrentSpec()
	if err != nil {
		return 0, 0, false
	}
	return spec.Device, spec.Task, true
}

// TrialList returns a copy of the flattened trial order.
func (s *Scheduler) TrialList() []int {
	out := make([]int, len(s.trials))
	copy(out, s.trials)
	return out
}

func (s *Scheduler) Current() int       { return s.current }
func (s *Scheduler) Len() int           { return len(s.trials) }
func (s *Scheduler) TotalTrials() int   { return s.totalTrials }
func (s *Scheduler) TasksPerTrial() int { return s.tasksPerTrial }
func (s *Scheduler) Started() bool      { return s.current != notStarted }
func (s *Scheduler) Finished() bool     { return s.current >= len(s.trials) }

// String renders the order matrix, e.g. {{5,4,7,6},{1,0,3,2},{9,11,8,10}}.
func (s *Scheduler) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i := 0; i < s.totalTrials; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('{')
		for j, v := range s.row(i) {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(v))
		}
		b.WriteByte('}')
	}
	b.WriteByte('}')
	return b.String()
}
