package session

import (
	"fmt"
	"strconv"

	"github.com/zeusync/spotlight/internal/experiment"
)

// Status is what the operator overlay shows.
type Status struct {
	Trial        int
	Total        int
	Scene        int
	Device       experiment.Device
	Task         experiment.Task
	Overridden   bool
	Finished     bool
	SelectedTime float64
	Target       experiment.Vec3
}

func (st Status) SceneLabel() string {
	switch {
	case st.Finished:
		return "End"
	case st.Scene < 0:
		return "Training"
	default:
		return strconv.Itoa(st.Scene)
	}
}

func (st Status) TaskLabel() string {
	if st.Task == experiment.TaskTranslateRotate {
		return "Position + Rotation"
	}
	return "Position + Intensity"
}

func (st Status) String() string {
	return fmt.Sprintf("Selected Time: %g | Scene: %s | Device: %s | Task: %s | Trial: %d/%d",
		st.SelectedTime, st.SceneLabel(), st.Device, st.TaskLabel(), st.Trial+1, st.Total)
}

// Status reports the active trial. Before the first trial the scene is -1
// (training) and device/task default to mouse translate+rotate unless
// overridden.
func (s *Session) Status() Status {
	st := Status{
		Trial:        s.sched.Current(),
		Total:        s.sched.Len(),
		Scene:        -1,
		Overridden:   s.sched.Overridden(),
		Finished:     s.sched.Finished(),
		SelectedTime: s.host.ElapsedSelectionTime(),
	}
	if spec, err := s.sched.CurrentSpec(); err == nil {
		st.Scene = spec.SceneIndex
		st.Target = s.LightTarget(spec.SceneIndex)
	}
	if device, task, ok := s.sched.Active(); ok {
		st.Device, st.Task = device, task
	}
	return st
}
