package scheduler

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/spotlight/internal/experiment"
)

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name          string
		total, perRow int
	}{
		{"zero trials", 0, 4},
		{"negative trials", -1, 4},
		{"zero tasks", 3, 0},
		{"odd tasks", 3, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.total, tc.perRow, 1)
			assert.ErrorIs(t, err, experiment.ErrInvalidConfig)
		})
	}
}

func TestTrialListIsPermutation(t *testing.T) {
	for _, dims := range [][2]int{{1, 2}, {3, 4}, {5, 2}, {7, 6}, {12, 4}} {
		for seed := int64(0); seed < 20; seed++ {
			s, err := New(dims[0], dims[1], seed)
			require.NoError(t, err)

			list := s.TrialList()
			require.Len(t, list, dims[0]*dims[1])
			sort.Ints(list)
			for i, v := range list {
				assert.Equal(t, i, v, "dims=%v seed=%d", dims, seed)
			}
		}
	}
}

func TestShuffleKeepsSceneGroupsTogether(t *testing.T) {
	s, err := New(4, 4, 7)
	require.NoError(t, err)

	list := s.TrialList()
	for row := 0; row < 4; row++ {
		scene := list[row*4] / 4
		for col := 1; col < 4; col++ {
			assert.Equal(t, scene, list[row*4+col]/4, "row %d mixes scenes: %v", row, list)
		}
	}
}

func TestSameSeedSameOrder(t *testing.T) {
	a, err := New(3, 4, 42)
	require.NoError(t, err)
	b, err := New(3, 4, 42)
	require.NoError(t, err)
	assert.Equal(t, a.TrialList(), b.TrialList())
	assert.Equal(t, a.String(), b.String())
}

func TestSpecForMappingTable(t *testing.T) {
	want := []struct {
		device experiment.Device
		task   experiment.Task
	}{
		{experiment.DeviceMouse, experiment.TaskTranslateRotate},
		{experiment.DeviceMouse, experiment.TaskTranslateIntensity},
		{experiment.DeviceSensor, experiment.TaskTranslateRotate},
		{experiment.DeviceSensor, experiment.TaskTranslateIntensity},
	}
	for raw, w := range want {
		spec := SpecFor(raw, 4)
		assert.Equal(t, w.device, spec.Device, "raw %d", raw)
		assert.Equal(t, w.task, spec.Task, "raw %d", raw)
		assert.Equal(t, 0, spec.SceneIndex)
	}

	spec := SpecFor(9, 4)
	assert.Equal(t, 2, spec.SceneIndex)
	assert.Equal(t, experiment.DeviceMouse, spec.Device)
	assert.Equal(t, experiment.TaskTranslateIntensity, spec.Task)

	assert.Equal(t, SpecFor(11, 4), SpecFor(11, 4))
}

func TestCurrentSpecBeforeStart(t *testing.T) {
	s, err := New(3, 4, 1)
	require.NoError(t, err)

	_, err = s.CurrentSpec()
	assert.ErrorIs(t, err, experiment.ErrNotStarted)
	assert.Equal(t, -1, s.Current())
	assert.False(t, s.Started())
}

func TestAdvanceReachesTerminalExactlyOnce(t *testing.T) {
	s, err := New(3, 4, 42)
	require.NoError(t, err)
	list := s.TrialList()

	completions := 0
	for i := 0; i < s.Len(); i++ {
		spec, err := s.Advance()
		if errors.Is(err, experiment.ErrSessionComplete) {
			completions++
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, i, spec.TrialNumber)
		assert.Equal(t, SpecFor(list[i], 4).SceneIndex, spec.SceneIndex)
		assert.False(t, s.Finished())
	}
	assert.Equal(t, 0, completions)

	_, err = s.Advance()
	assert.ErrorIs(t, err, experiment.ErrSessionComplete)
	assert.True(t, s.Finished())
	assert.Equal(t, 12, s.Current())

	_, err = s.Advance()
	assert.ErrorIs(t, err, experiment.ErrAdvancePastEnd)
	assert.Equal(t, 12, s.Current())

	_, err = s.CurrentSpec()
	assert.ErrorIs(t, err, experiment.ErrSessionComplete)
}

func TestOverrideDoesNotTouchOrder(t *testing.T) {
	s, err := New(3, 4, 3)
	require.NoError(t, err)
	before := s.TrialList()

	_, _, ok := s.Active()
	assert.False(t, ok)

	_, err = s.Advance()
	require.NoError(t, err)
	spec, err := s.CurrentSpec()
	require.NoError(t, err)

	s.Override(experiment.DeviceSensor, experiment.TaskTranslateIntensity)
	device, task, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, experiment.DeviceSensor, device)
	assert.Equal(t, experiment.TaskTranslateIntensity, task)
	assert.True(t, s.Overridden())

	after, err := s.CurrentSpec()
	require.NoError(t, err)
	assert.Equal(t, spec, after)
	assert.Equal(t, before, s.TrialList())
	assert.Equal(t, 0, s.Current())

	_, err = s.Advance()
	require.NoError(t, err)
	assert.False(t, s.Overridden())
}

func TestSeedForSubjectIsStable(t *testing.T) {
	assert.Equal(t, SeedForSubject(17), SeedForSubject(17))
	assert.NotEqual(t, SeedForSubject(17), SeedForSubject(18))
}

func TestStringFormat(t *testing.T) {
	s, err := New(1, 2, 0)
	require.NoError(t, err)
	out := s.String()
	assert.True(t, out == "{{0,1}}" || out == "{{1,0}}", out)
}
