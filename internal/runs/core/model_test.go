package core

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	mrcore "github.com/nemanja-m/parmr/pkg/core"
)

func TestNewRun(t *testing.T) {
	run := NewRun("wordcount", map[string]string{"case-sensitive": "true"}, []string{"*.txt"})

	require.NotEqual(t, uuid.Nil, run.ID)
	require.Equal(t, mrcore.RunStatusCreated, run.Status)
	require.NotNil(t, run.Progress)
	require.False(t, run.SubmittedAt.IsZero())
	require.Nil(t, run.StartedAt)
}

func TestRun_Transition(t *testing.T) {
	run := NewRun("grep", nil, nil)
	now := time.Now().UTC()

	require.True(t, run.Transition(mrcore.RunStatusReading, now))
	require.NotNil(t, run.StartedAt)
	require.Nil(t, run.CompletedAt)

	require.False(t, run.Transition(mrcore.RunStatusReducing, now))
	require.Equal(t, mrcore.RunStatusReading, run.Status)

	require.True(t, run.Transition(mrcore.RunStatusFailed, now))
	require.NotNil(t, run.CompletedAt)
	require.False(t, run.Transition(mrcore.RunStatusMapping, now))
}

func TestRun_TransitionFailedBeforeStart(t *testing.T) {
	run := NewRun("grep", nil, nil)
	require.True(t, run.Transition(mrcore.RunStatusFailed, time.Now()))
	require.Nil(t, run.StartedAt)
	require.NotNil(t, run.CompletedAt)
}

func TestRun_Clone(t *testing.T) {
	run := NewRun("grep", map[string]string{"pattern": "x"}, []string{"a"})
	run.Progress[mrcore.PhaseRead] = PhaseProgress{Tasks: 1}
	run.Transition(mrcore.RunStatusReading, time.Now())

	c := run.Clone()
	c.Params["pattern"] = "y"
	c.Inputs[0] = "b"
	c.Progress[mrcore.PhaseMap] = PhaseProgress{Tasks: 3}
	*c.StartedAt = time.Time{}

	require.Equal(t, "x", run.Params["pattern"])
	require.Equal(t, "a", run.Inputs[0])
	require.NotContains(t, run.Progress, mrcore.PhaseMap)
	require.False(t, run.StartedAt.IsZero())
}
