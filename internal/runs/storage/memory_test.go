package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/parmr/internal/runs/core"
	mrcore "github.com/nemanja-m/parmr/pkg/core"
)

func TestInMemoryRunStore_SaveAndGet(t *testing.T) {
	store := NewInMemoryRunStore()
	run := core.NewRun("wordcount", nil, []string{"*.txt"})
	require.NoError(t, store.SaveRun(run))

	got, err := store.GetRunByID(run.ID)
	require.NoError(t, err)
	require.Equal(t, run.ID, got.ID)
	require.Equal(t, "wordcount", got.Job)

	// Mutating the returned copy leaves the stored run untouched.
	got.Status = mrcore.RunStatusFailed
	again, err := store.GetRunByID(run.ID)
	require.NoError(t, err)
	require.Equal(t, mrcore.RunStatusCreated, again.Status)

	_, err = store.GetRunByID(uuid.New())
	require.ErrorIs(t, err, core.ErrRunNotFound)
}

func TestInMemoryRunStore_UpdateRun(t *testing.T) {
	store := NewInMemoryRunStore()
	run := core.NewRun("grep", nil, nil)
	require.NoError(t, store.SaveRun(run))

	require.NoError(t, store.UpdateRun(run.ID, func(r *core.Run) {
		r.Transition(mrcore.RunStatusReading, time.Now())
	}))

	got, err := store.GetRunByID(run.ID)
	require.NoError(t, err)
	require.Equal(t, mrcore.RunStatusReading, got.Status)

	err = store.UpdateRun(uuid.New(), func(*core.Run) {})
	require.ErrorIs(t, err, core.ErrRunNotFound)
}

func TestInMemoryRunStore_GetRuns(t *testing.T) {
	store := NewInMemoryRunStore()
	base := time.Now().UTC()

	var ids []uuid.UUID
	for i := range 5 {
		run := core.NewRun("wordcount", nil, nil)
		run.SubmittedAt = base.Add(time.Duration(i) * time.Second)
		if i%2 == 0 {
			run.Status = mrcore.RunStatusCompleted
		}
		require.NoError(t, store.SaveRun(run))
		ids = append(ids, run.ID)
	}

	runs, total, err := store.GetRuns(core.RunFilter{})
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, runs, 5)
	require.Equal(t, ids[4], runs[0].ID)

	completed := mrcore.RunStatusCompleted
	runs, total, err = store.GetRuns(core.RunFilter{Status: &completed})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, runs, 3)

	runs, total, err = store.GetRuns(core.RunFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Equal(t, []uuid.UUID{ids[3], ids[2]}, []uuid.UUID{runs[0].ID, runs[1].ID})

	runs, total, err = store.GetRuns(core.RunFilter{Limit: 2, Offset: 10})
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Empty(t, runs)
}
