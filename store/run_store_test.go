package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/nodeflow/workflow"
)

func newTestRunStore(t *testing.T) (*RunStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRunStoreWithClient(client, RunStoreConfig{TTL: time.Hour}, nil)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func sampleRun(runID, workflowID string, startedAt time.Time) *workflow.RunResult {
	return &workflow.RunResult{
		RunID:      runID,
		WorkflowID: workflowID,
		Status:     workflow.RunCompleted,
		Results: map[string]workflow.ExecutionResult{
			"a": {Success: true, Data: map[string]any{"x": float64(1)}},
		},
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(time.Second),
	}
}

func TestRunStore_SaveAndGet(t *testing.T) {
	store, _ := newTestRunStore(t)
	ctx := context.Background()

	run := sampleRun("run-1", "wf-1", time.Now())
	require.NoError(t, store.SaveRun(ctx, run))

	loaded, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", loaded.WorkflowID)
	assert.Equal(t, workflow.RunCompleted, loaded.Status)
	assert.Equal(t, float64(1), loaded.Results["a"].Data.(map[string]any)["x"])
}

func TestRunStore_GetUnknownRun(t *testing.T) {
	store, _ := newTestRunStore(t)
	_, err := store.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRunStore_RecentRunsNewestFirst(t *testing.T) {
	store, _ := newTestRunStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		run := sampleRun(fmt.Sprintf("run-%d", i), "wf-1", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.SaveRun(ctx, run))
	}
	require.NoError(t, store.SaveRun(ctx, sampleRun("other", "wf-2", base)))

	runs, err := store.RecentRuns(ctx, "wf-1", 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-4", runs[0].RunID)
	assert.Equal(t, "run-3", runs[1].RunID)
	assert.Equal(t, "run-2", runs[2].RunID)
}

func TestRunStore_RecordsExpire(t *testing.T) {
	store, mr := newTestRunStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRun(ctx, sampleRun("run-1", "wf-1", time.Now())))
	mr.FastForward(2 * time.Hour)

	_, err := store.GetRun(ctx, "run-1")
	assert.ErrorIs(t, err, ErrRunNotFound)

	runs, err := store.RecentRuns(ctx, "wf-1", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunStore_SaveRejectsEmptyRunID(t *testing.T) {
	store, _ := newTestRunStore(t)
	assert.Error(t, store.SaveRun(context.Background(), &workflow.RunResult{}))
	assert.Error(t, store.SaveRun(context.Background(), nil))
}
