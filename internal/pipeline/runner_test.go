package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarlab/paperparse/internal/layout"
	"github.com/scholarlab/paperparse/internal/pdfsource"
	"github.com/scholarlab/paperparse/internal/store"
)

func newTestRunner(t *testing.T) (*Runner, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	r := NewRunner(pdfsource.New(1<<20, nil), nil, layout.NewDefault(), st,
		RunnerConfig{WorkerCount: 1, MaxQueueSize: 4}, nil)
	return r, st
}

func TestSubmitRejectsDuplicateInFlight(t *testing.T) {
	r, _ := newTestRunner(t)
	// Runner not started: the job stays queued and in flight.
	id := uuid.New()

	require.NoError(t, r.Submit(Job{DocID: id, Path: "a.pdf"}))
	assert.True(t, r.InFlight(id))

	err := r.Submit(Job{DocID: id, Path: "a.pdf"})
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestSubmitQueueFull(t *testing.T) {
	r, _ := newTestRunner(t)

	for range 4 {
		require.NoError(t, r.Submit(Job{DocID: uuid.New(), Path: "a.pdf"}))
	}
	overflow := uuid.New()
	err := r.Submit(Job{DocID: overflow, Path: "a.pdf"})
	assert.ErrorContains(t, err, "queue is full")
	assert.False(t, r.InFlight(overflow), "rejected job must not stay in flight")
}

func TestSubmitAfterStop(t *testing.T) {
	r, _ := newTestRunner(t)
	r.Start(context.Background())
	r.Stop()
	r.Stop() // idempotent

	err := r.Submit(Job{DocID: uuid.New(), Path: "a.pdf"})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestCancelQueuedJob(t *testing.T) {
	r, st := newTestRunner(t)
	ctx := context.Background()

	rec, err := st.CreateDocument(ctx, "paper.pdf")
	require.NoError(t, err)
	require.NoError(t, r.Submit(Job{DocID: rec.ID, Path: "missing.pdf"}))

	assert.True(t, r.Cancel(rec.ID))
	assert.False(t, r.Cancel(uuid.New()), "unknown document has nothing to cancel")

	// The worker must drop the cancelled job without touching the record.
	r.Start(ctx)
	defer r.Stop()

	require.Eventually(t, func() bool {
		return !r.InFlight(rec.ID)
	}, time.Second, 5*time.Millisecond)

	got, err := st.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, store.DocPending, got.Status)
}

func TestRunnerMarksLoadFailure(t *testing.T) {
	r, st := newTestRunner(t)
	ctx := context.Background()

	rec, err := st.CreateDocument(ctx, "paper.pdf")
	require.NoError(t, err)

	r.Start(ctx)
	defer r.Stop()

	require.NoError(t, r.Submit(Job{DocID: rec.ID, Path: "/nonexistent/paper.pdf"}))

	require.Eventually(t, func() bool {
		got, err := st.GetRecord(ctx, rec.ID)
		return err == nil && got.Status == store.DocFailed
	}, time.Second, 5*time.Millisecond)

	outcome, err := st.GetOutcome(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, outcome.Attempts, 1)
	assert.Equal(t, "load", outcome.Attempts[0].Method)
	assert.Contains(t, outcome.Attempts[0].Error, "does not exist")
}
