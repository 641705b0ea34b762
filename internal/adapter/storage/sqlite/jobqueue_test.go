package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videoflix/videoflix/internal/domain"
)

func TestJobQueue_Schedule(t *testing.T) {
	store := newTestStore(t)
	queue := NewJobQueue(store)
	v := saveVideo(t, store, "vid")

	require.NoError(t, queue.Schedule(v.ID, []int{360, 480, 720, 1080}))

	// The processing transition and the fan-out commit together
	got, err := store.Get(v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status)
	assert.Len(t, got.Variants, 4)

	// One job per height, claimable in enqueue order
	heights := map[int]bool{}
	for range 4 {
		job, err := queue.Claim()
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, v.ID, job.VideoID)
		assert.Equal(t, domain.JobRunning, job.Status)
		assert.EqualValues(t, 1, job.Attempts)
		heights[job.Height] = true
	}
	assert.Equal(t, map[int]bool{360: true, 480: true, 720: true, 1080: true}, heights)
}

func TestJobQueue_Schedule_OnlyFromPending(t *testing.T) {
	store := newTestStore(t)
	queue := NewJobQueue(store)
	v := saveVideo(t, store, "vid")

	require.NoError(t, queue.Schedule(v.ID, []int{360}))
	// Re-scheduling an already processing video is rejected, and no extra
	// jobs appear
	assert.ErrorIs(t, queue.Schedule(v.ID, []int{360}), domain.ErrInvalidTransition)

	job, err := queue.Claim()
	require.NoError(t, err)
	require.NotNil(t, job)
	next, err := queue.Claim()
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestJobQueue_Schedule_NoHeights(t *testing.T) {
	store := newTestStore(t)
	queue := NewJobQueue(store)
	v := saveVideo(t, store, "vid")

	assert.Error(t, queue.Schedule(v.ID, nil))

	got, err := store.Get(v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestJobQueue_Claim_Empty(t *testing.T) {
	store := newTestStore(t)
	queue := NewJobQueue(store)

	job, err := queue.Claim()
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestJobQueue_CompleteAndFail(t *testing.T) {
	store := newTestStore(t)
	queue := NewJobQueue(store)
	v := saveVideo(t, store, "vid")
	require.NoError(t, queue.Schedule(v.ID, []int{360, 720}))

	first, err := queue.Claim()
	require.NoError(t, err)
	require.NotNil(t, first)
	require.NoError(t, queue.Complete(first.ID))

	second, err := queue.Claim()
	require.NoError(t, err)
	require.NotNil(t, second)
	require.NoError(t, queue.Fail(second.ID, "encoder exit 1"))

	// Both jobs are terminal; nothing left to claim
	job, err := queue.Claim()
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestJobQueue_ResetStalled(t *testing.T) {
	store := newTestStore(t)
	queue := NewJobQueue(store)
	v := saveVideo(t, store, "vid")
	require.NoError(t, queue.Schedule(v.ID, []int{720}))

	claimed, err := queue.Claim()
	require.NoError(t, err)
	require.NotNil(t, claimed)

	// Simulate a crash: the running job goes back to pending on restart
	require.NoError(t, queue.ResetStalled())

	reclaimed, err := queue.Claim()
	require.NoError(t, err)
	require.NotNil(t, reclaimed)
	assert.Equal(t, claimed.ID, reclaimed.ID)
	assert.EqualValues(t, 2, reclaimed.Attempts)
}
