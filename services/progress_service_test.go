package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingodeck/api/model"
)

func newProgressFixture(t *testing.T) (*ProgressService, *model.Course, *model.User, *MemoryPendingQueue) {
	t.Helper()

	db := newTestDB(t)
	directory := newDirectory(t, db)
	queue := NewMemoryPendingQueue()
	progress := NewProgressService(db, directory, queue)

	course := seedCourse(t, db, 3, false)
	user := seedUser(t, db, "a@example.com")
	return progress, course, user, queue
}

func TestSaveProgressDerivesFields(t *testing.T) {
	progress, course, user, _ := newProgressFixture(t)
	lesson := course.Lessons[0]

	saved := progress.SaveProgress(context.Background(), user.ID, course.ID, lesson.ID, 150, 300)

	assert.InDelta(t, 50.0, saved.CompletionPercentage, 0.01)
	assert.False(t, saved.IsCompleted)

	saved = progress.SaveProgress(context.Background(), user.ID, course.ID, lesson.ID, 250, 300)

	assert.InDelta(t, 83.3, saved.CompletionPercentage, 0.1)
	assert.True(t, saved.IsCompleted)
}

func TestSaveProgressNeverTrustsCallerDerivedState(t *testing.T) {
	progress, course, user, _ := newProgressFixture(t)
	lesson := course.Lessons[0]

	// Raw seconds past the duration clamp to 100 percent
	saved := progress.SaveProgress(context.Background(), user.ID, course.ID, lesson.ID, 1000, 300)
	assert.InDelta(t, 100.0, saved.CompletionPercentage, 0.01)

	// Negative positions clamp to zero
	saved = progress.SaveProgress(context.Background(), user.ID, course.ID, lesson.ID, -5, 300)
	assert.Equal(t, 0.0, saved.CompletionPercentage)
	assert.False(t, saved.IsCompleted)
}

func TestSaveProgressPreservesFirstWatchedAt(t *testing.T) {
	progress, course, user, _ := newProgressFixture(t)
	lesson := course.Lessons[0]

	first := progress.SaveProgress(context.Background(), user.ID, course.ID, lesson.ID, 10, 300)
	firstWatched := first.FirstWatchedAt

	time.Sleep(10 * time.Millisecond)

	second := progress.SaveProgress(context.Background(), user.ID, course.ID, lesson.ID, 60, 300)

	assert.Equal(t, firstWatched.Unix(), second.FirstWatchedAt.Unix())
	assert.True(t, second.LastWatchedAt.After(firstWatched) || second.LastWatchedAt.Equal(firstWatched))
}

func TestSaveProgressQueuesWhenBackendDown(t *testing.T) {
	db := newTestDB(t)
	directory := newDirectory(t, db)
	queue := NewMemoryPendingQueue()

	course := seedCourse(t, db, 2, false)
	user := seedUser(t, db, "a@example.com")
	lesson := course.Lessons[0]

	// Second handle over the same schema-less connection simulates an
	// unreachable backend for writes.
	brokenDB := newTestDB(t)
	sqlDB, err := brokenDB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	broken := NewProgressService(brokenDB, directory, queue)

	// The save still returns a best-effort snapshot and queues the update
	snapshot := broken.SaveProgress(context.Background(), user.ID, course.ID, lesson.ID, 120, 300)
	require.NotNil(t, snapshot)
	assert.InDelta(t, 40.0, snapshot.CompletionPercentage, 0.01)

	pending, err := queue.List(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, lesson.ID, pending[0].LessonID)
}

func TestPendingQueueLastWriteWins(t *testing.T) {
	queue := NewMemoryPendingQueue()
	ctx := context.Background()

	require.NoError(t, queue.Put(ctx, PendingUpdate{UserID: 1, CourseID: 1, LessonID: 7, WatchedSeconds: 30, TotalSeconds: 300}))
	require.NoError(t, queue.Put(ctx, PendingUpdate{UserID: 1, CourseID: 1, LessonID: 7, WatchedSeconds: 90, TotalSeconds: 300}))

	pending, err := queue.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 90.0, pending[0].WatchedSeconds)
}

func TestSyncPendingDrainsQueue(t *testing.T) {
	progress, course, user, queue := newProgressFixture(t)
	lesson := course.Lessons[0]

	require.NoError(t, queue.Put(context.Background(), PendingUpdate{
		UserID:         user.ID,
		CourseID:       course.ID,
		LessonID:       lesson.ID,
		WatchedSeconds: 250,
		TotalSeconds:   300,
		QueuedAt:       time.Now(),
	}))

	report, err := progress.SyncPending(context.Background(), user.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, 0, report.Remaining)
	assert.False(t, report.Degraded)

	// The write landed
	row, err := progress.GetProgress(context.Background(), user.ID, course.ID, lesson.ID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, row.IsCompleted)

	// And the queue is empty
	pending, err := queue.List(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSyncPendingKeepsFailingEntriesQueued(t *testing.T) {
	db := newTestDB(t)
	directory := newDirectory(t, db)
	queue := NewMemoryPendingQueue()

	brokenDB := newTestDB(t)
	sqlDB, err := brokenDB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	broken := NewProgressService(brokenDB, directory, queue)

	require.NoError(t, queue.Put(context.Background(), PendingUpdate{
		UserID: 1, CourseID: 1, LessonID: 7, WatchedSeconds: 100, TotalSeconds: 300,
	}))

	report, err := broken.SyncPending(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Synced)
	assert.Equal(t, 1, report.Remaining)
	assert.True(t, report.Degraded)

	// Entry survives for the next pass
	pending, err := queue.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestSyncPendingCollapsesConcurrentCalls(t *testing.T) {
	progress, course, user, queue := newProgressFixture(t)

	for _, lesson := range course.Lessons {
		require.NoError(t, queue.Put(context.Background(), PendingUpdate{
			UserID:         user.ID,
			CourseID:       course.ID,
			LessonID:       lesson.ID,
			WatchedSeconds: 250,
			TotalSeconds:   300,
		}))
	}

	const callers = 8
	reports := make([]SyncReport, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			report, err := progress.SyncPending(context.Background(), user.ID)
			require.NoError(t, err)
			reports[i] = report
		}(i)
	}
	wg.Wait()

	totalSynced := 0
	for _, report := range reports {
		totalSynced += report.Synced
	}

	// Every update applied exactly once across all callers
	assert.Equal(t, len(course.Lessons), totalSynced)
}

func TestCourseProgressDerivation(t *testing.T) {
	progress, course, user, _ := newProgressFixture(t)

	// Complete the first lesson, partially watch the second
	progress.SaveProgress(context.Background(), user.ID, course.ID, course.Lessons[0].ID, 290, 300)
	progress.SaveProgress(context.Background(), user.ID, course.ID, course.Lessons[1].ID, 60, 300)

	summary, err := progress.CourseProgress(context.Background(), user.ID, course.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalLessons)
	assert.Equal(t, 1, summary.CompletedLessons)
	assert.InDelta(t, 33.3, summary.OverallCompletion, 0.1)
	require.NotNil(t, summary.CurrentLessonID)
	assert.Equal(t, course.Lessons[1].ID, *summary.CurrentLessonID)
	require.NotNil(t, summary.LastAccessedID)
}

func TestGetProgressReturnsNilWhenUnwatched(t *testing.T) {
	progress, course, user, _ := newProgressFixture(t)

	row, err := progress.GetProgress(context.Background(), user.ID, course.ID, course.Lessons[0].ID)
	require.NoError(t, err)
	assert.Nil(t, row)
}
