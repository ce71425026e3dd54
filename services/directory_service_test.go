package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingodeck/api/model"
	"github.com/lingodeck/api/utils/cache"
)

// testClock is a hand-advanced clock for cache expiry tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestDirectoryServesCachedCourseUntilTTL(t *testing.T) {
	db := newTestDB(t)
	clock := &testClock{now: time.Now()}
	directory := NewDirectoryService(db, cache.NewTTLCache[*model.Course](DirectoryTTL, clock.Now))

	course := seedCourse(t, db, 3, false)

	loaded, err := directory.GetCourse(context.Background(), course.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "Spanish for Beginners", loaded.Title)

	// A direct DB write is invisible while the entry is fresh
	require.NoError(t, db.Model(course).Update("title", "Renamed").Error)

	loaded, err = directory.GetCourse(context.Background(), course.ID)
	require.NoError(t, err)
	assert.Equal(t, "Spanish for Beginners", loaded.Title)

	// Past the TTL the next read goes to the database
	clock.Advance(DirectoryTTL + time.Second)

	loaded, err = directory.GetCourse(context.Background(), course.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.Title)
}

func TestDirectoryInvalidateForcesFreshRead(t *testing.T) {
	db := newTestDB(t)
	directory := newDirectory(t, db)
	course := seedCourse(t, db, 2, false)

	_, err := directory.GetCourse(context.Background(), course.ID)
	require.NoError(t, err)

	require.NoError(t, db.Model(course).Update("title", "Renamed").Error)
	directory.InvalidateCourse(course.ID)

	loaded, err := directory.GetCourse(context.Background(), course.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.Title)
}

func TestDirectoryCourseNotFoundIsNil(t *testing.T) {
	db := newTestDB(t)
	directory := newDirectory(t, db)

	course, err := directory.GetCourse(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, course)
}

func TestDirectoryLessonsOrdered(t *testing.T) {
	db := newTestDB(t)
	directory := newDirectory(t, db)
	course := seedCourse(t, db, 5, false)

	loaded, err := directory.GetCourse(context.Background(), course.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Lessons, 5)

	for i, lesson := range loaded.Lessons {
		assert.Equal(t, i, lesson.Order)
	}
}

func TestDirectoryAdjacentLessons(t *testing.T) {
	db := newTestDB(t)
	directory := newDirectory(t, db)
	course := seedCourse(t, db, 3, false)

	first := course.Lessons[0]
	middle := course.Lessons[1]
	last := course.Lessons[2]

	next, err := directory.GetNextLesson(context.Background(), course.ID, middle.ID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, last.ID, next.ID)

	prev, err := directory.GetPreviousLesson(context.Background(), course.ID, middle.ID)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, first.ID, prev.ID)

	// Edges return nil, not errors
	next, err = directory.GetNextLesson(context.Background(), course.ID, last.ID)
	require.NoError(t, err)
	assert.Nil(t, next)

	prev, err = directory.GetPreviousLesson(context.Background(), course.ID, first.ID)
	require.NoError(t, err)
	assert.Nil(t, prev)
}

func TestDirectoryAccessibleLessonsIgnoresGatingWhenNonSequential(t *testing.T) {
	db := newTestDB(t)
	directory := newDirectory(t, db)
	course := seedCourse(t, db, 4, false)
	require.NoError(t, db.Model(course).Update("unlock_sequential", false).Error)
	directory.InvalidateCourse(course.ID)

	lessons, err := directory.AccessibleLessons(context.Background(), course.ID, map[uint]bool{}, true)
	require.NoError(t, err)
	assert.Len(t, lessons, 4)
}
