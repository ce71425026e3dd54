package services

import (
	"context"
	"sync"
	"time"
)

// PendingUpdate is a progress write that failed remotely and awaits
// resync. Raw seconds only; derived fields are recomputed on replay.
type PendingUpdate struct {
	UserID         uint      `json:"user_id"`
	CourseID       uint      `json:"course_id"`
	LessonID       uint      `json:"lesson_id"`
	WatchedSeconds float64   `json:"watched_seconds"`
	TotalSeconds   float64   `json:"total_seconds"`
	QueuedAt       time.Time `json:"queued_at"`
}

// PendingQueue stores pending progress updates keyed by (user, lesson).
// Put replaces any queued update for the same lesson: last write wins.
type PendingQueue interface {
	Put(ctx context.Context, update PendingUpdate) error
	List(ctx context.Context, userID uint) ([]PendingUpdate, error)
	Delete(ctx context.Context, userID, lessonID uint) error
	// Users returns the ids of users with queued updates.
	Users(ctx context.Context) ([]uint, error)
}

// MemoryPendingQueue is an in-process PendingQueue, used in tests and as
// a fallback when Redis is unavailable.
type MemoryPendingQueue struct {
	mu      sync.Mutex
	entries map[uint]map[uint]PendingUpdate // userID -> lessonID -> update
}

// NewMemoryPendingQueue creates an empty in-memory queue.
func NewMemoryPendingQueue() *MemoryPendingQueue {
	return &MemoryPendingQueue{
		entries: make(map[uint]map[uint]PendingUpdate),
	}
}

func (q *MemoryPendingQueue) Put(ctx context.Context, update PendingUpdate) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	byLesson, ok := q.entries[update.UserID]
	if !ok {
		byLesson = make(map[uint]PendingUpdate)
		q.entries[update.UserID] = byLesson
	}
	byLesson[update.LessonID] = update
	return nil
}

func (q *MemoryPendingQueue) List(ctx context.Context, userID uint) ([]PendingUpdate, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	updates := make([]PendingUpdate, 0, len(q.entries[userID]))
	for _, update := range q.entries[userID] {
		updates = append(updates, update)
	}
	return updates, nil
}

func (q *MemoryPendingQueue) Delete(ctx context.Context, userID, lessonID uint) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if byLesson, ok := q.entries[userID]; ok {
		delete(byLesson, lessonID)
		if len(byLesson) == 0 {
			delete(q.entries, userID)
		}
	}
	return nil
}

func (q *MemoryPendingQueue) Users(ctx context.Context) ([]uint, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	users := make([]uint, 0, len(q.entries))
	for userID := range q.entries {
		users = append(users, userID)
	}
	return users, nil
}
