package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lingodeck/api/model"
	"gorm.io/gorm"
)

// syncRetries is the per-entry retry budget during a sync pass.
const syncRetries = 3

// SyncReport summarizes one SyncPending pass.
type SyncReport struct {
	Synced    int  `json:"synced"`
	Remaining int  `json:"remaining"`
	Degraded  bool `json:"degraded"` // entries exhausted their retry budget but stay queued
	Skipped   bool `json:"skipped"`  // another sync for this user was already in flight
}

// ProgressService durably records lesson watch progress and survives
// transient backend unavailability through a pending-update queue.
type ProgressService struct {
	db        *gorm.DB
	directory *DirectoryService
	queue     PendingQueue

	mu       sync.Mutex
	inflight map[uint]bool // per-user sync guard
}

// NewProgressService creates a new progress service
func NewProgressService(db *gorm.DB, directory *DirectoryService, queue PendingQueue) *ProgressService {
	return &ProgressService{
		db:        db,
		directory: directory,
		queue:     queue,
		inflight:  make(map[uint]bool),
	}
}

// SaveProgress records a progress snapshot. Completion percentage and the
// completed flag are recomputed here from raw seconds; a stale or
// manipulated flag from the caller is never trusted. Remote failures are
// queued instead of surfaced, so this never fails the playback path.
func (s *ProgressService) SaveProgress(ctx context.Context, userID, courseID, lessonID uint, watchedSeconds, totalSeconds float64) *model.LessonProgress {
	progress, err := s.writeRemote(ctx, userID, courseID, lessonID, watchedSeconds, totalSeconds)
	if err == nil {
		return progress
	}

	log.Printf("progress write failed for user=%d lesson=%d, queueing: %v", userID, lessonID, err)
	if qErr := s.queue.Put(ctx, PendingUpdate{
		UserID:         userID,
		CourseID:       courseID,
		LessonID:       lessonID,
		WatchedSeconds: watchedSeconds,
		TotalSeconds:   totalSeconds,
		QueuedAt:       time.Now(),
	}); qErr != nil {
		log.Printf("failed to queue pending progress for user=%d lesson=%d: %v", userID, lessonID, qErr)
	}

	// Best-effort snapshot for the caller even though the write is queued.
	snapshot := s.snapshot(ctx, userID, courseID, lessonID, watchedSeconds, totalSeconds)
	return snapshot
}

// writeRemote upserts the progress row, recomputing derived fields.
func (s *ProgressService) writeRemote(ctx context.Context, userID, courseID, lessonID uint, watchedSeconds, totalSeconds float64) (*model.LessonProgress, error) {
	threshold := s.courseThreshold(ctx, courseID)
	pct, completed := derive(watchedSeconds, totalSeconds, threshold)
	now := time.Now()

	var progress model.LessonProgress
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND course_id = ? AND lesson_id = ?",
			userID, courseID, lessonID).
			First(&progress).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			progress = model.LessonProgress{
				UserID:               userID,
				CourseID:             courseID,
				LessonID:             lessonID,
				WatchedSeconds:       watchedSeconds,
				TotalSeconds:         totalSeconds,
				CompletionPercentage: pct,
				IsCompleted:          completed,
				FirstWatchedAt:       now,
				LastWatchedAt:        now,
			}
			return tx.Create(&progress).Error
		}
		if err != nil {
			return err
		}

		// FirstWatchedAt is set once and never overwritten.
		progress.WatchedSeconds = watchedSeconds
		progress.TotalSeconds = totalSeconds
		progress.CompletionPercentage = pct
		progress.IsCompleted = completed
		progress.LastWatchedAt = now
		return tx.Save(&progress).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist lesson progress: %w", err)
	}
	return &progress, nil
}

// snapshot builds an unpersisted progress value with derived fields.
func (s *ProgressService) snapshot(ctx context.Context, userID, courseID, lessonID uint, watchedSeconds, totalSeconds float64) *model.LessonProgress {
	threshold := s.courseThreshold(ctx, courseID)
	pct, completed := derive(watchedSeconds, totalSeconds, threshold)
	now := time.Now()
	return &model.LessonProgress{
		UserID:               userID,
		CourseID:             courseID,
		LessonID:             lessonID,
		WatchedSeconds:       watchedSeconds,
		TotalSeconds:         totalSeconds,
		CompletionPercentage: pct,
		IsCompleted:          completed,
		FirstWatchedAt:       now,
		LastWatchedAt:        now,
	}
}

func (s *ProgressService) courseThreshold(ctx context.Context, courseID uint) int {
	course, err := s.directory.GetCourse(ctx, courseID)
	if err != nil || course == nil {
		return model.DefaultCompletionThreshold
	}
	return course.Threshold()
}

// derive computes the clamped completion percentage and completed flag.
func derive(watchedSeconds, totalSeconds float64, threshold int) (float64, bool) {
	pct := 0.0
	if totalSeconds > 0 {
		pct = watchedSeconds / totalSeconds * 100
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, pct >= float64(threshold)
}

// GetProgress returns the stored progress row, or nil when the user has
// not watched the lesson yet.
func (s *ProgressService) GetProgress(ctx context.Context, userID, courseID, lessonID uint) (*model.LessonProgress, error) {
	var progress model.LessonProgress
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ? AND lesson_id = ?", userID, courseID, lessonID).
		First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lesson progress: %w", err)
	}
	return &progress, nil
}

// CompletedSet returns the ids of the user's completed lessons in the
// course. Used by the access engine's sequential unlock rule.
func (s *ProgressService) CompletedSet(ctx context.Context, userID, courseID uint) (map[uint]bool, error) {
	var rows []model.LessonProgress
	err := s.db.WithContext(ctx).
		Select("lesson_id").
		Where("user_id = ? AND course_id = ? AND is_completed = ?", userID, courseID, true).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load completed lessons: %w", err)
	}

	completed := make(map[uint]bool, len(rows))
	for _, row := range rows {
		completed[row.LessonID] = true
	}
	return completed, nil
}

// CourseProgress derives the user's overall course progress per request;
// it is never persisted as a source of truth.
func (s *ProgressService) CourseProgress(ctx context.Context, userID, courseID uint) (*model.CourseProgress, error) {
	course, err := s.directory.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, ErrCourseNotFound
	}

	var rows []model.LessonProgress
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load course progress: %w", err)
	}

	byLesson := make(map[uint]model.LessonProgress, len(rows))
	for _, row := range rows {
		byLesson[row.LessonID] = row
	}

	result := &model.CourseProgress{
		CourseID:     courseID,
		TotalLessons: len(course.Lessons),
	}

	var lastWatched time.Time
	for _, lesson := range course.Lessons {
		row, ok := byLesson[lesson.ID]
		if ok && row.IsCompleted {
			result.CompletedLessons++
		} else if result.CurrentLessonID == nil {
			id := lesson.ID
			result.CurrentLessonID = &id
		}
		if ok && row.LastWatchedAt.After(lastWatched) {
			lastWatched = row.LastWatchedAt
			id := lesson.ID
			result.LastAccessedID = &id
		}
	}

	if result.TotalLessons > 0 {
		result.OverallCompletion = float64(result.CompletedLessons) / float64(result.TotalLessons) * 100
	}
	return result, nil
}

// SyncPending drains the user's queued updates, retrying each entry up to
// syncRetries times. Entries over budget remain queued and flag the
// report as degraded. Concurrent calls for the same user are collapsed:
// the second caller gets a Skipped report instead of double-applying.
func (s *ProgressService) SyncPending(ctx context.Context, userID uint) (SyncReport, error) {
	s.mu.Lock()
	if s.inflight[userID] {
		s.mu.Unlock()
		return SyncReport{Skipped: true}, nil
	}
	s.inflight[userID] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inflight, userID)
		s.mu.Unlock()
	}()

	updates, err := s.queue.List(ctx, userID)
	if err != nil {
		return SyncReport{}, fmt.Errorf("failed to list pending updates: %w", err)
	}

	report := SyncReport{}
	for _, update := range updates {
		var writeErr error
		for attempt := 0; attempt < syncRetries; attempt++ {
			_, writeErr = s.writeRemote(ctx, update.UserID, update.CourseID,
				update.LessonID, update.WatchedSeconds, update.TotalSeconds)
			if writeErr == nil {
				break
			}
		}
		if writeErr != nil {
			log.Printf("pending progress for user=%d lesson=%d still failing: %v",
				update.UserID, update.LessonID, writeErr)
			report.Remaining++
			report.Degraded = true
			continue
		}

		if err := s.queue.Delete(ctx, update.UserID, update.LessonID); err != nil {
			log.Printf("failed to dequeue synced progress for user=%d lesson=%d: %v",
				update.UserID, update.LessonID, err)
		}
		report.Synced++
	}
	return report, nil
}

// SyncAll runs a sync pass for every user with queued updates. Invoked
// by the cron scheduler.
func (s *ProgressService) SyncAll(ctx context.Context) (SyncReport, error) {
	users, err := s.queue.Users(ctx)
	if err != nil {
		return SyncReport{}, fmt.Errorf("failed to list users with pending progress: %w", err)
	}

	total := SyncReport{}
	for _, userID := range users {
		report, err := s.SyncPending(ctx, userID)
		if err != nil {
			log.Printf("progress sync failed for user=%d: %v", userID, err)
			continue
		}
		total.Synced += report.Synced
		total.Remaining += report.Remaining
		total.Degraded = total.Degraded || report.Degraded
	}
	return total, nil
}
