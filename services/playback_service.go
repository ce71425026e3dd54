package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lingodeck/api/model"
	"github.com/lingodeck/api/player"
)

var (
	ErrLessonNotFound   = errors.New("lesson not found")
	ErrSessionNotFound  = errors.New("playback session not found")
	ErrNotEmbedSession  = errors.New("session does not accept pushed heartbeats")
	ErrUnknownProvider  = errors.New("unknown video provider")
	ErrUnknownAction    = errors.New("unknown transport action")
	ErrSessionForbidden = errors.New("session belongs to another user")
)

// SessionEvent is one item of a session's live event stream.
type SessionEvent struct {
	Type     string          `json:"type"` // "progress" or "completion"
	Progress player.Progress `json:"progress"`
}

// PlaybackSession is a live tracker for one user watching one lesson.
type PlaybackSession struct {
	ID        string    `json:"id"`
	UserID    uint      `json:"user_id"`
	CourseID  uint      `json:"course_id"`
	LessonID  uint      `json:"lesson_id"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`

	tracker *player.Tracker
	embed   *player.EmbedProvider // nil for polled sessions

	mu       sync.Mutex
	lastSeen time.Time
	subs     map[int]chan SessionEvent
	nextSub  int
}

// State returns the tracker lifecycle state.
func (s *PlaybackSession) State() player.State {
	return s.tracker.State()
}

// Snapshot returns the latest normalized progress.
func (s *PlaybackSession) Snapshot() player.Progress {
	return s.tracker.Snapshot()
}

// Subscribe attaches a live event listener. The cancel func must be
// called when the listener goes away (e.g., SSE client disconnect).
func (s *PlaybackSession) Subscribe() (<-chan SessionEvent, func()) {
	ch := make(chan SessionEvent, 16)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// publish fans an event out to subscribers without blocking the tracker.
func (s *PlaybackSession) publish(event SessionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- event:
		default: // slow subscriber drops events rather than stalling playback
		}
	}
}

func (s *PlaybackSession) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *PlaybackSession) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *PlaybackSession) closeSubs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// ProviderFactory builds the provider binding named by a lesson's
// video_provider field.
type ProviderFactory func(name string) (player.Provider, error)

// PlaybackService owns all live playback sessions and wires tracker
// events into the progress store.
type PlaybackService struct {
	directory *DirectoryService
	progress  *ProgressService
	factory   ProviderFactory

	mu       sync.Mutex
	sessions map[string]*PlaybackSession
}

// NewPlaybackService creates a new playback service
func NewPlaybackService(directory *DirectoryService, progress *ProgressService, factory ProviderFactory) *PlaybackService {
	return &PlaybackService{
		directory: directory,
		progress:  progress,
		factory:   factory,
		sessions:  make(map[string]*PlaybackSession),
	}
}

// DefaultProviderFactory builds the two real bindings: "rest" polls the
// configured playback API, "embed" accepts pushed heartbeats.
func DefaultProviderFactory(playerAPIBaseURL, playerAPIKey string) ProviderFactory {
	return func(name string) (player.Provider, error) {
		switch name {
		case "rest":
			return player.NewRESTProvider(playerAPIBaseURL, playerAPIKey), nil
		case "embed", "":
			return player.NewEmbedProvider(), nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
}

// CreateSession builds, initializes and registers a tracker for the
// lesson. Access must already be checked by the caller; this only deals
// with playback mechanics.
func (s *PlaybackService) CreateSession(ctx context.Context, userID, courseID, lessonID uint) (*PlaybackSession, error) {
	course, err := s.directory.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, ErrCourseNotFound
	}

	var lesson *model.Lesson
	for i := range course.Lessons {
		if course.Lessons[i].ID == lessonID {
			lesson = &course.Lessons[i]
			break
		}
	}
	if lesson == nil {
		return nil, ErrLessonNotFound
	}

	provider, err := s.factory(lesson.VideoProvider)
	if err != nil {
		return nil, err
	}

	tracker := player.NewTracker(provider, player.Options{
		CompletionThreshold: float64(course.Threshold()),
	})

	session := &PlaybackSession{
		ID:        uuid.New().String(),
		UserID:    userID,
		CourseID:  courseID,
		LessonID:  lessonID,
		Provider:  provider.Name(),
		CreatedAt: time.Now(),
		tracker:   tracker,
		lastSeen:  time.Now(),
		subs:      make(map[int]chan SessionEvent),
	}
	if embed, ok := provider.(*player.EmbedProvider); ok {
		session.embed = embed
	}

	// Persist progress on every tick; the store queues on failure, so
	// the playback path never blocks on the backend.
	tracker.OnProgress(func(p player.Progress) {
		s.progress.SaveProgress(context.Background(),
			userID, courseID, lessonID, p.WatchedSeconds, p.Duration)
		session.publish(SessionEvent{Type: "progress", Progress: p})
	})
	tracker.OnCompletion(func(p player.Progress) {
		log.Printf("lesson completed: user=%d course=%d lesson=%d at %.1f%%",
			userID, courseID, lessonID, p.CompletionPercentage)
		session.publish(SessionEvent{Type: "completion", Progress: p})
	})

	if err := tracker.Initialize(ctx, lesson.VideoID); err != nil {
		tracker.Destroy()
		return nil, err
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session, nil
}

// Get returns the session owned by userID, enforcing ownership.
func (s *PlaybackService) Get(sessionID string, userID uint) (*PlaybackSession, error) {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	s.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, ErrSessionForbidden
	}
	return session, nil
}

// Feed ingests an embed heartbeat into the session's tracker.
func (s *PlaybackService) Feed(sessionID string, userID uint, pb player.Playback) error {
	session, err := s.Get(sessionID, userID)
	if err != nil {
		return err
	}
	if session.embed == nil {
		return ErrNotEmbedSession
	}

	session.touch()
	session.embed.Feed(pb)
	return nil
}

// Control applies a transport action to the session.
func (s *PlaybackService) Control(ctx context.Context, sessionID string, userID uint, action string, value float64) error {
	session, err := s.Get(sessionID, userID)
	if err != nil {
		return err
	}
	session.touch()

	switch action {
	case "play":
		return session.tracker.Play(ctx)
	case "pause":
		return session.tracker.Pause(ctx)
	case "seek":
		return session.tracker.Seek(ctx, value)
	case "volume":
		return session.tracker.SetVolume(ctx, value)
	case "rate":
		return session.tracker.SetPlaybackRate(ctx, value)
	case "retry":
		return session.tracker.Retry(ctx)
	}
	return ErrUnknownAction
}

// Destroy tears the session down and removes it from the registry.
// Safe to call for an already removed session.
func (s *PlaybackService) Destroy(sessionID string, userID uint) error {
	session, err := s.Get(sessionID, userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	session.tracker.Destroy()
	session.closeSubs()
	return nil
}

// DestroyUserSessions tears down every session of a user, e.g. on
// logout, so no timer keeps writing progress under a stale user id.
func (s *PlaybackService) DestroyUserSessions(userID uint) int {
	s.mu.Lock()
	var victims []*PlaybackSession
	for id, session := range s.sessions {
		if session.UserID == userID {
			victims = append(victims, session)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, session := range victims {
		session.tracker.Destroy()
		session.closeSubs()
	}
	return len(victims)
}

// CleanupStale destroys sessions idle for longer than maxAge. Invoked by
// the cron scheduler; catches clients that navigated away without an
// explicit destroy.
func (s *PlaybackService) CleanupStale(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	var victims []*PlaybackSession
	for id, session := range s.sessions {
		if session.idleSince().Before(cutoff) {
			victims = append(victims, session)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, session := range victims {
		session.tracker.Destroy()
		session.closeSubs()
	}
	return len(victims)
}

// ActiveSessions returns the number of live sessions.
func (s *PlaybackService) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
