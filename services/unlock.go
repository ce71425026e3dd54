package services

import (
	"sort"

	"github.com/lingodeck/api/model"
)

// AccessiblePrefix computes the subset of lessons a user may currently
// open under the sequential unlock rule. Both the access engine and the
// directory listing go through this one predicate so the two can never
// disagree.
//
// Lessons are evaluated in ascending order. A non-preview lesson is
// accessible while every earlier non-preview lesson is completed; the
// first uncompleted lesson is itself accessible and locks everything
// after it. Preview lessons are always accessible when allowPreview is
// set; with allowPreview unset they are gated like regular lessons but
// still never require completion to unlock their successors.
func AccessiblePrefix(lessons []model.Lesson, completed map[uint]bool, allowPreview bool) []model.Lesson {
	ordered := make([]model.Lesson, len(lessons))
	copy(ordered, lessons)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	accessible := make([]model.Lesson, 0, len(ordered))
	unlocked := true
	for _, lesson := range ordered {
		if lesson.IsPreview {
			if allowPreview || unlocked {
				accessible = append(accessible, lesson)
			}
			continue
		}
		if !unlocked {
			continue
		}
		accessible = append(accessible, lesson)
		if !completed[lesson.ID] {
			unlocked = false
		}
	}
	return accessible
}

// LessonUnlocked reports whether the given lesson is in the accessible
// prefix.
func LessonUnlocked(lessons []model.Lesson, lessonID uint, completed map[uint]bool, allowPreview bool) bool {
	for _, lesson := range AccessiblePrefix(lessons, completed, allowPreview) {
		if lesson.ID == lessonID {
			return true
		}
	}
	return false
}
