package domain

import (
	"fmt"
)

// LessonModel unit of completion
type LessonModel struct {
	ID    string `json:"id" validate:"required"`
	Title string `json:"title"`
}

// ModuleModel ordered group of lessons
type ModuleModel struct {
	ID      string         `json:"id" validate:"required"`
	Title   string         `json:"title"`
	Lessons []*LessonModel `json:"lessons" validate:"required,min=1,dive"`
}

// CourseModel read-only course structure, loaded once per page view
type CourseModel struct {
	ID      string         `json:"id" validate:"required"`
	Title   string         `json:"title"`
	QuizID  string         `json:"quizId,omitempty"`
	Modules []*ModuleModel `json:"modules" validate:"required,min=1,dive"`
}

// HasQuiz whether the course ends with a quiz
func (c *CourseModel) HasQuiz() bool {
	return c.QuizID != ""
}

// TotalLessons sum of lesson counts across all modules
func (c *CourseModel) TotalLessons() int {
	total := 0
	for _, m := range c.Modules {
		total += len(m.Lessons)
	}
	return total
}

// Lesson returns the lesson at p
func (c *CourseModel) Lesson(p Position) (*LessonModel, error) {
	if !c.Contains(p) {
		return nil, fmt.Errorf("%w: %s", ErrOutOfBounds, p)
	}
	return c.Modules[p.Module].Lessons[p.Lesson], nil
}

// Contains reports whether p is a valid index pair into c
func (c *CourseModel) Contains(p Position) bool {
	if p.Module < 0 || p.Module >= len(c.Modules) {
		return false
	}
	return p.Lesson >= 0 && p.Lesson < len(c.Modules[p.Module].Lessons)
}

// Locate finds the position of lessonID
func (c *CourseModel) Locate(lessonID string) (Position, bool) {
	for mi, m := range c.Modules {
		for li, l := range m.Lessons {
			if l.ID == lessonID {
				return Position{mi, li}, true
			}
		}
	}
	return Position{}, false
}

// Last position of the last lesson of the last module
func (c *CourseModel) Last() Position {
	mi := len(c.Modules) - 1
	return Position{mi, len(c.Modules[mi].Lessons) - 1}
}

// Next position after p in module-then-lesson order, false at the end of the course
func (c *CourseModel) Next(p Position) (Position, bool) {
	if p.Lesson+1 < len(c.Modules[p.Module].Lessons) {
		return Position{p.Module, p.Lesson + 1}, true
	}
	if p.Module+1 < len(c.Modules) {
		return Position{p.Module + 1, 0}, true
	}
	return p, false
}

// Prev position before p, crossing into the last lesson of the previous module
func (c *CourseModel) Prev(p Position) (Position, bool) {
	if p.Lesson > 0 {
		return Position{p.Module, p.Lesson - 1}, true
	}
	if p.Module > 0 {
		return Position{p.Module - 1, len(c.Modules[p.Module-1].Lessons) - 1}, true
	}
	return p, false
}

// Check verifies the structural guarantees the tracker relies on:
// non-empty modules and lessons, ids unique within the course.
func (c *CourseModel) Check() error {
	if len(c.Modules) == 0 {
		return fmt.Errorf("course %s has no modules", c.ID)
	}
	modules := make(map[string]struct{})
	lessons := make(map[string]struct{})
	for mi, m := range c.Modules {
		if m == nil || len(m.Lessons) == 0 {
			return fmt.Errorf("course %s: module %d has no lessons", c.ID, mi)
		}
		if _, ok := modules[m.ID]; ok {
			return fmt.Errorf("course %s: duplicated module id %s", c.ID, m.ID)
		}
		modules[m.ID] = struct{}{}
		for _, l := range m.Lessons {
			if l == nil {
				return fmt.Errorf("course %s: module %s has a nil lesson", c.ID, m.ID)
			}
			if _, ok := lessons[l.ID]; ok {
				return fmt.Errorf("course %s: duplicated lesson id %s", c.ID, l.ID)
			}
			lessons[l.ID] = struct{}{}
		}
	}
	return nil
}
