package progress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/pot-code/course-progress/internal/domain"
	"github.com/pot-code/course-progress/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// DefaultPassingThreshold quiz score granting a certificate, on a 20 point scale
const DefaultPassingThreshold = 17

// TrackerOption tracker construction options
type TrackerOption struct {
	LearnerID        string
	Enrolled         bool
	Completed        []string // completion set restored from the local cache
	PassingThreshold float64
	Store            CompletionStore
	Sync             *Synchronizer
}

// Tracker progress state of one learner in one course.
//
// completed is the source of truth for unlock decisions, percent is the last value
// reported by the persistence service. The lock is never held across network calls.
type Tracker struct {
	course    *domain.CourseModel
	learnerID string
	threshold float64
	store     CompletionStore
	sync      *Synchronizer

	mu        sync.RWMutex
	enrolled  bool
	completed map[string]struct{}
	pending   map[string]struct{} // completed locally, not acknowledged remotely
	active    domain.Position
	highWater domain.Position // furthest position ever active, never lowered, so never behind active
	percent   int

	syncMu sync.Mutex // serializes remote round trips
}

// NewTracker create a tracker positioned at (0,0)
func NewTracker(course *domain.CourseModel, options ...*TrackerOption) (*Tracker, error) {
	if course == nil {
		return nil, errors.New("nil course")
	}
	if err := course.Check(); err != nil {
		return nil, err
	}

	t := &Tracker{
		course:    course,
		threshold: DefaultPassingThreshold,
		completed: make(map[string]struct{}),
		pending:   make(map[string]struct{}),
	}
	if len(options) > 0 {
		option := options[0]
		t.learnerID = option.LearnerID
		t.enrolled = option.Enrolled
		t.store = option.Store
		t.sync = option.Sync
		if option.PassingThreshold > 0 {
			t.threshold = option.PassingThreshold
		}
		for _, id := range option.Completed {
			if _, ok := course.Locate(id); ok {
				t.completed[id] = struct{}{}
			}
		}
	}
	t.percent = t.localPercent()
	return t, nil
}

// Course read-only course structure
func (t *Tracker) Course() *domain.CourseModel {
	return t.course
}

// SetEnrolled update the enrollment flag once the learner enrolls
func (t *Tracker) SetEnrolled(enrolled bool) {
	t.mu.Lock()
	t.enrolled = enrolled
	t.mu.Unlock()
}

// Enrolled .
func (t *Tracker) Enrolled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enrolled
}

// CanAccess whether the lesson at (moduleIndex, lessonIndex) may be opened
func (t *Tracker) CanAccess(moduleIndex, lessonIndex int) (bool, error) {
	p := domain.Position{Module: moduleIndex, Lesson: lessonIndex}
	if !t.course.Contains(p) {
		return false, fmt.Errorf("%w: %s", domain.ErrOutOfBounds, p)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.canAccess(p), nil
}

func (t *Tracker) canAccess(p domain.Position) bool {
	if !t.highWater.Before(p) {
		return true
	}
	return t.prefixCompleted(p)
}

// prefixCompleted every lesson strictly before p is completed
func (t *Tracker) prefixCompleted(p domain.Position) bool {
	for mi := 0; mi <= p.Module; mi++ {
		lessons := t.course.Modules[mi].Lessons
		end := len(lessons)
		if mi == p.Module {
			end = p.Lesson
		}
		for _, l := range lessons[:end] {
			if _, ok := t.completed[l.ID]; !ok {
				return false
			}
		}
	}
	return true
}

// LessonState state of the lesson at (moduleIndex, lessonIndex)
func (t *Tracker) LessonState(moduleIndex, lessonIndex int) (domain.LessonState, error) {
	p := domain.Position{Module: moduleIndex, Lesson: lessonIndex}
	lesson, err := t.course.Lesson(p)
	if err != nil {
		return "", err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lessonState(p, lesson.ID), nil
}

func (t *Tracker) lessonState(p domain.Position, lessonID string) domain.LessonState {
	if _, ok := t.completed[lessonID]; ok {
		return domain.LessonCompleted
	}
	if t.canAccess(p) {
		return domain.LessonUnlocked
	}
	return domain.LessonLocked
}

// Outline state of every lesson, in course order
func (t *Tracker) Outline() []*domain.ModuleOutline {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]*domain.ModuleOutline, 0, len(t.course.Modules))
	for mi, m := range t.course.Modules {
		mo := &domain.ModuleOutline{
			ID:      m.ID,
			Title:   m.Title,
			Lessons: make([]*domain.LessonOutline, 0, len(m.Lessons)),
		}
		for li, l := range m.Lessons {
			mo.Lessons = append(mo.Lessons, &domain.LessonOutline{
				ID:    l.ID,
				Title: l.Title,
				State: t.lessonState(domain.Position{Module: mi, Lesson: li}, l.ID),
			})
		}
		result = append(result, mo)
	}
	return result
}

// MarkLessonComplete adds lessonID to the completion set and syncs it to the platform.
//
// Only unlocked lessons can be completed, repeated calls are no-ops. The active position
// never moves. A failed sync keeps the local completion and leaves the percentage at its
// last known value. Without a synchronizer the percentage follows the local set.
func (t *Tracker) MarkLessonComplete(ctx context.Context, cred domain.Credential, lessonID string) (domain.ProgressSnapshot, error) {
	if cred.Empty() {
		return domain.ProgressSnapshot{}, domain.ErrUnauthenticated
	}
	p, ok := t.course.Locate(lessonID)
	if !ok {
		return domain.ProgressSnapshot{}, fmt.Errorf("%w: lesson %s", domain.ErrOutOfBounds, lessonID)
	}

	t.mu.Lock()
	if !t.enrolled {
		t.mu.Unlock()
		return domain.ProgressSnapshot{}, domain.ErrNotEnrolled
	}
	if _, ok := t.completed[lessonID]; ok {
		t.mu.Unlock()
		return t.Snapshot(nil), nil
	}
	if !t.canAccess(p) {
		t.mu.Unlock()
		return domain.ProgressSnapshot{}, fmt.Errorf("%w: %s", domain.ErrLessonLocked, lessonID)
	}
	t.completed[lessonID] = struct{}{}
	if t.sync == nil {
		t.percent = t.localPercent()
	} else {
		t.pending[lessonID] = struct{}{}
	}
	t.mu.Unlock()

	logger := logging.ExtractLoggerFromContext(ctx).With(
		zap.String("course.id", t.course.ID), zap.String("lesson.id", lessonID))
	t.persist(ctx, logger, lessonID)

	if err := t.pushPending(ctx, cred); errors.Is(err, domain.ErrUnauthenticated) {
		return t.Snapshot(nil), err
	}
	return t.Snapshot(nil), nil
}

func (t *Tracker) persist(ctx context.Context, logger *zap.Logger, lessonIDs ...string) {
	if t.store == nil || len(lessonIDs) == 0 {
		return
	}
	var err error
	if len(lessonIDs) == 1 {
		_, err = t.store.Add(ctx, t.learnerID, t.course.ID, lessonIDs[0])
	} else {
		_, err = t.store.AddAll(ctx, t.learnerID, t.course.ID, lessonIDs)
	}
	if err != nil {
		logger.Warn("failed to cache completions", zap.Strings("lesson.id", lessonIDs), zap.Error(err))
	}
}

// pushPending replays every unacknowledged completion, stopping at the first failure
func (t *Tracker) pushPending(ctx context.Context, cred domain.Credential) error {
	if t.sync == nil {
		return nil
	}
	t.syncMu.Lock()
	defer t.syncMu.Unlock()
	return t.pushPendingLocked(ctx, cred)
}

// pushPendingLocked requires syncMu
func (t *Tracker) pushPendingLocked(ctx context.Context, cred domain.Credential) error {
	for _, lessonID := range t.pendingInOrder() {
		p, _ := t.course.Locate(lessonID)
		module := t.course.Modules[p.Module]
		percent, err := t.sync.Push(ctx, cred, t.course.ID, module.ID, lessonID)
		if err != nil {
			return err
		}

		t.mu.Lock()
		delete(t.pending, lessonID)
		t.percent = percent
		t.mu.Unlock()
	}
	return nil
}

func (t *Tracker) pendingInOrder() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var result []string
	for _, m := range t.course.Modules {
		for _, l := range m.Lessons {
			if _, ok := t.pending[l.ID]; ok {
				result = append(result, l.ID)
			}
		}
	}
	return result
}

// Reconcile merges the remote record into local state, then replays pending completions.
//
// Remote completions are added locally and the remote percentage replaces the local one.
// Local completions missing from the remote record are queued for replay. The whole round
// holds syncMu, so a pulled percentage never overwrites a newer pushed one.
func (t *Tracker) Reconcile(ctx context.Context, cred domain.Credential) error {
	if cred.Empty() {
		return domain.ErrUnauthenticated
	}
	if t.sync == nil {
		return nil
	}
	t.syncMu.Lock()
	defer t.syncMu.Unlock()

	remote, err := t.sync.Pull(ctx, cred, t.course.ID)
	if err != nil {
		return err
	}

	var added []string
	acknowledged := make(map[string]struct{})
	t.mu.Lock()
	if remote != nil {
		for _, id := range remote.CompletedLessons {
			if _, ok := t.course.Locate(id); !ok {
				continue
			}
			acknowledged[id] = struct{}{}
			if _, ok := t.completed[id]; !ok {
				t.completed[id] = struct{}{}
				added = append(added, id)
			}
		}
		t.percent = remote.PercentComplete
	}
	for id := range t.completed {
		if _, ok := acknowledged[id]; ok {
			delete(t.pending, id)
		} else {
			t.pending[id] = struct{}{}
		}
	}
	t.mu.Unlock()

	t.persist(ctx, logging.ExtractLoggerFromContext(ctx).With(zap.String("course.id", t.course.ID)), added...)
	return t.pushPendingLocked(ctx, cred)
}

// Advance moves to the next lesson once the current one is completed
func (t *Tracker) Advance() (domain.Position, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, _ := t.course.Lesson(t.active)
	if _, ok := t.completed[current.ID]; !ok {
		return t.active, domain.ErrLessonNotComplete
	}
	next, ok := t.course.Next(t.active)
	if !ok {
		return t.active, domain.ErrEndOfCourse
	}
	t.active = next
	if t.highWater.Before(next) {
		t.highWater = next
	}
	return t.active, nil
}

// Retreat moves to the previous lesson, crossing module boundaries
func (t *Tracker) Retreat() (domain.Position, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.course.Prev(t.active)
	if !ok {
		return t.active, domain.ErrAlreadyAtStart
	}
	t.active = prev
	return t.active, nil
}

// Active current position
func (t *Tracker) Active() domain.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active
}

// Completed completed lesson ids in course order
func (t *Tracker) Completed() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]string, 0, len(t.completed))
	for _, m := range t.course.Modules {
		for _, l := range m.Lessons {
			if _, ok := t.completed[l.ID]; ok {
				result = append(result, l.ID)
			}
		}
	}
	return result
}

// LocalPercent percentage derived from the local completion set
func (t *Tracker) LocalPercent() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.localPercent()
}

func (t *Tracker) localPercent() int {
	return int(math.Round(100 * float64(len(t.completed)) / float64(t.course.TotalLessons())))
}

// Snapshot derives the progress view. quiz is nil when no result is known.
func (t *Tracker) Snapshot(quiz *domain.QuizResult) domain.ProgressSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := domain.ProgressSnapshot{
		CourseID:         t.course.ID,
		PercentComplete:  t.percent,
		IsCourseFinished: t.percent == 100,
		Active:           t.active,
		CompletedLessons: len(t.completed),
		TotalLessons:     t.course.TotalLessons(),
		PendingSync:      len(t.pending),
	}
	s.QuizEligible = s.IsCourseFinished && t.course.HasQuiz()
	if quiz != nil {
		score := quiz.Score
		s.QuizScore = &score
		s.CertificateEligible = s.QuizEligible && score >= t.threshold
	}
	return s
}
