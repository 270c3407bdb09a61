package progress

import (
	"context"
	"errors"

	"github.com/pot-code/course-progress/internal/domain"
	"github.com/pot-code/course-progress/internal/infrastructure/logging"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// ProgressUseCaseImpl ...
type ProgressUseCaseImpl struct {
	Catalog          domain.CatalogProvider
	Enrollment       domain.EnrollmentService
	Quiz             domain.QuizService
	Store            CompletionStore
	Sync             *Synchronizer
	Registry         *Registry
	Feed             *Feed
	PassingThreshold float64
}

var _ ProgressUseCase = &ProgressUseCaseImpl{}

// NewProgressUseCase ...
func NewProgressUseCase(
	Catalog domain.CatalogProvider,
	Enrollment domain.EnrollmentService,
	Quiz domain.QuizService,
	Store CompletionStore,
	Sync *Synchronizer,
	Registry *Registry,
	Feed *Feed,
	PassingThreshold float64,
) *ProgressUseCaseImpl {
	return &ProgressUseCaseImpl{Catalog, Enrollment, Quiz, Store, Sync, Registry, Feed, PassingThreshold}
}

// tracker returns the shared tracker, opening it on first use
func (pu *ProgressUseCaseImpl) tracker(ctx context.Context, learner *Learner, courseID string) (*Tracker, error) {
	if learner == nil || learner.Credential.Empty() {
		return nil, domain.ErrUnauthenticated
	}
	return pu.Registry.Get(ctx, learner.ID, courseID, func(ctx context.Context) (*Tracker, error) {
		return pu.open(ctx, learner, courseID)
	})
}

func (pu *ProgressUseCaseImpl) open(ctx context.Context, learner *Learner, courseID string) (*Tracker, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "ProgressUseCaseImpl.open", "service")
	defer apmSpan.End()

	logger := logging.ExtractLoggerFromContext(ctx).With(zap.String("course.id", courseID))
	cred := learner.Credential

	course, err := pu.Catalog.GetCourse(ctx, cred, courseID)
	if err != nil {
		return nil, err
	}

	enrolled, err := pu.Enrollment.IsEnrolled(ctx, cred, courseID)
	if errors.Is(err, domain.ErrUnauthenticated) {
		return nil, err
	}
	if err != nil {
		// rechecked on the first completion
		logger.Warn("enrollment lookup failed", zap.Error(err))
	}

	completed, err := pu.Store.Load(ctx, learner.ID, courseID)
	if err != nil {
		logger.Warn("failed to load cached completions", zap.Error(err))
	}

	tracker, err := NewTracker(course, &TrackerOption{
		LearnerID:        learner.ID,
		Enrolled:         enrolled,
		Completed:        completed,
		PassingThreshold: pu.PassingThreshold,
		Store:            pu.Store,
		Sync:             pu.Sync,
	})
	if err != nil {
		return nil, err
	}
	if err := tracker.Reconcile(ctx, cred); errors.Is(err, domain.ErrUnauthenticated) {
		return nil, err
	}
	return tracker, nil
}

// snapshot fetches the quiz result when the quiz is open
func (pu *ProgressUseCaseImpl) snapshot(ctx context.Context, learner *Learner, tracker *Tracker) (*domain.ProgressSnapshot, error) {
	snap := tracker.Snapshot(nil)
	if !snap.QuizEligible {
		return &snap, nil
	}

	quiz, err := pu.Quiz.GetQuizResult(ctx, learner.Credential, tracker.Course().QuizID)
	if errors.Is(err, domain.ErrUnauthenticated) {
		return nil, err
	}
	if err != nil {
		logging.ExtractLoggerFromContext(ctx).Warn("failed to fetch quiz result",
			zap.String("quiz.id", tracker.Course().QuizID), zap.Error(err))
		return &snap, nil
	}
	snap = tracker.Snapshot(quiz)
	return &snap, nil
}

func (pu *ProgressUseCaseImpl) Snapshot(ctx context.Context, learner *Learner, courseID string) (*domain.ProgressSnapshot, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "ProgressUseCaseImpl.Snapshot", "service")
	defer apmSpan.End()

	tracker, err := pu.tracker(ctx, learner, courseID)
	if err != nil {
		return nil, err
	}
	return pu.snapshot(ctx, learner, tracker)
}

func (pu *ProgressUseCaseImpl) Outline(ctx context.Context, learner *Learner, courseID string) ([]*domain.ModuleOutline, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "ProgressUseCaseImpl.Outline", "service")
	defer apmSpan.End()

	tracker, err := pu.tracker(ctx, learner, courseID)
	if err != nil {
		return nil, err
	}
	return tracker.Outline(), nil
}

func (pu *ProgressUseCaseImpl) CanAccess(ctx context.Context, learner *Learner, courseID string, moduleIndex, lessonIndex int) (bool, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "ProgressUseCaseImpl.CanAccess", "service")
	defer apmSpan.End()

	tracker, err := pu.tracker(ctx, learner, courseID)
	if err != nil {
		return false, err
	}
	return tracker.CanAccess(moduleIndex, lessonIndex)
}

// MarkLessonComplete completes lessonID, re-checking enrollment once when the tracker says not enrolled
func (pu *ProgressUseCaseImpl) MarkLessonComplete(ctx context.Context, learner *Learner, courseID, lessonID string) (*domain.ProgressSnapshot, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "ProgressUseCaseImpl.MarkLessonComplete", "service")
	defer apmSpan.End()

	tracker, err := pu.tracker(ctx, learner, courseID)
	if err != nil {
		return nil, err
	}

	_, err = tracker.MarkLessonComplete(ctx, learner.Credential, lessonID)
	if errors.Is(err, domain.ErrNotEnrolled) {
		enrolled, lookupErr := pu.Enrollment.IsEnrolled(ctx, learner.Credential, courseID)
		if lookupErr != nil || !enrolled {
			return nil, domain.ErrNotEnrolled
		}
		tracker.SetEnrolled(true)
		_, err = tracker.MarkLessonComplete(ctx, learner.Credential, lessonID)
	}
	if err != nil {
		return nil, err
	}
	return pu.publish(ctx, learner, courseID, tracker)
}

func (pu *ProgressUseCaseImpl) Advance(ctx context.Context, learner *Learner, courseID string) (domain.Position, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "ProgressUseCaseImpl.Advance", "service")
	defer apmSpan.End()

	tracker, err := pu.tracker(ctx, learner, courseID)
	if err != nil {
		return domain.Position{}, err
	}
	p, err := tracker.Advance()
	if err != nil {
		return p, err
	}
	_, err = pu.publish(ctx, learner, courseID, tracker)
	return p, err
}

func (pu *ProgressUseCaseImpl) Retreat(ctx context.Context, learner *Learner, courseID string) (domain.Position, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "ProgressUseCaseImpl.Retreat", "service")
	defer apmSpan.End()

	tracker, err := pu.tracker(ctx, learner, courseID)
	if err != nil {
		return domain.Position{}, err
	}
	p, err := tracker.Retreat()
	if err != nil {
		return p, err
	}
	_, err = pu.publish(ctx, learner, courseID, tracker)
	return p, err
}

// Reconcile pulls the remote record and replays pending completions
func (pu *ProgressUseCaseImpl) Reconcile(ctx context.Context, learner *Learner, courseID string) (*domain.ProgressSnapshot, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "ProgressUseCaseImpl.Reconcile", "service")
	defer apmSpan.End()

	tracker, err := pu.tracker(ctx, learner, courseID)
	if err != nil {
		return nil, err
	}
	if err := tracker.Reconcile(ctx, learner.Credential); err != nil {
		return nil, err
	}
	return pu.publish(ctx, learner, courseID, tracker)
}

// Subscribe opens the tracker and subscribes to its snapshots, the current one is delivered first
func (pu *ProgressUseCaseImpl) Subscribe(ctx context.Context, learner *Learner, courseID string) (*Subscription, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "ProgressUseCaseImpl.Subscribe", "service")
	defer apmSpan.End()

	tracker, err := pu.tracker(ctx, learner, courseID)
	if err != nil {
		return nil, err
	}
	sub, err := pu.Feed.Subscribe(learner.ID, courseID)
	if err != nil {
		return nil, err
	}
	snap, err := pu.snapshot(ctx, learner, tracker)
	if err != nil {
		sub.Close()
		return nil, err
	}
	pu.Feed.Publish(learner.ID, courseID, *snap)
	return sub, nil
}

func (pu *ProgressUseCaseImpl) publish(ctx context.Context, learner *Learner, courseID string, tracker *Tracker) (*domain.ProgressSnapshot, error) {
	snap, err := pu.snapshot(ctx, learner, tracker)
	if err != nil {
		return nil, err
	}
	pu.Feed.Publish(learner.ID, courseID, *snap)
	return snap, nil
}
