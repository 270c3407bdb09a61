package progress

import (
	"context"

	"github.com/pot-code/course-progress/internal/domain"
)

// Learner caller identity, taken from the verified bearer token
type Learner struct {
	ID         string
	Credential domain.Credential
}

// ProgressUseCase operations exposed to the presentation layer
type ProgressUseCase interface {
	Snapshot(ctx context.Context, learner *Learner, courseID string) (*domain.ProgressSnapshot, error)
	Outline(ctx context.Context, learner *Learner, courseID string) ([]*domain.ModuleOutline, error)
	CanAccess(ctx context.Context, learner *Learner, courseID string, moduleIndex, lessonIndex int) (bool, error)
	MarkLessonComplete(ctx context.Context, learner *Learner, courseID, lessonID string) (*domain.ProgressSnapshot, error)
	Advance(ctx context.Context, learner *Learner, courseID string) (domain.Position, error)
	Retreat(ctx context.Context, learner *Learner, courseID string) (domain.Position, error)
	Reconcile(ctx context.Context, learner *Learner, courseID string) (*domain.ProgressSnapshot, error)
	Subscribe(ctx context.Context, learner *Learner, courseID string) (*Subscription, error)
}
