package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/pot-code/course-progress/internal/domain"
	"github.com/pot-code/course-progress/internal/infrastructure/logging"
	"go.elastic.co/apm"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DeferredError a collaborator failure downgraded at the synchronizer boundary.
// It matches domain.ErrSyncDeferred and unwraps to the collaborator error.
type DeferredError struct {
	Op  string
	Err error
}

func (e *DeferredError) Error() string {
	return fmt.Sprintf("%s: %s: %v", domain.ErrSyncDeferred, e.Op, e.Err)
}

func (e *DeferredError) Unwrap() error {
	return e.Err
}

func (e *DeferredError) Is(target error) bool {
	return target == domain.ErrSyncDeferred
}

// Synchronizer reconciles local completions with the progress persistence service
type Synchronizer struct {
	Progress domain.ProgressService
	creates  singleflight.Group
}

// NewSynchronizer .
func NewSynchronizer(Progress domain.ProgressService) *Synchronizer {
	return &Synchronizer{Progress: Progress}
}

// Push ensures a remote record exists for the lesson, then returns the authoritative percentage.
//
// Concurrent creates of the same record share one call, and an existing record counts as created.
func (s *Synchronizer) Push(ctx context.Context, cred domain.Credential, courseID, moduleID, lessonID string) (int, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "Synchronizer.Push", "service")
	defer apmSpan.End()

	if cred.Empty() {
		return 0, domain.ErrUnauthenticated
	}

	key := fmt.Sprintf("%s|%s|%s|%s", cred, courseID, moduleID, lessonID)
	_, err, _ := s.creates.Do(key, func() (interface{}, error) {
		err := s.Progress.CreateProgress(ctx, cred, courseID, moduleID, lessonID)
		if errors.Is(err, domain.ErrConflict) {
			return nil, nil
		}
		return nil, err
	})
	if err != nil {
		return 0, s.downgrade(ctx, "createProgress", err)
	}

	remote, err := s.Progress.UpdateProgress(ctx, cred, courseID, moduleID, lessonID)
	if err != nil {
		return 0, s.downgrade(ctx, "updateProgress", err)
	}
	if remote == nil {
		return 0, s.downgrade(ctx, "updateProgress", errors.New("empty response"))
	}
	return remote.PercentComplete, nil
}

// Pull fetches the remote record, nil when the learner has none yet
func (s *Synchronizer) Pull(ctx context.Context, cred domain.Credential, courseID string) (*domain.RemoteProgress, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "Synchronizer.Pull", "service")
	defer apmSpan.End()

	if cred.Empty() {
		return nil, domain.ErrUnauthenticated
	}
	remote, err := s.Progress.GetProgress(ctx, cred, courseID)
	if err != nil {
		return nil, s.downgrade(ctx, "getProgress", err)
	}
	return remote, nil
}

// downgrade keeps credential failures visible, everything else becomes a DeferredError
func (s *Synchronizer) downgrade(ctx context.Context, op string, err error) error {
	if errors.Is(err, domain.ErrUnauthenticated) {
		return err
	}
	logging.ExtractLoggerFromContext(ctx).Warn("progress sync deferred",
		zap.String("sync.op", op), zap.Error(err))
	return &DeferredError{Op: op, Err: err}
}
