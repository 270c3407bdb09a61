package progress

import "context"

// CompletionStore local cache of the completion set of one learner in one course
type CompletionStore interface {
	Load(ctx context.Context, learnerID, courseID string) ([]string, error)
	// Add reports whether lessonID was newly inserted
	Add(ctx context.Context, learnerID, courseID, lessonID string) (bool, error)
	// AddAll inserts lessonIDs at once and returns how many were new
	AddAll(ctx context.Context, learnerID, courseID string, lessonIDs []string) (int, error)
}
