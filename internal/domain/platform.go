package domain

import "context"

// Credential bearer token of the learner, passed explicitly into every platform call
type Credential string

// Empty whether no credential was supplied
func (c Credential) Empty() bool {
	return c == ""
}

// CatalogProvider returns course structures
type CatalogProvider interface {
	GetCourse(ctx context.Context, cred Credential, courseID string) (*CourseModel, error)
}

// ProgressService durable store of per-lesson completion
type ProgressService interface {
	// CreateProgress is idempotent; an existing record fails with ErrConflict
	CreateProgress(ctx context.Context, cred Credential, courseID, moduleID, lessonID string) error
	UpdateProgress(ctx context.Context, cred Credential, courseID, moduleID, lessonID string) (*RemoteProgress, error)
	// GetProgress returns nil without error when no record exists
	GetProgress(ctx context.Context, cred Credential, courseID string) (*RemoteProgress, error)
}

// QuizService quiz results
type QuizService interface {
	// GetQuizResult returns nil without error when the quiz was not taken
	GetQuizResult(ctx context.Context, cred Credential, quizID string) (*QuizResult, error)
}

// EnrollmentService enrollment lookups
type EnrollmentService interface {
	IsEnrolled(ctx context.Context, cred Credential, courseID string) (bool, error)
}
