package domain

import "errors"

// ErrOutOfBounds invalid module/lesson index or unknown lesson, a programming error
var ErrOutOfBounds = errors.New("position is out of course bounds")

// ErrNotEnrolled learner must enroll before completing lessons
var ErrNotEnrolled = errors.New("learner is not enrolled in this course")

// ErrLessonNotComplete current lesson must be completed before advancing
var ErrLessonNotComplete = errors.New("current lesson is not complete")

// ErrLessonLocked lessons before it must be completed first
var ErrLessonLocked = errors.New("lesson is locked")

// ErrEndOfCourse already at the last lesson of the last module
var ErrEndOfCourse = errors.New("end of course")

// ErrAlreadyAtStart already at the first lesson of the first module
var ErrAlreadyAtStart = errors.New("already at start")

// ErrNotFound resource does not exist on the platform
var ErrNotFound = errors.New("resource not found")

// ErrUnavailable platform could not be reached or failed
var ErrUnavailable = errors.New("platform unavailable")

// ErrConflict record already exists
var ErrConflict = errors.New("record already exists")

// ErrRejected platform refused the request for a reason other than the ones above
var ErrRejected = errors.New("platform rejected the request")

// ErrUnauthenticated no bearer credential, or the platform rejected it
var ErrUnauthenticated = errors.New("missing or rejected credential")

// ErrSyncDeferred local state was applied but the remote round trip failed
var ErrSyncDeferred = errors.New("progress sync deferred")

// IsBoundarySignal reports whether err is an expected navigation boundary rather than a failure
func IsBoundarySignal(err error) bool {
	return errors.Is(err, ErrLessonNotComplete) ||
		errors.Is(err, ErrLessonLocked) ||
		errors.Is(err, ErrEndOfCourse) ||
		errors.Is(err, ErrAlreadyAtStart)
}
