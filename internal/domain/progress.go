package domain

// LessonState per-lesson state machine: Locked -> Unlocked -> Completed
type LessonState string

const (
	LessonLocked    LessonState = "locked"
	LessonUnlocked  LessonState = "unlocked"
	LessonCompleted LessonState = "completed"
)

// ProgressSnapshot derived view of a learner's progress, never stored
type ProgressSnapshot struct {
	CourseID            string   `json:"courseId"`
	PercentComplete     int      `json:"percentComplete"`
	IsCourseFinished    bool     `json:"isCourseFinished"`
	QuizEligible        bool     `json:"quizEligible"`
	CertificateEligible bool     `json:"certificateEligible"`
	QuizScore           *float64 `json:"quizScore,omitempty"`
	Active              Position `json:"active"`
	CompletedLessons    int      `json:"completedLessons"`
	TotalLessons        int      `json:"totalLessons"`
	PendingSync         int      `json:"pendingSync"`
}

// RemoteProgress progress record as reported by the persistence service
type RemoteProgress struct {
	PercentComplete  int      `json:"percentComplete"`
	CompletedLessons []string `json:"completedLessons,omitempty"`
}

// QuizResult learner's result on the course quiz
type QuizResult struct {
	Score float64 `json:"score"`
}

// LessonOutline lesson entry of the course outline
type LessonOutline struct {
	ID    string      `json:"id"`
	Title string      `json:"title"`
	State LessonState `json:"state"`
}

// ModuleOutline module entry of the course outline
type ModuleOutline struct {
	ID      string           `json:"id"`
	Title   string           `json:"title"`
	Lessons []*LessonOutline `json:"lessons"`
}
