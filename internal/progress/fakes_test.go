package progress

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pot-code/course-progress/internal/domain"
)

const testCred = domain.Credential("token")

// twoByTwo L1,L2 in module m1 and L3,L4 in module m2
func twoByTwo(quizID string) *domain.CourseModel {
	return &domain.CourseModel{
		ID:     "c1",
		Title:  "Go basics",
		QuizID: quizID,
		Modules: []*domain.ModuleModel{
			{ID: "m1", Lessons: []*domain.LessonModel{{ID: "L1"}, {ID: "L2"}}},
			{ID: "m2", Lessons: []*domain.LessonModel{{ID: "L3"}, {ID: "L4"}}},
		},
	}
}

type fakeProgressService struct {
	total       int
	createDelay time.Duration
	onCreate    func() // runs before the record is written
	creates     int32
	pulls       int32

	mu      sync.Mutex
	err     error
	records map[string]struct{}
}

var _ domain.ProgressService = &fakeProgressService{}

func newFakeProgressService(total int, existing ...string) *fakeProgressService {
	f := &fakeProgressService{total: total, records: make(map[string]struct{})}
	for _, id := range existing {
		f.records[id] = struct{}{}
	}
	return f
}

func (f *fakeProgressService) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeProgressService) percent() int {
	return int(math.Round(100 * float64(len(f.records)) / float64(f.total)))
}

func (f *fakeProgressService) CreateProgress(ctx context.Context, cred domain.Credential, courseID, moduleID, lessonID string) error {
	atomic.AddInt32(&f.creates, 1)
	if f.createDelay > 0 {
		time.Sleep(f.createDelay)
	}
	if f.onCreate != nil {
		f.onCreate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.records[lessonID]; ok {
		return domain.ErrConflict
	}
	f.records[lessonID] = struct{}{}
	return nil
}

func (f *fakeProgressService) UpdateProgress(ctx context.Context, cred domain.Credential, courseID, moduleID, lessonID string) (*domain.RemoteProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &domain.RemoteProgress{PercentComplete: f.percent()}, nil
}

func (f *fakeProgressService) GetProgress(ctx context.Context, cred domain.Credential, courseID string) (*domain.RemoteProgress, error) {
	atomic.AddInt32(&f.pulls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.records) == 0 {
		return nil, nil
	}
	lessons := make([]string, 0, len(f.records))
	for id := range f.records {
		lessons = append(lessons, id)
	}
	sort.Strings(lessons)
	return &domain.RemoteProgress{PercentComplete: f.percent(), CompletedLessons: lessons}, nil
}

type memStore struct {
	mu   sync.Mutex
	sets map[string]map[string]struct{}
	err  error
}

var _ CompletionStore = &memStore{}

func newMemStore() *memStore {
	return &memStore{sets: make(map[string]map[string]struct{})}
}

func (m *memStore) Load(ctx context.Context, learnerID, courseID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var result []string
	for id := range m.sets[sessionKey(learnerID, courseID)] {
		result = append(result, id)
	}
	sort.Strings(result)
	return result, nil
}

func (m *memStore) Add(ctx context.Context, learnerID, courseID, lessonID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	key := sessionKey(learnerID, courseID)
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	if _, ok := set[lessonID]; ok {
		return false, nil
	}
	set[lessonID] = struct{}{}
	return true, nil
}

func (m *memStore) AddAll(ctx context.Context, learnerID, courseID string, lessonIDs []string) (int, error) {
	n := 0
	for _, id := range lessonIDs {
		added, err := m.Add(ctx, learnerID, courseID, id)
		if err != nil {
			return n, err
		}
		if added {
			n++
		}
	}
	return n, nil
}

type fakeCatalog struct {
	courses map[string]*domain.CourseModel
	calls   int32
}

func (f *fakeCatalog) GetCourse(ctx context.Context, cred domain.Credential, courseID string) (*domain.CourseModel, error) {
	atomic.AddInt32(&f.calls, 1)
	if cred.Empty() {
		return nil, domain.ErrUnauthenticated
	}
	c, ok := f.courses[courseID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

type fakeEnrollment struct {
	enrolled int32
	err      error
}

func (f *fakeEnrollment) enroll() {
	atomic.StoreInt32(&f.enrolled, 1)
}

func (f *fakeEnrollment) IsEnrolled(ctx context.Context, cred domain.Credential, courseID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return atomic.LoadInt32(&f.enrolled) == 1, nil
}

type fakeQuiz struct {
	result *domain.QuizResult
	err    error
}

func (f *fakeQuiz) GetQuizResult(ctx context.Context, cred domain.Credential, quizID string) (*domain.QuizResult, error) {
	return f.result, f.err
}

type sequenceIDs struct {
	n int32
}

func (s *sequenceIDs) Generate() (string, error) {
	return "sub-" + string(rune('a'+atomic.AddInt32(&s.n, 1)-1)), nil
}
