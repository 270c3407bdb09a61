package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pot-code/course-progress/internal/domain"
	"github.com/pot-code/course-progress/internal/infrastructure/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCred = domain.Credential("token")

const courseJSON = `{
  "id": "c1",
  "title": "Go basics",
  "quizId": "q1",
  "modules": [
    {"id": "m1", "lessons": [{"id": "L1"}, {"id": "L2"}]},
    {"id": "m2", "lessons": [{"id": "L3"}, {"id": "L4"}]}
  ]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", QuizScale: 20}, validate.NewValidator(), srv.Client())
}

func TestClient_GetCourse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/courses/c1":
			w.Write([]byte(courseJSON))
		case "/courses/broken":
			w.Write([]byte(`{"id": "broken", "modules": [{"id": "m1", "lessons": []}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	course, err := client.GetCourse(ctx, testCred, "c1")
	require.NoError(t, err)
	assert.Equal(t, 4, course.TotalLessons())
	assert.True(t, course.HasQuiz())

	_, err = client.GetCourse(ctx, testCred, "c9")
	assert.Equal(t, domain.ErrNotFound, err)

	_, err = client.GetCourse(ctx, testCred, "broken")
	assert.True(t, errors.Is(err, domain.ErrUnavailable))

	_, err = client.GetCourse(ctx, "", "c1")
	assert.Equal(t, domain.ErrUnauthenticated, err)
}

func TestClient_progress(t *testing.T) {
	var (
		mu      sync.Mutex
		created []progressRequest
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/progress":
			var body progressRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			for _, c := range created {
				if c == body {
					w.WriteHeader(http.StatusConflict)
					return
				}
			}
			created = append(created, body)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/progress":
			json.NewEncoder(w).Encode(map[string]int{"percentComplete": 25 * len(created)})
		case r.Method == http.MethodGet && r.URL.Path == "/progress/c1":
			w.Write([]byte(`{"percentComplete": 25, "completedLessons": ["L1"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	require.NoError(t, client.CreateProgress(ctx, testCred, "c1", "m1", "L1"))
	assert.Equal(t, domain.ErrConflict, client.CreateProgress(ctx, testCred, "c1", "m1", "L1"))
	mu.Lock()
	assert.Equal(t, []progressRequest{{"c1", "m1", "L1"}}, created)
	mu.Unlock()

	remote, err := client.UpdateProgress(ctx, testCred, "c1", "m1", "L1")
	require.NoError(t, err)
	assert.Equal(t, 25, remote.PercentComplete)

	remote, err = client.GetProgress(ctx, testCred, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"L1"}, remote.CompletedLessons)

	remote, err = client.GetProgress(ctx, testCred, "c2")
	require.NoError(t, err)
	assert.Nil(t, remote)
}

func TestClient_quizAndEnrollment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quizzes/q1/result":
			w.Write([]byte(`{"score": 17}`))
		case "/quizzes/q3/result":
			w.Write([]byte(`{"score": 85}`))
		case "/courses/c1/enrollment":
			w.Write([]byte(`{"enrolled": true}`))
		case "/courses/c3/enrollment":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	quiz, err := client.GetQuizResult(ctx, testCred, "q1")
	require.NoError(t, err)
	assert.Equal(t, 17.0, quiz.Score)

	quiz, err = client.GetQuizResult(ctx, testCred, "q2")
	require.NoError(t, err)
	assert.Nil(t, quiz)

	_, err = client.GetQuizResult(ctx, testCred, "q3")
	assert.True(t, errors.Is(err, domain.ErrUnavailable))

	enrolled, err := client.IsEnrolled(ctx, testCred, "c1")
	require.NoError(t, err)
	assert.True(t, enrolled)

	enrolled, err = client.IsEnrolled(ctx, testCred, "c2")
	require.NoError(t, err)
	assert.False(t, enrolled)

	enrolled, err = client.IsEnrolled(ctx, testCred, "c3")
	require.NoError(t, err)
	assert.False(t, enrolled)
}

func TestClient_statusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, domain.ErrUnauthenticated},
		{"forbidden", http.StatusForbidden, domain.ErrNotEnrolled},
		{"bad request", http.StatusBadRequest, domain.ErrRejected},
		{"unprocessable", http.StatusUnprocessableEntity, domain.ErrRejected},
		{"rate limited", http.StatusTooManyRequests, domain.ErrUnavailable},
		{"conflict", http.StatusConflict, domain.ErrConflict},
		{"server error", http.StatusInternalServerError, domain.ErrUnavailable},
		{"bad gateway", http.StatusBadGateway, domain.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := client.UpdateProgress(context.Background(), testCred, "c1", "m1", "L1")
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestClient_transportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewClient(Config{BaseURL: srv.URL}, validate.NewValidator())

	_, err := client.GetProgress(context.Background(), testCred, "c1")
	assert.True(t, errors.Is(err, domain.ErrUnavailable))
}
