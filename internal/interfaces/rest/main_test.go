package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dgrijalva/jwt-go"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pot-code/course-progress/internal/domain"
	infra "github.com/pot-code/course-progress/internal/infrastructure"
	"github.com/pot-code/course-progress/internal/infrastructure/auth"
	"github.com/pot-code/course-progress/internal/infrastructure/driver"
	"github.com/pot-code/course-progress/internal/infrastructure/uuid"
	"github.com/pot-code/course-progress/internal/interfaces/rest/handler"
	"github.com/pot-code/course-progress/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProgressUseCase struct {
	err     error
	learner *progress.Learner
	feed    *progress.Feed
	access  bool
}

var _ progress.ProgressUseCase = &fakeProgressUseCase{}

func (f *fakeProgressUseCase) snapshot(learner *progress.Learner, courseID string) (*domain.ProgressSnapshot, error) {
	f.learner = learner
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ProgressSnapshot{CourseID: courseID, PercentComplete: 25, CompletedLessons: 1, TotalLessons: 4}, nil
}

func (f *fakeProgressUseCase) Snapshot(ctx context.Context, learner *progress.Learner, courseID string) (*domain.ProgressSnapshot, error) {
	return f.snapshot(learner, courseID)
}

func (f *fakeProgressUseCase) Outline(ctx context.Context, learner *progress.Learner, courseID string) ([]*domain.ModuleOutline, error) {
	f.learner = learner
	if f.err != nil {
		return nil, f.err
	}
	return []*domain.ModuleOutline{{ID: "m1", Lessons: []*domain.LessonOutline{{ID: "L1", State: domain.LessonUnlocked}}}}, nil
}

func (f *fakeProgressUseCase) CanAccess(ctx context.Context, learner *progress.Learner, courseID string, moduleIndex, lessonIndex int) (bool, error) {
	f.learner = learner
	return f.access, f.err
}

func (f *fakeProgressUseCase) MarkLessonComplete(ctx context.Context, learner *progress.Learner, courseID, lessonID string) (*domain.ProgressSnapshot, error) {
	return f.snapshot(learner, courseID)
}

func (f *fakeProgressUseCase) Advance(ctx context.Context, learner *progress.Learner, courseID string) (domain.Position, error) {
	f.learner = learner
	return domain.Position{Module: 0, Lesson: 1}, f.err
}

func (f *fakeProgressUseCase) Retreat(ctx context.Context, learner *progress.Learner, courseID string) (domain.Position, error) {
	f.learner = learner
	return domain.Position{}, f.err
}

func (f *fakeProgressUseCase) Reconcile(ctx context.Context, learner *progress.Learner, courseID string) (*domain.ProgressSnapshot, error) {
	return f.snapshot(learner, courseID)
}

func (f *fakeProgressUseCase) Subscribe(ctx context.Context, learner *progress.Learner, courseID string) (*progress.Subscription, error) {
	f.learner = learner
	if f.err != nil {
		return nil, f.err
	}
	return f.feed.Subscribe(learner.ID, courseID)
}

type testServer struct {
	app   *echo.Echo
	uc    *fakeProgressUseCase
	kv    *driver.RedisClient
	mr    *miniredis.Miniredis
	jwt   *auth.JWTUtil
	token string
}

func newTestConfig() *infra.AppConfig {
	option := new(infra.AppConfig)
	option.AppID = "course-progress"
	option.Env = infra.EnvProduction
	option.RequestTimeout = 5 * time.Second
	option.Security.IDLength = 16
	option.Security.JWTMethod = "HS256"
	option.Security.JWTSecret = "secret"
	option.Security.TokenName = "token"
	return option
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	kv := driver.WrapRedisClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	option := newTestConfig()
	uc := &fakeProgressUseCase{feed: progress.NewFeed(uuid.NewNanoIDGenerator(8))}
	ju := auth.NewJWTUtil(option.Security.JWTMethod, option.Security.JWTSecret, option.Security.TokenName)
	token, err := ju.Sign(&auth.AppTokenClaims{
		UID:            "u1",
		StandardClaims: jwt.StandardClaims{ExpiresAt: time.Now().Add(time.Hour).Unix()},
	})
	require.NoError(t, err)

	return &testServer{
		app:   NewServer(nil, kv, option, uc, zap.NewNop()),
		uc:    uc,
		kv:    kv,
		mr:    mr,
		jwt:   ju,
		token: token,
	}
}

func (ts *testServer) close() {
	ts.kv.Close()
	ts.mr.Close()
}

func (ts *testServer) do(method, target string, authorized bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if authorized {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+ts.token)
	}
	rec := httptest.NewRecorder()
	ts.app.ServeHTTP(rec, req)
	return rec
}

func TestServer_routes(t *testing.T) {
	ts := newTestServer(t)
	defer ts.close()

	tests := []struct {
		method string
		target string
		want   string
	}{
		{http.MethodGet, "/api/v1/courses/c1/progress", `"percentComplete":25`},
		{http.MethodGet, "/api/v1/courses/c1/outline", `"state":"unlocked"`},
		{http.MethodPost, "/api/v1/courses/c1/lessons/L1/complete", `"completedLessons":1`},
		{http.MethodPost, "/api/v1/courses/c1/advance", `"active":{"module":0,"lesson":1}`},
		{http.MethodPost, "/api/v1/courses/c1/retreat", `"active":{"module":0,"lesson":0}`},
		{http.MethodPost, "/api/v1/courses/c1/sync", `"courseId":"c1"`},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := ts.do(tt.method, tt.target, true)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
			require.NotNil(t, ts.uc.learner)
			assert.Equal(t, "u1", ts.uc.learner.ID)
			assert.Equal(t, domain.Credential(ts.token), ts.uc.learner.Credential)

			rec = ts.do(tt.method, tt.target, false)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestServer_canAccess(t *testing.T) {
	ts := newTestServer(t)
	defer ts.close()
	ts.uc.access = true

	rec := ts.do(http.MethodGet, "/api/v1/courses/c1/access?module=1&lesson=0", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"module":1,"lesson":0,"access":true}`, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/v1/courses/c1/access?module=x", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_params")
}

func TestServer_domainErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantType string
	}{
		{"deferred", &progress.DeferredError{Op: "push", Err: domain.ErrUnavailable}, http.StatusServiceUnavailable, "SyncDeferred"},
		{"out of bounds", fmt.Errorf("%w: (9,9)", domain.ErrOutOfBounds), http.StatusBadRequest, "OutOfBounds"},
		{"unauthenticated", domain.ErrUnauthenticated, http.StatusUnauthorized, "Unauthenticated"},
		{"not enrolled", domain.ErrNotEnrolled, http.StatusForbidden, "NotEnrolled"},
		{"not found", domain.ErrNotFound, http.StatusNotFound, "NotFound"},
		{"lesson not complete", domain.ErrLessonNotComplete, http.StatusConflict, "LessonNotComplete"},
		{"lesson locked", fmt.Errorf("%w: L4", domain.ErrLessonLocked), http.StatusConflict, "LessonLocked"},
		{"rejected", fmt.Errorf("%w: status 400", domain.ErrRejected), http.StatusBadGateway, "Rejected"},
		{"end of course", domain.ErrEndOfCourse, http.StatusConflict, "EndOfCourse"},
		{"already at start", domain.ErrAlreadyAtStart, http.StatusConflict, "AlreadyAtStart"},
		{"unavailable", fmt.Errorf("%w: GET https://platform.internal/progress/c1: dial tcp 10.0.0.7:443", domain.ErrUnavailable),
			http.StatusServiceUnavailable, "Unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			defer ts.close()
			ts.uc.err = tt.err

			rec := ts.do(http.MethodPost, "/api/v1/courses/c1/advance", true)
			assert.Equal(t, tt.wantCode, rec.Code)

			var body handler.RESTStandardError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantType, body.Type)
			assert.Equal(t, rec.Header().Get(echo.HeaderXRequestID), body.TraceID)
			assert.NotContains(t, rec.Body.String(), "platform.internal")
			assert.NotContains(t, rec.Body.String(), "status 400")
		})
	}
}

func TestServer_unexpectedError(t *testing.T) {
	ts := newTestServer(t)
	defer ts.close()
	ts.uc.err = errors.New("boom")

	rec := ts.do(http.MethodGet, "/api/v1/courses/c1/progress", true)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestServer_signOut(t *testing.T) {
	ts := newTestServer(t)
	defer ts.close()

	rec := ts.do(http.MethodPut, "/api/v1/session/sign-out", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ts.mr.Exists(handler.BlacklistKey(ts.token)))
	assert.True(t, ts.mr.TTL(handler.BlacklistKey(ts.token)) > 0)

	rec = ts.do(http.MethodGet, "/api/v1/courses/c1/progress", true)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodPut, "/api/v1/session/sign-out", false)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_healthz(t *testing.T) {
	ts := newTestServer(t)
	defer ts.close()

	rec := ts.do(http.MethodGet, "/healthz", false)
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.mr.SetError("LOADING")
	rec = ts.do(http.MethodGet, "/healthz", false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_progressFeed(t *testing.T) {
	ts := newTestServer(t)
	defer ts.close()
	srv := httptest.NewServer(ts.app)
	defer srv.Close()

	header := http.Header{}
	header.Set(echo.HeaderAuthorization, "Bearer "+ts.token)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws/progress/c1"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return ts.uc.feed.Subscribers("u1", "c1") == 1
	}, time.Second, 10*time.Millisecond)
	ts.uc.feed.Publish("u1", "c1", domain.ProgressSnapshot{CourseID: "c1", PercentComplete: 50})

	var snap domain.ProgressSnapshot
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, 50, snap.PercentComplete)

	_, _, err = websocket.DefaultDialer.Dial(url, nil)
	assert.Error(t, err)
}
