package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pot-code/course-progress/internal/domain"
	"github.com/pot-code/course-progress/internal/infrastructure/logging"
	"github.com/pot-code/course-progress/internal/infrastructure/validate"
	"go.elastic.co/apm/module/apmhttp"
	"go.uber.org/zap"
)

// Config platform API options
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	QuizScale float64 // quiz scores above it are rejected, 0 skips the check
}

// Client platform REST API client, every call carries the learner's bearer credential
type Client struct {
	baseURL   string
	quizScale float64
	http      *http.Client
	validator validate.Validator
}

var (
	_ domain.CatalogProvider   = &Client{}
	_ domain.ProgressService   = &Client{}
	_ domain.QuizService       = &Client{}
	_ domain.EnrollmentService = &Client{}
)

// NewClient create a platform client, http defaults to an apm traced client with cfg.Timeout
func NewClient(cfg Config, validator validate.Validator, httpClient ...*http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	hc := apmhttp.WrapClient(&http.Client{Timeout: cfg.Timeout})
	if len(httpClient) > 0 && httpClient[0] != nil {
		hc = httpClient[0]
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		quizScale: cfg.QuizScale,
		http:      hc,
		validator: validator,
	}
}

type progressRequest struct {
	CourseID string `json:"courseId"`
	ModuleID string `json:"moduleId"`
	LessonID string `json:"lessonId"`
}

type enrollmentResponse struct {
	Enrolled bool `json:"enrolled"`
}

// GetCourse implement CatalogProvider
func (c *Client) GetCourse(ctx context.Context, cred domain.Credential, courseID string) (*domain.CourseModel, error) {
	course := new(domain.CourseModel)
	if err := c.do(ctx, cred, http.MethodGet, "/courses/"+url.PathEscape(courseID), nil, course); err != nil {
		return nil, err
	}
	if errs := c.validator.Struct(course); len(errs) > 0 {
		return nil, fmt.Errorf("%w: invalid course %s: %s", domain.ErrUnavailable, courseID, errs[0].Reason)
	}
	if err := course.Check(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return course, nil
}

// IsEnrolled implement EnrollmentService
func (c *Client) IsEnrolled(ctx context.Context, cred domain.Credential, courseID string) (bool, error) {
	res := new(enrollmentResponse)
	err := c.do(ctx, cred, http.MethodGet, "/courses/"+url.PathEscape(courseID)+"/enrollment", nil, res)
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrNotEnrolled) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res.Enrolled, nil
}

// CreateProgress implement ProgressService
func (c *Client) CreateProgress(ctx context.Context, cred domain.Credential, courseID, moduleID, lessonID string) error {
	return c.do(ctx, cred, http.MethodPost, "/progress", &progressRequest{courseID, moduleID, lessonID}, nil)
}

// UpdateProgress implement ProgressService
func (c *Client) UpdateProgress(ctx context.Context, cred domain.Credential, courseID, moduleID, lessonID string) (*domain.RemoteProgress, error) {
	res := new(domain.RemoteProgress)
	if err := c.do(ctx, cred, http.MethodPut, "/progress", &progressRequest{courseID, moduleID, lessonID}, res); err != nil {
		return nil, err
	}
	return res, nil
}

// GetProgress implement ProgressService
func (c *Client) GetProgress(ctx context.Context, cred domain.Credential, courseID string) (*domain.RemoteProgress, error) {
	res := new(domain.RemoteProgress)
	err := c.do(ctx, cred, http.MethodGet, "/progress/"+url.PathEscape(courseID), nil, res)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GetQuizResult implement QuizService
func (c *Client) GetQuizResult(ctx context.Context, cred domain.Credential, quizID string) (*domain.QuizResult, error) {
	res := new(domain.QuizResult)
	err := c.do(ctx, cred, http.MethodGet, "/quizzes/"+url.PathEscape(quizID)+"/result", nil, res)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if res.Score < 0 || (c.quizScale > 0 && res.Score > c.quizScale) {
		return nil, fmt.Errorf("%w: quiz score %v out of range", domain.ErrUnavailable, res.Score)
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, cred domain.Credential, method, path string, body, out interface{}) error {
	if cred.Empty() {
		return domain.ErrUnauthenticated
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+string(cred))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger := logging.ExtractLoggerFromContext(ctx).With(
		zap.String("http.request.method", method),
		zap.String("url.path", path),
	)
	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		logger.Warn("platform call failed", zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer res.Body.Close()
	logger.Debug("platform call",
		zap.Int("http.response.status_code", res.StatusCode),
		zap.Duration("event.duration", time.Since(start)))

	if err := statusError(res.StatusCode); err != nil {
		io.Copy(ioutil.Discard, res.Body)
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", domain.ErrUnavailable, method, path, err)
	}
	return nil
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return domain.ErrUnauthenticated
	case code == http.StatusForbidden:
		// credential accepted, access to the course refused
		return domain.ErrNotEnrolled
	case code == http.StatusNotFound:
		return domain.ErrNotFound
	case code == http.StatusConflict:
		return domain.ErrConflict
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: status %d", domain.ErrUnavailable, code)
	default:
		return fmt.Errorf("%w: status %d", domain.ErrRejected, code)
	}
}
