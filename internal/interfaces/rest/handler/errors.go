package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/course-progress/internal/domain"
	"github.com/pot-code/course-progress/internal/infrastructure/logging"
	"github.com/pot-code/course-progress/internal/infrastructure/validate"
	"go.uber.org/zap"
)

// RESTStandardError response error
type RESTStandardError struct {
	Type    string `json:"type,omitempty"`
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Detail  string `json:"detail,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

func NewRESTStandardError(code int, detail string) *RESTStandardError {
	return &RESTStandardError{
		Code:   code,
		Title:  http.StatusText(code),
		Detail: detail,
	}
}

func (re RESTStandardError) Error() string {
	return re.Detail
}

func (re RESTStandardError) SetTraceID(traceID string) RESTStandardError {
	re.TraceID = traceID
	return re
}

func (re RESTStandardError) SetType(typ string) RESTStandardError {
	re.Type = typ
	return re
}

// RESTValidationError standard validation error
type RESTValidationError struct {
	RESTStandardError
	InvalidParams []*validate.FieldError `json:"invalid_params"`
}

func NewRESTValidationError(code int, detail string, internal []*validate.FieldError) *RESTValidationError {
	return &RESTValidationError{
		RESTStandardError: RESTStandardError{
			Code:   code,
			Title:  http.StatusText(code),
			Detail: detail,
		},
		InvalidParams: internal,
	}
}

func (rve RESTValidationError) Error() string {
	return rve.Detail
}

func (rve RESTValidationError) SetTraceID(traceID string) RESTValidationError {
	rve.RESTStandardError.TraceID = traceID
	return rve
}

// domain error -> status, type; deferred syncs first, they wrap other domain errors
var domainErrors = []struct {
	err    error
	status int
	typ    string
}{
	{domain.ErrSyncDeferred, http.StatusServiceUnavailable, "SyncDeferred"},
	{domain.ErrOutOfBounds, http.StatusBadRequest, "OutOfBounds"},
	{domain.ErrUnauthenticated, http.StatusUnauthorized, "Unauthenticated"},
	{domain.ErrNotEnrolled, http.StatusForbidden, "NotEnrolled"},
	{domain.ErrNotFound, http.StatusNotFound, "NotFound"},
	{domain.ErrLessonNotComplete, http.StatusConflict, "LessonNotComplete"},
	{domain.ErrLessonLocked, http.StatusConflict, "LessonLocked"},
	{domain.ErrEndOfCourse, http.StatusConflict, "EndOfCourse"},
	{domain.ErrAlreadyAtStart, http.StatusConflict, "AlreadyAtStart"},
	{domain.ErrUnavailable, http.StatusServiceUnavailable, "Unavailable"},
	{domain.ErrRejected, http.StatusBadGateway, "Rejected"},
}

// DomainError maps err to a REST error, ok is false for unexpected errors.
// Detail carries the sentinel message only, wrapped causes stay server side.
func DomainError(err error) (re *RESTStandardError, ok bool) {
	for _, de := range domainErrors {
		if errors.Is(err, de.err) {
			re = NewRESTStandardError(de.status, de.err.Error())
			re.Type = de.typ
			return re, true
		}
	}
	return nil, false
}

// respondError writes known domain errors, anything else goes to the error handling middleware
func respondError(c echo.Context, err error) error {
	re, ok := DomainError(err)
	if !ok {
		return err
	}
	logger := logging.ExtractLoggerFromContext(c.Request().Context())
	if domain.IsBoundarySignal(err) || re.Code < http.StatusInternalServerError {
		logger.Debug(err.Error(), zap.String("error.type", re.Type))
	} else {
		logger.Warn(err.Error(), zap.String("error.type", re.Type))
	}
	traceID := c.Response().Header().Get(echo.HeaderXRequestID)
	return c.JSON(re.Code, re.SetTraceID(traceID))
}

func respondValidationError(c echo.Context, errs []*validate.FieldError) error {
	traceID := c.Response().Header().Get(echo.HeaderXRequestID)
	return c.JSON(http.StatusBadRequest,
		NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", errs).SetTraceID(traceID))
}
