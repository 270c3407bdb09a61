package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/course-progress/internal/domain"
	"github.com/pot-code/course-progress/internal/infrastructure/auth"
	"github.com/pot-code/course-progress/internal/infrastructure/validate"
	"github.com/pot-code/course-progress/internal/progress"
)

type ProgressHandler struct {
	progressUseCase progress.ProgressUseCase
	validator       validate.Validator
	jwtUtil         *auth.JWTUtil
}

func NewProgressHandler(
	ProgressUseCase progress.ProgressUseCase,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
) *ProgressHandler {
	return &ProgressHandler{ProgressUseCase, Validator, JWTUtil}
}

type accessQuery struct {
	Module string `query:"module" validate:"required,numeric"`
	Lesson string `query:"lesson" validate:"required,numeric"`
}

type accessResponse struct {
	Module int  `json:"module"`
	Lesson int  `json:"lesson"`
	Access bool `json:"access"`
}

type positionResponse struct {
	Active domain.Position `json:"active"`
}

// learnerFromContext identity verified by the VerifyToken middleware, nil when absent
func learnerFromContext(c echo.Context, ju *auth.JWTUtil) *progress.Learner {
	claims := ju.GetContextToken(c)
	if claims == nil {
		return nil
	}
	return &progress.Learner{
		ID:         claims.UID,
		Credential: domain.Credential(ju.GetContextRawToken(c)),
	}
}

func (ph *ProgressHandler) HandleGetProgress(c echo.Context) error {
	snap, err := ph.progressUseCase.Snapshot(c.Request().Context(), learnerFromContext(c, ph.jwtUtil), c.Param("course_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (ph *ProgressHandler) HandleGetOutline(c echo.Context) error {
	outline, err := ph.progressUseCase.Outline(c.Request().Context(), learnerFromContext(c, ph.jwtUtil), c.Param("course_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, outline)
}

func (ph *ProgressHandler) HandleCanAccess(c echo.Context) error {
	query := &accessQuery{
		Module: c.QueryParam("module"),
		Lesson: c.QueryParam("lesson"),
	}
	if errs := ph.validator.StructLocale(query, c.Request().Header.Get("Accept-Language")); len(errs) > 0 {
		return respondValidationError(c, errs)
	}
	module, errM := strconv.Atoi(query.Module)
	lesson, errL := strconv.Atoi(query.Lesson)
	if errM != nil || errL != nil {
		return respondValidationError(c, []*validate.FieldError{
			validate.NewFieldError("module,lesson", "module and lesson must be integers"),
		})
	}

	ok, err := ph.progressUseCase.CanAccess(c.Request().Context(), learnerFromContext(c, ph.jwtUtil), c.Param("course_id"), module, lesson)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, &accessResponse{Module: module, Lesson: lesson, Access: ok})
}

func (ph *ProgressHandler) HandleCompleteLesson(c echo.Context) error {
	snap, err := ph.progressUseCase.MarkLessonComplete(c.Request().Context(), learnerFromContext(c, ph.jwtUtil),
		c.Param("course_id"), c.Param("lesson_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (ph *ProgressHandler) HandleAdvance(c echo.Context) error {
	p, err := ph.progressUseCase.Advance(c.Request().Context(), learnerFromContext(c, ph.jwtUtil), c.Param("course_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, &positionResponse{p})
}

func (ph *ProgressHandler) HandleRetreat(c echo.Context) error {
	p, err := ph.progressUseCase.Retreat(c.Request().Context(), learnerFromContext(c, ph.jwtUtil), c.Param("course_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, &positionResponse{p})
}

func (ph *ProgressHandler) HandleSync(c echo.Context) error {
	snap, err := ph.progressUseCase.Reconcile(c.Request().Context(), learnerFromContext(c, ph.jwtUtil), c.Param("course_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}
