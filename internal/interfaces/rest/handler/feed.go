package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	infra "github.com/pot-code/course-progress/internal/infrastructure"
	"github.com/pot-code/course-progress/internal/infrastructure/auth"
	"github.com/pot-code/course-progress/internal/infrastructure/logging"
	"github.com/pot-code/course-progress/internal/progress"
	"go.uber.org/zap"
)

type ProgressFeedHandler struct {
	progressUseCase progress.ProgressUseCase
	jwtUtil         *auth.JWTUtil
	ws              *infra.Websocket
}

func NewProgressFeedHandler(ProgressUseCase progress.ProgressUseCase, JWTUtil *auth.JWTUtil, Websocket *infra.Websocket) *ProgressFeedHandler {
	return &ProgressFeedHandler{ProgressUseCase, JWTUtil, Websocket}
}

// HandleProgressFeed push every progress snapshot of the course until the peer goes away.
// Failures after the upgrade are sent as a RESTStandardError frame, then the socket is closed.
func (fh *ProgressFeedHandler) HandleProgressFeed(c echo.Context, conn *websocket.Conn, done <-chan struct{}) error {
	ctx := c.Request().Context()
	logger := logging.ExtractLoggerFromContext(ctx)

	sub, err := fh.progressUseCase.Subscribe(ctx, learnerFromContext(c, fh.jwtUtil), c.Param("course_id"))
	if err != nil {
		re, ok := DomainError(err)
		if !ok {
			logger.Error(err.Error())
			re = NewRESTStandardError(http.StatusInternalServerError, "")
		} else {
			logger.Debug(err.Error(), zap.String("error.type", re.Type))
		}
		fh.ws.WriteJSON(conn, re)
		return nil
	}
	defer sub.Close()

	for {
		select {
		case <-done:
			return nil
		case snap, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := fh.ws.WriteJSON(conn, snap); err != nil {
				logger.Debug("progress feed closed", zap.String("subscriber.id", sub.ID), zap.Error(err))
				return nil
			}
		}
	}
}
