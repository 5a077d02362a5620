package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/consultrag/internal/middleware"
	"github.com/xxxsen/consultrag/internal/pkg/errcode"
	appErr "github.com/xxxsen/consultrag/internal/pkg/errors"
	"github.com/xxxsen/consultrag/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserIDKey)
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Error(err),
	)
	switch {
	case errors.Is(err, appErr.ErrInvalid), errors.Is(err, appErr.ErrValidation):
		response.Error(c, errcode.ErrInvalid, "")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "")
	case errors.Is(err, appErr.ErrStorage):
		response.Error(c, errcode.ErrStorage, "")
	case errors.Is(err, appErr.ErrRemoteService), errors.Is(err, appErr.ErrUnavailable):
		response.Error(c, errcode.ErrAIUnavailable, "")
	default:
		response.Error(c, errcode.ErrInternal, "")
	}
}
