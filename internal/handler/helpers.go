package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/opendiscourse/corpusd/internal/pkg/errcode"
	appErr "github.com/opendiscourse/corpusd/internal/pkg/errors"
	"github.com/opendiscourse/corpusd/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err != nil {
		requestID, _ := c.Get("request_id")
		logutil.GetLogger(c.Request.Context()).Error("request failed",
			zap.Any("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	switch {
	case err == nil:
		return
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, http.StatusUnauthorized, errcode.Unauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, http.StatusBadRequest, errcode.Invalid, "invalid request")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, http.StatusNotFound, errcode.NotFound, "not found")
	case errors.Is(err, appErr.ErrTooMany):
		response.Error(c, http.StatusTooManyRequests, errcode.TooMany, "too many requests")
	case errors.Is(err, appErr.ErrStoreUnavailable):
		response.Error(c, http.StatusBadGateway, errcode.StoreUnavailable, "store unavailable")
	case errors.Is(err, appErr.ErrDecodeFailure):
		response.Error(c, http.StatusUnprocessableEntity, errcode.DecodeFailure, "could not decode file content")
	default:
		response.Error(c, http.StatusInternalServerError, errcode.Internal, "internal error")
	}
}
