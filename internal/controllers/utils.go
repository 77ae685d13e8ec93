package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
	"maunium.net/go/mautrix"

	"github.com/tchapgouv/rps/internal/model"
	"github.com/tchapgouv/rps/internal/utils"
)

var (
	rls         = map[rate.Limit]echo.MiddlewareFunc{}
	mBadRequest = utils.MustJSON(&model.MatrixError{
		Code:    "M_INVALID_PARAM",
		Message: "invalid request parameter",
	})
)

func getRL(limit rate.Limit) echo.MiddlewareFunc {
	rl, ok := rls[limit]
	if ok {
		return rl
	}
	cfg := middleware.DefaultRateLimiterConfig
	cfg.Skipper = func(c echo.Context) bool {
		return c.Request().Method == http.MethodOptions
	}
	cfg.ErrorHandler = func(c echo.Context, err error) error {
		message := "error while extracting identifier" // default message from middleware
		if err != nil {
			message = err.Error()
		}
		return c.JSONBlob(http.StatusForbidden, utils.MustJSON(&model.MatrixError{
			Code:    "M_FORBIDDEN",
			Message: message,
		}))
	}
	cfg.DenyHandler = func(c echo.Context, _ string, _ error) error {
		c.Response().Header().Set(echo.HeaderRetryAfter, "10")
		return c.JSONBlob(http.StatusTooManyRequests, utils.MustJSON(&model.MatrixError{
			Code:    "M_LIMIT_EXCEEDED",
			Message: "rate limit exceeded",
		}))
	}
	cfg.Store = middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      limit,
		Burst:     int(limit),
		ExpiresIn: 5 * time.Minute,
	})
	rls[limit] = middleware.RateLimiterWithConfig(cfg)
	return rls[limit]
}

// matrixError maps a service error onto a matrix-style error response,
// preserving the homeserver's error code and status when one is available
func matrixError(c echo.Context, err error) error {
	var httpErr mautrix.HTTPError
	if errors.As(err, &httpErr) && httpErr.RespError != nil {
		status := http.StatusBadGateway
		if httpErr.Response != nil {
			status = httpErr.Response.StatusCode
		}
		return c.JSON(status, &model.MatrixError{
			Code:    httpErr.RespError.ErrCode,
			Message: httpErr.RespError.Err,
		})
	}
	return c.JSON(http.StatusInternalServerError, &model.MatrixError{
		Code:    "M_UNKNOWN",
		Message: err.Error(),
	})
}

func badRequest(c echo.Context) error {
	return c.JSONBlob(http.StatusBadRequest, mBadRequest)
}
