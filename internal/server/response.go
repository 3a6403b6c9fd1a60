package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rcliao/studymap/internal/apperr"
	"github.com/rcliao/studymap/internal/study"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// respondError writes the error envelope. The status comes from the error
// kind; server-side failures are logged, validation failures are not.
func (s *Server) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			"request_id", c.GetString(ctxRequestID),
			"path", c.FullPath(),
			"status", status,
			"error", err,
		)
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: APIError{
		Message: study.Describe(err),
		Code:    apperr.CodeOf(err),
	}})
}

func badRequest(code string, err error) error {
	if err == nil {
		err = errors.New(code)
	}
	return apperr.New(apperr.KindValidation, code, err)
}

func respondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
