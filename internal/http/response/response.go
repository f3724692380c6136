package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainagg "github.com/yungbote/freightquote-backend/internal/domain/aggregates"
	"github.com/yungbote/freightquote-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// RespondServiceError renders any error returned by a service. Transport
// errors keep their status; coded aggregate errors are mapped by code;
// anything else is a 500 with no detail.
func RespondServiceError(c *gin.Context, err error) {
	if e, ok := apierr.As(err); ok {
		RespondError(c, e.Status, e.Code, e.Err)
		return
	}
	code := domainagg.CodeOf(err)
	status := StatusFor(code)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		if code == "" {
			code = domainagg.CodeInternal
		}
		RespondError(c, status, string(code), errors.New("internal error"))
		return
	}
	msg := err.Error()
	var aggErr *domainagg.Error
	if errors.As(err, &aggErr) && aggErr.Message != "" {
		msg = aggErr.Message
	}
	RespondError(c, status, string(code), errors.New(msg))
}

func StatusFor(code domainagg.ErrorCode) int {
	switch code {
	case domainagg.CodeValidation:
		return http.StatusBadRequest
	case domainagg.CodeIdempotencyMismatch:
		return http.StatusUnprocessableEntity
	case domainagg.CodeNotFound:
		return http.StatusNotFound
	case domainagg.CodeInvalidTransition,
		domainagg.CodeRetryBudgetExceeded,
		domainagg.CodeConcurrentModification,
		domainagg.CodeConflict:
		return http.StatusConflict
	case domainagg.CodePreconditionFailed:
		return http.StatusPreconditionFailed
	case domainagg.CodeRetryable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
