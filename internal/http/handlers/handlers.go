package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/freightquote-backend/internal/http/response"
	"github.com/yungbote/freightquote-backend/internal/platform/apierr"
)

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil || id == uuid.Nil {
		response.RespondServiceError(c, apierr.BadRequest("invalid_"+name, "invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

func bindBody(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return false
	}
	return true
}

// sequenceFrom prefers the body value and falls back to the Idempotency-Key
// header, which carries the same number as a decimal string.
func sequenceFrom(c *gin.Context, body int) (int, bool) {
	if body > 0 {
		return body, true
	}
	raw := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n, true
		}
	}
	response.RespondServiceError(c, apierr.BadRequest("invalid_sequence",
		"sequence (or Idempotency-Key header) must be the thread version you acted on"))
	return 0, false
}

func limitQuery(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		response.RespondServiceError(c, apierr.BadRequest("invalid_limit", "limit must be a non-negative integer"))
		return 0, false
	}
	return n, true
}
