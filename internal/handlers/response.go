package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fairplay-backend/internal/apperr"
)

// respondError writes err with the status its code maps to. Errors without
// a code are internal and their text is not sent to the client.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	code := apperr.CodeOf(err)
	if code == "" {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	body := gin.H{
		"error": err.Error(),
		"code":  code,
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && len(appErr.Metadata) > 0 {
		body["details"] = appErr.Metadata
	}
	c.JSON(apperr.HTTPStatus(code), body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request",
		"code":    apperr.CodeInvalidInput,
		"details": err.Error(),
	})
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
