package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"bookingengine/internal/domain/shared/fault"
)

func statusFor(kind fault.Kind) int {
	switch kind {
	case fault.KindInvalidInput:
		return http.StatusBadRequest
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindForbidden:
		return http.StatusForbidden
	case fault.KindConflict, fault.KindInvalidState, fault.KindBusy:
		return http.StatusConflict
	case fault.KindUnavailable, fault.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to its status and a machine-readable code. Internal
// errors are logged and their text is not exposed.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	kind := fault.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		kind = fault.KindInternal
		msg = "internal error"
		if logger != nil {
			logger.Error("request failed", "path", c.FullPath(), "request_id", c.GetString("request_id"), "error", err)
		}
	}
	c.JSON(status, gin.H{"error": msg, "code": string(kind)})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": string(fault.KindInvalidInput)})
}
