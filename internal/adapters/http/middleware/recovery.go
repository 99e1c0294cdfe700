package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-feed/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-feed/internal/platform/logging"
)

// Recovery returns middleware that turns a panic into a 500 INTERNAL_ERROR
// envelope and logs the stack. It belongs first in the chain.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return RecoveryWithWriter(logger, nil)
}

// RecoveryWithWriter is Recovery with an extra hook that receives the
// recovered value and stack, e.g. to forward them to an error tracker.
func RecoveryWithWriter(logger *slog.Logger, stackHandler func(err any, stack []byte)) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			stack := debug.Stack()
			if stackHandler != nil {
				stackHandler(r, stack)
			}

			recovered(c, logger, r, stack)
		}()

		c.Next()
	}
}

func recovered(c *gin.Context, logger *slog.Logger, r any, stack []byte) {
	traceID := dto.GetTraceID(c)

	logging.FromContextOr(c.Request.Context(), logger).Error("panic recovered",
		slog.Any("error", r),
		slog.String("stack", string(stack)),
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("trace_id", traceID),
	)

	// Once the status line is out the envelope can no longer be sent.
	if c.Writer.Written() {
		c.Abort()
		return
	}

	resp := dto.NewErrorResponse(dto.ErrorCodeInternal, "an internal error occurred").WithTraceID(traceID)
	c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
}
