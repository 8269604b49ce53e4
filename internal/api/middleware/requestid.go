package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/uihost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/uihost/internal/shared/id"
	"github.com/GriffinCanCode/uihost/internal/shared/utils"
)

// RequestIDKey is the gin context key holding the request ID
const RequestIDKey = "request_id"

// RequestID tags every request with an ID. A well-formed inbound
// X-Request-ID is kept; otherwise a new one is generated.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(logging.RequestIDHeader)
		if utils.ValidateID(rid, "request_id", true) != nil {
			rid = id.NewRequestID().String()
		}
		c.Set(RequestIDKey, rid)
		c.Header(logging.RequestIDHeader, rid)
		c.Next()
	}
}
