package tracing

import (
	"github.com/gin-gonic/gin"
)

// Trace propagation headers
const (
	TraceIDHeader = "X-Trace-ID"
	SpanIDHeader  = "X-Span-ID"
)

// HTTPMiddleware opens a span per request. An inbound X-Trace-ID joins the
// caller's trace; otherwise the request ID set by earlier middleware is
// used as the trace ID.
func HTTPMiddleware(tracer *Tracer, requestIDHeader string) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := TraceID(c.GetHeader(TraceIDHeader))
		if traceID == "" && requestIDHeader != "" {
			traceID = TraceID(c.Writer.Header().Get(requestIDHeader))
		}
		ctx := WithTraceID(c.Request.Context(), traceID, SpanID(c.GetHeader(SpanIDHeader)))

		name := c.FullPath()
		if name == "" {
			name = "unmatched"
		}
		span, ctx := tracer.StartSpan(ctx, c.Request.Method+" "+name)
		span.SetTag("http.method", c.Request.Method)
		span.SetTag("http.path", c.Request.URL.Path)

		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceIDHeader, string(span.TraceID))
		c.Header(SpanIDHeader, string(span.SpanID))

		c.Next()

		span.SetStatus(c.Writer.Status())
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}
		span.Finish()
		tracer.Submit(span)
	}
}
