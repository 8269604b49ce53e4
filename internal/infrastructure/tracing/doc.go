/*
Package tracing provides lightweight request tracing.

Every HTTP request gets a span. Spans carry a trace ID, a span ID and an
optional parent, plus free-form tags that handlers add as they resolve
documents and nodes. Finished spans are buffered on a channel and written to
the log by a single collector goroutine: errors at Warn, everything else at
Debug.

# Propagation

An inbound X-Trace-ID (and X-Span-ID as the parent) joins an existing
trace. Without one the request ID becomes the trace ID, so log lines from
the request logger and the tracer correlate. Both IDs are echoed on the
response.

# Usage

	tracer := tracing.New("uihost", logger.Named("trace"))
	defer tracer.Close()

	router.Use(middleware.RequestID())
	router.Use(tracing.HTTPMiddleware(tracer, logging.RequestIDHeader))

	// inside a handler
	tracing.Tag(c.Request.Context(), "document", docID)

When the buffer is full, spans are dropped and counted rather than blocking
the request path.
*/
package tracing
