package ctxmanage

import (
	"context"

	"github.com/gin-gonic/gin"
)

type ctxKey int

// TraceIdKey is the request context key the logger middleware stores the trace id under.
const TraceIdKey ctxKey = 1

// HeaderTraceID is echoed back on every response and accepted from upstream proxies.
const HeaderTraceID = "X-Trace-Id"

func WithTraceId(ctx context.Context, traceId string) context.Context {
	return context.WithValue(ctx, TraceIdKey, traceId)
}

func GetTraceId(ctx context.Context) string {
	traceId, ok := ctx.Value(TraceIdKey).(string)
	if !ok {
		return "Unknown"
	}
	return traceId
}

// GetTraceIdOfRequest returns the trace id of the request handled by c
func GetTraceIdOfRequest(c *gin.Context) string {
	return GetTraceId(c.Request.Context())
}
