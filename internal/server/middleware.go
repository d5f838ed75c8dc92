package server

import (
	"time"

	"github.com/Olivier33jnspe/bidmenow/utils"

	"github.com/gin-gonic/gin"
)

// RequestIDHeader carries the id used to correlate a request's log lines
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware reuses the caller's request id or assigns a new one
func RequestIDMiddleware(c *gin.Context) {
	requestID := c.GetHeader(RequestIDHeader)
	if requestID == "" {
		requestID = utils.GenerateID()
	}
	c.Set("request_id", requestID)
	c.Header(RequestIDHeader, requestID)
	c.Next()
}

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	fields := map[string]any{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"status":     c.Writer.Status(),
		"latency":    time.Since(start).String(),
		"request_id": c.GetString("request_id"),
	}
	if route := c.FullPath(); route != "" {
		fields["route"] = route
	}
	utils.Info("HTTP Request", fields)
}
