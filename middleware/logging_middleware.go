package middleware

import (
	"context"
	"log"
	"time"

	"airpc/message"
)

// LoggingMiddleware records the service method, duration, and any errors for each RPC call.
// It captures the start time before calling next, and logs the elapsed time after next returns.
//
// Example output:
//
//	ServiceMethod: Arith.Add, Duration: 42μs
//	Error: division by zero
func LoggingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			start := time.Now()

			resp := next(ctx, req)

			duration := time.Since(start)
			log.Printf("ServiceMethod: %s, Duration: %s", req.ServiceMethod(), duration)
			if resp.Error != "" {
				log.Printf("Error: %s", resp.Error)
			}
			return resp
		}
	}
}
