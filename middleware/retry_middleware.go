package middleware

import (
	"context"
	"log"
	"time"

	"airpc/message"
	"airpc/rpcerr"
)

// RetryMiddleware retries a failed business handler invocation, classifying
// the response's error text by rpcerr.Kind rather than matching substrings
// (the teacher's original version did strings.Contains(err, "timeout")).
// This is distinct from the client-side retry policy in client/retry.go,
// which operates on typed Go errors from the transport/breaker layer rather
// than a response's string Error field.
func RetryMiddleware(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			resp := next(ctx, req)
			for i := 0; i < maxRetries; i++ {
				if resp.Error == "" {
					return resp
				}
				if !rpcerr.IsRetryableKind(rpcerr.ClassifyText(resp.Error), true) {
					return resp
				}
				log.Printf("Retry attempt %d for %s due to error: %s", i+1, req.ServiceMethod(), resp.Error)
				time.Sleep(baseDelay * time.Duration(1<<i))
				resp = next(ctx, req)
			}
			return resp
		}
	}
}
