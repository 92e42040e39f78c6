package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/metrics"
)

type callKey struct{}

// call is shared between the logging interceptor and the interceptors it
// wraps, so identity established further in can still be logged.
type call struct {
	userID string
}

// noteCaller records the authenticated user on the enclosing call, if any.
func noteCaller(ctx context.Context, userID string) {
	if c, ok := ctx.Value(callKey{}).(*call); ok {
		c.userID = userID
	}
}

// LoggingInterceptor returns a Connect interceptor that logs every RPC call and
// records its latency. It must run outside RequireAuth; the user ID it logs is
// the one RequireAuth established, empty for public or rejected calls.
// m may be nil.
func LoggingInterceptor(m *metrics.Metrics) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure

			c := &call{userID: GetUserID(ctx)}
			resp, err := next(context.WithValue(ctx, callKey{}, c), req)

			elapsed := time.Since(start)
			userID := c.userID
			code := "ok"
			if err != nil {
				var connectErr *connect.Error
				if errors.As(err, &connectErr) {
					code = connectErr.Code().String()
					slog.Warn("RPC error",
						"procedure", procedure,
						"code", code,
						"error", connectErr.Message(),
						"user_id", userID,
						"duration_ms", elapsed.Milliseconds(),
					)
				} else {
					code = connect.CodeUnknown.String()
					slog.Error("RPC error",
						"procedure", procedure,
						"error", err,
						"user_id", userID,
						"duration_ms", elapsed.Milliseconds(),
					)
				}
			} else {
				slog.Info("RPC ok",
					"procedure", procedure,
					"user_id", userID,
					"duration_ms", elapsed.Milliseconds(),
				)
			}
			m.ObserveRPC(procedure, code, elapsed)

			return resp, err
		}
	}
}
