package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// LoggingInterceptor returns a Connect interceptor that logs every RPC call
// with its procedure, wire protocol, request ID and duration.
//
// The request ID comes from RequestID, so install that interceptor first.
// Errors carrying a Connect code other than Internal (busy flow, bad input,
// disabled pipeline) are expected client-facing outcomes and log at WARN;
// Internal and uncoded errors log at ERROR. Successful calls log at DEBUG
// because clients poll GetState.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure
			protocol := req.Peer().Protocol

			resp, err := next(ctx, req)

			duration := time.Since(start).Milliseconds()
			requestID := GetRequestID(ctx)
			if err != nil {
				var connectErr *connect.Error
				if errors.As(err, &connectErr) && connectErr.Code() != connect.CodeInternal {
					slog.Warn("RPC error",
						"procedure", procedure,
						"protocol", protocol,
						"code", connectErr.Code(),
						"error", connectErr.Message(),
						"request_id", requestID,
						"duration_ms", duration,
					)
				} else {
					slog.Error("RPC error",
						"procedure", procedure,
						"protocol", protocol,
						"error", err,
						"request_id", requestID,
						"duration_ms", duration,
					)
				}
			} else {
				slog.Debug("RPC ok",
					"procedure", procedure,
					"protocol", protocol,
					"request_id", requestID,
					"duration_ms", duration,
				)
			}

			return resp, err
		}
	}
}
