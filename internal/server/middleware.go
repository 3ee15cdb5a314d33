package server

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/yousuf/hookbridge/internal/logging"
	"github.com/yousuf/hookbridge/internal/session"
)

type contextKey string

const sessionContextKey contextKey = "session"

// getSessionFromContext retrieves the session context from the request context.
func getSessionFromContext(ctx context.Context) (*session.Context, error) {
	sessionCtx, ok := ctx.Value(sessionContextKey).(*session.Context)
	if !ok || sessionCtx == nil {
		return nil, fmt.Errorf("session context not found in request context")
	}
	return sessionCtx, nil
}

// createSessionInjectionMiddleware resolves the session's runtime, starting
// it on first use, and stores it in the request context. The runtime
// outlives the request.
func createSessionInjectionMiddleware(sessionMgr *session.Manager) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(
			ctx context.Context,
			method string,
			req mcp.Request,
		) (mcp.Result, error) {
			sessionID := req.GetSession().ID()

			// The runtime is bound to the server's lifetime, not the request's.
			sessionCtx, err := sessionMgr.GetOrCreateSession(context.WithoutCancel(ctx), sessionID)
			if err != nil {
				return nil, fmt.Errorf("failed to get/create session: %w", err)
			}

			ctx = context.WithValue(ctx, sessionContextKey, sessionCtx)
			return next(ctx, method, req)
		}
	}
}

// createLoggingMiddleware creates middleware that logs all MCP method calls
func createLoggingMiddleware() mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(
			ctx context.Context,
			method string,
			req mcp.Request,
		) (mcp.Result, error) {
			start := time.Now()
			log := logging.Logger().With(
				zap.String("session", req.GetSession().ID()),
				zap.String("method", method),
			)

			log.Debug("request")

			result, err := next(ctx, method, req)

			if err != nil {
				log.Warn("request failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
			} else {
				log.Info("request", zap.Duration("duration", time.Since(start)))
			}

			return result, err
		}
	}
}
