package router

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	logx "jobdesk/pkg/logx"
)

// slowRequest is the duration above which a successful request logs at INFO.
const slowRequest = 750 * time.Millisecond

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h so that m[0] runs outermost.
func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

// wrap applies the standard stack: recover, log, then the per-route timeout.
func (m *CommandManager) wrap(h HandlerFunc, timeout time.Duration) HandlerFunc {
	return Chain(h, Recover(m.log), RequestLog(m.log), Timeout(m.timeoutFor(timeout)))
}

func Timeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, req *Request) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, req)
		}
	}
}

// Recover turns a handler panic into an error and logs the stack.
func Recover(fallback logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if r := recover(); r != nil {
					requestLogger(fallback, req).Error("handler panic",
						logx.Any("panic", r), logx.Stack(string(debug.Stack())))
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}

// RequestLog logs every request: DEBUG when fast, INFO when slow, WARN on error.
func RequestLog(fallback logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			took := time.Since(start)

			log := requestLogger(fallback, req)
			fields := []logx.Field{
				logx.String("kind", string(req.Update.Kind)),
				logx.Workspace(req.Chat.ChatID),
				logx.Int64("from_id", req.FromID),
				logx.String("cmd", req.Command),
				logx.Duration("took", took),
			}
			switch {
			case err != nil:
				log.Warn("request failed", append(fields, logx.Err(err))...)
			case took >= slowRequest:
				log.Info("request ok (slow)", fields...)
			default:
				log.Debug("request ok", fields...)
			}
			return err
		}
	}
}

func requestLogger(fallback logx.Logger, req *Request) logx.Logger {
	if req != nil && !req.Logger.IsZero() {
		return req.Logger
	}
	return fallback
}
