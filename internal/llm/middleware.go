package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Middleware decorates a Client to inject cross-cutting concerns
// (rate limiting, retries, logging, hooks).
type Middleware func(Client) Client

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner Client, mws ...Middleware) Client {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// -------- Retry --------

// Retry retries Invoke up to maxAttempts with exponential backoff starting
// at baseDelay. Permanent errors and context cancellation stop immediately.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next Client) Client {
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next Client
	max  int
	base time.Duration
}

func (r *retrying) Name() string { return r.next.Name() }
func (r *retrying) Close() error { return r.next.Close() }

func (r *retrying) Invoke(ctx context.Context, msgs []Message, opts Options) (any, error) {
	var last error
	for i := 0; i < r.max; i++ {
		resp, err := r.next.Invoke(ctx, msgs, opts)
		if err == nil {
			return resp, nil
		}
		var pErr *PermanentError
		if errors.As(err, &pErr) {
			return nil, err
		}
		last = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		time.Sleep(r.base * time.Duration(1<<i))
	}
	return nil, last
}

// -------- Rate limiting --------

// RateLimit limits request rate with a token bucket. If rps <= 0 the
// limiter is disabled.
func RateLimit(rps float64, burst int) Middleware {
	return func(next Client) Client {
		return &rateLimited{next: next, rl: newRPSLimiter(rps, burst)}
	}
}

type rateLimited struct {
	next Client
	rl   *rpsLimiter
}

func (c *rateLimited) Name() string { return c.next.Name() }
func (c *rateLimited) Close() error {
	c.rl.Stop()
	return c.next.Close()
}

func (c *rateLimited) Invoke(ctx context.Context, msgs []Message, opts Options) (any, error) {
	if err := c.rl.Acquire(ctx); err != nil {
		return nil, err
	}
	return c.next.Invoke(ctx, msgs, opts)
}

// -------- Logging --------

// WithLogging logs request sizes, outcomes, and latency. A nil logger
// falls back to zap's no-op logger.
func WithLogging(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Client) Client {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next Client
	log  *zap.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) Invoke(ctx context.Context, msgs []Message, opts Options) (any, error) {
	size := 0
	for _, m := range msgs {
		size += len(m.Content)
	}
	start := time.Now()
	resp, err := l.next.Invoke(ctx, msgs, opts)
	fields := []zap.Field{
		zap.String("client", l.next.Name()),
		zap.String("dimension", DimensionFrom(ctx)),
		zap.Int("request_bytes", size),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		l.log.Warn("model invocation failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	l.log.Debug("model invocation ok", fields...)
	return resp, nil
}
