package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	calls     int
	failTimes int
	failWith  error
	resp      any
}

func (s *scriptedClient) Name() string { return "scripted" }
func (s *scriptedClient) Close() error { return nil }
func (s *scriptedClient) Invoke(ctx context.Context, msgs []Message, opts Options) (any, error) {
	s.calls++
	if s.calls <= s.failTimes {
		return nil, s.failWith
	}
	return s.resp, nil
}

func TestRetry_EventualSuccess(t *testing.T) {
	inner := &scriptedClient{failTimes: 2, failWith: errors.New("transient"), resp: "ok"}
	c := Wrap(inner, Retry(3, time.Millisecond))
	resp, err := c.Invoke(context.Background(), nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, 3, inner.calls)
}

func TestRetry_Exhausted(t *testing.T) {
	inner := &scriptedClient{failTimes: 10, failWith: errors.New("transient")}
	c := Wrap(inner, Retry(2, time.Millisecond))
	_, err := c.Invoke(context.Background(), nil, Options{})
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestRetry_PermanentErrorStopsImmediately(t *testing.T) {
	inner := &scriptedClient{failTimes: 10, failWith: NewPermanentError(errors.New("too long"))}
	c := Wrap(inner, Retry(5, time.Millisecond))
	_, err := c.Invoke(context.Background(), nil, Options{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)

	var pErr *PermanentError
	assert.True(t, errors.As(err, &pErr))
}

func TestRetry_ContextCancelStops(t *testing.T) {
	inner := &scriptedClient{failTimes: 10, failWith: errors.New("transient")}
	c := Wrap(inner, Retry(5, time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Invoke(ctx, nil, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWrap_Order(t *testing.T) {
	var order []string
	mw := func(tag string) Middleware {
		return func(next Client) Client {
			return clientFunc(func(ctx context.Context, msgs []Message, opts Options) (any, error) {
				order = append(order, tag)
				return next.Invoke(ctx, msgs, opts)
			})
		}
	}
	c := Wrap(&scriptedClient{resp: "ok"}, mw("outer"), mw("inner"))
	_, err := c.Invoke(context.Background(), nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

type clientFunc func(ctx context.Context, msgs []Message, opts Options) (any, error)

func (f clientFunc) Name() string { return "func" }
func (f clientFunc) Close() error { return nil }
func (f clientFunc) Invoke(ctx context.Context, msgs []Message, opts Options) (any, error) {
	return f(ctx, msgs, opts)
}

func TestWithDimension(t *testing.T) {
	ctx := WithDimension(context.Background(), "security")
	assert.Equal(t, "security", DimensionFrom(ctx))
	assert.Equal(t, "unknown", DimensionFrom(context.Background()))
}

type recordingHook struct {
	befores, afters []string
}

func (h *recordingHook) Before(ctx context.Context, dim string, msgs []Message) {
	h.befores = append(h.befores, dim)
}
func (h *recordingHook) After(ctx context.Context, dim string, resp any, err error) {
	h.afters = append(h.afters, dim)
}

func TestWithHook(t *testing.T) {
	hook := &recordingHook{}
	c := WithHook(&scriptedClient{resp: "ok"}, hook)
	ctx := WithDimension(context.Background(), "performance")
	_, err := c.Invoke(ctx, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"performance"}, hook.befores)
	assert.Equal(t, []string{"performance"}, hook.afters)
}

func TestFakeClient_ShapesPerDimension(t *testing.T) {
	f := NewFakeClient()
	for _, dim := range []string{"performance", "security", "standards", "maintainability"} {
		resp, err := f.Invoke(WithDimension(context.Background(), dim), nil, Options{})
		require.NoError(t, err)
		require.NotNil(t, resp)
	}
}
