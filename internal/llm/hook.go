package llm

import "context"

// PromptHook observes invocations for diagnostics. Hooks are logging-only
// and never influence control flow.
type PromptHook interface {
	Before(ctx context.Context, dimension string, msgs []Message)
	After(ctx context.Context, dimension string, resp any, err error)
}

type ctxKeyDimension struct{}

// WithHook wraps base so every Invoke reports to hook.
func WithHook(base Client, hook PromptHook) Client {
	return &hooked{base: base, hook: hook}
}

type hooked struct {
	base Client
	hook PromptHook
}

func (h *hooked) Name() string { return h.base.Name() }
func (h *hooked) Close() error { return h.base.Close() }

func (h *hooked) Invoke(ctx context.Context, msgs []Message, opts Options) (any, error) {
	dim := DimensionFrom(ctx)
	if h.hook != nil {
		h.hook.Before(ctx, dim, msgs)
	}
	resp, err := h.base.Invoke(ctx, msgs, opts)
	if h.hook != nil {
		h.hook.After(ctx, dim, resp, err)
	}
	return resp, err
}

// WithDimension tags the context with the analysis dimension issuing the
// call, for logging and hooks.
func WithDimension(ctx context.Context, dimension string) context.Context {
	return context.WithValue(ctx, ctxKeyDimension{}, dimension)
}

// DimensionFrom returns the dimension stored in the context.
func DimensionFrom(ctx context.Context) string {
	if v := ctx.Value(ctxKeyDimension{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "unknown"
}
