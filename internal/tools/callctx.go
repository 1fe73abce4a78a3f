package tools

import "context"

// CallContext carries per-request addressing for tools that reply on
// the originating surface. It travels in the context so concurrent
// requests for the same tenant never share a mutable slot.
type CallContext struct {
	Channel string // e.g. "api", "mqtt", "report"
	ChatID  string
}

type callContextKey struct{}

// WithCallContext attaches addressing for this request's tool calls.
func WithCallContext(ctx context.Context, cc CallContext) context.Context {
	return context.WithValue(ctx, callContextKey{}, cc)
}

// CallContextFrom returns the request's addressing, zero if unset.
func CallContextFrom(ctx context.Context) CallContext {
	cc, _ := ctx.Value(callContextKey{}).(CallContext)
	return cc
}
