package orchestrator

import "context"

type contextKey struct{}

// WithContext returns a copy of ctx carrying o.
func WithContext(ctx context.Context, o *Orchestrator) context.Context {
	return context.WithValue(ctx, contextKey{}, o)
}

// FromContext returns the Orchestrator stored by WithContext.
func FromContext(ctx context.Context) (*Orchestrator, bool) {
	o, ok := ctx.Value(contextKey{}).(*Orchestrator)
	return o, ok && o != nil
}
