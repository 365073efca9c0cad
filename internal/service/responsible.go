package service

import "context"

type responsibleKey struct{}

// WithResponsible attaches the name recorded as responsible for history
// entries written under ctx.
func WithResponsible(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, responsibleKey{}, name)
}

// ResponsibleFrom returns the name set by WithResponsible, or DefaultResponsible.
func ResponsibleFrom(ctx context.Context) string {
	if name, ok := ctx.Value(responsibleKey{}).(string); ok && name != "" {
		return name
	}
	return DefaultResponsible
}
