package config

import "context"

// managerKey is an unexported context key type to avoid collisions.
type managerKey struct{}

// WithManager attaches a config Manager to the context.
func WithManager(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, managerKey{}, m)
}

// ManagerFromContext retrieves the config Manager from the context.
func ManagerFromContext(ctx context.Context) (*Manager, bool) {
	m, ok := ctx.Value(managerKey{}).(*Manager)
	return m, ok
}
