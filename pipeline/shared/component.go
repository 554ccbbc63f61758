package shared

import "context"

// Component defines the interface that all pipeline components implement
type Component interface {
	// GetType returns the component type identifier
	GetType() string

	// Shutdown releases the component's resources
	Shutdown(ctx context.Context) error
}
