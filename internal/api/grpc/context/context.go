package context

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// correlatorKey is the metadata key holding the verified front-channel correlator.
const (
	correlatorKey string = "correlator"
)

// Manager represents a gRPC context manager for correlator operations.
// It provides methods to set and retrieve the correlator from gRPC metadata.
type Manager struct{}

// NewManager creates a new gRPC context manager instance.
//
// Returns a pointer to the newly created Manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// SetCorrelatorToContext stores the correlator in the incoming metadata.
// Any client supplied value under the same key is replaced.
func (m *Manager) SetCorrelatorToContext(ctx context.Context, correlator string) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		md = metadata.New(map[string]string{correlatorKey: correlator})
	} else {
		md = md.Copy()
		md.Set(correlatorKey, correlator)
	}

	return metadata.NewIncomingContext(ctx, md)
}

// GetCorrelatorFromContext retrieves the correlator from gRPC context metadata.
//
// Returns the correlator and a boolean indicating if it was found.
func (m *Manager) GetCorrelatorFromContext(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}

	values := md.Get(correlatorKey)
	if len(values) == 0 || values[0] == "" {
		return "", false
	}

	return values[0], true
}
