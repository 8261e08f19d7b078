package model

import "context"

// ContextManager moves the front-channel correlator in and out of a request context.
type ContextManager interface {
	SetCorrelatorToContext(ctx context.Context, correlator string) context.Context
	GetCorrelatorFromContext(ctx context.Context) (string, bool)
}
