package model

import "context"

// Persistence is a transaction-scoped view over SQRL state. Instances are
// obtained from PersistenceFactory.StartTransaction and must be closed with
// exactly one of Commit or Rollback. An instance is confined to one request.
type Persistence interface {
	// NextNutCounter atomically allocates a counter that was never handed out before.
	NextNutCounter(ctx context.Context) (uint32, error)
	// StoreNut records an issued nut and makes it the correlator's latest.
	// The correlator row is created when missing.
	StoreNut(ctx context.Context, nut NutRecord) error
	FetchNut(ctx context.Context, counter uint32) (NutRecord, error)
	// MarkNutConsumed reports true only for the single caller that flipped the nut.
	MarkNutConsumed(ctx context.Context, counter uint32) (bool, error)
	IsNutConsumed(ctx context.Context, counter uint32) (bool, error)

	DoesSqrlIdentityExistByIdk(ctx context.Context, idk string) (bool, error)
	FetchSqrlIdentity(ctx context.Context, idk string) (Identity, error)
	// FetchIdkByPreviousIdk resolves a previous identity key to the current one.
	FetchIdkByPreviousIdk(ctx context.Context, pidk string) (string, error)
	CreateAndEnableSqrlIdentity(ctx context.Context, idk string, data map[string]string) error
	// DeleteSqrlIdentity removes the identity, its data, flags, previous keys
	// and the correlators (with their nuts) it authenticated.
	DeleteSqrlIdentity(ctx context.Context, idk string) error
	FetchSqrlFlagForIdentity(ctx context.Context, idk string, flag Flag) (bool, error)
	SetSqrlFlagForIdentity(ctx context.Context, idk string, flag Flag, value bool) error
	FetchIdentityDataItem(ctx context.Context, idk, key string) (string, bool, error)
	StoreSqrlDataForSqrlIdentity(ctx context.Context, idk string, data map[string]string) error
	// UpdateIdkForSqrlIdentity re-keys the identity known as previousIdk to newIdk
	// and remembers previousIdk as a previous key.
	UpdateIdkForSqrlIdentity(ctx context.Context, previousIdk, newIdk string) error
	UpdateLastAuthenticated(ctx context.Context, idk string) error

	CreateCorrelator(ctx context.Context, correlator Correlator) error
	FetchCorrelator(ctx context.Context, value string) (Correlator, error)
	MarkCorrelatorAuthenticated(ctx context.Context, correlator, idk string) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// PersistenceFactory starts persistence transactions.
type PersistenceFactory interface {
	StartTransaction(ctx context.Context) (Persistence, error)
}
