// Package memory is an in-process implementation of the SQRL persistence
// contract. Transactions are serialised and work on a private copy of the
// state that replaces the shared state on commit.
package memory

import (
	"context"
	"errors"
	"maps"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/sqrl-server/internal/model"
)

var _ model.PersistenceFactory = (*Store)(nil)

var (
	// ErrTransactionClosed is returned when a closed transaction is used.
	ErrTransactionClosed = errors.New("transaction already closed")
	// ErrCounterExhausted is returned once every 32 bit nut counter was handed out.
	ErrCounterExhausted = errors.New("nut counter exhausted")
)

type state struct {
	identities  map[string]model.Identity
	previous    map[string]string
	nuts        map[uint32]model.NutRecord
	correlators map[string]model.Correlator
}

func newState() *state {
	return &state{
		identities:  make(map[string]model.Identity),
		previous:    make(map[string]string),
		nuts:        make(map[uint32]model.NutRecord),
		correlators: make(map[string]model.Correlator),
	}
}

func (s *state) clone() *state {
	c := &state{
		identities:  make(map[string]model.Identity, len(s.identities)),
		previous:    maps.Clone(s.previous),
		nuts:        maps.Clone(s.nuts),
		correlators: maps.Clone(s.correlators),
	}
	for idk, identity := range s.identities {
		identity.Flags = maps.Clone(identity.Flags)
		identity.Data = maps.Clone(identity.Data)
		c.identities[idk] = identity
	}
	return c
}

// Store owns the committed state.
type Store struct {
	sem     chan struct{}
	state   *state
	counter atomic.Uint64
	now     func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		sem:   make(chan struct{}, 1),
		state: newState(),
		now:   time.Now,
	}
}

// WithClock replaces the clock used for timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// StartTransaction waits for exclusive access and returns a transaction.
func (s *Store) StartTransaction(ctx context.Context) (model.Persistence, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &Tx{store: s, work: s.state.clone()}, nil
}

// Tx is a single memory transaction.
type Tx struct {
	store  *Store
	work   *state
	closed bool
}

var _ model.Persistence = (*Tx)(nil)

func (t *Tx) check() error {
	if t.closed {
		return ErrTransactionClosed
	}
	return nil
}

func (t *Tx) release() {
	t.closed = true
	<-t.store.sem
}

// Commit publishes the transaction's state.
func (t *Tx) Commit(_ context.Context) error {
	if err := t.check(); err != nil {
		return err
	}
	t.store.state = t.work
	t.release()
	return nil
}

// Rollback discards the transaction's state.
func (t *Tx) Rollback(_ context.Context) error {
	if err := t.check(); err != nil {
		return err
	}
	t.release()
	return nil
}

// NextNutCounter allocates outside of the transaction, like a database sequence.
func (t *Tx) NextNutCounter(_ context.Context) (uint32, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	next := t.store.counter.Add(1)
	if next > math.MaxUint32 {
		return 0, ErrCounterExhausted
	}
	return uint32(next), nil
}

func (t *Tx) StoreNut(_ context.Context, nut model.NutRecord) error {
	if err := t.check(); err != nil {
		return err
	}
	if _, exists := t.work.nuts[nut.Counter]; exists {
		return errors.New("nut counter already stored")
	}
	correlator, ok := t.work.correlators[nut.Correlator]
	if !ok {
		correlator = model.Correlator{
			Value:     nut.Correlator,
			Status:    model.CorrelatorStatusPending,
			CreatedAt: nut.IssuedAt,
			ExpiresAt: nut.ExpiresAt,
		}
	}
	correlator.LatestCounter = nut.Counter
	t.work.correlators[nut.Correlator] = correlator
	t.work.nuts[nut.Counter] = nut
	return nil
}

func (t *Tx) FetchNut(_ context.Context, counter uint32) (model.NutRecord, error) {
	if err := t.check(); err != nil {
		return model.NutRecord{}, err
	}
	nut, ok := t.work.nuts[counter]
	if !ok {
		return model.NutRecord{}, model.ErrNotFound
	}
	return nut, nil
}

func (t *Tx) MarkNutConsumed(_ context.Context, counter uint32) (bool, error) {
	if err := t.check(); err != nil {
		return false, err
	}
	nut, ok := t.work.nuts[counter]
	if !ok || nut.Consumed {
		return false, nil
	}
	nut.Consumed = true
	t.work.nuts[counter] = nut
	return true, nil
}

func (t *Tx) IsNutConsumed(_ context.Context, counter uint32) (bool, error) {
	if err := t.check(); err != nil {
		return false, err
	}
	nut, ok := t.work.nuts[counter]
	if !ok {
		return false, model.ErrNotFound
	}
	return nut.Consumed, nil
}

func (t *Tx) DoesSqrlIdentityExistByIdk(_ context.Context, idk string) (bool, error) {
	if err := t.check(); err != nil {
		return false, err
	}
	_, ok := t.work.identities[idk]
	return ok, nil
}

func (t *Tx) FetchSqrlIdentity(_ context.Context, idk string) (model.Identity, error) {
	if err := t.check(); err != nil {
		return model.Identity{}, err
	}
	identity, ok := t.work.identities[idk]
	if !ok {
		return model.Identity{}, model.ErrNotFound
	}
	identity.Flags = maps.Clone(identity.Flags)
	identity.Data = maps.Clone(identity.Data)
	return identity, nil
}

func (t *Tx) FetchIdkByPreviousIdk(_ context.Context, pidk string) (string, error) {
	if err := t.check(); err != nil {
		return "", err
	}
	idk, ok := t.work.previous[pidk]
	if !ok {
		return "", model.ErrNotFound
	}
	return idk, nil
}

func (t *Tx) CreateAndEnableSqrlIdentity(_ context.Context, idk string, data map[string]string) error {
	if err := t.check(); err != nil {
		return err
	}
	if _, exists := t.work.identities[idk]; exists {
		return errors.New("identity already exists")
	}
	stored := make(map[string]string, len(data))
	maps.Copy(stored, data)
	t.work.identities[idk] = model.Identity{
		ID:        uuid.New(),
		Idk:       idk,
		Flags:     map[model.Flag]bool{model.FlagSqrlAuthEnabled: true},
		Data:      stored,
		CreatedAt: t.store.now(),
	}
	return nil
}

func (t *Tx) DeleteSqrlIdentity(_ context.Context, idk string) error {
	if err := t.check(); err != nil {
		return err
	}
	if _, ok := t.work.identities[idk]; !ok {
		return model.ErrNotFound
	}
	delete(t.work.identities, idk)
	for pidk, current := range t.work.previous {
		if current == idk {
			delete(t.work.previous, pidk)
		}
	}
	// sessions signed in as the identity fall back to pending and keep their nut chain
	for value, correlator := range t.work.correlators {
		if correlator.AuthenticatedAs != idk {
			continue
		}
		correlator.Status = model.CorrelatorStatusPending
		correlator.AuthenticatedAs = ""
		correlator.AuthenticatedAt = nil
		t.work.correlators[value] = correlator
	}
	return nil
}

func (t *Tx) FetchSqrlFlagForIdentity(_ context.Context, idk string, flag model.Flag) (bool, error) {
	if err := t.check(); err != nil {
		return false, err
	}
	identity, ok := t.work.identities[idk]
	if !ok {
		return false, model.ErrNotFound
	}
	return identity.Flags[flag], nil
}

func (t *Tx) SetSqrlFlagForIdentity(_ context.Context, idk string, flag model.Flag, value bool) error {
	if err := t.check(); err != nil {
		return err
	}
	identity, ok := t.work.identities[idk]
	if !ok {
		return model.ErrNotFound
	}
	identity.Flags[flag] = value
	if flag == model.FlagSqrlAuthEnabled {
		if value {
			identity.DisabledAt = nil
		} else {
			now := t.store.now()
			identity.DisabledAt = &now
		}
	}
	t.work.identities[idk] = identity
	return nil
}

func (t *Tx) FetchIdentityDataItem(_ context.Context, idk, key string) (string, bool, error) {
	if err := t.check(); err != nil {
		return "", false, err
	}
	identity, ok := t.work.identities[idk]
	if !ok {
		return "", false, model.ErrNotFound
	}
	value, ok := identity.Data[key]
	return value, ok, nil
}

func (t *Tx) StoreSqrlDataForSqrlIdentity(_ context.Context, idk string, data map[string]string) error {
	if err := t.check(); err != nil {
		return err
	}
	identity, ok := t.work.identities[idk]
	if !ok {
		return model.ErrNotFound
	}
	maps.Copy(identity.Data, data)
	return nil
}

func (t *Tx) UpdateIdkForSqrlIdentity(_ context.Context, previousIdk, newIdk string) error {
	if err := t.check(); err != nil {
		return err
	}
	identity, ok := t.work.identities[previousIdk]
	if !ok {
		return model.ErrNotFound
	}
	if _, taken := t.work.identities[newIdk]; taken {
		return errors.New("new idk already in use")
	}
	delete(t.work.identities, previousIdk)
	identity.Idk = newIdk
	t.work.identities[newIdk] = identity

	for pidk, current := range t.work.previous {
		if current == previousIdk {
			t.work.previous[pidk] = newIdk
		}
	}
	t.work.previous[previousIdk] = newIdk
	return nil
}

func (t *Tx) UpdateLastAuthenticated(_ context.Context, idk string) error {
	if err := t.check(); err != nil {
		return err
	}
	identity, ok := t.work.identities[idk]
	if !ok {
		return model.ErrNotFound
	}
	now := t.store.now()
	identity.LastAuthenticatedAt = &now
	t.work.identities[idk] = identity
	return nil
}

func (t *Tx) CreateCorrelator(_ context.Context, correlator model.Correlator) error {
	if err := t.check(); err != nil {
		return err
	}
	if _, exists := t.work.correlators[correlator.Value]; exists {
		return errors.New("correlator already exists")
	}
	if correlator.Status == "" {
		correlator.Status = model.CorrelatorStatusPending
	}
	t.work.correlators[correlator.Value] = correlator
	return nil
}

func (t *Tx) FetchCorrelator(_ context.Context, value string) (model.Correlator, error) {
	if err := t.check(); err != nil {
		return model.Correlator{}, err
	}
	correlator, ok := t.work.correlators[value]
	if !ok {
		return model.Correlator{}, model.ErrNotFound
	}
	return correlator, nil
}

func (t *Tx) MarkCorrelatorAuthenticated(_ context.Context, value, idk string) error {
	if err := t.check(); err != nil {
		return err
	}
	correlator, ok := t.work.correlators[value]
	if !ok {
		return model.ErrNotFound
	}
	now := t.store.now()
	correlator.Status = model.CorrelatorStatusAuthenticated
	correlator.AuthenticatedAs = idk
	correlator.AuthenticatedAt = &now
	t.work.correlators[value] = correlator
	return nil
}
