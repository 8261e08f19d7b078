package nut

import (
	"context"
	"math"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/sqrl-server/internal/model"
	"github.com/dtroode/sqrl-server/internal/repository/memory"
)

func TestComputeNutExpiresAt(t *testing.T) {
	for _, validity := range []int64{1000, 180} {
		tok := Token{IssuedTimestamp: uint32(time.Now().Unix())}
		expiresAt := ComputeNutExpiresAt(tok, validity)
		assert.Greater(t, expiresAt, tok.IssuedTimestampMillis())
		assert.Equal(t, validity*1000, expiresAt-tok.IssuedTimestampMillis())
	}
}

func TestComputeNutExpiresAt_Jan2016(t *testing.T) {
	issuedAt := time.Date(2016, 1, 3, 10, 15, 30, 0, time.UTC)
	// The reference vector supplies the issue instant's epoch seconds as a millisecond count.
	tok := Token{IssuedTimestamp: uint32(time.UnixMilli(issuedAt.Unix()).Unix())}

	expiresAt := ComputeNutExpiresAt(tok, 1000)
	assert.Equal(t, int64(1000*1000), expiresAt-tok.IssuedTimestampMillis())
	assert.Equal(t, int64(1452816000), expiresAt)
}

func TestNewValidator_Range(t *testing.T) {
	_, err := NewValidator(zeroKey, 0)
	assert.Error(t, err)

	v, err := NewValidator(zeroKey, math.MaxInt32)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt32), v.ValiditySeconds())
}

func TestValidateTimestamp(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	v, err := NewValidator(zeroKey, 1000)
	require.NoError(t, err)
	v.WithClock(func() time.Time { return now })

	assert.NoError(t, v.ValidateTimestamp(Token{IssuedTimestamp: uint32(now.Unix())}))
	assert.NoError(t, v.ValidateTimestamp(Token{IssuedTimestamp: uint32(now.Unix() - 1000)}))
	assert.ErrorIs(t, v.ValidateTimestamp(Token{IssuedTimestamp: uint32(now.Unix() - 1001)}), model.ErrNutExpired)

	forever, err := NewValidator(zeroKey, math.MaxInt32)
	require.NoError(t, err)
	assert.NoError(t, forever.ValidateTimestamp(Token{IssuedTimestamp: uint32(time.Now().Unix())}))
}

type validatorFixture struct {
	store     *memory.Store
	validator *Validator
	token     Token
}

func newValidatorFixture(t *testing.T, validity int, issuedAt time.Time) validatorFixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	v, err := NewValidator(zeroKey, validity)
	require.NoError(t, err)

	codec, err := NewCodec(zeroKey, nil)
	require.NoError(t, err)

	p, err := store.StartTransaction(ctx)
	require.NoError(t, err)
	counter, err := p.NextNutCounter(ctx)
	require.NoError(t, err)

	tok, err := codec.Create(mustURL(t, "https://davetest.com/sqrl"), netip.MustParseAddr("69.50.232.54"), counter, issuedAt)
	require.NoError(t, err)
	require.NoError(t, p.StoreNut(ctx, model.NutRecord{
		Counter:    counter,
		Correlator: "123",
		IssuedAt:   issuedAt,
		ExpiresAt:  v.ExpiresAt(tok),
	}))
	require.NoError(t, p.Commit(ctx))

	return validatorFixture{store: store, validator: v, token: tok}
}

func (f validatorFixture) validate(t *testing.T, addr string) (Validation, error) {
	t.Helper()
	ctx := context.Background()
	p, err := f.store.StartTransaction(ctx)
	require.NoError(t, err)
	res, err := f.validator.Validate(ctx, p, f.token, mustURL(t, "https://davetest.com/sqrl"), netip.MustParseAddr(addr))
	if err != nil {
		require.NoError(t, p.Rollback(ctx))
		return res, err
	}
	require.NoError(t, p.Commit(ctx))
	return res, nil
}

func TestValidate_Pass(t *testing.T) {
	f := newValidatorFixture(t, math.MaxInt32, time.Now())

	res, err := f.validate(t, "69.50.232.54")
	require.NoError(t, err)
	assert.True(t, res.IPMatch)
	assert.Equal(t, "123", res.Record.Correlator)
	assert.True(t, res.Record.Consumed)
}

func TestValidate_IPMismatchIsSoft(t *testing.T) {
	f := newValidatorFixture(t, math.MaxInt32, time.Now())

	res, err := f.validate(t, "198.105.254.130")
	require.NoError(t, err)
	assert.False(t, res.IPMatch)
}

func TestValidate_Replayed(t *testing.T) {
	f := newValidatorFixture(t, math.MaxInt32, time.Now())

	_, err := f.validate(t, "69.50.232.54")
	require.NoError(t, err)

	_, err = f.validate(t, "69.50.232.54")
	assert.ErrorIs(t, err, model.ErrNutReplayed)
}

func TestValidate_UnknownCounter(t *testing.T) {
	f := newValidatorFixture(t, math.MaxInt32, time.Now())
	f.token.Counter += 100

	_, err := f.validate(t, "69.50.232.54")
	assert.ErrorIs(t, err, model.ErrNutReplayed)
}

func TestValidate_SupersededNut(t *testing.T) {
	ctx := context.Background()
	f := newValidatorFixture(t, math.MaxInt32, time.Now())

	p, err := f.store.StartTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, p.StoreNut(ctx, model.NutRecord{Counter: f.token.Counter + 1, Correlator: "123"}))
	require.NoError(t, p.Commit(ctx))

	_, err = f.validate(t, "69.50.232.54")
	assert.ErrorIs(t, err, model.ErrNutReplayed)
}

func TestValidate_ExpiredInJan2016(t *testing.T) {
	f := newValidatorFixture(t, 1000, time.Date(2016, 1, 3, 10, 15, 30, 0, time.UTC))

	_, err := f.validate(t, "69.50.232.54")
	assert.ErrorIs(t, err, model.ErrNutExpired)

	// the failed attempt must not consume the nut
	ctx := context.Background()
	p, err := f.store.StartTransaction(ctx)
	require.NoError(t, err)
	defer p.Rollback(ctx)
	consumed, err := p.IsNutConsumed(ctx, f.token.Counter)
	require.NoError(t, err)
	assert.False(t, consumed)
}
