package service

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"net/netip"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dtroode/sqrl-server/internal/backchannel"
	"github.com/dtroode/sqrl-server/internal/base64url"
	"github.com/dtroode/sqrl-server/internal/model"
	"github.com/dtroode/sqrl-server/internal/nut"
	"github.com/dtroode/sqrl-server/internal/repository/memory"
	"github.com/dtroode/sqrl-server/internal/signature"
	"github.com/dtroode/sqrl-server/internal/testutil"
	"github.com/dtroode/sqrl-server/internal/token"
)

var (
	clientIP  = netip.MustParseAddr("127.0.0.1")
	browserIP = netip.MustParseAddr("127.0.0.1")
	otherIP   = netip.MustParseAddr("69.50.232.54")
)

type keyPair struct {
	priv ed25519.PrivateKey
	pub  string
}

func newKeyPair(seed byte) keyPair {
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
	return keyPair{priv: priv, pub: base64url.Encode(priv.Public().(ed25519.PublicKey))}
}

// sqrlClient builds signed back-channel forms the way a SQRL client does.
type sqrlClient struct {
	idk    keyPair
	unlock keyPair
	suk    string
}

func newSqrlClient() sqrlClient {
	return sqrlClient{
		idk:    newKeyPair(1),
		unlock: newKeyPair(2),
		suk:    base64url.Encode(bytes.Repeat([]byte{3}, 32)),
	}
}

func (c sqrlClient) form(cmd, server string, lines ...string) url.Values {
	block := "ver=1\r\ncmd=" + cmd + "\r\nidk=" + c.idk.pub + "\r\n"
	for _, l := range lines {
		block += l + "\r\n"
	}
	client := base64url.EncodeString(block)
	srv := base64url.EncodeString(server)

	form := url.Values{}
	form.Set(backchannel.FieldClient, client)
	form.Set(backchannel.FieldServer, srv)
	form.Set(backchannel.FieldIds, base64url.Encode(ed25519.Sign(c.idk.priv, []byte(client+srv))))
	return form
}

func (c sqrlClient) withUrs(form url.Values) url.Values {
	msg := form.Get(backchannel.FieldClient) + form.Get(backchannel.FieldServer)
	form.Set(backchannel.FieldUrs, base64url.Encode(ed25519.Sign(c.unlock.priv, []byte(msg))))
	return form
}

type fixture struct {
	t         *testing.T
	store     *memory.Store
	factory   model.PersistenceFactory
	signer    *signature.Signer
	validator *nut.Validator
	issuer    *NutIssuer
	front     *Frontchannel
	back      *Backchannel
	tokens    model.TokenManager
	site      Site
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, nil, nil)
}

// newFixtureWith wires the services over a memory store. wrap, when set,
// replaces the persistence factory used by the back-channel.
func newFixtureWith(t *testing.T, audit model.AuditSink, wrap func(model.PersistenceFactory) model.PersistenceFactory) *fixture {
	t.Helper()

	aesKey := make([]byte, 16)
	codec, err := nut.NewCodec(aesKey, nil)
	require.NoError(t, err)
	validator, err := nut.NewValidator(aesKey, nut.DefaultValiditySeconds)
	require.NoError(t, err)
	signer, err := signature.NewSigner(aesKey)
	require.NoError(t, err)
	site, err := NewSite("https://localhost:8443", "/sqrl", "/sqrl/cps", "Test Site")
	require.NoError(t, err)

	store := memory.NewStore()
	var factory model.PersistenceFactory = store
	if wrap != nil {
		factory = wrap(store)
	}

	lg := testutil.MakeNoopLogger()
	tokens := token.NewJWT("secret")
	issuer := NewNutIssuer(codec, validator, site, nil)

	return &fixture{
		t:         t,
		store:     store,
		factory:   factory,
		signer:    signer,
		validator: validator,
		issuer:    issuer,
		front:     NewFrontchannel(store, issuer, tokens, site, 10*time.Minute, lg),
		back: NewBackchannel(factory, backchannel.NewParser(signer), backchannel.NewEncoder(signer),
			issuer, validator, tokens, audit, nil, site, lg),
		tokens: tokens,
		site:   site,
	}
}

func (f *fixture) beginLogin() model.LoginSession {
	session, err := f.front.BeginLogin(context.Background(), browserIP)
	require.NoError(f.t, err)
	return session
}

// send posts form answering nut and returns the response, the decoded reply
// block and its values.
func (f *fixture) send(form url.Values, queryNut string, ip netip.Addr) (model.BackchannelResponse, string, map[string]string, error) {
	resp, err := f.back.Handle(context.Background(), model.BackchannelRequest{
		Form:     form,
		QueryNut: queryNut,
		RemoteIP: ip,
	})
	block, decodeErr := base64url.DecodeToString(resp.Body)
	require.NoError(f.t, decodeErr)
	values, parseErr := backchannel.ParseReplyBlock(block, f.signer)
	require.NoError(f.t, parseErr)
	return resp, block, values, err
}

func (f *fixture) correlator(value string) model.Correlator {
	ctx := context.Background()
	p, err := f.store.StartTransaction(ctx)
	require.NoError(f.t, err)
	defer func() { require.NoError(f.t, p.Rollback(ctx)) }()
	c, err := p.FetchCorrelator(ctx, value)
	require.NoError(f.t, err)
	return c
}

func tifOf(flags ...backchannel.Tif) int {
	var t backchannel.Tif
	for _, f := range flags {
		t |= f
	}
	return int(t)
}

func tokenFromURL(t *testing.T, raw string) string {
	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(u.Path, "/sqrl/cps"))
	return u.Query().Get("token")
}
