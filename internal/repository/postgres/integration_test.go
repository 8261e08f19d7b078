//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dtroode/sqrl-server/internal/model"
	repo "github.com/dtroode/sqrl-server/internal/repository/postgres"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "sqrl_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/sqrl_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func inTx(t *testing.T, store *repo.Store, fn func(p model.Persistence)) {
	t.Helper()
	ctx := context.Background()
	p, err := store.StartTransaction(ctx)
	require.NoError(t, err)
	fn(p)
	require.NoError(t, p.Commit(ctx))
}

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	conn, err := repo.NewConnection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	store := repo.NewStore(conn)
	now := time.Now().UTC().Truncate(time.Second)

	const (
		correlator = "jUJVUIpFWCP2PEMgivCIEme3d32GVH3UTafvAmL1Uqg"
		idk        = "m470Fb8O3XY8xAqlN2pCL0SokqPYNazwdc5sT6SLnUM"
		newIdk     = "Fq0EwQJ1XyWvYkq2mGdZk3tQm9xP8yB7nHc6rVd4sA0"
	)

	var counter uint32
	t.Run("nut", func(t *testing.T) {
		inTx(t, store, func(p model.Persistence) {
			counter, err = p.NextNutCounter(ctx)
			require.NoError(t, err)
			require.NoError(t, p.StoreNut(ctx, model.NutRecord{
				Counter:    counter,
				Correlator: correlator,
				IssuedAt:   now,
				ExpiresAt:  now.Add(5 * time.Minute),
			}))
		})

		inTx(t, store, func(p model.Persistence) {
			nut, err := p.FetchNut(ctx, counter)
			require.NoError(t, err)
			require.Equal(t, correlator, nut.Correlator)
			require.False(t, nut.Consumed)

			c, err := p.FetchCorrelator(ctx, correlator)
			require.NoError(t, err)
			require.Equal(t, counter, c.LatestCounter)
			require.Equal(t, model.CorrelatorStatusPending, c.Status)
		})
	})

	t.Run("consume_once", func(t *testing.T) {
		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			won int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p, err := store.StartTransaction(ctx)
				require.NoError(t, err)
				ok, err := p.MarkNutConsumed(ctx, counter)
				require.NoError(t, err)
				require.NoError(t, p.Commit(ctx))
				if ok {
					mu.Lock()
					won++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		require.Equal(t, 1, won)
	})

	t.Run("identity", func(t *testing.T) {
		inTx(t, store, func(p model.Persistence) {
			require.NoError(t, p.CreateAndEnableSqrlIdentity(ctx, idk, map[string]string{
				model.DataKeySuk: "suk",
				model.DataKeyVuk: "vuk",
			}))
			require.NoError(t, p.MarkCorrelatorAuthenticated(ctx, correlator, idk))
			require.NoError(t, p.UpdateLastAuthenticated(ctx, idk))
		})

		inTx(t, store, func(p model.Persistence) {
			identity, err := p.FetchSqrlIdentity(ctx, idk)
			require.NoError(t, err)
			require.True(t, identity.Enabled())
			require.Equal(t, "suk", identity.Suk())
			require.NotNil(t, identity.LastAuthenticatedAt)

			require.NoError(t, p.SetSqrlFlagForIdentity(ctx, idk, model.FlagSqrlAuthEnabled, false))
			enabled, err := p.FetchSqrlFlagForIdentity(ctx, idk, model.FlagSqrlAuthEnabled)
			require.NoError(t, err)
			require.False(t, enabled)

			hardlock, err := p.FetchSqrlFlagForIdentity(ctx, idk, model.FlagHardlock)
			require.NoError(t, err)
			require.False(t, hardlock)

			_, found, err := p.FetchIdentityDataItem(ctx, idk, "missing")
			require.NoError(t, err)
			require.False(t, found)

			c, err := p.FetchCorrelator(ctx, correlator)
			require.NoError(t, err)
			require.Equal(t, model.CorrelatorStatusAuthenticated, c.Status)
			require.Equal(t, idk, c.AuthenticatedAs)
		})
	})

	t.Run("rekey", func(t *testing.T) {
		inTx(t, store, func(p model.Persistence) {
			require.NoError(t, p.UpdateIdkForSqrlIdentity(ctx, idk, newIdk))
			require.NoError(t, p.StoreSqrlDataForSqrlIdentity(ctx, newIdk, map[string]string{model.DataKeySuk: "suk2"}))
		})

		inTx(t, store, func(p model.Persistence) {
			current, err := p.FetchIdkByPreviousIdk(ctx, idk)
			require.NoError(t, err)
			require.Equal(t, newIdk, current)

			suk, found, err := p.FetchIdentityDataItem(ctx, newIdk, model.DataKeySuk)
			require.NoError(t, err)
			require.True(t, found)
			require.Equal(t, "suk2", suk)
		})
	})

	t.Run("remove", func(t *testing.T) {
		inTx(t, store, func(p model.Persistence) {
			require.NoError(t, p.DeleteSqrlIdentity(ctx, newIdk))
		})

		inTx(t, store, func(p model.Persistence) {
			_, err := p.FetchSqrlIdentity(ctx, newIdk)
			require.ErrorIs(t, err, model.ErrNotFound)
			_, err = p.FetchIdkByPreviousIdk(ctx, idk)
			require.ErrorIs(t, err, model.ErrNotFound)
			_, _, err = p.FetchIdentityDataItem(ctx, newIdk, model.DataKeySuk)
			require.ErrorIs(t, err, model.ErrNotFound)

			c, err := p.FetchCorrelator(ctx, correlator)
			require.NoError(t, err)
			require.Equal(t, model.CorrelatorStatusPending, c.Status)
			require.Empty(t, c.AuthenticatedAs)
			require.Equal(t, counter, c.LatestCounter)
			_, err = p.FetchNut(ctx, counter)
			require.NoError(t, err)
			require.ErrorIs(t, p.DeleteSqrlIdentity(ctx, newIdk), model.ErrNotFound)
		})
	})
}
