package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dtroode/sqrl-server/internal/model"
)

var (
	_ model.PersistenceFactory = (*Store)(nil)
	_ model.Persistence        = (*Tx)(nil)
)

// Store opens read-committed transactions over the pool.
type Store struct {
	db *Connection
}

func NewStore(db *Connection) *Store {
	return &Store{
		db: db,
	}
}

func (s *Store) StartTransaction(ctx context.Context) (model.Persistence, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx implements model.Persistence on a single pgx transaction.
type Tx struct {
	tx pgx.Tx
}

func (t *Tx) NextNutCounter(ctx context.Context) (uint32, error) {
	var counter int64
	if err := t.tx.QueryRow(ctx, `SELECT nextval('sqrl_nut_counter')`).Scan(&counter); err != nil {
		return 0, fmt.Errorf("failed to allocate nut counter: %w", err)
	}
	return uint32(counter), nil
}

func (t *Tx) StoreNut(ctx context.Context, nut model.NutRecord) error {
	correlatorQuery := `INSERT INTO sqrl_correlators (value, status, latest_counter, created_at, expires_at)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (value) DO UPDATE SET latest_counter = EXCLUDED.latest_counter`

	_, err := t.tx.Exec(ctx, correlatorQuery,
		nut.Correlator, string(model.CorrelatorStatusPending), int64(nut.Counter), nut.IssuedAt, nut.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to link nut to correlator: %w", err)
	}

	nutQuery := `INSERT INTO sqrl_nuts (counter, correlator, issued_at, expires_at, consumed)
			  VALUES ($1, $2, $3, $4, $5)`

	_, err = t.tx.Exec(ctx, nutQuery,
		int64(nut.Counter), nut.Correlator, nut.IssuedAt, nut.ExpiresAt, nut.Consumed,
	)
	if err != nil {
		return fmt.Errorf("failed to store nut: %w", err)
	}
	return nil
}

func (t *Tx) FetchNut(ctx context.Context, counter uint32) (model.NutRecord, error) {
	query := `SELECT counter, correlator, issued_at, expires_at, consumed
			  FROM sqrl_nuts WHERE counter = $1`

	var (
		nut    model.NutRecord
		stored int64
	)
	err := t.tx.QueryRow(ctx, query, int64(counter)).Scan(
		&stored, &nut.Correlator, &nut.IssuedAt, &nut.ExpiresAt, &nut.Consumed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.NutRecord{}, model.ErrNotFound
		}
		return model.NutRecord{}, fmt.Errorf("failed to fetch nut: %w", err)
	}
	nut.Counter = uint32(stored)
	return nut, nil
}

func (t *Tx) MarkNutConsumed(ctx context.Context, counter uint32) (bool, error) {
	query := `UPDATE sqrl_nuts SET consumed = TRUE WHERE counter = $1 AND NOT consumed`

	tag, err := t.tx.Exec(ctx, query, int64(counter))
	if err != nil {
		return false, fmt.Errorf("failed to consume nut: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *Tx) IsNutConsumed(ctx context.Context, counter uint32) (bool, error) {
	nut, err := t.FetchNut(ctx, counter)
	if err != nil {
		return false, err
	}
	return nut.Consumed, nil
}

func (t *Tx) DoesSqrlIdentityExistByIdk(ctx context.Context, idk string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM sqrl_identities WHERE idk = $1)`

	if err := t.tx.QueryRow(ctx, query, idk).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check identity: %w", err)
	}
	return exists, nil
}

func (t *Tx) FetchSqrlIdentity(ctx context.Context, idk string) (model.Identity, error) {
	identity := model.Identity{
		Flags: make(map[model.Flag]bool),
		Data:  make(map[string]string),
	}
	query := `SELECT id, idk, created_at, last_authenticated_at, disabled_at
			  FROM sqrl_identities WHERE idk = $1`

	err := t.tx.QueryRow(ctx, query, idk).Scan(
		&identity.ID, &identity.Idk, &identity.CreatedAt, &identity.LastAuthenticatedAt, &identity.DisabledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Identity{}, model.ErrNotFound
		}
		return model.Identity{}, fmt.Errorf("failed to fetch identity: %w", err)
	}

	rows, err := t.tx.Query(ctx, `SELECT flag, value FROM sqrl_identity_flags WHERE identity_id = $1`, identity.ID)
	if err != nil {
		return model.Identity{}, fmt.Errorf("failed to fetch identity flags: %w", err)
	}
	for rows.Next() {
		var (
			flag  string
			value bool
		)
		if err := rows.Scan(&flag, &value); err != nil {
			rows.Close()
			return model.Identity{}, fmt.Errorf("failed to scan identity flag: %w", err)
		}
		identity.Flags[model.Flag(flag)] = value
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return model.Identity{}, fmt.Errorf("failed to read identity flags: %w", err)
	}

	rows, err = t.tx.Query(ctx, `SELECT name, value FROM sqrl_identity_data WHERE identity_id = $1`, identity.ID)
	if err != nil {
		return model.Identity{}, fmt.Errorf("failed to fetch identity data: %w", err)
	}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			rows.Close()
			return model.Identity{}, fmt.Errorf("failed to scan identity data: %w", err)
		}
		identity.Data[name] = value
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return model.Identity{}, fmt.Errorf("failed to read identity data: %w", err)
	}

	return identity, nil
}

func (t *Tx) FetchIdkByPreviousIdk(ctx context.Context, pidk string) (string, error) {
	var idk string
	query := `SELECT i.idk FROM sqrl_previous_idks p
			  JOIN sqrl_identities i ON i.id = p.identity_id
			  WHERE p.previous_idk = $1`

	if err := t.tx.QueryRow(ctx, query, pidk).Scan(&idk); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", model.ErrNotFound
		}
		return "", fmt.Errorf("failed to resolve previous idk: %w", err)
	}
	return idk, nil
}

func (t *Tx) CreateAndEnableSqrlIdentity(ctx context.Context, idk string, data map[string]string) error {
	id := uuid.New()
	query := `INSERT INTO sqrl_identities (id, idk, created_at) VALUES ($1, $2, now())`

	if _, err := t.tx.Exec(ctx, query, id, idk); err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO sqrl_identity_flags (identity_id, flag, value) VALUES ($1, $2, TRUE)`,
		id, string(model.FlagSqrlAuthEnabled))
	for name, value := range data {
		batch.Queue(`INSERT INTO sqrl_identity_data (identity_id, name, value) VALUES ($1, $2, $3)`,
			id, name, value)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to store identity attributes: %w", err)
	}
	return nil
}

func (t *Tx) DeleteSqrlIdentity(ctx context.Context, idk string) error {
	detachQuery := `UPDATE sqrl_correlators c
			  SET status = $2, authenticated_identity_id = NULL, authenticated_at = NULL
			  FROM sqrl_identities i
			  WHERE c.authenticated_identity_id = i.id AND i.idk = $1`

	if _, err := t.tx.Exec(ctx, detachQuery, idk, string(model.CorrelatorStatusPending)); err != nil {
		return fmt.Errorf("failed to detach correlators: %w", err)
	}

	tag, err := t.tx.Exec(ctx, `DELETE FROM sqrl_identities WHERE idk = $1`, idk)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (t *Tx) FetchSqrlFlagForIdentity(ctx context.Context, idk string, flag model.Flag) (bool, error) {
	var value bool
	query := `SELECT COALESCE(
				(SELECT f.value FROM sqrl_identity_flags f WHERE f.identity_id = i.id AND f.flag = $2),
				FALSE)
			  FROM sqrl_identities i WHERE i.idk = $1`

	if err := t.tx.QueryRow(ctx, query, idk, string(flag)).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, model.ErrNotFound
		}
		return false, fmt.Errorf("failed to fetch identity flag: %w", err)
	}
	return value, nil
}

func (t *Tx) SetSqrlFlagForIdentity(ctx context.Context, idk string, flag model.Flag, value bool) error {
	query := `INSERT INTO sqrl_identity_flags (identity_id, flag, value)
			  SELECT id, $2, $3 FROM sqrl_identities WHERE idk = $1
			  ON CONFLICT (identity_id, flag) DO UPDATE SET value = EXCLUDED.value`

	tag, err := t.tx.Exec(ctx, query, idk, string(flag), value)
	if err != nil {
		return fmt.Errorf("failed to set identity flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	if flag == model.FlagSqrlAuthEnabled {
		disabledQuery := `UPDATE sqrl_identities
				  SET disabled_at = CASE WHEN $2 THEN NULL ELSE now() END
				  WHERE idk = $1`
		if _, err := t.tx.Exec(ctx, disabledQuery, idk, value); err != nil {
			return fmt.Errorf("failed to update identity state: %w", err)
		}
	}
	return nil
}

func (t *Tx) FetchIdentityDataItem(ctx context.Context, idk, key string) (string, bool, error) {
	var value *string
	query := `SELECT d.value FROM sqrl_identities i
			  LEFT JOIN sqrl_identity_data d ON d.identity_id = i.id AND d.name = $2
			  WHERE i.idk = $1`

	if err := t.tx.QueryRow(ctx, query, idk, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, model.ErrNotFound
		}
		return "", false, fmt.Errorf("failed to fetch identity data: %w", err)
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

func (t *Tx) StoreSqrlDataForSqrlIdentity(ctx context.Context, idk string, data map[string]string) error {
	exists, err := t.DoesSqrlIdentityExistByIdk(ctx, idk)
	if err != nil {
		return err
	}
	if !exists {
		return model.ErrNotFound
	}

	batch := &pgx.Batch{}
	for name, value := range data {
		batch.Queue(`INSERT INTO sqrl_identity_data (identity_id, name, value)
				  SELECT id, $2, $3 FROM sqrl_identities WHERE idk = $1
				  ON CONFLICT (identity_id, name) DO UPDATE SET value = EXCLUDED.value`,
			idk, name, value)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to store identity data: %w", err)
	}
	return nil
}

func (t *Tx) UpdateIdkForSqrlIdentity(ctx context.Context, previousIdk, newIdk string) error {
	var id uuid.UUID
	query := `UPDATE sqrl_identities SET idk = $2 WHERE idk = $1 RETURNING id`

	if err := t.tx.QueryRow(ctx, query, previousIdk, newIdk).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrNotFound
		}
		return fmt.Errorf("failed to re-key identity: %w", err)
	}

	previousQuery := `INSERT INTO sqrl_previous_idks (previous_idk, identity_id) VALUES ($1, $2)
			  ON CONFLICT (previous_idk) DO UPDATE SET identity_id = EXCLUDED.identity_id`
	if _, err := t.tx.Exec(ctx, previousQuery, previousIdk, id); err != nil {
		return fmt.Errorf("failed to remember previous idk: %w", err)
	}
	return nil
}

func (t *Tx) UpdateLastAuthenticated(ctx context.Context, idk string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE sqrl_identities SET last_authenticated_at = now() WHERE idk = $1`, idk)
	if err != nil {
		return fmt.Errorf("failed to update last authentication: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (t *Tx) CreateCorrelator(ctx context.Context, correlator model.Correlator) error {
	status := correlator.Status
	if status == "" {
		status = model.CorrelatorStatusPending
	}
	query := `INSERT INTO sqrl_correlators (value, status, created_at, expires_at)
			  VALUES ($1, $2, $3, $4)`

	_, err := t.tx.Exec(ctx, query, correlator.Value, string(status), correlator.CreatedAt, correlator.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create correlator: %w", err)
	}
	return nil
}

func (t *Tx) FetchCorrelator(ctx context.Context, value string) (model.Correlator, error) {
	var (
		correlator model.Correlator
		status     string
		latest     *int64
	)
	query := `SELECT c.value, c.status, COALESCE(i.idk, ''), c.latest_counter, c.created_at, c.expires_at, c.authenticated_at
			  FROM sqrl_correlators c
			  LEFT JOIN sqrl_identities i ON i.id = c.authenticated_identity_id
			  WHERE c.value = $1`

	err := t.tx.QueryRow(ctx, query, value).Scan(
		&correlator.Value, &status, &correlator.AuthenticatedAs, &latest,
		&correlator.CreatedAt, &correlator.ExpiresAt, &correlator.AuthenticatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Correlator{}, model.ErrNotFound
		}
		return model.Correlator{}, fmt.Errorf("failed to fetch correlator: %w", err)
	}
	correlator.Status = model.CorrelatorStatus(status)
	if latest != nil {
		correlator.LatestCounter = uint32(*latest)
	}
	return correlator, nil
}

func (t *Tx) MarkCorrelatorAuthenticated(ctx context.Context, correlator, idk string) error {
	query := `UPDATE sqrl_correlators c
			  SET status = $3, authenticated_identity_id = i.id, authenticated_at = now()
			  FROM sqrl_identities i
			  WHERE c.value = $1 AND i.idk = $2`

	tag, err := t.tx.Exec(ctx, query, correlator, idk, string(model.CorrelatorStatusAuthenticated))
	if err != nil {
		return fmt.Errorf("failed to authenticate correlator: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}
