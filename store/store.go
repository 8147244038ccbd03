// Package store provides the durable credential stores backing the
// session manager: a bun/SQLite implementation that survives process
// restarts, and an in-memory one for tests and ephemeral sessions.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/autoresum/autoresum-go"
)

// Fixed storage keys, mirroring the two slots browser clients keep in
// local storage.
const (
	keyToken = "auth_token"
	keyUser  = "auth_user"
)

// credentialRow is the single key/value table both slots live in.
type credentialRow struct {
	bun.BaseModel `bun:"table:credentials,alias:cred"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,default:current_timestamp"`
}

// SQLite is a CredentialStore persisted through bun on SQLite.
type SQLite struct {
	db *bun.DB
}

var _ auth.CredentialStore = (*SQLite)(nil)

// OpenSQLite opens (or creates) the credential database at path. Use
// ":memory:" for a throwaway store.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "credential store open failed")
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	store := &SQLite{db: db}
	if err := store.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLite wraps an existing bun DB. The caller owns the connection.
func NewSQLite(ctx context.Context, db *bun.DB) (*SQLite, error) {
	store := &SQLite{db: db}
	if err := store.init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLite) init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*credentialRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "credential table init failed")
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Credential returns the stored token pair, or nil when absent.
func (s *SQLite) Credential(ctx context.Context) (*auth.Credential, error) {
	raw, found, err := s.get(ctx, keyToken)
	if err != nil || !found {
		return nil, err
	}

	var cred auth.Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		// A corrupt token row is unrecoverable; treat it as signed out.
		return nil, nil
	}
	if cred.AccessToken == "" {
		return nil, nil
	}
	return &cred, nil
}

func (s *SQLite) SetCredential(ctx context.Context, cred auth.Credential) error {
	encoded, err := json.Marshal(cred)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "credential encode failed")
	}
	return s.put(ctx, keyToken, string(encoded))
}

// User returns the cached profile. Corrupt rows yield nil rather than
// an error so a bad write can never lock a client out of sign-in.
func (s *SQLite) User(ctx context.Context) (*auth.UserProfile, error) {
	raw, found, err := s.get(ctx, keyUser)
	if err != nil || !found {
		return nil, err
	}

	var user auth.UserProfile
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, nil
	}
	return &user, nil
}

func (s *SQLite) SetUser(ctx context.Context, user *auth.UserProfile) error {
	if user == nil {
		return s.delete(ctx, keyUser)
	}
	encoded, err := json.Marshal(user)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "profile encode failed")
	}
	return s.put(ctx, keyUser, string(encoded))
}

// Clear removes both slots in one transaction.
func (s *SQLite) Clear(ctx context.Context) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*credentialRow)(nil)).
			Where("key IN (?, ?)", keyToken, keyUser).
			Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "credential clear failed")
		}
		return nil
	})
}

func (s *SQLite) get(ctx context.Context, key string) (string, bool, error) {
	row := &credentialRow{}
	err := s.db.NewSelect().
		Model(row).
		Where("key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, goerrors.Wrap(err, goerrors.CategoryInternal, "credential read failed")
	}
	return row.Value, true, nil
}

func (s *SQLite) put(ctx context.Context, key, value string) error {
	row := &credentialRow{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "credential write failed")
	}
	return nil
}

func (s *SQLite) delete(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*credentialRow)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "credential delete failed")
	}
	return nil
}
