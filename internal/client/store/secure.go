package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/parcelsync/internal/cryptox"
	"github.com/dmitrijs2005/parcelsync/internal/dbx"
)

const saltSize = 16

var ErrEmptyPassphrase = errors.New("secure store passphrase is empty")

// SecureStore is the secure tier. Values live in the secure_kv table,
// never next to plain data, and are sealed with a key derived from the
// device passphrase and a per-install salt.
type SecureStore struct {
	db  dbx.DBTX
	key []byte
}

// NewSecureStore derives the sealing key. The salt is created on first use
// and kept in the plain tier; it is not secret.
func NewSecureStore(ctx context.Context, db dbx.DBTX, plain Store, passphrase string) (*SecureStore, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}

	salt, err := loadOrCreateSalt(ctx, plain)
	if err != nil {
		return nil, err
	}

	return &SecureStore{db: db, key: cryptox.DeriveKey([]byte(passphrase), salt)}, nil
}

func loadOrCreateSalt(ctx context.Context, plain Store) ([]byte, error) {
	encoded, ok, err := plain.Get(ctx, KeySecureSalt)
	if err != nil {
		return nil, err
	}
	if ok {
		salt, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode secure salt: %w", err)
		}
		return salt, nil
	}

	salt, err := cryptox.RandomBytes(saltSize)
	if err != nil {
		return nil, err
	}
	if err := plain.Set(ctx, KeySecureSalt, base64.StdEncoding.EncodeToString(salt)); err != nil {
		return nil, err
	}
	return salt, nil
}

func (s *SecureStore) Get(ctx context.Context, key string) (string, bool, error) {
	var sealed []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM secure_kv WHERE key = ?`, key).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get secure_kv[%s]: %w", key, err)
	}

	plain, err := cryptox.Open(sealed, s.key)
	if err != nil {
		return "", false, fmt.Errorf("failed to open secure_kv[%s]: %w", key, err)
	}
	return string(plain), true, nil
}

func (s *SecureStore) Set(ctx context.Context, key, value string) error {
	sealed, err := cryptox.Seal([]byte(value), s.key)
	if err != nil {
		return fmt.Errorf("failed to seal secure_kv[%s]: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO secure_kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, sealed)
	if err != nil {
		return fmt.Errorf("failed to set secure_kv[%s]: %w", key, err)
	}
	return nil
}

func (s *SecureStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM secure_kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete secure_kv[%s]: %w", key, err)
	}
	return nil
}
