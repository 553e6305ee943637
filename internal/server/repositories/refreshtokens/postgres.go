// Package refreshtokens provides a PostgreSQL-backed repository for managing
// refresh tokens used in the server's authentication flow. Only a SHA-256
// digest of each token is stored.
package refreshtokens

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/parcelsync/internal/common"
	"github.com/dmitrijs2005/parcelsync/internal/dbx"
	"github.com/dmitrijs2005/parcelsync/internal/server/models"
)

// PostgresRepository works over dbx.DBTX (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// HashToken returns the stored form of token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (r *PostgresRepository) Create(ctx context.Context, userID string, token string, validity time.Duration) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
	`
	expires := r.now().Add(validity)
	if _, err := r.db.ExecContext(ctx, query, userID, HashToken(token), expires); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, expires_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	rt := &models.RefreshToken{Token: token}
	row := r.db.QueryRowContext(ctx, query, HashToken(token))
	if err := row.Scan(&rt.ID, &rt.UserID, &rt.Expires, &rt.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return rt, nil
}

// Delete fails with common.ErrorNotFound when the token was already
// consumed.
func (r *PostgresRepository) Delete(ctx context.Context, token string) error {
	err := dbx.ExecOne(ctx, r.db, `DELETE FROM refresh_tokens WHERE token_hash = $1`, HashToken(token))
	switch {
	case errors.Is(err, dbx.ErrNoRowsAffected):
		return common.ErrorNotFound
	case err != nil:
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}
