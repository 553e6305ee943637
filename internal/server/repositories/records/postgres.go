package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/parcelsync/internal/common"
	"github.com/dmitrijs2005/parcelsync/internal/dbx"
	"github.com/dmitrijs2005/parcelsync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.Record) (*models.Record, bool, error) {
	query :=
		`INSERT INTO records (user_id, client_item_id, target_collection_id, resource_url,
		     remarks, recipient_name, tracking_number, mobile_number, collected_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id, client_item_id) DO NOTHING
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		rec.UserID, rec.ClientItemID, rec.TargetCollectionID, rec.ResourceURL,
		rec.Remarks, rec.RecipientName, rec.TrackingNumber, rec.MobileNumber, rec.CollectedAt,
	).Scan(&rec.ID, &rec.CreatedAt)

	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("db error: %w", err)
	}

	existing, err := r.GetByClientItemID(ctx, rec.UserID, rec.ClientItemID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *PostgresRepository) GetByClientItemID(ctx context.Context, userID, clientItemID string) (*models.Record, error) {
	query :=
		`SELECT id, client_item_id, target_collection_id, resource_url,
		     remarks, recipient_name, tracking_number, mobile_number, collected_at, created_at
		 FROM records
		 WHERE user_id = $1 AND client_item_id = $2
		 `

	rec := &models.Record{UserID: userID}
	err := r.db.QueryRowContext(ctx, query, userID, clientItemID).Scan(
		&rec.ID, &rec.ClientItemID, &rec.TargetCollectionID, &rec.ResourceURL,
		&rec.Remarks, &rec.RecipientName, &rec.TrackingNumber, &rec.MobileNumber,
		&rec.CollectedAt, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}
