// Package records stores parcel records created by the upload flow.
package records

import (
	"context"

	"github.com/dmitrijs2005/parcelsync/internal/server/models"
)

type Repository interface {
	// Create inserts rec unless the user already has a record with the same
	// client item id. In that case the existing record is returned and
	// created is false.
	Create(ctx context.Context, rec *models.Record) (out *models.Record, created bool, err error)
	GetByClientItemID(ctx context.Context, userID, clientItemID string) (*models.Record, error)
}
