// Package users declares the user repository used by authentication.
package users

import (
	"context"

	"github.com/dmitrijs2005/parcelsync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// GetUserByEmail returns common.ErrorNotFound when no user matches.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}
