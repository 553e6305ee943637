// Package store is the durable key-value layer of the client. Two tiers
// exist: a plain tier for the access token and the queue snapshot, and a
// secure tier, kept in a separate table and sealed with AES-GCM, for the
// refresh token.
package store

import "context"

// Well-known keys.
const (
	KeyQueueSnapshot = "parcelsync/queue/v1"
	KeyAccessToken   = "parcelsync/access-token"
	KeyRefreshToken  = "parcelsync/refresh-token"
	KeySecureSalt    = "parcelsync/secure-salt"
)

// Store is a string key-value store. Get reports ok=false for absent keys;
// Delete of an absent key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
