// Package common contains shared constants and sentinel errors used across
// the client and the reference backend.
package common

const (
	AuthorizationHeader  = "Authorization"
	BearerPrefix         = "Bearer "
	RequestIDHeader      = "x-request-id"
	IdempotencyKeyHeader = "Idempotency-Key"
)
