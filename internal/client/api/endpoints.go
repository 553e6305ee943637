package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/parcelsync/internal/client/models"
	"github.com/dmitrijs2005/parcelsync/internal/common"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type credentialRequest struct {
	Extension string `json:"extension"`
}

// Login exchanges user credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (models.Tokens, error) {
	var tokens models.Tokens
	resp, err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   loginRequest{Email: email, Password: password},
	})
	if err != nil {
		return tokens, err
	}
	if err := decode(resp, &tokens); err != nil {
		return tokens, err
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return tokens, &Error{Kind: KindUnknown, Status: resp.Status, Message: "login response is missing tokens", RequestID: resp.RequestID}
	}
	return tokens, nil
}

// RefreshTokens calls the refresh endpoint. It never goes through the
// Authenticator, so a rejected refresh cannot recurse.
func (c *Client) RefreshTokens(ctx context.Context, refreshToken string) (models.Tokens, error) {
	var tokens models.Tokens
	resp, err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   "/auth/refresh",
		Body:   refreshRequest{RefreshToken: refreshToken},
	})
	if err != nil {
		return tokens, err
	}
	if err := decode(resp, &tokens); err != nil {
		return tokens, err
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return tokens, &Error{Kind: KindUnknown, Status: resp.Status, Message: "refresh response is missing tokens", RequestID: resp.RequestID}
	}
	return tokens, nil
}

// RequestUploadCredential asks for a single-use upload URL for a file with
// the given extension (without the dot, e.g. "jpg").
func (c *Client) RequestUploadCredential(ctx context.Context, extension string) (models.UploadCredential, error) {
	var cred models.UploadCredential
	resp, err := c.Do(ctx, &Request{
		Method:        http.MethodPost,
		Path:          "/uploads/credential",
		Body:          credentialRequest{Extension: strings.TrimPrefix(extension, ".")},
		Authenticated: true,
	})
	if err != nil {
		return cred, err
	}
	if err := decode(resp, &cred); err != nil {
		return cred, err
	}
	if cred.UploadURL == "" {
		return cred, &Error{Kind: KindUnknown, Status: resp.Status, Message: "upload credential is missing uploadUrl", RequestID: resp.RequestID}
	}
	return cred, nil
}

// UploadBinary PUTs the payload to a presigned URL. The URL carries its own
// authorization, so no bearer token is attached. An expired credential comes
// back as KindForbidden.
func (c *Client) UploadBinary(ctx context.Context, cred models.UploadCredential, body io.Reader, size int64, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, cred.UploadURL, body)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = size
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	_, err = c.execute(ctx, req)
	return err
}

// CreateRecord creates the logical record for an uploaded payload. The
// client item id doubles as the idempotency key.
func (c *Client) CreateRecord(ctx context.Context, in models.RecordRequest) (models.Record, error) {
	var rec models.Record
	resp, err := c.Do(ctx, &Request{
		Method:        http.MethodPost,
		Path:          "/records",
		Body:          in,
		Header:        http.Header{common.IdempotencyKeyHeader: []string{in.ClientItemID}},
		Authenticated: true,
	})
	if err != nil {
		return rec, err
	}
	if err := decode(resp, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// Ping checks that the backend answers GET /health.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/health"})
	return err
}
