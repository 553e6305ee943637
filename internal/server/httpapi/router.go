// Package httpapi is the backend's REST surface: login, token refresh,
// upload credentials and record creation.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/parcelsync/internal/logging"
	"github.com/dmitrijs2005/parcelsync/internal/server/models"
	"github.com/dmitrijs2005/parcelsync/internal/server/services"
	"github.com/dmitrijs2005/parcelsync/internal/server/storage"
)

type UserService interface {
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Authenticate(accessToken string) (string, error)
}

type RecordService interface {
	RequestUploadCredential(ctx context.Context, extension string) (storage.Credential, error)
	CreateRecord(ctx context.Context, userID string, in services.CreateRecordInput) (*models.Record, bool, error)
}

type API struct {
	users   UserService
	records RecordService
	logger  logging.Logger
}

func New(us UserService, rs RecordService, l logging.Logger) *API {
	return &API{users: us, records: rs, logger: l.With("module", "http_api")}
}

// Routes builds the router.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(a.accessLog)

	r.Get("/health", healthHandler)
	r.Post("/auth/login", a.login)
	r.Post("/auth/refresh", a.refresh)

	r.Group(func(r chi.Router) {
		r.Use(a.requireUser)
		r.Post("/uploads/credential", a.uploadCredential)
		r.Post("/records", a.createRecord)
	})

	return r
}
