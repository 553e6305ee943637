package services

import (
	"context"
	"database/sql"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/dmitrijs2005/parcelsync/internal/common"
	"github.com/dmitrijs2005/parcelsync/internal/server/models"
	"github.com/dmitrijs2005/parcelsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/parcelsync/internal/server/storage"
)

var allowedExtensions = map[string]bool{"jpg": true, "jpeg": true, "png": true, "heic": true}

// Presigner issues single-use upload URLs.
type Presigner interface {
	PresignUpload(ctx context.Context, extension, contentType string) (storage.Credential, error)
}

// CreateRecordInput is what a client sends after a successful upload.
type CreateRecordInput struct {
	TargetCollectionID string    `json:"targetCollectionId"`
	ResourceURL        string    `json:"resourceUrl"`
	Remarks            string    `json:"remarks"`
	RecipientName      string    `json:"recipientName"`
	TrackingNumber     string    `json:"trackingNumber"`
	MobileNumber       string    `json:"mobileNumber"`
	CollectedAt        time.Time `json:"collectedAt"`
	ClientItemID       string    `json:"clientItemId"`
}

type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	presigner   Presigner
}

func NewRecordService(db *sql.DB, m repomanager.RepositoryManager, p Presigner) *RecordService {
	return &RecordService{db: db, repomanager: m, presigner: p}
}

// RequestUploadCredential validates the extension and presigns a PUT.
func (s *RecordService) RequestUploadCredential(ctx context.Context, extension string) (storage.Credential, error) {
	ext := strings.ToLower(strings.TrimPrefix(extension, "."))
	if !allowedExtensions[ext] {
		return storage.Credential{}, fmt.Errorf("%w: unsupported extension %q", common.ErrorValidation, extension)
	}
	return s.presigner.PresignUpload(ctx, ext, mime.TypeByExtension("."+ext))
}

// CreateRecord stores a record for userID. Repeating a request with the
// same client item id returns the original record and created=false.
func (s *RecordService) CreateRecord(ctx context.Context, userID string, in CreateRecordInput) (*models.Record, bool, error) {
	if err := in.validate(); err != nil {
		return nil, false, err
	}

	rec := &models.Record{
		UserID:             userID,
		ClientItemID:       in.ClientItemID,
		TargetCollectionID: in.TargetCollectionID,
		ResourceURL:        in.ResourceURL,
		Remarks:            in.Remarks,
		RecipientName:      in.RecipientName,
		TrackingNumber:     in.TrackingNumber,
		MobileNumber:       in.MobileNumber,
		CollectedAt:        in.CollectedAt,
	}

	out, created, err := s.repomanager.Records(s.db).Create(ctx, rec)
	if err != nil {
		return nil, false, fmt.Errorf("error creating record: %w", err)
	}
	return out, created, nil
}

func (in CreateRecordInput) validate() error {
	var missing []string
	if in.TargetCollectionID == "" {
		missing = append(missing, "targetCollectionId")
	}
	if in.ResourceURL == "" {
		missing = append(missing, "resourceUrl")
	}
	if in.ClientItemID == "" {
		missing = append(missing, "clientItemId")
	}
	if in.CollectedAt.IsZero() {
		missing = append(missing, "collectedAt")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", common.ErrorValidation, strings.Join(missing, ", "))
	}
	return nil
}
