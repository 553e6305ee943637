// Package services holds the client use cases that sit between the queue,
// the session and the API transport.
package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/parcelsync/internal/client/api"
	"github.com/dmitrijs2005/parcelsync/internal/client/models"
	"github.com/dmitrijs2005/parcelsync/internal/logging"
)

const defaultExtension = "jpg"

// UploadAPI is the part of the transport a delivery needs.
type UploadAPI interface {
	RequestUploadCredential(ctx context.Context, extension string) (models.UploadCredential, error)
	UploadBinary(ctx context.Context, cred models.UploadCredential, body io.Reader, size int64, contentType string) error
	CreateRecord(ctx context.Context, in models.RecordRequest) (models.Record, error)
}

// Payload is an opened local resource.
type Payload struct {
	Body io.ReadCloser
	Size int64
}

type PayloadOpener func(ref string) (Payload, error)

// OpenFile opens a payload reference as a local file path.
func OpenFile(ref string) (Payload, error) {
	f, err := os.Open(ref)
	if err != nil {
		return Payload{}, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return Payload{}, err
	}
	return Payload{Body: f, Size: st.Size()}, nil
}

// UploadService delivers one queued item: credential, binary upload with a
// single fresh-credential retry on Forbidden, then the record.
type UploadService interface {
	Deliver(ctx context.Context, item models.Item) (models.Record, error)
}

type uploadService struct {
	api  UploadAPI
	open PayloadOpener
	log  logging.Logger
}

func NewUploadService(a UploadAPI, open PayloadOpener, log logging.Logger) UploadService {
	if open == nil {
		open = OpenFile
	}
	if log == nil {
		log = logging.Nop()
	}
	return &uploadService{api: a, open: open, log: log.With("module", "upload")}
}

func (s *uploadService) Deliver(ctx context.Context, item models.Item) (models.Record, error) {
	ext := extensionOf(item.PayloadRef)

	cred, err := s.api.RequestUploadCredential(ctx, ext)
	if err != nil {
		return models.Record{}, fmt.Errorf("request upload credential: %w", err)
	}

	if err := s.upload(ctx, item.PayloadRef, ext, cred); err != nil {
		if !api.IsKind(err, api.KindForbidden) {
			return models.Record{}, err
		}

		// The credential expired before it was used. One fresh credential,
		// one more upload, and nothing further.
		s.log.Info(ctx, "upload credential rejected, requesting a fresh one", "id", item.ID)
		cred, err = s.api.RequestUploadCredential(ctx, ext)
		if err != nil {
			return models.Record{}, fmt.Errorf("request upload credential: %w", err)
		}
		if err := s.upload(ctx, item.PayloadRef, ext, cred); err != nil {
			return models.Record{}, err
		}
	}

	rec, err := s.api.CreateRecord(ctx, models.RecordRequest{
		TargetCollectionID: item.TargetCollectionID,
		ResourceURL:        cred.FinalResourceURL,
		Remarks:            item.Metadata.Remarks,
		RecipientName:      item.Metadata.RecipientName,
		TrackingNumber:     item.Metadata.TrackingNumber,
		MobileNumber:       item.Metadata.MobileNumber,
		CollectedAt:        item.CollectedAt,
		ClientItemID:       item.ID,
	})
	if err != nil {
		return models.Record{}, fmt.Errorf("create record: %w", err)
	}
	return rec, nil
}

func (s *uploadService) upload(ctx context.Context, ref, ext string, cred models.UploadCredential) error {
	p, err := s.open(ref)
	if err != nil {
		return fmt.Errorf("open payload: %w", err)
	}
	defer p.Body.Close()

	if err := s.api.UploadBinary(ctx, cred, p.Body, p.Size, contentTypeFor(ext)); err != nil {
		return fmt.Errorf("upload payload: %w", err)
	}
	return nil
}

func extensionOf(ref string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(ref), "."))
	if ext == "" {
		return defaultExtension
	}
	return ext
}

func contentTypeFor(ext string) string {
	if ct := mime.TypeByExtension("." + ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
