package models

import "time"

// Record is the logical parcel record created after a successful upload.
// ClientItemID is unique per user and makes creation idempotent.
type Record struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"-"`
	ClientItemID       string    `json:"clientItemId"`
	TargetCollectionID string    `json:"targetCollectionId"`
	ResourceURL        string    `json:"resourceUrl"`
	Remarks            string    `json:"remarks,omitempty"`
	RecipientName      string    `json:"recipientName,omitempty"`
	TrackingNumber     string    `json:"trackingNumber,omitempty"`
	MobileNumber       string    `json:"mobileNumber,omitempty"`
	CollectedAt        time.Time `json:"collectedAt"`
	CreatedAt          time.Time `json:"createdAt"`
}
