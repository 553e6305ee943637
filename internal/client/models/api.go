package models

import "time"

// Tokens is the credential pair issued on login and on every refresh.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// UploadCredential is a short-lived, single-use authorization to write one
// object directly to storage.
type UploadCredential struct {
	UploadURL        string `json:"uploadUrl"`
	FinalResourceURL string `json:"finalResourceUrl"`
}

// RecordRequest is the body of POST /records.
type RecordRequest struct {
	TargetCollectionID string    `json:"targetCollectionId"`
	ResourceURL        string    `json:"resourceUrl"`
	Remarks            string    `json:"remarks,omitempty"`
	RecipientName      string    `json:"recipientName,omitempty"`
	TrackingNumber     string    `json:"trackingNumber,omitempty"`
	MobileNumber       string    `json:"mobileNumber,omitempty"`
	CollectedAt        time.Time `json:"collectedAt"`
	ClientItemID       string    `json:"clientItemId"`
}

// Record is the backend's logical record created for a delivered item.
type Record struct {
	ID                 string    `json:"id"`
	TargetCollectionID string    `json:"targetCollectionId"`
	ResourceURL        string    `json:"resourceUrl"`
	Remarks            string    `json:"remarks,omitempty"`
	RecipientName      string    `json:"recipientName,omitempty"`
	TrackingNumber     string    `json:"trackingNumber,omitempty"`
	MobileNumber       string    `json:"mobileNumber,omitempty"`
	CollectedAt        time.Time `json:"collectedAt"`
	ClientItemID       string    `json:"clientItemId"`
	CreatedAt          time.Time `json:"createdAt"`
}
