// Package models defines the client-side data models of the parcel queue.
package models

import "time"

// Status is the lifecycle state of a queued item. Delivered items are
// removed from the queue, so there is no delivered status.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusUploading Status = "uploading"
	StatusFailed    Status = "failed"
)

// Metadata carries the optional user-entered fields through to the record.
type Metadata struct {
	Remarks        string `json:"remarks,omitempty" yaml:"remarks,omitempty"`
	RecipientName  string `json:"recipientName,omitempty" yaml:"recipientName,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty" yaml:"trackingNumber,omitempty"`
	MobileNumber   string `json:"mobileNumber,omitempty" yaml:"mobileNumber,omitempty"`
}

// Capture is what a capture collaborator hands to the queue.
type Capture struct {
	// PayloadRef is the local path of the photo. Bytes are never persisted.
	PayloadRef         string
	TargetCollectionID string
	Metadata           Metadata
	// CollectedAt defaults to the enqueue time when zero.
	CollectedAt time.Time
}

// Item is one pending unit of work, persisted as part of the queue snapshot.
type Item struct {
	ID                 string     `json:"id"`
	PayloadRef         string     `json:"payloadRef"`
	TargetCollectionID string     `json:"targetCollectionId"`
	Metadata           Metadata   `json:"metadata"`
	CollectedAt        time.Time  `json:"collectedAt"`
	CreatedAt          time.Time  `json:"createdAt"`
	Status             Status     `json:"status"`
	Attempts           int        `json:"attempts"`
	LastAttemptAt      *time.Time `json:"lastAttemptAt"`
	LastError          *string    `json:"lastError"`
}

// Clone returns a deep copy so callers never alias queue state.
func (i Item) Clone() Item {
	c := i
	if i.LastAttemptAt != nil {
		t := *i.LastAttemptAt
		c.LastAttemptAt = &t
	}
	if i.LastError != nil {
		s := *i.LastError
		c.LastError = &s
	}
	return c
}
