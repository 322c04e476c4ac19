package models

import "time"

// Message represents a direct message between two users, optionally
// scoped to a book listing. Immutable once created apart from the
// read flag, which only ever transitions false to true.
type Message struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"senderId"`
	ReceiverID int64     `json:"receiverId"`
	ListingID  *int64    `json:"listingId,omitempty"`
	Content    string    `json:"content"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MessageRequest is the structure for message creation requests.
// The sender is taken from the authenticated session, never the body.
type MessageRequest struct {
	ReceiverID int64  `json:"receiverId" binding:"required"`
	ListingID  *int64 `json:"listingId"`
	Content    string `json:"content" binding:"required,min=1"`
}
