package models

import "time"

// Conversation groups the messages exchanged between two users,
// optionally scoped to a single listing. The participant pair is
// unordered: (A,B) and (B,A) name the same conversation. At most one
// conversation exists per pair and listing scope.
type Conversation struct {
	ID            int64     `json:"id"`
	User1ID       int64     `json:"user1Id"`
	User2ID       int64     `json:"user2Id"`
	ListingID     *int64    `json:"listingId,omitempty"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}

// Involves reports whether userID is one of the two participants
func (c *Conversation) Involves(userID int64) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// Counterpart returns the other participant's id. The caller must be
// a participant.
func (c *Conversation) Counterpart(userID int64) int64 {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// ConversationSummary is a conversation enriched with the counterpart
// identity, the most recent message, and the scoped listing, as served
// by the conversations endpoint.
type ConversationSummary struct {
	Conversation
	OtherUser   *PublicUser     `json:"otherUser"`
	LastMessage *Message        `json:"lastMessage"`
	Listing     *ListingSummary `json:"listing"`
}
