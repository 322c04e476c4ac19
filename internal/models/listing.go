package models

import "time"

// Listing lifecycle statuses. Deletion is a status transition; the
// record itself is retained.
const (
	ListingStatusActive  = "active"
	ListingStatusSold    = "sold"
	ListingStatusDeleted = "deleted"
)

// Listing types
const (
	ListingTypeSell = "sell"
	ListingTypeBuy  = "buy"
)

// BookListing represents a book offered for sale or wanted
type BookListing struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Category    string    `json:"category"`
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	ListingType string    `json:"listingType"`
	Location    string    `json:"location"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ListingRequest is the structure for listing creation requests
type ListingRequest struct {
	Title       string `json:"title" binding:"required"`
	Author      string `json:"author" binding:"required"`
	Category    string `json:"category" binding:"required"`
	Condition   string `json:"condition" binding:"required"`
	Description string `json:"description" binding:"required"`
	Price       string `json:"price" binding:"required"`
	ImageURL    string `json:"imageUrl"`
	ListingType string `json:"listingType" binding:"required,oneof=sell buy"`
	Location    string `json:"location" binding:"required"`
	Status      string `json:"status" binding:"omitempty,oneof=active sold deleted"`
}

// ListingUpdate carries the optional fields of a partial update.
// Nil fields are left untouched.
type ListingUpdate struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	Category    *string `json:"category"`
	Condition   *string `json:"condition"`
	Description *string `json:"description"`
	Price       *string `json:"price"`
	ImageURL    *string `json:"imageUrl"`
	ListingType *string `json:"listingType" binding:"omitempty,oneof=sell buy"`
	Location    *string `json:"location"`
	Status      *string `json:"status" binding:"omitempty,oneof=active sold deleted"`
}

// ListingSummary is the trimmed listing shape attached to conversation
// summaries.
type ListingSummary struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}
