package database

import (
	"errors"
	"fmt"

	"github.com/bookxchange/bookxchange/internal/models"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrListingNotFound      = errors.New("listing not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrConversationNotFound = errors.New("conversation not found")
)

// ListingFilters enumerates the supported listing query filters.
// Set fields are ANDed together; zero values mean "no constraint".
// Status filtering is the caller's responsibility: an empty Status
// returns listings in every lifecycle state, deleted ones included.
type ListingFilters struct {
	UserID      *int64
	Category    string
	Condition   string
	ListingType string
	Status      string
	// SearchTerm matches case-insensitively against title, author or
	// description.
	SearchTerm string
}

type DBInterface interface {
	// User methods
	CreateUser(username, email, passwordHash, location string) (*models.User, error)
	GetUser(id int64) (*models.User, error)
	GetUserByUsername(username string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)

	// Listing methods
	CreateBookListing(userID int64, req *models.ListingRequest) (*models.BookListing, error)
	GetBookListing(id int64) (*models.BookListing, error)
	GetBookListings(filters ListingFilters) ([]*models.BookListing, error)
	UpdateBookListing(id int64, update *models.ListingUpdate) (*models.BookListing, error)
	DeleteBookListing(id int64) (bool, error)

	// Message methods
	CreateMessage(senderID, receiverID int64, listingID *int64, content string) (*models.Message, error)
	GetMessage(id int64) (*models.Message, error)
	GetMessages(conversationID int64) ([]*models.Message, error)
	GetMessagesByUser(userID int64) ([]*models.Message, error)
	MarkMessageAsRead(id int64) (bool, error)

	// Conversation methods
	CreateConversation(user1ID, user2ID int64, listingID *int64) (*models.Conversation, error)
	GetConversation(id int64) (*models.Conversation, error)
	GetConversationByUsers(user1ID, user2ID int64, listingID *int64) (*models.Conversation, error)
	// GetOrCreateConversation resolves the conversation for the pair
	// and scope, creating it when none exists. Lookup and create are
	// one atomic step; concurrent callers for the same pair get the
	// same conversation. The bool reports whether it was created.
	GetOrCreateConversation(user1ID, user2ID int64, listingID *int64) (*models.Conversation, bool, error)
	GetConversationsByUser(userID int64) ([]*models.Conversation, error)
	UpdateConversationLastMessageTime(id int64) (bool, error)

	Close() error
}

type DatabaseType string

const (
	Memory     DatabaseType = "memory"
	PostgreSQL DatabaseType = "postgres"
)

// NewDatabase creates a store of the requested type. The connection
// string is ignored for the in-memory store.
func NewDatabase(dbType DatabaseType, connStr string) (DBInterface, error) {
	switch dbType {
	case Memory:
		return NewMemoryDB(), nil
	case PostgreSQL:
		return NewPostgresDB(connStr)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}
