package api

import (
	"github.com/stretchr/testify/mock"

	"github.com/bookxchange/bookxchange/internal/database"
	"github.com/bookxchange/bookxchange/internal/models"
)

// MockDB implements database.DBInterface for handler tests
type MockDB struct {
	mock.Mock
}

func (m *MockDB) CreateUser(username, email, passwordHash, location string) (*models.User, error) {
	args := m.Called(username, email, passwordHash, location)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockDB) GetUser(id int64) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockDB) GetUserByUsername(username string) (*models.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockDB) GetUserByEmail(email string) (*models.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockDB) CreateBookListing(userID int64, req *models.ListingRequest) (*models.BookListing, error) {
	args := m.Called(userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookListing), args.Error(1)
}

func (m *MockDB) GetBookListing(id int64) (*models.BookListing, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookListing), args.Error(1)
}

func (m *MockDB) GetBookListings(filters database.ListingFilters) ([]*models.BookListing, error) {
	args := m.Called(filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BookListing), args.Error(1)
}

func (m *MockDB) UpdateBookListing(id int64, update *models.ListingUpdate) (*models.BookListing, error) {
	args := m.Called(id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookListing), args.Error(1)
}

func (m *MockDB) DeleteBookListing(id int64) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}

func (m *MockDB) CreateMessage(senderID, receiverID int64, listingID *int64, content string) (*models.Message, error) {
	args := m.Called(senderID, receiverID, listingID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockDB) GetMessage(id int64) (*models.Message, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockDB) GetMessages(conversationID int64) ([]*models.Message, error) {
	args := m.Called(conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Message), args.Error(1)
}

func (m *MockDB) GetMessagesByUser(userID int64) ([]*models.Message, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Message), args.Error(1)
}

func (m *MockDB) MarkMessageAsRead(id int64) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}

func (m *MockDB) CreateConversation(user1ID, user2ID int64, listingID *int64) (*models.Conversation, error) {
	args := m.Called(user1ID, user2ID, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockDB) GetConversation(id int64) (*models.Conversation, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockDB) GetConversationByUsers(user1ID, user2ID int64, listingID *int64) (*models.Conversation, error) {
	args := m.Called(user1ID, user2ID, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockDB) GetOrCreateConversation(user1ID, user2ID int64, listingID *int64) (*models.Conversation, bool, error) {
	args := m.Called(user1ID, user2ID, listingID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Conversation), args.Bool(1), args.Error(2)
}

func (m *MockDB) GetConversationsByUser(userID int64) ([]*models.Conversation, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Conversation), args.Error(1)
}

func (m *MockDB) UpdateConversationLastMessageTime(id int64) (bool, error) {
	args := m.Called(id)
	return args.Bool(0), args.Error(1)
}

func (m *MockDB) Close() error {
	args := m.Called()
	return args.Error(0)
}
