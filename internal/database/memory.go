package database

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bookxchange/bookxchange/internal/models"
)

// MemoryDB is the reference in-process store. One mutex guards every
// map, so compound sequences like find-or-create run without
// interleaving; ids are monotonically increasing per entity type and
// never reused, soft-deleted listings included.
type MemoryDB struct {
	mu sync.RWMutex

	users         map[int64]models.User
	listings      map[int64]models.BookListing
	messages      map[int64]models.Message
	conversations map[int64]models.Conversation

	userIDCounter         int64
	listingIDCounter      int64
	messageIDCounter      int64
	conversationIDCounter int64
}

// NewMemoryDB creates an empty in-memory store
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:         make(map[int64]models.User),
		listings:      make(map[int64]models.BookListing),
		messages:      make(map[int64]models.Message),
		conversations: make(map[int64]models.Conversation),
	}
}

// User operations

func (db *MemoryDB) CreateUser(username, email, passwordHash, location string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if strings.EqualFold(u.Username, username) || strings.EqualFold(u.Email, email) {
			return nil, ErrUserAlreadyExists
		}
	}

	db.userIDCounter++
	user := models.User{
		ID:           db.userIDCounter,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Location:     location,
		CreatedAt:    time.Now().UTC(),
	}
	db.users[user.ID] = user

	return &user, nil
}

func (db *MemoryDB) GetUser(id int64) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	user, ok := db.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (db *MemoryDB) GetUserByUsername(username string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, u := range db.users {
		if strings.EqualFold(u.Username, username) {
			user := u
			return &user, nil
		}
	}
	return nil, ErrUserNotFound
}

func (db *MemoryDB) GetUserByEmail(email string) (*models.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, u := range db.users {
		if strings.EqualFold(u.Email, email) {
			user := u
			return &user, nil
		}
	}
	return nil, ErrUserNotFound
}

// Listing operations

func (db *MemoryDB) CreateBookListing(userID int64, req *models.ListingRequest) (*models.BookListing, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	status := req.Status
	if status == "" {
		status = models.ListingStatusActive
	}

	db.listingIDCounter++
	listing := models.BookListing{
		ID:          db.listingIDCounter,
		UserID:      userID,
		Title:       req.Title,
		Author:      req.Author,
		Category:    req.Category,
		Condition:   req.Condition,
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		ListingType: req.ListingType,
		Location:    req.Location,
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
	db.listings[listing.ID] = listing

	return &listing, nil
}

func (db *MemoryDB) GetBookListing(id int64) (*models.BookListing, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	listing, ok := db.listings[id]
	if !ok {
		return nil, ErrListingNotFound
	}
	return &listing, nil
}

func (db *MemoryDB) GetBookListings(filters ListingFilters) ([]*models.BookListing, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := make([]*models.BookListing, 0)
	for _, l := range db.listings {
		if !matchesFilters(&l, filters) {
			continue
		}
		listing := l
		result = append(result, &listing)
	}

	// Map order is random; present listings newest-first by id.
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID > result[j].ID
	})

	return result, nil
}

func matchesFilters(l *models.BookListing, f ListingFilters) bool {
	if f.UserID != nil && l.UserID != *f.UserID {
		return false
	}
	if f.Category != "" && l.Category != f.Category {
		return false
	}
	if f.Condition != "" && l.Condition != f.Condition {
		return false
	}
	if f.ListingType != "" && l.ListingType != f.ListingType {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	if f.SearchTerm != "" {
		term := strings.ToLower(f.SearchTerm)
		if !strings.Contains(strings.ToLower(l.Title), term) &&
			!strings.Contains(strings.ToLower(l.Author), term) &&
			!strings.Contains(strings.ToLower(l.Description), term) {
			return false
		}
	}
	return true
}

func (db *MemoryDB) UpdateBookListing(id int64, update *models.ListingUpdate) (*models.BookListing, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	listing, ok := db.listings[id]
	if !ok {
		return nil, ErrListingNotFound
	}

	if update.Title != nil {
		listing.Title = *update.Title
	}
	if update.Author != nil {
		listing.Author = *update.Author
	}
	if update.Category != nil {
		listing.Category = *update.Category
	}
	if update.Condition != nil {
		listing.Condition = *update.Condition
	}
	if update.Description != nil {
		listing.Description = *update.Description
	}
	if update.Price != nil {
		listing.Price = *update.Price
	}
	if update.ImageURL != nil {
		listing.ImageURL = *update.ImageURL
	}
	if update.ListingType != nil {
		listing.ListingType = *update.ListingType
	}
	if update.Location != nil {
		listing.Location = *update.Location
	}
	if update.Status != nil {
		listing.Status = *update.Status
	}

	db.listings[id] = listing
	return &listing, nil
}

func (db *MemoryDB) DeleteBookListing(id int64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	listing, ok := db.listings[id]
	if !ok {
		return false, nil
	}

	// Soft delete: the record stays, only the status changes.
	listing.Status = models.ListingStatusDeleted
	db.listings[id] = listing
	return true, nil
}

// Message operations

func (db *MemoryDB) CreateMessage(senderID, receiverID int64, listingID *int64, content string) (*models.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.messageIDCounter++
	message := models.Message{
		ID:         db.messageIDCounter,
		SenderID:   senderID,
		ReceiverID: receiverID,
		ListingID:  copyID(listingID),
		Content:    content,
		Read:       false,
		CreatedAt:  time.Now().UTC(),
	}
	db.messages[message.ID] = message

	return &message, nil
}

func (db *MemoryDB) GetMessage(id int64) (*models.Message, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	message, ok := db.messages[id]
	if !ok {
		return nil, ErrMessageNotFound
	}
	return &message, nil
}

// GetMessages returns every message exchanged between the
// conversation's participants, in either direction, ordered by
// creation time. Membership is derived from the participant pair; the
// messages themselves carry no conversation id.
func (db *MemoryDB) GetMessages(conversationID int64) ([]*models.Message, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	conv, ok := db.conversations[conversationID]
	if !ok {
		return []*models.Message{}, nil
	}

	result := make([]*models.Message, 0)
	for _, m := range db.messages {
		if (m.SenderID == conv.User1ID && m.ReceiverID == conv.User2ID) ||
			(m.SenderID == conv.User2ID && m.ReceiverID == conv.User1ID) {
			message := m
			result = append(result, &message)
		}
	}

	// Ids break ties between equal timestamps, keeping send order.
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (db *MemoryDB) GetMessagesByUser(userID int64) ([]*models.Message, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := make([]*models.Message, 0)
	for _, m := range db.messages {
		if m.SenderID == userID || m.ReceiverID == userID {
			message := m
			result = append(result, &message)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

func (db *MemoryDB) MarkMessageAsRead(id int64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	message, ok := db.messages[id]
	if !ok {
		return false, nil
	}

	message.Read = true
	db.messages[id] = message
	return true, nil
}

// Conversation operations

func (db *MemoryDB) CreateConversation(user1ID, user2ID int64, listingID *int64) (*models.Conversation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.conversationIDCounter++
	conversation := models.Conversation{
		ID:            db.conversationIDCounter,
		User1ID:       user1ID,
		User2ID:       user2ID,
		ListingID:     copyID(listingID),
		LastMessageAt: time.Now().UTC(),
	}
	db.conversations[conversation.ID] = conversation

	return &conversation, nil
}

func (db *MemoryDB) GetConversation(id int64) (*models.Conversation, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	conversation, ok := db.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return &conversation, nil
}

// GetConversationByUsers finds the conversation for an unordered
// participant pair. With a listing id the stored scope must match it
// exactly; without one any scope matches, listing-scoped conversations
// included.
func (db *MemoryDB) GetConversationByUsers(user1ID, user2ID int64, listingID *int64) (*models.Conversation, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	found := db.findConversation(user1ID, user2ID, listingID)
	if found == nil {
		return nil, ErrConversationNotFound
	}
	return found, nil
}

// GetOrCreateConversation runs the lookup and the create under one
// write lock, so two concurrent sends for the same pair can never
// both miss and insert twins.
func (db *MemoryDB) GetOrCreateConversation(user1ID, user2ID int64, listingID *int64) (*models.Conversation, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if found := db.findConversation(user1ID, user2ID, listingID); found != nil {
		return found, false, nil
	}

	db.conversationIDCounter++
	conversation := models.Conversation{
		ID:            db.conversationIDCounter,
		User1ID:       user1ID,
		User2ID:       user2ID,
		ListingID:     copyID(listingID),
		LastMessageAt: time.Now().UTC(),
	}
	db.conversations[conversation.ID] = conversation

	return &conversation, true, nil
}

// findConversation scans for the unordered pair's conversation. The
// caller must hold db.mu.
func (db *MemoryDB) findConversation(user1ID, user2ID int64, listingID *int64) *models.Conversation {
	var found *models.Conversation
	for _, c := range db.conversations {
		if !pairMatches(&c, user1ID, user2ID) {
			continue
		}
		if listingID != nil && (c.ListingID == nil || *c.ListingID != *listingID) {
			continue
		}
		// Lowest id wins when several scopes match an unscoped lookup.
		if found == nil || c.ID < found.ID {
			conversation := c
			found = &conversation
		}
	}
	return found
}

func pairMatches(c *models.Conversation, user1ID, user2ID int64) bool {
	return (c.User1ID == user1ID && c.User2ID == user2ID) ||
		(c.User1ID == user2ID && c.User2ID == user1ID)
}

func (db *MemoryDB) GetConversationsByUser(userID int64) ([]*models.Conversation, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := make([]*models.Conversation, 0)
	for _, c := range db.conversations {
		if c.Involves(userID) {
			conversation := c
			result = append(result, &conversation)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].LastMessageAt.Equal(result[j].LastMessageAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].LastMessageAt.After(result[j].LastMessageAt)
	})

	return result, nil
}

func (db *MemoryDB) UpdateConversationLastMessageTime(id int64) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	conversation, ok := db.conversations[id]
	if !ok {
		return false, nil
	}

	now := time.Now().UTC()
	// lastMessageAt is monotonic non-decreasing.
	if now.After(conversation.LastMessageAt) {
		conversation.LastMessageAt = now
		db.conversations[id] = conversation
	}
	return true, nil
}

func (db *MemoryDB) Close() error {
	return nil
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
