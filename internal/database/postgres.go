package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/bookxchange/bookxchange/internal/models"
)

// PostgresDB is the durable store. Behavior mirrors MemoryDB; the
// reference semantics are documented there.
type PostgresDB struct {
	*sql.DB
}

func NewPostgresDB(connStr string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PostgresDB{db}, nil
}

func (db *PostgresDB) CreateUser(username, email, passwordHash, location string) (*models.User, error) {
	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM users WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($2)",
		username, email).Scan(&count)
	if err != nil {
		return nil, err
	}

	if count > 0 {
		return nil, ErrUserAlreadyExists
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Location:     location,
		CreatedAt:    time.Now().UTC(),
	}

	err = db.QueryRow(
		"INSERT INTO users (username, email, password_hash, location, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		user.Username, user.Email, user.PasswordHash, nullString(user.Location), user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (db *PostgresDB) GetUser(id int64) (*models.User, error) {
	return db.getUserWhere("id = $1", id)
}

func (db *PostgresDB) GetUserByUsername(username string) (*models.User, error) {
	return db.getUserWhere("LOWER(username) = LOWER($1)", username)
}

func (db *PostgresDB) GetUserByEmail(email string) (*models.User, error) {
	return db.getUserWhere("LOWER(email) = LOWER($1)", email)
}

func (db *PostgresDB) getUserWhere(where string, arg interface{}) (*models.User, error) {
	var user models.User
	var location sql.NullString

	err := db.QueryRow(
		"SELECT id, username, email, password_hash, location, created_at FROM users WHERE "+where,
		arg).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &location, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if location.Valid {
		user.Location = location.String
	}

	return &user, nil
}

func (db *PostgresDB) CreateBookListing(userID int64, req *models.ListingRequest) (*models.BookListing, error) {
	status := req.Status
	if status == "" {
		status = models.ListingStatusActive
	}

	listing := &models.BookListing{
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

	err := db.QueryRow(
		`INSERT INTO book_listings
			(user_id, title, author, category, condition, description, price, image_url, listing_type, location, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		listing.UserID, listing.Title, listing.Author, listing.Category, listing.Condition,
		listing.Description, listing.Price, nullString(listing.ImageURL), listing.ListingType,
		listing.Location, listing.Status, listing.CreatedAt,
	).Scan(&listing.ID)
	if err != nil {
		return nil, err
	}

	return listing, nil
}

const listingColumns = "id, user_id, title, author, category, condition, description, price, image_url, listing_type, location, status, created_at"

func scanListing(row interface{ Scan(...interface{}) error }) (*models.BookListing, error) {
	var listing models.BookListing
	var imageURL sql.NullString

	err := row.Scan(
		&listing.ID, &listing.UserID, &listing.Title, &listing.Author, &listing.Category,
		&listing.Condition, &listing.Description, &listing.Price, &imageURL,
		&listing.ListingType, &listing.Location, &listing.Status, &listing.CreatedAt)
	if err != nil {
		return nil, err
	}

	if imageURL.Valid {
		listing.ImageURL = imageURL.String
	}

	return &listing, nil
}

func (db *PostgresDB) GetBookListing(id int64) (*models.BookListing, error) {
	row := db.QueryRow("SELECT "+listingColumns+" FROM book_listings WHERE id = $1", id)

	listing, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}

	return listing, nil
}

func (db *PostgresDB) GetBookListings(filters ListingFilters) ([]*models.BookListing, error) {
	var clauses []string
	var args []interface{}

	addClause := func(condition string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(condition, len(args)))
	}

	if filters.UserID != nil {
		addClause("user_id = $%d", *filters.UserID)
	}
	if filters.Category != "" {
		addClause("category = $%d", filters.Category)
	}
	if filters.Condition != "" {
		addClause("condition = $%d", filters.Condition)
	}
	if filters.ListingType != "" {
		addClause("listing_type = $%d", filters.ListingType)
	}
	if filters.Status != "" {
		addClause("status = $%d", filters.Status)
	}
	if filters.SearchTerm != "" {
		args = append(args, "%"+strings.ToLower(filters.SearchTerm)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(title) LIKE $%d OR LOWER(author) LIKE $%d OR LOWER(description) LIKE $%d)", n, n, n))
	}

	query := "SELECT " + listingColumns + " FROM book_listings"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := make([]*models.BookListing, 0)
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return listings, nil
}

func (db *PostgresDB) UpdateBookListing(id int64, update *models.ListingUpdate) (*models.BookListing, error) {
	// Read-modify-write keeps the partial-update rules in one place
	// (the model), at the cost of a second round trip.
	listing, err := db.GetBookListing(id)
	if err != nil {
		return nil, err
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

	_, err = db.Exec(
		`UPDATE book_listings SET
			title = $1, author = $2, category = $3, condition = $4, description = $5,
			price = $6, image_url = $7, listing_type = $8, location = $9, status = $10
		WHERE id = $11`,
		listing.Title, listing.Author, listing.Category, listing.Condition, listing.Description,
		listing.Price, nullString(listing.ImageURL), listing.ListingType, listing.Location,
		listing.Status, id,
	)
	if err != nil {
		return nil, err
	}

	return listing, nil
}

func (db *PostgresDB) DeleteBookListing(id int64) (bool, error) {
	result, err := db.Exec(
		"UPDATE book_listings SET status = $1 WHERE id = $2",
		models.ListingStatusDeleted, id,
	)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

func (db *PostgresDB) CreateMessage(senderID, receiverID int64, listingID *int64, content string) (*models.Message, error) {
	message := &models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		ListingID:  listingID,
		Content:    content,
		Read:       false,
		CreatedAt:  time.Now().UTC(),
	}

	err := db.QueryRow(
		"INSERT INTO messages (sender_id, receiver_id, listing_id, content, read, created_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id",
		message.SenderID, message.ReceiverID, nullID(message.ListingID), message.Content, message.Read, message.CreatedAt,
	).Scan(&message.ID)
	if err != nil {
		return nil, err
	}

	return message, nil
}

func scanMessage(row interface{ Scan(...interface{}) error }) (*models.Message, error) {
	var msg models.Message
	var listingID sql.NullInt64

	err := row.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &listingID, &msg.Content, &msg.Read, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	if listingID.Valid {
		msg.ListingID = &listingID.Int64
	}

	return &msg, nil
}

func (db *PostgresDB) GetMessage(id int64) (*models.Message, error) {
	row := db.QueryRow(
		"SELECT id, sender_id, receiver_id, listing_id, content, read, created_at FROM messages WHERE id = $1",
		id)

	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}

	return msg, nil
}

func (db *PostgresDB) GetMessages(conversationID int64) ([]*models.Message, error) {
	conv, err := db.GetConversation(conversationID)
	if err == ErrConversationNotFound {
		return []*models.Message{}, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(
		`SELECT id, sender_id, receiver_id, listing_id, content, read, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, id ASC`,
		conv.User1ID, conv.User2ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

func (db *PostgresDB) GetMessagesByUser(userID int64) ([]*models.Message, error) {
	rows, err := db.Query(
		`SELECT id, sender_id, receiver_id, listing_id, content, read, created_at
		FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY id ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

func collectMessages(rows *sql.Rows) ([]*models.Message, error) {
	messages := make([]*models.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func (db *PostgresDB) MarkMessageAsRead(id int64) (bool, error) {
	result, err := db.Exec("UPDATE messages SET read = true WHERE id = $1", id)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

func (db *PostgresDB) CreateConversation(user1ID, user2ID int64, listingID *int64) (*models.Conversation, error) {
	conversation := &models.Conversation{
		User1ID:       user1ID,
		User2ID:       user2ID,
		ListingID:     listingID,
		LastMessageAt: time.Now().UTC(),
	}

	err := db.QueryRow(
		"INSERT INTO conversations (user1_id, user2_id, listing_id, last_message_at) VALUES ($1, $2, $3, $4) RETURNING id",
		conversation.User1ID, conversation.User2ID, nullID(conversation.ListingID), conversation.LastMessageAt,
	).Scan(&conversation.ID)
	if err != nil {
		return nil, err
	}

	return conversation, nil
}

func scanConversation(row interface{ Scan(...interface{}) error }) (*models.Conversation, error) {
	var conv models.Conversation
	var listingID sql.NullInt64

	err := row.Scan(&conv.ID, &conv.User1ID, &conv.User2ID, &listingID, &conv.LastMessageAt)
	if err != nil {
		return nil, err
	}

	if listingID.Valid {
		conv.ListingID = &listingID.Int64
	}

	return &conv, nil
}

func (db *PostgresDB) GetConversation(id int64) (*models.Conversation, error) {
	row := db.QueryRow(
		"SELECT id, user1_id, user2_id, listing_id, last_message_at FROM conversations WHERE id = $1",
		id)

	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}

	return conv, nil
}

func (db *PostgresDB) GetConversationByUsers(user1ID, user2ID int64, listingID *int64) (*models.Conversation, error) {
	query := `SELECT id, user1_id, user2_id, listing_id, last_message_at
		FROM conversations
		WHERE ((user1_id = $1 AND user2_id = $2) OR (user1_id = $2 AND user2_id = $1))`
	args := []interface{}{user1ID, user2ID}

	// A scoped lookup requires the exact listing; an unscoped one
	// matches any conversation for the pair.
	if listingID != nil {
		query += " AND listing_id = $3"
		args = append(args, *listingID)
	}
	query += " ORDER BY id ASC LIMIT 1"

	row := db.QueryRow(query, args...)

	conv, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}

	return conv, nil
}

// GetOrCreateConversation serializes find-or-create per unordered
// pair with a transaction-scoped advisory lock, so two concurrent
// sends cannot both miss the lookup and insert twins.
func (db *PostgresDB) GetOrCreateConversation(user1ID, user2ID int64, listingID *int64) (*models.Conversation, bool, error) {
	lo, hi := user1ID, user2ID
	if lo > hi {
		lo, hi = hi, lo
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	// Ids are serial int4; the two-argument advisory lock wants int4.
	if _, err := tx.Exec("SELECT pg_advisory_xact_lock($1::int, $2::int)", lo, hi); err != nil {
		return nil, false, err
	}

	query := `SELECT id, user1_id, user2_id, listing_id, last_message_at
		FROM conversations
		WHERE ((user1_id = $1 AND user2_id = $2) OR (user1_id = $2 AND user2_id = $1))`
	args := []interface{}{user1ID, user2ID}
	if listingID != nil {
		query += " AND listing_id = $3"
		args = append(args, *listingID)
	}
	query += " ORDER BY id ASC LIMIT 1"

	conv, err := scanConversation(tx.QueryRow(query, args...))
	if err == nil {
		return conv, false, tx.Commit()
	}
	if err != sql.ErrNoRows {
		return nil, false, err
	}

	conv = &models.Conversation{
		User1ID:       user1ID,
		User2ID:       user2ID,
		ListingID:     listingID,
		LastMessageAt: time.Now().UTC(),
	}
	err = tx.QueryRow(
		"INSERT INTO conversations (user1_id, user2_id, listing_id, last_message_at) VALUES ($1, $2, $3, $4) RETURNING id",
		conv.User1ID, conv.User2ID, nullID(conv.ListingID), conv.LastMessageAt,
	).Scan(&conv.ID)
	if err != nil {
		return nil, false, err
	}

	return conv, true, tx.Commit()
}

func (db *PostgresDB) GetConversationsByUser(userID int64) ([]*models.Conversation, error) {
	rows, err := db.Query(
		`SELECT id, user1_id, user2_id, listing_id, last_message_at
		FROM conversations
		WHERE user1_id = $1 OR user2_id = $1
		ORDER BY last_message_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := make([]*models.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return conversations, nil
}

func (db *PostgresDB) UpdateConversationLastMessageTime(id int64) (bool, error) {
	result, err := db.Exec(
		"UPDATE conversations SET last_message_at = GREATEST(last_message_at, $1) WHERE id = $2",
		time.Now().UTC(), id,
	)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

func (db *PostgresDB) Close() error {
	return db.DB.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
