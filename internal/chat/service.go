// Package chat holds the messaging core: sending with
// find-or-create conversation resolution, conversation summaries, and
// read-state transitions. The live delivery channel is injected so the
// service never touches a global registry.
package chat

import (
	"github.com/bookxchange/bookxchange/internal/database"
	"github.com/bookxchange/bookxchange/internal/logger"
	"github.com/bookxchange/bookxchange/internal/models"
	"github.com/bookxchange/bookxchange/pkg/apperr"
)

var log = logger.New("chat")

// Notifier pushes a newly created message to its receiver's live
// connection, if one is open. Delivery is best effort; the store is
// the record of truth.
type Notifier interface {
	NotifyNewMessage(receiverID int64, msg *models.Message)
}

// Service coordinates the store, the conversation resolver and the
// delivery channel.
type Service struct {
	db       database.DBInterface
	notifier Notifier
}

func NewService(db database.DBInterface, notifier Notifier) *Service {
	return &Service{db: db, notifier: notifier}
}

// Send validates the recipient and listing, persists the message,
// resolves the owning conversation and notifies the receiver.
func (s *Service) Send(senderID, receiverID int64, listingID *int64, content string) (*models.Message, error) {
	if _, err := s.db.GetUser(receiverID); err != nil {
		if err == database.ErrUserNotFound {
			return nil, apperr.NotFound("Recipient not found")
		}
		return nil, apperr.Internal("failed to look up recipient", err)
	}

	if listingID != nil {
		if _, err := s.db.GetBookListing(*listingID); err != nil {
			if err == database.ErrListingNotFound {
				return nil, apperr.NotFound("Listing not found")
			}
			return nil, apperr.Internal("failed to look up listing", err)
		}
	}

	message, err := s.db.CreateMessage(senderID, receiverID, listingID, content)
	if err != nil {
		return nil, apperr.Internal("failed to create message", err)
	}

	if err := s.touchConversation(message); err != nil {
		return nil, err
	}

	// Fire-and-forget: a missed push is never retried or surfaced,
	// the client catches up over the read endpoints.
	if s.notifier != nil {
		s.notifier.NotifyNewMessage(receiverID, message)
	}

	return message, nil
}

// touchConversation resolves the conversation owning msg and bumps
// its lastMessageAt. Resolution is a single atomic store call;
// concurrent sends between the same pair land in one conversation.
func (s *Service) touchConversation(msg *models.Message) error {
	conv, created, err := s.db.GetOrCreateConversation(msg.SenderID, msg.ReceiverID, msg.ListingID)
	if err != nil {
		return apperr.Internal("failed to resolve conversation", err)
	}
	if created {
		// A fresh conversation already carries the current time.
		return nil
	}

	if _, err := s.db.UpdateConversationLastMessageTime(conv.ID); err != nil {
		return apperr.Internal("failed to update conversation", err)
	}
	return nil
}

// Conversations returns the caller's conversations newest-activity
// first, each enriched with the counterpart identity, the last message
// and the scoped listing.
func (s *Service) Conversations(userID int64) ([]*models.ConversationSummary, error) {
	conversations, err := s.db.GetConversationsByUser(userID)
	if err != nil {
		return nil, apperr.Internal("failed to fetch conversations", err)
	}

	summaries := make([]*models.ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		summary := &models.ConversationSummary{Conversation: *conv}

		otherUser, err := s.db.GetUser(conv.Counterpart(userID))
		if err == nil {
			summary.OtherUser = &models.PublicUser{ID: otherUser.ID, Username: otherUser.Username}
		} else if err != database.ErrUserNotFound {
			return nil, apperr.Internal("failed to fetch counterpart", err)
		}

		messages, err := s.db.GetMessages(conv.ID)
		if err != nil {
			return nil, apperr.Internal("failed to fetch messages", err)
		}
		if len(messages) > 0 {
			summary.LastMessage = messages[len(messages)-1]
		}

		if conv.ListingID != nil {
			listing, err := s.db.GetBookListing(*conv.ListingID)
			if err == nil {
				summary.Listing = &models.ListingSummary{ID: listing.ID, Title: listing.Title}
			} else if err != database.ErrListingNotFound {
				return nil, apperr.Internal("failed to fetch listing", err)
			}
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// ConversationMessages returns the messages of one conversation in
// creation order. Only participants may read them.
func (s *Service) ConversationMessages(userID, conversationID int64) ([]*models.Message, error) {
	conv, err := s.db.GetConversation(conversationID)
	if err == database.ErrConversationNotFound {
		return nil, apperr.NotFound("Conversation not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to fetch conversation", err)
	}

	if !conv.Involves(userID) {
		return nil, apperr.Forbidden("You don't have permission to view these messages")
	}

	messages, err := s.db.GetMessages(conversationID)
	if err != nil {
		return nil, apperr.Internal("failed to fetch messages", err)
	}

	return messages, nil
}

// MarkRead flips a message's read flag. Idempotent; only the receiver
// may mark a message read.
func (s *Service) MarkRead(callerID, messageID int64) error {
	msg, err := s.db.GetMessage(messageID)
	if err == database.ErrMessageNotFound {
		return apperr.NotFound("Message not found")
	}
	if err != nil {
		return apperr.Internal("failed to fetch message", err)
	}

	if msg.ReceiverID != callerID {
		return apperr.Forbidden("You don't have permission to mark this message read")
	}

	ok, err := s.db.MarkMessageAsRead(messageID)
	if err != nil {
		return apperr.Internal("failed to mark message read", err)
	}
	if !ok {
		return apperr.NotFound("Message not found")
	}

	log.Debug("message %d marked read by user %d", messageID, callerID)
	return nil
}
