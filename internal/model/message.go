package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message status values. Transitions are one-directional:
// sent -> delivered -> read.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// Message represents a chat message in MongoDB.
type Message struct {
	ID              primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	ConversationID  primitive.ObjectID  `json:"conversationId" bson:"conversation_id"`
	SenderID        string              `json:"senderId" bson:"sender_id"`
	Content         string              `json:"content" bson:"content"`
	FileURL         string              `json:"fileUrl,omitempty" bson:"file_url,omitempty"`
	FileType        string              `json:"fileType,omitempty" bson:"file_type,omitempty"`
	FileName        string              `json:"fileName,omitempty" bson:"file_name,omitempty"`
	Status          string              `json:"status" bson:"status"`
	ReadBy          []string            `json:"readBy" bson:"read_by"`
	Reactions       []Reaction          `json:"reactions" bson:"reactions"`
	ReplyTo         *primitive.ObjectID `json:"replyTo,omitempty" bson:"reply_to,omitempty"`
	ReplySnippet    string              `json:"replySnippet,omitempty" bson:"reply_snippet,omitempty"`
	ReplySenderName string              `json:"replySenderName,omitempty" bson:"reply_sender_name,omitempty"`
	IsEncrypted     bool                `json:"isEncrypted" bson:"is_encrypted"`
	CreatedAt       time.Time           `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time           `json:"updatedAt" bson:"updated_at"`
}

// Reaction is one user's emoji reaction on a message. A message holds at
// most one reaction per user.
type Reaction struct {
	Emoji    string `json:"emoji" bson:"emoji"`
	UserID   string `json:"user" bson:"user_id"`
	UserName string `json:"userName" bson:"user_name"`
}

// HasContent reports whether the message carries either text or a file
// reference. A message with neither is invalid.
func (m *Message) HasContent() bool {
	return m.Content != "" || m.FileURL != ""
}

// ApplyReaction toggles userID's reaction on the message:
// no existing entry appends one, the same emoji removes it, a different
// emoji replaces it in place. Returns the resulting reaction list.
func ApplyReaction(reactions []Reaction, userID, userName, emoji string) []Reaction {
	for i, r := range reactions {
		if r.UserID != userID {
			continue
		}
		if r.Emoji == emoji {
			return append(reactions[:i], reactions[i+1:]...)
		}
		reactions[i].Emoji = emoji
		return reactions
	}
	return append(reactions, Reaction{Emoji: emoji, UserID: userID, UserName: userName})
}

// MessageView is a Message with the sender's display fields resolved, the
// shape clients receive on receiveMessage and messageUpdated.
type MessageView struct {
	Message `bson:",inline"`
	Sender  SenderInfo `json:"sender"`
}

// SenderInfo is the subset of user fields resolved for display.
type SenderInfo struct {
	ID                string `json:"id"`
	FullName          string `json:"fullName"`
	Email             string `json:"email"`
	ProfilePictureURL string `json:"profilePictureUrl"`
}
