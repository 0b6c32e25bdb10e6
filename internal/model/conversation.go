package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation represents a chat conversation in MongoDB. Participants are
// stored as user ids; order is irrelevant. Direct conversations have exactly
// two participants and IsGroupChat false.
type Conversation struct {
	ID           primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	Participants []string            `json:"participants" bson:"participants"`
	IsGroupChat  bool                `json:"isGroupChat" bson:"is_group_chat"`
	GroupName    string              `json:"groupName,omitempty" bson:"group_name,omitempty"`
	LastMessage  *primitive.ObjectID `json:"lastMessage,omitempty" bson:"last_message,omitempty"`
	CreatedAt    time.Time           `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time           `json:"updatedAt" bson:"updated_at"`
}

// IsDirect reports whether the conversation is a two-party, non-group chat.
// Only direct conversations take part in the delivered status transition.
func (c *Conversation) IsDirect() bool {
	return !c.IsGroupChat && len(c.Participants) == 2
}

// OtherParticipant returns the participant that is not userID. Empty string
// when userID is not a participant or the conversation is not direct.
func (c *Conversation) OtherParticipant(userID string) string {
	if !c.IsDirect() {
		return ""
	}
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// OthersThan returns every participant except userID.
func (c *Conversation) OthersThan(userID string) []string {
	others := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != userID {
			others = append(others, p)
		}
	}
	return others
}

// ConversationView is a Conversation with participants and the last message
// resolved for display, the shape clients receive on conversationUpdated.
type ConversationView struct {
	ID           primitive.ObjectID `json:"id"`
	Participants []SenderInfo       `json:"participants"`
	IsGroupChat  bool               `json:"isGroupChat"`
	GroupName    string             `json:"groupName,omitempty"`
	LastMessage  *MessageView       `json:"lastMessage,omitempty"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}
