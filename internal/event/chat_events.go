package event

// SendMessagePayload carries a new chat message from a client.
type SendMessagePayload struct {
	ConversationID  string `json:"conversationId"`
	SenderID        string `json:"senderId"`
	Content         string `json:"content"`
	IsEncrypted     bool   `json:"isEncrypted"`
	FileURL         string `json:"fileUrl"`
	FileType        string `json:"fileType"`
	FileName        string `json:"fileName"`
	ReplyTo         string `json:"replyTo"`
	ReplySnippet    string `json:"replySnippet"`
	ReplySenderName string `json:"replySenderName"`
}

// JoinLeavePayload is shared by joinConversation and leaveConversation.
type JoinLeavePayload struct {
	ConversationID string `json:"conversationId"`
}

// MarkReadPayload asks the server to clear a conversation's unread messages.
// The reader identity comes from the connection, not the payload.
type MarkReadPayload struct {
	ConversationID string `json:"conversationId"`
}

// ReactPayload toggles an emoji reaction on a message.
type ReactPayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	Emoji          string `json:"emoji"`
}

// TypingPayload is shared by typing and stopTyping.
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
}

// ShareGroupKeyPayload relays encrypted group-key material to one recipient.
type ShareGroupKeyPayload struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	RecipientID    string `json:"recipientId"`
	EncryptedKey   string `json:"encryptedKey"`
}

// MessageDeliveredPayload confirms a direct message reached its recipient's
// channel. Sent to the sender's own registered channel only.
type MessageDeliveredPayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

// MessagesReadPayload tells the original sender a conversation now has no
// unread messages from the reader's side.
type MessagesReadPayload struct {
	ConversationID string `json:"conversationId"`
}

// UserTypingPayload is the outbound form of a typing indicator.
type UserTypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
	IsTyping       bool   `json:"isTyping"`
}

// ReceiveGroupKeyPayload is the recipient-side form of a group-key relay.
type ReceiveGroupKeyPayload struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	EncryptedKey   string `json:"encryptedKey"`
}

// ErrorPayload is pushed back to the originating channel only.
type ErrorPayload struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
