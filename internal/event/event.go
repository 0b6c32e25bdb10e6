package event

import "encoding/json"

// Inbound events (client -> server).
const (
	EventJoinConversation   = "joinConversation"
	EventLeaveConversation  = "leaveConversation"
	EventSendMessage        = "sendMessage"
	EventMarkMessagesAsRead = "markMessagesAsRead"
	EventReactToMessage     = "reactToMessage"
	EventTyping             = "typing"
	EventStopTyping         = "stopTyping"
	EventShareGroupKey      = "shareGroupKey"
)

// Outbound events (server -> client).
const (
	EventActiveUsers         = "activeUsers"
	EventReceiveMessage      = "receiveMessage"
	EventConversationUpdated = "conversationUpdated"
	EventMessageDelivered    = "messageDelivered"
	EventMessagesRead        = "messagesRead"
	EventMessageUpdated      = "messageUpdated"
	EventUserTyping          = "userTyping"
	EventReceiveGroupKey     = "receiveGroupKey"
	EventMessageError        = "messageError"
)

// WsEvent is the envelope for every frame on the socket. Payload stays raw
// until the dispatcher knows which struct to decode it into.
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent wraps a payload into an outbound envelope. All outbound payloads
// are plain structs, so a marshal failure is a programming error and yields
// an empty payload instead of an error return.
func NewEvent(name string, payload any) WsEvent {
	raw, err := json.Marshal(payload)
	if err != nil {
		return WsEvent{Event: name}
	}
	return WsEvent{Event: name, Payload: raw}
}
