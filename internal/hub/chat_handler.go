package hub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/TharinduDesh/chatAPP/internal/event"
	"github.com/TharinduDesh/chatAPP/internal/model"
	"github.com/TharinduDesh/chatAPP/internal/registry"
	"github.com/TharinduDesh/chatAPP/internal/repo"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ChatHandler processes domain events from connected sessions: the message
// pipeline, read receipts, reactions and the ephemeral signaling paths. Room
// multicast goes through the RoomBroadcaster; pushes addressed to one
// participant go through the registry, the sole reachability oracle.
type ChatHandler struct {
	rooms         RoomBroadcaster
	reg           *registry.Registry
	messages      repo.MessageRepository
	conversations repo.ConversationRepository
	users         repo.UserRepository
	logger        *zap.Logger
}

func NewChatHandler(
	rooms RoomBroadcaster,
	reg *registry.Registry,
	messages repo.MessageRepository,
	conversations repo.ConversationRepository,
	users repo.UserRepository,
	logger *zap.Logger,
) *ChatHandler {
	return &ChatHandler{
		rooms:         rooms,
		reg:           reg,
		messages:      messages,
		conversations: conversations,
		users:         users,
		logger:        logger,
	}
}

// HandleEvent dispatches one inbound event. Failures are handled locally;
// nothing here may take down the worker or another session's operations.
func (h *ChatHandler) HandleEvent(ctx context.Context, ev event.WsEvent, s Session) {
	switch ev.Event {
	case event.EventJoinConversation:
		h.handleJoin(ev, s)
	case event.EventLeaveConversation:
		h.handleLeave(ev, s)
	case event.EventSendMessage:
		h.handleSendMessage(ctx, ev, s)
	case event.EventMarkMessagesAsRead:
		h.handleMarkRead(ctx, ev, s)
	case event.EventReactToMessage:
		h.handleReact(ctx, ev, s)
	case event.EventTyping:
		h.handleTyping(ev, s, true)
	case event.EventStopTyping:
		h.handleTyping(ev, s, false)
	case event.EventShareGroupKey:
		h.handleShareGroupKey(ev, s)
	default:
		h.logger.Debug("unknown event type", zap.String("event", ev.Event))
	}
}

func (h *ChatHandler) handleJoin(ev event.WsEvent, s Session) {
	var p event.JoinLeavePayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil || p.ConversationID == "" {
		return
	}
	h.rooms.Join(p.ConversationID, s)
}

func (h *ChatHandler) handleLeave(ev event.WsEvent, s Session) {
	var p event.JoinLeavePayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil || p.ConversationID == "" {
		return
	}
	h.rooms.Leave(p.ConversationID, s)
}

// -----------------------------------------------------------------------------
// Message pipeline
// -----------------------------------------------------------------------------

func (h *ChatHandler) handleSendMessage(ctx context.Context, ev event.WsEvent, s Session) {
	var p event.SendMessagePayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		h.sendError(s, "Missing data for sending message.", err.Error())
		return
	}
	if p.ConversationID == "" || p.SenderID == "" || (p.Content == "" && p.FileURL == "") {
		h.sendError(s, "Missing data for sending message.", "")
		return
	}

	conversationID, err := primitive.ObjectIDFromHex(p.ConversationID)
	if err != nil {
		h.sendError(s, "Missing data for sending message.", "invalid conversation id")
		return
	}

	now := time.Now().UTC()
	msg := &model.Message{
		ConversationID:  conversationID,
		SenderID:        p.SenderID,
		Content:         p.Content,
		FileURL:         p.FileURL,
		FileType:        p.FileType,
		FileName:        p.FileName,
		Status:          model.StatusSent,
		ReadBy:          []string{p.SenderID},
		Reactions:       []model.Reaction{},
		ReplySnippet:    p.ReplySnippet,
		ReplySenderName: p.ReplySenderName,
		IsEncrypted:     p.IsEncrypted,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if p.ReplyTo != "" {
		if replyTo, err := primitive.ObjectIDFromHex(p.ReplyTo); err == nil {
			msg.ReplyTo = &replyTo
		}
	}

	if _, err := h.messages.Insert(ctx, msg); err != nil {
		h.logger.Error("failed to persist message",
			zap.String("conversation_id", p.ConversationID),
			zap.Error(err),
		)
		h.sendError(s, "Error processing your message.", err.Error())
		return
	}

	conversation, err := h.conversations.SetLastMessage(ctx, p.ConversationID, msg.ID)
	if err != nil {
		// The already-saved message is left orphaned; no rollback.
		if errors.Is(err, repo.ErrConversationNotFound) {
			h.sendError(s, "Conversation not found.", "")
			return
		}
		h.logger.Error("failed to update conversation",
			zap.String("conversation_id", p.ConversationID),
			zap.Error(err),
		)
		h.sendError(s, "Error processing your message.", err.Error())
		return
	}

	view := h.populateMessage(ctx, msg)

	// Room multicast: every channel currently joined to the conversation.
	h.rooms.Broadcast(p.ConversationID, event.NewEvent(event.EventReceiveMessage, view))

	// Delivery status: direct conversations only. The recipient's registry
	// entry at this moment decides; group chats rely on readBy instead.
	if conversation.IsDirect() {
		h.markDelivered(ctx, conversation, msg, &view)
	}

	// Secondary fan-out, independent of room membership: participants on a
	// conversation-list screen still see the list reorder.
	h.pushConversationUpdated(ctx, conversation, &view)
}

func (h *ChatHandler) markDelivered(ctx context.Context, conversation *model.Conversation, msg *model.Message, view *model.MessageView) {
	recipient := conversation.OtherParticipant(msg.SenderID)
	if recipient == "" {
		return
	}
	if _, online := h.reg.Lookup(registry.UserKey(recipient)); !online {
		return
	}

	// Persist first: status must be delivered before the sender learns it.
	if err := h.messages.MarkDelivered(ctx, msg.ID.Hex()); err != nil {
		h.logger.Error("failed to mark message delivered",
			zap.String("message_id", msg.ID.Hex()),
			zap.Error(err),
		)
		return
	}
	msg.Status = model.StatusDelivered
	view.Status = model.StatusDelivered

	// Only the sender's own registered channel learns the status change.
	if senderCh, ok := h.reg.Lookup(registry.UserKey(msg.SenderID)); ok {
		senderCh.Send(event.NewEvent(event.EventMessageDelivered, event.MessageDeliveredPayload{
			MessageID:      msg.ID.Hex(),
			ConversationID: msg.ConversationID.Hex(),
		}))
	}
}

func (h *ChatHandler) pushConversationUpdated(ctx context.Context, conversation *model.Conversation, lastMessage *model.MessageView) {
	view := model.ConversationView{
		ID:           conversation.ID,
		Participants: make([]model.SenderInfo, 0, len(conversation.Participants)),
		IsGroupChat:  conversation.IsGroupChat,
		GroupName:    conversation.GroupName,
		LastMessage:  lastMessage,
		UpdatedAt:    conversation.UpdatedAt,
	}
	for _, id := range conversation.Participants {
		view.Participants = append(view.Participants, h.senderInfo(ctx, id))
	}

	ev := event.NewEvent(event.EventConversationUpdated, view)
	for _, id := range conversation.Participants {
		if ch, ok := h.reg.Lookup(registry.UserKey(id)); ok {
			ch.Send(ev)
		}
	}
}

// -----------------------------------------------------------------------------
// Read receipts
// -----------------------------------------------------------------------------

func (h *ChatHandler) handleMarkRead(ctx context.Context, ev event.WsEvent, s Session) {
	var p event.MarkReadPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return
	}
	readerID := s.Key().ID
	if p.ConversationID == "" || readerID == "" {
		h.logger.Debug("markMessagesAsRead missing data")
		return
	}

	conversation, err := h.conversations.FindByID(ctx, p.ConversationID)
	if err != nil {
		if !errors.Is(err, repo.ErrConversationNotFound) {
			h.logger.Error("failed to load conversation for read receipt",
				zap.String("conversation_id", p.ConversationID),
				zap.Error(err),
			)
		}
		return
	}

	modified, err := h.messages.MarkConversationRead(ctx, p.ConversationID, readerID)
	if err != nil {
		h.logger.Error("failed to mark messages read",
			zap.String("conversation_id", p.ConversationID),
			zap.String("reader_id", readerID),
			zap.Error(err),
		)
		return
	}
	if modified == 0 {
		return
	}

	// One messagesRead per registered counterpart; carries only the
	// conversation id, not which messages changed.
	readEv := event.NewEvent(event.EventMessagesRead, event.MessagesReadPayload{
		ConversationID: p.ConversationID,
	})
	for _, other := range conversation.OthersThan(readerID) {
		if ch, ok := h.reg.Lookup(registry.UserKey(other)); ok {
			ch.Send(readEv)
		}
	}
}

// -----------------------------------------------------------------------------
// Reactions
// -----------------------------------------------------------------------------

func (h *ChatHandler) handleReact(ctx context.Context, ev event.WsEvent, s Session) {
	var p event.ReactPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		h.sendError(s, "Missing data for reaction.", err.Error())
		return
	}
	reactorID := s.Key().ID
	if reactorID == "" || p.MessageID == "" || p.Emoji == "" {
		h.sendError(s, "Missing data for reaction.", "")
		return
	}

	reactor, err := h.users.FindByID(ctx, reactorID)
	if err != nil {
		h.sendError(s, "Missing data for reaction.", "")
		return
	}

	msg, err := h.messages.FindByID(ctx, p.MessageID)
	if err != nil {
		if !errors.Is(err, repo.ErrMessageNotFound) {
			h.logger.Error("failed to load message for reaction",
				zap.String("message_id", p.MessageID),
				zap.Error(err),
			)
		}
		return
	}

	msg.Reactions = model.ApplyReaction(msg.Reactions, reactorID, reactor.FullName, p.Emoji)

	if err := h.messages.SetReactions(ctx, p.MessageID, msg.Reactions); err != nil {
		h.logger.Error("failed to persist reaction",
			zap.String("message_id", p.MessageID),
			zap.Error(err),
		)
		h.sendError(s, "Error processing your reaction.", "")
		return
	}

	roomID := p.ConversationID
	if roomID == "" {
		roomID = msg.ConversationID.Hex()
	}
	view := h.populateMessage(ctx, msg)
	h.rooms.Broadcast(roomID, event.NewEvent(event.EventMessageUpdated, view))
}

// -----------------------------------------------------------------------------
// Ephemeral signaling
// -----------------------------------------------------------------------------

func (h *ChatHandler) handleTyping(ev event.WsEvent, s Session, isTyping bool) {
	var p event.TypingPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return
	}
	if p.ConversationID == "" || s.Key().ID == "" {
		return
	}

	// Fire and forget: room minus self, no persistence, no acknowledgment.
	h.rooms.BroadcastExcept(p.ConversationID, s, event.NewEvent(event.EventUserTyping, event.UserTypingPayload{
		ConversationID: p.ConversationID,
		UserID:         p.UserID,
		UserName:       p.UserName,
		IsTyping:       isTyping,
	}))
}

func (h *ChatHandler) handleShareGroupKey(ev event.WsEvent, s Session) {
	var p event.ShareGroupKeyPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return
	}
	if p.ConversationID == "" || p.SenderID == "" || p.RecipientID == "" || p.EncryptedKey == "" {
		h.logger.Warn("invalid shareGroupKey payload")
		return
	}

	// Direct push to the recipient only, never a room broadcast. An offline
	// recipient means the payload is dropped: no offline queuing of key
	// material, the sender retries once presence shows them online.
	ch, ok := h.reg.Lookup(registry.UserKey(p.RecipientID))
	if !ok {
		h.logger.Debug("group key recipient offline, dropping payload",
			zap.String("recipient_id", p.RecipientID),
		)
		return
	}
	ch.Send(event.NewEvent(event.EventReceiveGroupKey, event.ReceiveGroupKeyPayload{
		ConversationID: p.ConversationID,
		SenderID:       p.SenderID,
		EncryptedKey:   p.EncryptedKey,
	}))
}

// -----------------------------------------------------------------------------
// Shared helpers
// -----------------------------------------------------------------------------

// populateMessage resolves the sender's display fields. A lookup miss still
// broadcasts the message, just with a bare sender id.
func (h *ChatHandler) populateMessage(ctx context.Context, msg *model.Message) model.MessageView {
	return model.MessageView{
		Message: *msg,
		Sender:  h.senderInfo(ctx, msg.SenderID),
	}
}

func (h *ChatHandler) senderInfo(ctx context.Context, userID string) model.SenderInfo {
	user, err := h.users.FindByID(ctx, userID)
	if err != nil {
		h.logger.Debug("failed to resolve user display fields",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return model.SenderInfo{ID: userID}
	}
	return user.SenderView()
}

func (h *ChatHandler) sendError(s Session, message, details string) {
	s.Send(event.NewEvent(event.EventMessageError, event.ErrorPayload{
		Message: message,
		Details: details,
	}))
}
