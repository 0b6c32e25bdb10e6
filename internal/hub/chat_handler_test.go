package hub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/TharinduDesh/chatAPP/internal/db"
	"github.com/TharinduDesh/chatAPP/internal/event"
	"github.com/TharinduDesh/chatAPP/internal/model"
	"github.com/TharinduDesh/chatAPP/internal/registry"
	"github.com/TharinduDesh/chatAPP/internal/repo"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type fakeSession struct {
	id  string
	key registry.Key

	mu     sync.Mutex
	events []event.WsEvent
}

func newFakeSession(id string, key registry.Key) *fakeSession {
	return &fakeSession{id: id, key: key}
}

func (f *fakeSession) ID() string        { return f.id }
func (f *fakeSession) Key() registry.Key { return f.key }

func (f *fakeSession) Send(ev event.WsEvent) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return true
}

func (f *fakeSession) eventsNamed(name string) []event.WsEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []event.WsEvent
	for _, ev := range f.events {
		if ev.Event == name {
			matched = append(matched, ev)
		}
	}
	return matched
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages map[string]*model.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string]*model.Message)}
}

func (f *fakeMessageRepo) Insert(_ context.Context, msg *model.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	stored := *msg
	f.messages[msg.ID.Hex()] = &stored
	return msg.ID.Hex(), nil
}

func (f *fakeMessageRepo) FindByID(_ context.Context, id string) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return nil, repo.ErrMessageNotFound
	}
	copied := *msg
	return &copied, nil
}

func (f *fakeMessageRepo) MarkDelivered(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := f.messages[id]; ok && msg.Status == model.StatusSent {
		msg.Status = model.StatusDelivered
	}
	return nil
}

func (f *fakeMessageRepo) MarkConversationRead(_ context.Context, conversationID, readerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var modified int64
	for _, msg := range f.messages {
		if msg.ConversationID.Hex() != conversationID || msg.SenderID == readerID || msg.Status == model.StatusRead {
			continue
		}
		msg.Status = model.StatusRead
		alreadyRead := false
		for _, r := range msg.ReadBy {
			if r == readerID {
				alreadyRead = true
				break
			}
		}
		if !alreadyRead {
			msg.ReadBy = append(msg.ReadBy, readerID)
		}
		modified++
	}
	return modified, nil
}

func (f *fakeMessageRepo) SetReactions(_ context.Context, id string, reactions []model.Reaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := f.messages[id]; ok {
		msg.Reactions = reactions
	}
	return nil
}

func (f *fakeMessageRepo) ListByConversation(_ context.Context, conversationID string, page int64) (*db.PaginatedResult[model.Message], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var data []model.Message
	for _, msg := range f.messages {
		if msg.ConversationID.Hex() == conversationID {
			data = append(data, *msg)
		}
	}
	return &db.PaginatedResult[model.Message]{Data: data, Total: int64(len(data)), Page: page, PageSize: 15, TotalPages: 1}, nil
}

func (f *fakeMessageRepo) seed(msg model.Message) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	f.messages[msg.ID.Hex()] = &msg
	return msg.ID.Hex()
}

func (f *fakeMessageRepo) get(t *testing.T, id string) model.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		t.Fatalf("message %s not found", id)
	}
	return *msg
}

func (f *fakeMessageRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[string]*model.Conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{conversations: make(map[string]*model.Conversation)}
}

func (f *fakeConversationRepo) add(c *model.Conversation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	f.conversations[c.ID.Hex()] = c
}

func (f *fakeConversationRepo) FindByID(_ context.Context, id string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return nil, repo.ErrConversationNotFound
	}
	copied := *c
	return &copied, nil
}

func (f *fakeConversationRepo) SetLastMessage(_ context.Context, conversationID string, messageID primitive.ObjectID) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[conversationID]
	if !ok {
		return nil, repo.ErrConversationNotFound
	}
	c.LastMessage = &messageID
	copied := *c
	return &copied, nil
}

func (f *fakeConversationRepo) ListForParticipant(_ context.Context, userID string) ([]model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []model.Conversation
	for _, c := range f.conversations {
		for _, p := range c.Participants {
			if p == userID {
				result = append(result, *c)
				break
			}
		}
	}
	return result, nil
}

type fakeUserRepo struct {
	mu        sync.Mutex
	users     map[string]*model.User
	lastSeen  []registry.Key
	touchFail error
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	f := &fakeUserRepo{users: make(map[string]*model.User)}
	for _, u := range users {
		f.users[u.ID.Hex()] = u
	}
	return f
}

func (f *fakeUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repo.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) TouchLastSeen(_ context.Context, key registry.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.touchFail != nil {
		return f.touchFail
	}
	f.lastSeen = append(f.lastSeen, key)
	return nil
}

func (f *fakeUserRepo) SetPublicKey(_ context.Context, userID, publicKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return repo.ErrUserNotFound
	}
	u.E2EEPublicKey = publicKey
	return nil
}

func (f *fakeUserRepo) GetPublicKey(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return "", repo.ErrUserNotFound
	}
	if u.E2EEPublicKey == "" {
		return "", repo.ErrPublicKeyNotFound
	}
	return u.E2EEPublicKey, nil
}

// -----------------------------------------------------------------------------
// Fixture
// -----------------------------------------------------------------------------

type fixture struct {
	handler  *ChatHandler
	hub      *Hub
	reg      *registry.Registry
	messages *fakeMessageRepo
	convs    *fakeConversationRepo
	users    *fakeUserRepo

	alice *model.User
	bob   *model.User
	carol *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	alice := &model.User{ID: primitive.NewObjectID(), FullName: "Alice", Email: "alice@example.com"}
	bob := &model.User{ID: primitive.NewObjectID(), FullName: "Bob", Email: "bob@example.com"}
	carol := &model.User{ID: primitive.NewObjectID(), FullName: "Carol", Email: "carol@example.com"}

	reg := registry.New()
	h := NewHub()
	t.Cleanup(h.Stop)

	messages := newFakeMessageRepo()
	convs := newFakeConversationRepo()
	users := newFakeUserRepo(alice, bob, carol)

	return &fixture{
		handler:  NewChatHandler(h, reg, messages, convs, users, zap.NewNop()),
		hub:      h,
		reg:      reg,
		messages: messages,
		convs:    convs,
		users:    users,
		alice:    alice,
		bob:      bob,
		carol:    carol,
	}
}

func (fx *fixture) directConversation() *model.Conversation {
	c := &model.Conversation{
		ID:           primitive.NewObjectID(),
		Participants: []string{fx.alice.ID.Hex(), fx.bob.ID.Hex()},
	}
	fx.convs.add(c)
	return c
}

func (fx *fixture) connect(user *model.User) *fakeSession {
	s := newFakeSession("sess-"+user.ID.Hex(), registry.UserKey(user.ID.Hex()))
	fx.reg.Register(s.key, s)
	return s
}

func decodePayload[T any](t *testing.T, ev event.WsEvent) T {
	t.Helper()
	var payload T
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		t.Fatalf("failed to decode %s payload: %v", ev.Event, err)
	}
	return payload
}

// -----------------------------------------------------------------------------
// Message pipeline
// -----------------------------------------------------------------------------

func TestSendMessageDirectRecipientOnline(t *testing.T) {
	fx := newFixture(t)
	conv := fx.directConversation()
	convID := conv.ID.Hex()

	sessA := fx.connect(fx.alice)
	sessB := fx.connect(fx.bob)
	fx.hub.Join(convID, sessA)
	fx.hub.Join(convID, sessB)

	fx.handler.HandleEvent(context.Background(), event.NewEvent(event.EventSendMessage, event.SendMessagePayload{
		ConversationID: convID,
		SenderID:       fx.alice.ID.Hex(),
		Content:        "hi",
	}), sessA)

	if fx.messages.count() != 1 {
		t.Fatalf("expected 1 persisted message, got %d", fx.messages.count())
	}

	received := sessB.eventsNamed(event.EventReceiveMessage)
	if len(received) != 1 {
		t.Fatalf("expected room member to receive 1 receiveMessage, got %d", len(received))
	}
	view := decodePayload[model.MessageView](t, received[0])
	if view.Content != "hi" {
		t.Fatalf("unexpected content %q", view.Content)
	}
	if view.Sender.FullName != "Alice" {
		t.Fatalf("expected sender display fields resolved, got %+v", view.Sender)
	}

	stored := fx.messages.get(t, view.ID.Hex())
	if stored.Status != model.StatusDelivered {
		t.Fatalf("expected persisted status delivered, got %q", stored.Status)
	}
	if len(stored.ReadBy) != 1 || stored.ReadBy[0] != fx.alice.ID.Hex() {
		t.Fatalf("expected readBy to contain only the sender, got %v", stored.ReadBy)
	}

	delivered := sessA.eventsNamed(event.EventMessageDelivered)
	if len(delivered) != 1 {
		t.Fatalf("expected sender to receive 1 messageDelivered, got %d", len(delivered))
	}
	dp := decodePayload[event.MessageDeliveredPayload](t, delivered[0])
	if dp.MessageID != view.ID.Hex() || dp.ConversationID != convID {
		t.Fatalf("unexpected messageDelivered payload: %+v", dp)
	}

	// Secondary fan-out reaches both registered participants.
	for _, s := range []*fakeSession{sessA, sessB} {
		if len(s.eventsNamed(event.EventConversationUpdated)) != 1 {
			t.Fatalf("expected conversationUpdated on every registered participant")
		}
	}
}

func TestSendMessageDirectRecipientOffline(t *testing.T) {
	fx := newFixture(t)
	conv := fx.directConversation()
	convID := conv.ID.Hex()

	sessA := fx.connect(fx.alice)
	fx.hub.Join(convID, sessA)
	// Bob stays disconnected: not registered, not in the room.

	fx.handler.HandleEvent(context.Background(), event.NewEvent(event.EventSendMessage, event.SendMessagePayload{
		ConversationID: convID,
		SenderID:       fx.alice.ID.Hex(),
		Content:        "anyone there?",
	}), sessA)

	received := sessA.eventsNamed(event.EventReceiveMessage)
	if len(received) != 1 {
		t.Fatalf("expected 1 receiveMessage, got %d", len(received))
	}
	view := decodePayload[model.MessageView](t, received[0])

	if stored := fx.messages.get(t, view.ID.Hex()); stored.Status != model.StatusSent {
		t.Fatalf("expected status sent with recipient offline, got %q", stored.Status)
	}
	if len(sessA.eventsNamed(event.EventMessageDelivered)) != 0 {
		t.Fatal("expected no messageDelivered with recipient offline")
	}
}

func TestSendMessageGroupSkipsDelivered(t *testing.T) {
	fx := newFixture(t)
	group := &model.Conversation{
		ID:           primitive.NewObjectID(),
		Participants: []string{fx.alice.ID.Hex(), fx.bob.ID.Hex(), fx.carol.ID.Hex()},
		IsGroupChat:  true,
		GroupName:    "trio",
	}
	fx.convs.add(group)
	convID := group.ID.Hex()

	sessA := fx.connect(fx.alice)
	sessB := fx.connect(fx.bob)
	fx.hub.Join(convID, sessA)
	fx.hub.Join(convID, sessB)

	fx.handler.HandleEvent(context.Background(), event.NewEvent(event.EventSendMessage, event.SendMessagePayload{
		ConversationID: convID,
		SenderID:       fx.alice.ID.Hex(),
		Content:        "hello group",
	}), sessA)

	view := decodePayload[model.MessageView](t, sessB.eventsNamed(event.EventReceiveMessage)[0])
	if stored := fx.messages.get(t, view.ID.Hex()); stored.Status != model.StatusSent {
		t.Fatalf("group messages must stay sent, got %q", stored.Status)
	}
	if len(sessA.eventsNamed(event.EventMessageDelivered)) != 0 {
		t.Fatal("group conversations never produce messageDelivered")
	}
}

func TestSendMessageValidation(t *testing.T) {
	fx := newFixture(t)
	conv := fx.directConversation()
	sessA := fx.connect(fx.alice)

	fx.handler.HandleEvent(context.Background(), event.NewEvent(event.EventSendMessage, event.SendMessagePayload{
		ConversationID: conv.ID.Hex(),
		SenderID:       fx.alice.ID.Hex(),
		// neither content nor file
	}), sessA)

	if fx.messages.count() != 0 {
		t.Fatal("invalid message must not be persisted")
	}
	errs := sessA.eventsNamed(event.EventMessageError)
	if len(errs) != 1 {
		t.Fatalf("expected 1 messageError on the originating channel, got %d", len(errs))
	}
}

func TestSendMessageFileOnlyIsValid(t *testing.T) {
	fx := newFixture(t)
	conv := fx.directConversation()
	sessA := fx.connect(fx.alice)
	fx.hub.Join(conv.ID.Hex(), sessA)

	fx.handler.HandleEvent(context.Background(), event.NewEvent(event.EventSendMessage, event.SendMessagePayload{
		ConversationID: conv.ID.Hex(),
		SenderID:       fx.alice.ID.Hex(),
		FileURL:        "/uploads/chat_files/pic.png",
		FileType:       "image/png",
		FileName:       "pic.png",
	}), sessA)

	if fx.messages.count() != 1 {
		t.Fatal("attachment-only message must be accepted")
	}
	if len(sessA.eventsNamed(event.EventMessageError)) != 0 {
		t.Fatal("unexpected messageError for attachment-only message")
	}
}

func TestSendMessageConversationNotFound(t *testing.T) {
	fx := newFixture(t)
	sessA := fx.connect(fx.alice)

	fx.handler.HandleEvent(context.Background(), event.NewEvent(event.EventSendMessage, event.SendMessagePayload{
		ConversationID: primitive.NewObjectID().Hex(),
		SenderID:       fx.alice.ID.Hex(),
		Content:        "into the void",
	}), sessA)

	errs := sessA.eventsNamed(event.EventMessageError)
	if len(errs) != 1 {
		t.Fatalf("expected messageError, got %d", len(errs))
	}
	ep := decodePayload[event.ErrorPayload](t, errs[0])
	if ep.Message != "Conversation not found." {
		t.Fatalf("unexpected error message %q", ep.Message)
	}
	// The already-saved message stays orphaned; no rollback.
	if fx.messages.count() != 1 {
		t.Fatalf("expected orphaned message to remain, got %d", fx.messages.count())
	}
}

// -----------------------------------------------------------------------------
// Read receipts
// -----------------------------------------------------------------------------

func TestMarkMessagesAsRead(t *testing.T) {
	fx := newFixture(t)
	conv := fx.directConversation()
	convID := conv.ID.Hex()
	aliceID := fx.alice.ID.Hex()
	bobID := fx.bob.ID.Hex()

	var seeded []string
	for i := 0; i < 3; i++ {
		seeded = append(seeded, fx.messages.seed(model.Message{
			ConversationID: conv.ID,
			SenderID:       aliceID,
			Content:        "unread",
			Status:         model.StatusDelivered,
			ReadBy:         []string{aliceID},
		}))
	}

	sessA := fx.connect(fx.alice)
	sessB := fx.connect(fx.bob)

	fx.handler.HandleEvent(context.Background(), event.NewEvent(event.EventMarkMessagesAsRead, event.MarkReadPayload{
		ConversationID: convID,
	}), sessB)

	for _, id := range seeded {
		msg := fx.messages.get(t, id)
		if msg.Status != model.StatusRead {
			t.Fatalf("expected message %s read, got %q", id, msg.Status)
		}
		readBy := map[string]bool{}
		for _, r := range msg.ReadBy {
			readBy[r] = true
		}
		if !readBy[aliceID] || !readBy[bobID] {
			t.Fatalf("expected readBy to contain both participants, got %v", msg.ReadBy)
		}
	}

	if got := len(sessA.eventsNamed(event.EventMessagesRead)); got != 1 {
		t.Fatalf("expected exactly one messagesRead on the sender's channel, got %d", got)
	}
	mp := decodePayload[event.MessagesReadPayload](t, sessA.eventsNamed(event.EventMessagesRead)[0])
	if mp.ConversationID != convID {
		t.Fatalf("unexpected messagesRead payload: %+v", mp)
	}

	// Idempotent: a second run changes nothing and emits nothing new.
	fx.handler.HandleEvent(context.Background(), event.NewEvent(event.EventMarkMessagesAsRead, event.MarkReadPayload{
		ConversationID: convID,
	}), sessB)
	if got := len(sessA.eventsNamed(event.EventMessagesRead)); got != 1 {
		t.Fatalf("expected no extra messagesRead after idempotent re-run, got %d", got)
	}
}

// -----------------------------------------------------------------------------
// Reactions
// -----------------------------------------------------------------------------

func TestReactionReplaceThenToggle(t *testing.T) {
	fx := newFixture(t)
	conv := fx.directConversation()
	convID := conv.ID.Hex()

	msgID := fx.messages.seed(model.Message{
		ConversationID: conv.ID,
		SenderID:       fx.bob.ID.Hex(),
		Content:        "react to me",
		Status:         model.StatusSent,
		ReadBy:         []string{fx.bob.ID.Hex()},
	})

	sessA := fx.connect(fx.alice)
	fx.hub.Join(convID, sessA)

	react := func(emoji string) {
		fx.handler.HandleEvent(context.Background(), event.NewEvent(event.EventReactToMessage, event.ReactPayload{
			ConversationID: convID,
			MessageID:      msgID,
			Emoji:          emoji,
		}), sessA)
	}

	react("👍")
	react("❤️")

	msg := fx.messages.get(t, msgID)
	if len(msg.Reactions) != 1 {
		t.Fatalf("expected exactly one reaction entry, got %+v", msg.Reactions)
	}
	if msg.Reactions[0].Emoji != "❤️" || msg.Reactions[0].UserName != "Alice" {
		t.Fatalf("unexpected reaction entry: %+v", msg.Reactions[0])
	}

	if got := len(sessA.eventsNamed(event.EventMessageUpdated)); got != 2 {
		t.Fatalf("expected a messageUpdated broadcast per reaction, got %d", got)
	}

	// Toggling the same emoji off again clears the entry.
	react("❤️")
	if msg := fx.messages.get(t, msgID); len(msg.Reactions) != 0 {
		t.Fatalf("expected toggle-off to clear reactions, got %+v", msg.Reactions)
	}
}

// -----------------------------------------------------------------------------
// Ephemeral signaling
// -----------------------------------------------------------------------------

func TestTypingBroadcastExcludesSender(t *testing.T) {
	fx := newFixture(t)
	conv := fx.directConversation()
	convID := conv.ID.Hex()

	sessA := fx.connect(fx.alice)
	sessB := fx.connect(fx.bob)
	fx.hub.Join(convID, sessA)
	fx.hub.Join(convID, sessB)

	fx.handler.HandleEvent(context.Background(), event.NewEvent(event.EventTyping, event.TypingPayload{
		ConversationID: convID,
		UserID:         fx.alice.ID.Hex(),
		UserName:       "Alice",
	}), sessA)

	if len(sessA.eventsNamed(event.EventUserTyping)) != 0 {
		t.Fatal("typing indicator must not echo to the sender")
	}
	typing := sessB.eventsNamed(event.EventUserTyping)
	if len(typing) != 1 {
		t.Fatalf("expected peer to receive 1 userTyping, got %d", len(typing))
	}
	tp := decodePayload[event.UserTypingPayload](t, typing[0])
	if !tp.IsTyping || tp.UserName != "Alice" {
		t.Fatalf("unexpected userTyping payload: %+v", tp)
	}

	fx.handler.HandleEvent(context.Background(), event.NewEvent(event.EventStopTyping, event.TypingPayload{
		ConversationID: convID,
		UserID:         fx.alice.ID.Hex(),
		UserName:       "Alice",
	}), sessA)

	typing = sessB.eventsNamed(event.EventUserTyping)
	if len(typing) != 2 {
		t.Fatalf("expected stopTyping to reach the peer, got %d events", len(typing))
	}
	if tp := decodePayload[event.UserTypingPayload](t, typing[1]); tp.IsTyping {
		t.Fatal("stopTyping must carry isTyping=false")
	}
}

func TestShareGroupKeyRelaysToRecipientOnly(t *testing.T) {
	fx := newFixture(t)
	conv := fx.directConversation()
	convID := conv.ID.Hex()

	sessA := fx.connect(fx.alice)
	sessB := fx.connect(fx.bob)
	fx.hub.Join(convID, sessA)
	fx.hub.Join(convID, sessB)

	fx.handler.HandleEvent(context.Background(), event.NewEvent(event.EventShareGroupKey, event.ShareGroupKeyPayload{
		ConversationID: convID,
		SenderID:       fx.alice.ID.Hex(),
		RecipientID:    fx.bob.ID.Hex(),
		EncryptedKey:   "sealed",
	}), sessA)

	got := sessB.eventsNamed(event.EventReceiveGroupKey)
	if len(got) != 1 {
		t.Fatalf("expected recipient to receive 1 receiveGroupKey, got %d", len(got))
	}
	kp := decodePayload[event.ReceiveGroupKeyPayload](t, got[0])
	if kp.EncryptedKey != "sealed" || kp.SenderID != fx.alice.ID.Hex() {
		t.Fatalf("unexpected receiveGroupKey payload: %+v", kp)
	}
	if len(sessA.eventsNamed(event.EventReceiveGroupKey)) != 0 {
		t.Fatal("key relay must not reach the room or the sender")
	}
}

func TestShareGroupKeyOfflineRecipientDropsSilently(t *testing.T) {
	fx := newFixture(t)
	conv := fx.directConversation()
	sessA := fx.connect(fx.alice)

	fx.handler.HandleEvent(context.Background(), event.NewEvent(event.EventShareGroupKey, event.ShareGroupKeyPayload{
		ConversationID: conv.ID.Hex(),
		SenderID:       fx.alice.ID.Hex(),
		RecipientID:    fx.carol.ID.Hex(), // offline
		EncryptedKey:   "sealed",
	}), sessA)

	if len(sessA.eventsNamed(event.EventMessageError)) != 0 {
		t.Fatal("offline recipient must not raise an error to the sender")
	}
	if len(sessA.eventsNamed(event.EventReceiveGroupKey)) != 0 {
		t.Fatal("dropped key payload must not be emitted anywhere")
	}
}

// -----------------------------------------------------------------------------
// Rooms
// -----------------------------------------------------------------------------

func TestJoinAndLeaveConversation(t *testing.T) {
	fx := newFixture(t)
	conv := fx.directConversation()
	convID := conv.ID.Hex()

	sessA := fx.connect(fx.alice)
	sessB := fx.connect(fx.bob)

	join := event.NewEvent(event.EventJoinConversation, event.JoinLeavePayload{ConversationID: convID})
	fx.handler.HandleEvent(context.Background(), join, sessA)
	fx.handler.HandleEvent(context.Background(), join, sessB)

	fx.hub.Broadcast(convID, event.NewEvent(event.EventUserTyping, event.UserTypingPayload{}))
	if len(sessB.eventsNamed(event.EventUserTyping)) != 1 {
		t.Fatal("expected joined session to receive room broadcast")
	}

	fx.handler.HandleEvent(context.Background(), event.NewEvent(event.EventLeaveConversation, event.JoinLeavePayload{ConversationID: convID}), sessB)
	fx.hub.Broadcast(convID, event.NewEvent(event.EventUserTyping, event.UserTypingPayload{}))
	if len(sessB.eventsNamed(event.EventUserTyping)) != 1 {
		t.Fatal("expected departed session to miss subsequent broadcasts")
	}
	if len(sessA.eventsNamed(event.EventUserTyping)) != 2 {
		t.Fatal("expected remaining session to keep receiving broadcasts")
	}
}
