package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/skillhire-backend/internal/domain/valueobject"
	"github.com/ignatzorin/skillhire-backend/internal/models"
	"github.com/ignatzorin/skillhire-backend/internal/pkg/apperror"
	"github.com/ignatzorin/skillhire-backend/internal/presence"
	"github.com/ignatzorin/skillhire-backend/internal/push"
)

type MockChatActions struct {
	mock.Mock
}

func (m *MockChatActions) ChatIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, userID)
	ids, _ := args.Get(0).([]uuid.UUID)
	return ids, args.Error(1)
}

func (m *MockChatActions) GetChat(ctx context.Context, p models.Principal, chatID uuid.UUID) (*models.ChatView, error) {
	args := m.Called(ctx, p, chatID)
	view, _ := args.Get(0).(*models.ChatView)
	return view, args.Error(1)
}

func (m *MockChatActions) SendMessage(ctx context.Context, p models.Principal, chatID uuid.UUID, content string, msgType valueobject.MessageType) (*models.Message, error) {
	args := m.Called(ctx, p, chatID, content, msgType)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *MockChatActions) MarkRead(ctx context.Context, p models.Principal, chatID uuid.UUID) (*models.ReadReceipt, error) {
	args := m.Called(ctx, p, chatID)
	r, _ := args.Get(0).(*models.ReadReceipt)
	return r, args.Error(1)
}

type MockPusher struct {
	mock.Mock
}

func (m *MockPusher) Notify(ctx context.Context, userID uuid.UUID, n push.Notification) error {
	return m.Called(ctx, userID, n).Error(0)
}

type MockStatusRecorder struct {
	mock.Mock
}

func (m *MockStatusRecorder) SetOnline(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockStatusRecorder) SetOffline(ctx context.Context, userID uuid.UUID, lastSeen time.Time) error {
	return m.Called(ctx, userID, lastSeen).Error(0)
}

type received struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newTestHub(t *testing.T, store presence.Store) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewHub(ctx, store)
}

func principal(name string) models.Principal {
	return models.Principal{ID: uuid.New(), Name: name, Role: models.RoleFreelancer}
}

// attach регистрирует клиента без сетевого соединения.
func attach(h *Hub, p models.Principal) *Client {
	c := NewClient(nil, h, p)
	h.addClient(c)
	return c
}

func next(t *testing.T, c *Client) received {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "канал клиента закрыт")
		var ev received
		require.NoError(t, json.Unmarshal(raw, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("событие не пришло")
	}
	return received{}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("неожиданное событие: %s", raw)
	default:
	}
}

func payloadOf(t *testing.T, ev received) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(ev.Data, &out))
	return out
}

func TestHub_BroadcastToRoomSkipsSender(t *testing.T) {
	h := newTestHub(t, nil)
	alice, bob := attach(h, principal("alice")), attach(h, principal("bob"))
	outsider := attach(h, principal("eve"))

	room := models.ChatRoom(uuid.New())
	h.JoinRoom(alice.principal.ID, room)
	h.JoinRoom(bob.principal.ID, room)

	sender := alice.principal.ID
	h.BroadcastToRoom(room, models.EventMessageReceived, map[string]string{"content": "hi"}, &sender)

	ev := next(t, bob)
	assert.Equal(t, models.EventMessageReceived, ev.Type)
	assert.Equal(t, "hi", payloadOf(t, ev)["content"])
	assertSilent(t, alice)
	assertSilent(t, outsider)

	h.BroadcastToRoom(room, "ping", nil, nil)
	next(t, alice)
	next(t, bob)
}

func TestHub_JoinRoomCoversEveryConnection(t *testing.T) {
	h := newTestHub(t, nil)
	p := principal("alice")
	phone, laptop := attach(h, p), attach(h, p)

	room := models.ChatRoom(uuid.New())
	h.JoinRoom(p.ID, room)

	users, conns, rooms := h.Stats()
	assert.Equal(t, [3]int{1, 2, 1}, [3]int{users, conns, rooms})

	h.BroadcastToRoom(room, "x", nil, nil)
	next(t, phone)
	next(t, laptop)

	h.LeaveRoom(p.ID, room)
	h.BroadcastToRoom(room, "x", nil, nil)
	assertSilent(t, phone)
	assertSilent(t, laptop)
	assert.Empty(t, h.rooms)
}

func TestHub_RemoveClientCleansRooms(t *testing.T) {
	h := newTestHub(t, nil)
	c := attach(h, principal("alice"))
	h.JoinRoom(c.principal.ID, "chat:1")

	assert.True(t, h.removeClient(c))
	assert.False(t, h.removeClient(c))
	assert.Empty(t, h.rooms)
	assert.False(t, h.hasLocal(c.principal.ID))

	_, ok := <-c.send
	assert.False(t, ok)
}

func TestHub_ConnectJoinsChatsAndAnnouncesOnce(t *testing.T) {
	h := newTestHub(t, presence.NewMemoryStore())
	actions := new(MockChatActions)
	status := new(MockStatusRecorder)
	h.SetChatActions(actions)
	h.SetStatusRecorder(status)

	watcher := attach(h, principal("bob"))
	p := principal("alice")
	chatID := uuid.New()
	actions.On("ChatIDsForUser", mock.Anything, p.ID).Return([]uuid.UUID{chatID}, nil)
	status.On("SetOnline", mock.Anything, p.ID).Return(nil).Once()

	first := attach(h, p)
	h.connected(first)

	ev := next(t, watcher)
	assert.Equal(t, models.EventUserOnline, ev.Type)
	assert.Equal(t, p.ID.String(), payloadOf(t, ev)["userId"])
	assert.True(t, h.inRoom(first, models.ChatRoom(chatID)))

	second := attach(h, p)
	h.connected(second)
	assertSilent(t, watcher)

	status.AssertExpectations(t)
}

func TestHub_DisconnectAnnouncesOnlyAfterLastConnection(t *testing.T) {
	store := presence.NewMemoryStore()
	h := newTestHub(t, store)
	status := new(MockStatusRecorder)
	h.SetStatusRecorder(status)
	fixed := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	watcher := attach(h, principal("bob"))
	p := principal("alice")
	status.On("SetOnline", mock.Anything, p.ID).Return(nil)
	status.On("SetOffline", mock.Anything, p.ID, fixed).Return(nil).Once()

	a, b := attach(h, p), attach(h, p)
	h.connected(a)
	h.connected(b)
	next(t, watcher) // user:online

	h.removeClient(a)
	h.disconnected(a)
	assertSilent(t, watcher)
	assert.True(t, h.IsUserOnline(p.ID))

	h.removeClient(b)
	h.disconnected(b)
	ev := next(t, watcher)
	assert.Equal(t, models.EventUserOffline, ev.Type)
	assert.Equal(t, p.ID.String(), payloadOf(t, ev)["userId"])
	assert.NotEmpty(t, payloadOf(t, ev)["lastSeen"])
	assert.False(t, h.IsUserOnline(p.ID))

	status.AssertExpectations(t)
}

func TestHub_QuickDisconnectWaitsForConnect(t *testing.T) {
	store := presence.NewMemoryStore()
	h := newTestHub(t, store)
	p := principal("alice")

	release := make(chan struct{})
	actions := new(MockChatActions)
	actions.On("ChatIDsForUser", mock.Anything, p.ID).
		Run(func(mock.Arguments) { <-release }).
		Return([]uuid.UUID(nil), nil)
	h.SetChatActions(actions)

	watcher := attach(h, principal("bob"))
	go h.Run()

	c := NewClient(nil, h, p)
	h.Register(c)
	c.Close()
	require.Eventually(t, func() bool {
		_, conns, _ := h.Stats()
		return conns == 1
	}, time.Second, 10*time.Millisecond)

	close(release)

	assert.Equal(t, models.EventUserOnline, next(t, watcher).Type)
	assert.Equal(t, models.EventUserOffline, next(t, watcher).Type)
	assert.False(t, h.IsUserOnline(p.ID))
}

func TestHub_IsUserOnlineSeesOtherInstances(t *testing.T) {
	store := presence.NewMemoryStore()
	a, b := newTestHub(t, store), newTestHub(t, store)
	p := principal("alice")

	c := attach(a, p)
	a.connected(c)

	assert.True(t, a.IsUserOnline(p.ID))
	assert.True(t, b.IsUserOnline(p.ID))
	assert.False(t, b.hasLocal(p.ID))
}

func TestHub_BroadcastToUserPersistsAndDelivers(t *testing.T) {
	h := newTestHub(t, nil)
	saved := make(chan string, 1)
	h.SetNotificationSaver(NotificationSaverFunc(func(_ context.Context, _ uuid.UUID, event string, _ interface{}) error {
		saved <- event
		return nil
	}))
	pusher := new(MockPusher)
	h.SetPusher(pusher)

	c := attach(h, principal("alice"))
	require.NoError(t, h.BroadcastToUser(c.principal.ID, "job:completed", map[string]string{"jobId": "1"}))

	ev := next(t, c)
	assert.Equal(t, "job:completed", ev.Type)
	select {
	case event := <-saved:
		assert.Equal(t, "job:completed", event)
	case <-time.After(time.Second):
		t.Fatal("уведомление не сохранено")
	}
	pusher.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestHub_BroadcastToOfflineUserPushes(t *testing.T) {
	h := newTestHub(t, nil)
	pusher := new(MockPusher)
	h.SetPusher(pusher)

	userID := uuid.New()
	pushed := make(chan push.Notification, 1)
	pusher.On("Notify", mock.Anything, userID, mock.Anything).
		Run(func(args mock.Arguments) { pushed <- args.Get(2).(push.Notification) }).
		Return(nil)

	require.NoError(t, h.BroadcastToUser(userID, "withdrawal:updated", nil))

	select {
	case n := <-pushed:
		assert.Equal(t, pushTitles["withdrawal:updated"], n.Title)
		assert.Equal(t, "withdrawal:updated", n.Data["event"])
	case <-time.After(time.Second):
		t.Fatal("push не отправлен")
	}
}

func TestHub_TypingRelaysToRoomExceptSender(t *testing.T) {
	h := newTestHub(t, nil)
	alice, bob := attach(h, principal("alice")), attach(h, principal("bob"))
	chatID := uuid.New()
	room := models.ChatRoom(chatID)
	h.JoinRoom(alice.principal.ID, room)
	h.JoinRoom(bob.principal.ID, room)

	h.handleInbound(context.Background(), alice, []byte(`{"type":"typing:start","data":{"chatId":"`+chatID.String()+`"}}`))

	ev := next(t, bob)
	assert.Equal(t, models.EventTypingUpdate, ev.Type)
	data := payloadOf(t, ev)
	assert.Equal(t, chatID.String(), data["chatId"])
	assert.Equal(t, alice.principal.ID.String(), data["userId"])
	assert.Equal(t, "alice", data["userName"])
	assert.Equal(t, true, data["isTyping"])
	assertSilent(t, alice)

	h.handleInbound(context.Background(), alice, []byte(`{"type":"typing:stop","data":{"chatId":"`+chatID.String()+`"}}`))
	assert.Equal(t, false, payloadOf(t, next(t, bob))["isTyping"])
}

func TestHub_TypingOutsideRoomIsRejected(t *testing.T) {
	h := newTestHub(t, nil)
	c := attach(h, principal("alice"))

	h.handleInbound(context.Background(), c, []byte(`{"type":"typing:start","data":{"chatId":"`+uuid.NewString()+`"}}`))

	ev := next(t, c)
	assert.Equal(t, models.EventError, ev.Type)
	assert.Equal(t, string(apperror.ErrCodeForbidden), payloadOf(t, ev)["code"])
}

func TestHub_ChatJoinRequiresParticipation(t *testing.T) {
	h := newTestHub(t, nil)
	actions := new(MockChatActions)
	h.SetChatActions(actions)
	c := attach(h, principal("alice"))

	own, foreign := uuid.New(), uuid.New()
	actions.On("GetChat", mock.Anything, c.principal, own).Return(&models.ChatView{}, nil)
	actions.On("GetChat", mock.Anything, c.principal, foreign).Return(nil, apperror.ErrNotAParticipant)

	h.handleInbound(context.Background(), c, []byte(`{"type":"chat:join","data":{"chatId":"`+own.String()+`"}}`))
	assertSilent(t, c)
	assert.True(t, h.inRoom(c, models.ChatRoom(own)))

	h.handleInbound(context.Background(), c, []byte(`{"type":"chat:join","data":{"chatId":"`+foreign.String()+`"}}`))
	ev := next(t, c)
	assert.Equal(t, models.EventError, ev.Type)
	assert.Equal(t, apperror.ErrNotAParticipant.Message, payloadOf(t, ev)["message"])
	assert.False(t, h.inRoom(c, models.ChatRoom(foreign)))

	h.handleInbound(context.Background(), c, []byte(`{"type":"chat:leave","data":{"chatId":"`+own.String()+`"}}`))
	assert.False(t, h.inRoom(c, models.ChatRoom(own)))
}

func TestHub_MessageSendDefaultsToText(t *testing.T) {
	h := newTestHub(t, nil)
	actions := new(MockChatActions)
	h.SetChatActions(actions)
	c := attach(h, principal("alice"))
	chatID := uuid.New()

	actions.On("SendMessage", mock.Anything, c.principal, chatID, "привет", valueobject.MessageTypeText).
		Return(&models.Message{ID: uuid.New()}, nil).Once()
	actions.On("MarkRead", mock.Anything, c.principal, chatID).
		Return(&models.ReadReceipt{ChatID: chatID}, nil).Once()

	h.handleInbound(context.Background(), c, []byte(`{"type":"message:send","data":{"chatId":"`+chatID.String()+`","content":"привет"}}`))
	h.handleInbound(context.Background(), c, []byte(`{"type":"message:read","data":{"chatId":"`+chatID.String()+`"}}`))

	assertSilent(t, c)
	actions.AssertExpectations(t)
}

func TestHub_MessageSendErrorGoesBackToSender(t *testing.T) {
	h := newTestHub(t, nil)
	actions := new(MockChatActions)
	h.SetChatActions(actions)
	c := attach(h, principal("alice"))
	chatID := uuid.New()

	actions.On("SendMessage", mock.Anything, c.principal, chatID, "", valueobject.MessageTypeText).
		Return(nil, apperror.Validation("сообщение не может быть пустым"))

	h.handleInbound(context.Background(), c, []byte(`{"type":"message:send","data":{"chatId":"`+chatID.String()+`","content":"","type":"text"}}`))

	ev := next(t, c)
	assert.Equal(t, models.EventError, ev.Type)
	assert.Equal(t, string(apperror.ErrCodeValidation), payloadOf(t, ev)["code"])
}

func TestHub_MalformedAndUnknownEvents(t *testing.T) {
	h := newTestHub(t, nil)
	c := attach(h, principal("alice"))

	h.handleInbound(context.Background(), c, []byte(`not json`))
	assert.Equal(t, string(apperror.ErrCodeValidation), payloadOf(t, next(t, c))["code"])

	h.handleInbound(context.Background(), c, []byte(`{"type":"chat:explode","data":{}}`))
	assert.Equal(t, string(apperror.ErrCodeInvalidType), payloadOf(t, next(t, c))["code"])

	h.handleInbound(context.Background(), c, []byte(`{"type":"typing:start"}`))
	assert.Equal(t, string(apperror.ErrCodeValidation), payloadOf(t, next(t, c))["code"])
}

func TestHub_NotificationSendNeedsSharedRoom(t *testing.T) {
	h := newTestHub(t, nil)
	alice, bob := attach(h, principal("alice")), attach(h, principal("bob"))
	msg := []byte(`{"type":"notification:send","data":{"userId":"` + bob.principal.ID.String() + `","notification":{"title":"hey"}}}`)

	h.handleInbound(context.Background(), alice, msg)
	assert.Equal(t, string(apperror.ErrCodeForbidden), payloadOf(t, next(t, alice))["code"])
	assertSilent(t, bob)

	room := models.ChatRoom(uuid.New())
	h.JoinRoom(alice.principal.ID, room)
	h.JoinRoom(bob.principal.ID, room)

	h.handleInbound(context.Background(), alice, msg)
	ev := next(t, bob)
	assert.Equal(t, models.EventNotificationReceived, ev.Type)
	assert.Equal(t, alice.principal.ID.String(), payloadOf(t, ev)["from"])
	assertSilent(t, alice)
}

func TestHub_AdminMayNotifyAnyone(t *testing.T) {
	h := newTestHub(t, nil)
	admin := models.Principal{ID: uuid.New(), Name: "admin", Role: models.RoleAdmin}
	a, target := attach(h, admin), attach(h, principal("bob"))

	h.handleInbound(context.Background(), a, []byte(`{"type":"notification:send","data":{"userId":"`+target.principal.ID.String()+`","notification":{"title":"maintenance"}}}`))

	assert.Equal(t, models.EventNotificationReceived, next(t, target).Type)
}
