package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/skillhire-backend/internal/goroutine"
	"github.com/ignatzorin/skillhire-backend/internal/logger"
	"github.com/ignatzorin/skillhire-backend/internal/models"
	"github.com/ignatzorin/skillhire-backend/internal/presence"
	"github.com/ignatzorin/skillhire-backend/internal/push"
)

// sideEffectTimeout ограничивает фоновые операции хаба: сохранение, push, presence.
const sideEffectTimeout = 5 * time.Second

// NotificationSaver интерфейс для сохранения уведомлений в БД.
type NotificationSaver interface {
	CreateNotification(ctx context.Context, userID uuid.UUID, event string, data interface{}) error
}

// NotificationSaverFunc позволяет передать функцию как NotificationSaver.
type NotificationSaverFunc func(ctx context.Context, userID uuid.UUID, event string, data interface{}) error

func (f NotificationSaverFunc) CreateNotification(ctx context.Context, userID uuid.UUID, event string, data interface{}) error {
	return f(ctx, userID, event, data)
}

// Pusher доставляет push-уведомления на устройства.
type Pusher interface {
	Notify(ctx context.Context, userID uuid.UUID, n push.Notification) error
}

// StatusRecorder сохраняет статус присутствия пользователя.
type StatusRecorder interface {
	SetOnline(ctx context.Context, userID uuid.UUID) error
	SetOffline(ctx context.Context, userID uuid.UUID, lastSeen time.Time) error
}

// RoomSource отдаёт чаты пользователя для подписки соединения на комнаты.
type RoomSource interface {
	ChatIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// Hub управляет всеми WebSocket клиентами и комнатами чатов.
// Создаётся один раз при старте сервера и передаётся сервисам явно.
type Hub struct {
	mu         sync.RWMutex
	clients    map[uuid.UUID]map[*Client]struct{}
	rooms      map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client

	presence presence.Store
	saver    NotificationSaver
	pusher   Pusher
	status   StatusRecorder
	source   RoomSource
	actions  ChatActions

	ctx context.Context
	now func() time.Time
}

// NewHub создаёт новый хаб. Без Redis передаётся presence.NewMemoryStore().
func NewHub(ctx context.Context, store presence.Store) *Hub {
	if store == nil {
		store = presence.NewMemoryStore()
	}
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		presence:   store,
		ctx:        ctx,
		now:        time.Now,
	}
}

// SetNotificationSaver устанавливает сервис для сохранения уведомлений.
func (h *Hub) SetNotificationSaver(saver NotificationSaver) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saver = saver
}

// SetPusher устанавливает отправку push-уведомлений для пользователей без соединения.
func (h *Hub) SetPusher(p Pusher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pusher = p
}

// SetStatusRecorder устанавливает хранилище is_online/last_seen.
func (h *Hub) SetStatusRecorder(s StatusRecorder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = s
}

// SetChatActions подключает сервис чатов: из него берутся комнаты при подключении
// и через него выполняются входящие события сокета.
func (h *Hub) SetChatActions(actions ChatActions) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.actions = actions
	h.source = actions
}

// Run запускает главный цикл хаба.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
			ready := make(chan struct{})
			client.ready = ready
			goroutine.SafeGoNamed("ws.connected", func() {
				defer close(ready)
				h.connected(client)
			})
		case client := <-h.unregister:
			if h.removeClient(client) {
				// Отключение учитываем только после завершения подключения того же клиента.
				ready := client.ready
				goroutine.SafeGoNamed("ws.disconnected", func() {
					if ready != nil {
						<-ready
					}
					h.disconnected(client)
				})
			}
		case <-h.ctx.Done():
			h.closeAll()
			return
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := client.principal.ID
	if _, ok := h.clients[userID]; !ok {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

// removeClient убирает клиента из реестра и всех комнат. Возвращает false,
// если клиент уже был удалён.
func (h *Hub) removeClient(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := client.principal.ID
	clients, ok := h.clients[userID]
	if !ok {
		return false
	}
	if _, ok := clients[client]; !ok {
		return false
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, userID)
	}
	for room := range client.rooms {
		h.leaveLocked(client, room)
	}
	close(client.send)
	return true
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, clients := range h.clients {
		for c := range clients {
			close(c.send)
		}
		delete(h.clients, userID)
	}
	h.rooms = make(map[string]map[*Client]struct{})
}

// connected подписывает соединение на комнаты чатов и объявляет пользователя онлайн.
func (h *Hub) connected(c *Client) {
	ctx, cancel := context.WithTimeout(h.ctx, sideEffectTimeout)
	defer cancel()
	userID := c.principal.ID

	h.mu.RLock()
	source, status := h.source, h.status
	h.mu.RUnlock()

	if source != nil {
		chatIDs, err := source.ChatIDsForUser(ctx, userID)
		if err != nil {
			logger.Log.WithError(err).WithField("user_id", userID).Warn("ws: не удалось загрузить чаты пользователя")
		}
		for _, id := range chatIDs {
			h.joinClient(c, models.ChatRoom(id))
		}
	}

	first, err := h.presence.Connect(ctx, userID)
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Warn("ws: presence connect")
		first = true
	}
	if !first {
		return
	}
	if status != nil {
		if err := status.SetOnline(ctx, userID); err != nil {
			logger.Log.WithError(err).WithField("user_id", userID).Warn("ws: не удалось сохранить статус онлайн")
		}
	}
	h.broadcastAll(models.EventUserOnline, map[string]interface{}{"userId": userID})
}

// disconnected фиксирует last_seen и объявляет пользователя офлайн после закрытия последнего соединения.
func (h *Hub) disconnected(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	userID := c.principal.ID

	last, err := h.presence.Disconnect(ctx, userID)
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Warn("ws: presence disconnect")
		last = !h.hasLocal(userID)
	}
	if !last {
		return
	}

	lastSeen := h.now().UTC()
	h.mu.RLock()
	status := h.status
	h.mu.RUnlock()
	if status != nil {
		if err := status.SetOffline(ctx, userID, lastSeen); err != nil {
			logger.Log.WithError(err).WithField("user_id", userID).Warn("ws: не удалось сохранить last_seen")
		}
	}
	h.broadcastAll(models.EventUserOffline, map[string]interface{}{"userId": userID, "lastSeen": lastSeen})
}

// BroadcastToUser отправляет событие всем соединениям пользователя и сохраняет уведомление в БД.
// Пользователю без соединений на всех экземплярах уходит push.
func (h *Hub) BroadcastToUser(userID uuid.UUID, event string, data interface{}) error {
	raw, err := encode(event, data)
	if err != nil {
		return err
	}

	h.mu.RLock()
	saver := h.saver
	h.mu.RUnlock()

	if saver != nil {
		goroutine.SafeGoNamed("ws.save_notification", func() {
			ctx, cancel := context.WithTimeout(h.ctx, sideEffectTimeout)
			defer cancel()
			if err := saver.CreateNotification(ctx, userID, event, data); err != nil {
				logger.Log.WithError(err).WithFields(logrus.Fields{
					"user_id": userID,
					"event":   event,
				}).Warn("ws: не удалось сохранить уведомление")
			}
		})
	}

	if h.deliver(userID, raw) == 0 && !h.IsUserOnline(userID) {
		if title, ok := pushTitles[event]; ok {
			h.PushToUser(userID, title, "", map[string]string{"event": event})
		}
	}
	return nil
}

// SendToUser доставляет событие только живым соединениям пользователя, без сохранения.
func (h *Hub) SendToUser(userID uuid.UUID, event string, data interface{}) {
	raw, err := encode(event, data)
	if err != nil {
		logger.Log.WithError(err).WithField("event", event).Error("ws: сериализация события")
		return
	}
	h.deliver(userID, raw)
}

// BroadcastToRoom рассылает событие всем соединениям комнаты, кроме соединений пользователя except.
func (h *Hub) BroadcastToRoom(room, event string, data interface{}, except *uuid.UUID) {
	raw, err := encode(event, data)
	if err != nil {
		logger.Log.WithError(err).WithField("event", event).Error("ws: сериализация события")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		if except != nil && c.principal.ID == *except {
			continue
		}
		h.enqueue(c, raw)
	}
}

func (h *Hub) broadcastAll(event string, data interface{}) {
	raw, err := encode(event, data)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.clients {
		for c := range clients {
			h.enqueue(c, raw)
		}
	}
}

func (h *Hub) deliver(userID uuid.UUID, raw []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients[userID] {
		h.enqueue(c, raw)
		n++
	}
	return n
}

// enqueue вызывается под h.mu. Клиент с переполненной очередью отключается.
func (h *Hub) enqueue(c *Client, raw []byte) {
	select {
	case c.send <- raw:
	default:
		goroutine.SafeGo(c.Close)
	}
}

// JoinRoom подписывает все соединения пользователя на комнату.
// Принадлежность к чату здесь не проверяется.
func (h *Hub) JoinRoom(userID uuid.UUID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[userID] {
		h.joinLocked(c, room)
	}
}

// LeaveRoom отписывает все соединения пользователя от комнаты.
func (h *Hub) LeaveRoom(userID uuid.UUID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[userID] {
		h.leaveLocked(c, room)
	}
}

func (h *Hub) joinClient(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.principal.ID][c]; !ok {
		return
	}
	h.joinLocked(c, room)
}

func (h *Hub) leaveClient(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) joinLocked(c *Client, room string) {
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

func (h *Hub) inRoom(c *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

// sharesRoom проверяет, что у клиента есть общая комната с пользователем userID.
func (h *Hub) sharesRoom(c *Client, userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for room := range c.rooms {
		for member := range h.rooms[room] {
			if member.principal.ID == userID {
				return true
			}
		}
	}
	return false
}

// Stats возвращает число пользователей, соединений и комнат на этом экземпляре.
func (h *Hub) Stats() (users, connections, rooms int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.clients {
		connections += len(set)
	}
	return len(h.clients), connections, len(h.rooms)
}

func (h *Hub) hasLocal(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// IsUserOnline сообщает, есть ли у пользователя соединение на этом или другом экземпляре.
// Результат приблизительный: реестр может меняться параллельно.
func (h *Hub) IsUserOnline(userID uuid.UUID) bool {
	if h.hasLocal(userID) {
		return true
	}
	ctx, cancel := context.WithTimeout(h.ctx, time.Second)
	defer cancel()
	online, err := h.presence.IsOnline(ctx, userID)
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Debug("ws: presence недоступен")
		return false
	}
	return online
}

// PushToUser отправляет push-уведомление в фоне.
func (h *Hub) PushToUser(userID uuid.UUID, title, body string, data map[string]string) {
	h.mu.RLock()
	pusher := h.pusher
	h.mu.RUnlock()
	if pusher == nil {
		return
	}
	goroutine.SafeGoNamed("ws.push", func() {
		ctx, cancel := context.WithTimeout(h.ctx, sideEffectTimeout)
		defer cancel()
		n := push.Notification{Title: title, Body: body, Data: data}
		if err := pusher.Notify(ctx, userID, n); err != nil {
			logger.Log.WithError(err).WithField("user_id", userID).Warn("ws: push не доставлен")
		}
	})
}

// touch продлевает присутствие пользователя по heartbeat, если хранилище это поддерживает.
func (h *Hub) touch(userID uuid.UUID) {
	toucher, ok := h.presence.(interface {
		Touch(ctx context.Context, userID uuid.UUID) error
	})
	if !ok {
		return
	}
	goroutine.SafeGo(func() {
		ctx, cancel := context.WithTimeout(h.ctx, time.Second)
		defer cancel()
		_ = toucher.Touch(ctx, userID)
	})
}

// pushTitles заголовки push для событий, которые стоит доставить офлайн-пользователю.
var pushTitles = map[string]string{
	"application:updated":   "Статус отклика изменился",
	"application:new":       "Новый отклик на заказ",
	"job:invited":           "Вас пригласили на заказ",
	"submission:updated":    "Обновление по сданной работе",
	"job:completed":         "Заказ завершён, оплата зачислена",
	"withdrawal:updated":    "Решение по выводу средств",
	"notification:received": "Новое уведомление",
}

// envelope формат сообщений WebSocket API: "type" - имя события, "data" - полезная нагрузка.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(map[string]interface{}{
		"type": event,
		"data": data,
	})
	if err != nil {
		return nil, fmt.Errorf("ws: не удалось сериализовать сообщение: %w", err)
	}
	return raw, nil
}
