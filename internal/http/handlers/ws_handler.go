package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ignatzorin/skillhire-backend/internal/http/middleware"
	"github.com/ignatzorin/skillhire-backend/internal/logger"
	"github.com/ignatzorin/skillhire-backend/internal/ws"
)

// WSHandler отвечает за установку WebSocket соединений.
type WSHandler struct {
	hub        *ws.Hub
	tokens     middleware.TokenParser
	principals middleware.PrincipalLoader
	upgrader   websocket.Upgrader
}

// NewWSHandler создаёт новый хэндлер. Запросы без Origin (мобильные клиенты)
// пропускаются, браузерные - только с разрешённых origins.
func NewWSHandler(hub *ws.Hub, tokens middleware.TokenParser, principals middleware.PrincipalLoader, allowedOrigins []string) *WSHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &WSHandler{
		hub:        hub,
		tokens:     tokens,
		principals: principals,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// Handle обслуживает GET /api/ws?token=...
func (h *WSHandler) Handle(c *gin.Context) {
	rawToken := c.Query("token")
	if rawToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "access токен обязателен"})
		return
	}

	userID, _, err := h.tokens.ParseAccess(rawToken)
	if err != nil || userID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "невалидный access токен"})
		return
	}

	principal, err := h.principals.GetPrincipal(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "пользователь не найден"})
		return
	}
	if principal.IsSuspended {
		c.JSON(http.StatusForbidden, gin.H{"error": "аккаунт заблокирован"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже записал ответ клиенту.
		logger.Log.WithError(err).WithField("user_id", userID).Warn("ws: upgrade не удался")
		return
	}

	client := ws.NewClient(conn, h.hub, principal)
	h.hub.Register(client)

	client.Run(c.Request.Context())
}
