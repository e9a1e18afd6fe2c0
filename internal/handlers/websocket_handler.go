package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LifecycleStream pushes lifecycle events for one gift to a websocket client
type LifecycleStream interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request, commitmentHash string)
	ActiveConnections() int
}

// WebSocketHandler lifecycle stream endpoints
type WebSocketHandler struct {
	stream LifecycleStream
	logger *logrus.Logger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(stream LifecycleStream, logger *logrus.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		stream: stream,
		logger: logger,
	}
}

// HandleGiftStream
// GET /ws/gifts?commitment=0x...
func (h *WebSocketHandler) HandleGiftStream(c *gin.Context) {
	hash := strings.ToLower(c.Query("commitment"))
	if b, err := hexutil.Decode(hash); err != nil || len(b) != 32 {
		respondBadRequest(c, "commitment must be a 0x-prefixed 32-byte commitment hash")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"commitment_hash": hash,
		"remote_addr":     c.ClientIP(),
	}).Debug("📡 WebSocket subscription requested")

	h.stream.HandleWebSocket(c.Writer, c.Request, hash)
}

// GetConnectionStatus
// GET /ws/status
func (h *WebSocketHandler) GetConnectionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active_connections": h.stream.ActiveConnections(),
		"timestamp":          time.Now().UTC(),
	})
}
