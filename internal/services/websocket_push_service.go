package services

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"gift-backend/internal/interfaces"
	"gift-backend/internal/metrics"
	"gift-backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Connection one websocket subscriber following a single gift
type Connection struct {
	ID             string
	CommitmentHash string
	Conn           *websocket.Conn
	Send           chan []byte
	LastPing       time.Time
}

// PushMessage message written to subscribers
type PushMessage struct {
	Type           string      `json:"type"`
	MessageID      string      `json:"message_id"`
	CommitmentHash string      `json:"commitment_hash"`
	Timestamp      string      `json:"timestamp"`
	Data           interface{} `json:"data"`
}

// GiftStatusData payload of a gift_status message
type GiftStatusData struct {
	Status   models.GiftStatus `json:"status"`
	Message  string            `json:"message"`
	Progress int               `json:"progress"`
	Code     string            `json:"code,omitempty"`
}

// User-friendly status message mapping
var giftStatusMessages = map[models.GiftStatus]struct {
	Message  string
	Progress int
}{
	models.GiftStatusCreated:            {"🎁 Gift received, checking payment...", 10},
	models.GiftStatusFunded:             {"✅ Payment verified, issuing card...", 40},
	models.GiftStatusCardIssued:         {"💳 Card issued, preparing delivery...", 70},
	models.GiftStatusWaitingForDelivery: {"⏳ Gift scheduled, it will unlock on the delivery date", 85},
	models.GiftStatusDelivered:          {"🎉 Gift delivered and ready to claim", 100},
	models.GiftStatusClaimed:            {"🎊 Gift claimed", 100},
	models.GiftStatusFailed:             {"❌ Gift could not be completed", 0},
}

// WebSocketPushService pushes gift lifecycle events to subscribers keyed by commitment hash
type WebSocketPushService struct {
	connections map[string]*Connection
	giftConns   map[string][]*Connection
	hub         chan PushMessage
	register    chan *Connection
	unregister  chan *Connection
	stop        chan struct{}
	mutex       sync.RWMutex
	logger      *logrus.Logger
}

// NewWebSocketPushService create and start the push hub
func NewWebSocketPushService(logger *logrus.Logger) *WebSocketPushService {
	service := &WebSocketPushService{
		connections: make(map[string]*Connection),
		giftConns:   make(map[string][]*Connection),
		hub:         make(chan PushMessage, 256),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		stop:        make(chan struct{}),
		logger:      logger,
	}

	go service.run()
	return service
}

func (s *WebSocketPushService) run() {
	for {
		select {
		case conn := <-s.register:
			s.handleRegister(conn)
		case conn := <-s.unregister:
			s.handleUnregister(conn)
		case message := <-s.hub:
			s.handleBroadcast(message)
		case <-s.stop:
			return
		}
	}
}

// Stop the hub loop
func (s *WebSocketPushService) Stop() {
	close(s.stop)
}

func (s *WebSocketPushService) handleRegister(conn *Connection) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.connections[conn.ID] = conn
	s.giftConns[conn.CommitmentHash] = append(s.giftConns[conn.CommitmentHash], conn)
	metrics.WebSocketConnections.Set(float64(len(s.connections)))

	s.logger.WithFields(logrus.Fields{
		"commitment_hash": conn.CommitmentHash,
		"conn_id":         conn.ID,
	}).Info("📱 WebSocket connection registered")
}

func (s *WebSocketPushService) handleUnregister(conn *Connection) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.connections[conn.ID]; !ok {
		return
	}
	delete(s.connections, conn.ID)

	conns := s.giftConns[conn.CommitmentHash]
	for i, c := range conns {
		if c.ID == conn.ID {
			s.giftConns[conn.CommitmentHash] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(s.giftConns[conn.CommitmentHash]) == 0 {
		delete(s.giftConns, conn.CommitmentHash)
	}
	metrics.WebSocketConnections.Set(float64(len(s.connections)))

	close(conn.Send)
	s.logger.WithField("conn_id", conn.ID).Info("📱 WebSocket connection unregistered")
}

func (s *WebSocketPushService) handleBroadcast(message PushMessage) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	conns := s.giftConns[message.CommitmentHash]
	if len(conns) == 0 {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		s.logger.WithError(err).Error("❌ Failed to marshal push message")
		return
	}

	for _, conn := range conns {
		select {
		case conn.Send <- data:
		default:
			s.logger.WithField("conn_id", conn.ID).Warn("⚠️ Send buffer full, dropping message")
		}
	}
}

// PushLifecycleEvent queue a lifecycle event for subscribers of its gift
func (s *WebSocketPushService) PushLifecycleEvent(event *interfaces.LifecycleEvent) {
	info := giftStatusMessages[event.Status]
	message := PushMessage{
		Type:           "gift_status",
		MessageID:      event.EventID,
		CommitmentHash: event.CommitmentHash,
		Timestamp:      time.Unix(event.Timestamp, 0).UTC().Format(time.RFC3339),
		Data: GiftStatusData{
			Status:   event.Status,
			Message:  info.Message,
			Progress: info.Progress,
			Code:     event.Code,
		},
	}

	select {
	case s.hub <- message:
	default:
		metrics.EventPublishFailures.WithLabelValues("websocket").Inc()
		s.logger.Warn("⚠️ Push hub full, dropping lifecycle event")
	}
}

// HandleWebSocket upgrade and follow one gift until the client disconnects
func (s *WebSocketPushService) HandleWebSocket(w http.ResponseWriter, r *http.Request, commitmentHash string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("❌ WebSocket upgrade failed")
		return
	}

	connection := &Connection{
		ID:             uuid.New().String(),
		CommitmentHash: commitmentHash,
		Conn:           conn,
		Send:           make(chan []byte, 32),
		LastPing:       time.Now(),
	}

	select {
	case s.register <- connection:
	case <-s.stop:
		conn.Close()
		return
	}

	go s.handleConnectionWrite(connection)
	go s.handleConnectionRead(connection)
}

// ActiveConnections number of connected subscribers
func (s *WebSocketPushService) ActiveConnections() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.connections)
}

func (s *WebSocketPushService) handleConnectionWrite(conn *Connection) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *WebSocketPushService) handleConnectionRead(conn *Connection) {
	defer func() {
		select {
		case s.unregister <- conn:
		case <-s.stop:
		}
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(512)
	conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.LastPing = time.Now()
		return nil
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.WithError(err).Warn("❌ WebSocket read error")
			}
			return
		}
	}
}
