package notifier

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/example/parkpulse/internal/parking/domain"
)

const (
	writeWait      = 10 * time.Second
	outboundBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// clientMessage is what subscribers send over the socket to manage their
// lot rooms.
type clientMessage struct {
	Action string `json:"action"` // join-lot | leave-lot | join-global
	LotID  string `json:"lot_id,omitempty"`
}

// WebSocketHandler bridges hub subscriptions onto websocket connections.
// Each connection manages its own set of lot rooms via join-lot and
// leave-lot messages.
type WebSocketHandler struct {
	hub    *Hub
	logger *zap.Logger
}

// NewWebSocketHandler constructs the handler.
func NewWebSocketHandler(hub *Hub, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{hub: hub, logger: logger}
}

// ServeHTTP upgrades the connection and runs the session until the client
// disconnects.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	session := &wsSession{
		handler:  h,
		conn:     conn,
		outbound: make(chan domain.Event, outboundBuffer),
		rooms:    make(map[uuid.UUID]*Subscription),
		done:     make(chan struct{}),
	}
	go session.writeLoop()
	session.readLoop()
}

type wsSession struct {
	handler  *WebSocketHandler
	conn     *websocket.Conn
	outbound chan domain.Event

	mu     sync.Mutex
	rooms  map[uuid.UUID]*Subscription
	global *Subscription
	done   chan struct{}
}

func (s *wsSession) readLoop() {
	defer s.close()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.handler.logger.Debug("bad websocket message", zap.Error(err))
			continue
		}
		s.handle(msg)
	}
}

func (s *wsSession) handle(msg clientMessage) {
	switch msg.Action {
	case "join-lot":
		lotID, err := uuid.Parse(msg.LotID)
		if err != nil {
			return
		}
		s.mu.Lock()
		if _, joined := s.rooms[lotID]; !joined {
			sub := s.handler.hub.Subscribe(lotID)
			s.rooms[lotID] = sub
			go s.forward(sub)
		}
		s.mu.Unlock()
	case "leave-lot":
		lotID, err := uuid.Parse(msg.LotID)
		if err != nil {
			return
		}
		s.mu.Lock()
		if sub, joined := s.rooms[lotID]; joined {
			delete(s.rooms, lotID)
			s.handler.hub.Unsubscribe(sub)
		}
		s.mu.Unlock()
	case "join-global":
		s.mu.Lock()
		if s.global == nil {
			s.global = s.handler.hub.SubscribeGlobal()
			go s.forward(s.global)
		}
		s.mu.Unlock()
	}
}

// forward pumps one subscription into the shared outbound channel. It
// exits when the subscription closes (Unsubscribe) or the session ends.
func (s *wsSession) forward(sub *Subscription) {
	for event := range sub.Events() {
		select {
		case s.outbound <- event:
		case <-s.done:
			return
		}
	}
}

func (s *wsSession) writeLoop() {
	for {
		select {
		case event := <-s.outbound:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(event); err != nil {
				_ = s.conn.Close()
				return
			}
		case <-s.done:
			_ = s.conn.Close()
			return
		}
	}
}

func (s *wsSession) close() {
	s.mu.Lock()
	for lotID, sub := range s.rooms {
		delete(s.rooms, lotID)
		s.handler.hub.Unsubscribe(sub)
	}
	if s.global != nil {
		s.handler.hub.Unsubscribe(s.global)
		s.global = nil
	}
	s.mu.Unlock()
	close(s.done)
}
