package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"stagecast/internal/core/domain"
	"stagecast/internal/core/ports"
	"stagecast/internal/core/services"
	"stagecast/internal/infrastructure/monitoring"
	"stagecast/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Server is the room gateway: one websocket per client, events scoped to
// (connection, room). Handler failures follow the absorb-and-log policy:
// nothing is surfaced over the socket, everything lands in the log and the
// swallowed-error counter.
type Server struct {
	sessions      ports.SessionService
	peekins       ports.PeekInService
	presence      ports.PresenceDirectory
	performers    ports.PerformerProvider
	ranks         ports.RankProvider
	stats         ports.StatsCollector
	conversations ports.ConversationBridge

	auth    services.AuthService
	billing *services.BillingMeter
	hub     *Hub
	metrics *monitoring.PrometheusCollector

	pingInterval time.Duration
	pongTimeout  time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	logger *zap.SugaredLogger
}

func NewServer(
	sessions ports.SessionService,
	peekins ports.PeekInService,
	presence ports.PresenceDirectory,
	performers ports.PerformerProvider,
	ranks ports.RankProvider,
	stats ports.StatsCollector,
	conversations ports.ConversationBridge,
	auth services.AuthService,
	billing *services.BillingMeter,
	hub *Hub,
	metrics *monitoring.PrometheusCollector,
	logger *zap.SugaredLogger,
) *Server {
	s := &Server{
		sessions:      sessions,
		peekins:       peekins,
		presence:      presence,
		performers:    performers,
		ranks:         ranks,
		stats:         stats,
		conversations: conversations,
		auth:          auth,
		billing:       billing,
		hub:           hub,
		metrics:       metrics,
		pingInterval:  30 * time.Second,
		pongTimeout:   60 * time.Second,
		readTimeout:   60 * time.Second,
		writeTimeout:  10 * time.Second,
		logger:        logger,
	}

	if billing != nil {
		billing.OnInsufficient(s.evict)
		billing.OnCharge(metrics.RecordBillingCharge)
	}
	return s
}

// SetPingInterval sets ping interval for gateway connections
func (s *Server) SetPingInterval(interval time.Duration) {
	s.pingInterval = interval
}

// SetPongTimeout sets pong timeout for gateway connections
func (s *Server) SetPongTimeout(timeout time.Duration) {
	s.pongTimeout = timeout
	s.readTimeout = timeout
}

// HandleWebSocket upgrades and serves one gateway connection until it drops.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, err := s.authenticate(r)
	if err != nil {
		s.logger.Warnw("gateway auth failed", "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := newClient(utils.GenerateConnectionID(), claims.UserID, claims.Username, conn)
	openedAt := time.Now()
	s.metrics.RecordConnectionOpened()

	s.logger.Infow("gateway connection opened",
		"conn_id", c.id, "user_id", c.user, "username", c.username)

	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan Envelope, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var msg Envelope
			if err := conn.ReadJSON(&msg); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.readTimeout))
			messageChan <- msg
		}
	}()

	for {
		select {
		case msg := <-messageChan:
			s.dispatch(context.Background(), c, msg)

		case <-pingTicker.C:
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				s.logger.Infow("error sending ping", "conn_id", c.id, "error", err)
				goto cleanup
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Infow("error reading message", "conn_id", c.id, "error", err)
			}
			goto cleanup
		}
	}

cleanup:
	s.disconnect(context.Background(), c)
	s.metrics.RecordConnectionClosed(time.Since(openedAt))
	s.logger.Infow("gateway connection closed", "conn_id", c.id, "user_id", c.user)
}

// dispatch routes one protocol event. Errors stop here: logged, counted,
// never written back to the socket.
func (s *Server) dispatch(ctx context.Context, c *client, msg Envelope) {
	if msg.Event == "" {
		return
	}
	s.metrics.RecordEvent(msg.Event)

	var err error
	switch msg.Event {
	case EventJoinRoom:
		err = s.withRoomPayload(msg, func(conversationID domain.ConversationID) error {
			return s.handleJoin(ctx, c, conversationID, false)
		})
	case EventRejoin:
		err = s.withRoomPayload(msg, func(conversationID domain.ConversationID) error {
			return s.handleJoin(ctx, c, conversationID, true)
		})
	case EventLeaveRoom:
		err = s.withRoomPayload(msg, func(conversationID domain.ConversationID) error {
			return s.handleLeave(ctx, c, conversationID)
		})
	case EventPeekIn:
		err = s.handlePeekIn(ctx, c, msg)
	case EventPublicJoin:
		err = s.withRoomPayload(msg, func(conversationID domain.ConversationID) error {
			return s.handlePublicJoin(ctx, c, conversationID, false)
		})
	case EventPublicRejoin:
		err = s.withRoomPayload(msg, func(conversationID domain.ConversationID) error {
			return s.handlePublicJoin(ctx, c, conversationID, true)
		})
	case EventPublicLeave:
		err = s.withRoomPayload(msg, func(conversationID domain.ConversationID) error {
			return s.handlePublicLeave(ctx, c, conversationID)
		})
	case EventPublicLive:
		err = s.withRoomPayload(msg, func(conversationID domain.ConversationID) error {
			return s.handlePublicLive(ctx, c, conversationID)
		})
	default:
		err = fmt.Errorf("unknown event type: %s", msg.Event)
	}

	if err != nil {
		s.metrics.RecordSwallowedError(msg.Event)
		s.logger.Warnw("gateway event failed",
			"event", msg.Event, "conn_id", c.id, "user_id", c.user, "error", err)
	}
}

func (s *Server) withRoomPayload(msg Envelope, fn func(domain.ConversationID) error) error {
	var payload RoomPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("invalid room payload: %w", err)
	}
	if payload.ConversationID == "" {
		return fmt.Errorf("conversationId is required")
	}
	return fn(payload.ConversationID)
}

// disconnect is the connection-close hook: a dropped socket must produce the
// same cleanup the room's explicit leave event would. Public rooms go through
// the public path so view-time handoff and the roster broadcast still happen.
func (s *Server) disconnect(ctx context.Context, c *client) {
	for _, room := range c.trackedRooms() {
		conversationID := domain.ConversationID(room)

		leave, event := s.handleLeave, EventLeaveRoom
		if _, stream, err := s.sessions.ResolveRoom(ctx, conversationID); err == nil && stream.Type == domain.StreamTypePublic {
			leave, event = s.handlePublicLeave, EventPublicLeave
		}

		if err := leave(ctx, c, conversationID); err != nil {
			s.metrics.RecordSwallowedError(event)
			s.logger.Warnw("leave on disconnect failed",
				"conn_id", c.id, "room", room, "error", err)
		}
	}
}

// evict force-removes a payer whose balance ran dry mid-session.
func (s *Server) evict(room domain.RoomID, payer domain.UserID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.metrics.RecordBillingEviction()
	s.logger.Infow("evicting payer", "room", room, "payer", payer)

	conns := s.hub.ConnsFor(room, payer)
	for _, c := range conns {
		if err := s.handleLeave(ctx, c, domain.ConversationID(room)); err != nil {
			s.logger.Warnw("eviction leave failed", "room", room, "payer", payer, "error", err)
		}
		c.sock.Close()
	}

	// The payer may sit on another node; presence cleanup still applies here.
	if len(conns) == 0 {
		if _, err := s.presence.Leave(ctx, room, payer); err != nil {
			s.logger.Warnw("eviction presence cleanup failed", "room", room, "payer", payer, "error", err)
		}
	}
}

func (s *Server) authenticate(r *http.Request) (*services.Claims, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return nil, fmt.Errorf("missing bearer token")
		}
		token = strings.TrimPrefix(header, "Bearer ")
	}
	return s.auth.ValidateToken(token)
}

// HealthCheck reports gateway liveness and local room load.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
