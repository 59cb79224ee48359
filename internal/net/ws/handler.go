package ws

import (
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	server "vigor/server"
	"vigor/server/internal/net/proto"
	"vigor/server/internal/telemetry"
)

type subscription interface {
	WriteMessage(messageType int, data []byte) error
	LastCommandSeq() uint64
	StoreLastCommandSeq(seq uint64)
}

type HandlerConfig struct {
	Logger telemetry.Logger
}

// Handler upgrades observer connections and feeds their commands to the hub.
type Handler struct {
	hub      *server.Hub
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *server.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Discard
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      hub,
		logger:   logger,
		upgrader: upgrader,
	}
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	actorID := r.URL.Query().Get("id")
	if actorID == "" {
		nethttp.Error(w, "missing id", nethttp.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", actorID, err)
		return
	}

	sub, initial, ok := h.hub.Subscribe(actorID, conn)
	if !ok {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown actor")
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}

	s := &session{
		actorID: actorID,
		hub:     h.hub,
		logger:  h.logger,
		sub:     sub,
		owner:   sub,
	}

	data, err := proto.EncodeStaminaState(proto.StaminaState{
		Tick:       h.hub.Tick(),
		ServerTime: time.Now().UnixMilli(),
		Full:       true,
		Snapshots:  initial.Snapshots,
	})
	if err != nil {
		h.logger.Printf("failed to marshal initial state for %s: %v", actorID, err)
		s.release()
		return
	}
	if !s.write(data) {
		return
	}
	for _, badge := range initial.Alerts {
		data, err := proto.EncodeAlert(badge)
		if err != nil {
			h.logger.Printf("failed to marshal initial alert for %s: %v", actorID, err)
			continue
		}
		if !s.write(data) {
			return
		}
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			s.release()
			return
		}

		msg, err := proto.DecodeClientMessage(payload)
		if err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", actorID, err)
			continue
		}

		if msg.Type == proto.TypeHeartbeat {
			if !s.heartbeat(msg) {
				return
			}
			continue
		}
		if !s.command(msg) {
			return
		}
	}
}

// session carries the per-connection state of one read loop.
type session struct {
	actorID string
	hub     *server.Hub
	logger  telemetry.Logger
	sub     subscription
	owner   *server.Subscriber
}

// release removes the actor unless a newer connection has taken it over.
func (s *session) release() {
	s.hub.Release(s.actorID, s.owner)
}

// write sends data and releases the actor when the connection is gone.
func (s *session) write(data []byte) bool {
	if err := s.sub.WriteMessage(websocket.TextMessage, data); err != nil {
		s.release()
		return false
	}
	return true
}

func (s *session) heartbeat(msg proto.ClientMessage) bool {
	now := time.Now()
	rtt, ok := s.hub.UpdateHeartbeat(s.actorID, now, msg.SentAt)
	if !ok {
		return true
	}
	data, err := proto.EncodeHeartbeat(proto.Heartbeat{
		ServerTime: now.UnixMilli(),
		ClientTime: msg.SentAt,
		RTTMillis:  rtt.Milliseconds(),
	})
	if err != nil {
		s.logger.Printf("failed to marshal heartbeat ack for %s: %v", s.actorID, err)
		return true
	}
	return s.write(data)
}

// command stages a sequenced command. Sequences at or below the last
// acknowledged one are re-acked without being staged again.
func (s *session) command(msg proto.ClientMessage) bool {
	var seq uint64
	if msg.CommandSeq != nil {
		seq = *msg.CommandSeq
	}
	if seq > 0 {
		if last := s.sub.LastCommandSeq(); last > 0 && seq <= last {
			return s.ack(proto.CommandAck{Seq: seq})
		}
	}

	cmd, ok, reason := s.hub.StageClientMessage(s.actorID, msg)
	if !ok {
		switch reason {
		case server.CommandRejectInvalidAction:
			s.logger.Printf("unknown message %q from %s", msg.Type, s.actorID)
		case server.CommandRejectUnknownActor:
			s.logger.Printf("%s ignored for unknown actor %s", msg.Type, s.actorID)
		}
		if seq == 0 {
			return true
		}
		return s.reject(proto.CommandReject{
			Seq:    seq,
			Reason: reason,
			Retry:  reason == server.CommandRejectQueueLimit,
		})
	}
	if seq == 0 {
		return true
	}
	if !s.ack(proto.CommandAck{Seq: seq, Tick: cmd.OriginTick}) {
		return false
	}
	s.sub.StoreLastCommandSeq(seq)
	return true
}

func (s *session) ack(msg proto.CommandAck) bool {
	data, err := proto.EncodeCommandAck(msg)
	if err != nil {
		s.logger.Printf("failed to marshal ack for %s: %v", s.actorID, err)
		return true
	}
	return s.write(data)
}

func (s *session) reject(msg proto.CommandReject) bool {
	data, err := proto.EncodeCommandReject(msg)
	if err != nil {
		s.logger.Printf("failed to marshal rejection for %s: %v", s.actorID, err)
		return true
	}
	return s.write(data)
}
