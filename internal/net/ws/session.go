package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	nethttp "net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"vigor/server/internal/actor"
	"vigor/server/internal/net/proto"
	"vigor/server/internal/replication"
	"vigor/server/internal/telemetry"
)

// ErrSlideGated is returned when the local mirror does not allow a slide.
var ErrSlideGated = errors.New("slide not available")

type ClientConfig struct {
	Logger         telemetry.Logger
	Dialer         *websocket.Dialer
	MirrorInterval float64
	// OnMessage sees every decoded frame after the mirror has applied it.
	OnMessage func(proto.ServerMessage)
}

// Client is an observer session: it mirrors the stamina state the authority
// replicates and sends the local actor's commands.
type Client struct {
	actorID actor.ID
	conn    *websocket.Conn
	mirror  *replication.Mirror
	logger  telemetry.Logger
	notify  func(proto.ServerMessage)

	writeMu   sync.Mutex
	seq       atomic.Uint64
	closeOnce sync.Once
}

// Join asks the authority at baseURL to spawn an actor.
func Join(ctx context.Context, httpClient *nethttp.Client, baseURL string) (proto.JoinResponseV1, error) {
	if httpClient == nil {
		httpClient = nethttp.DefaultClient
	}
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPost, strings.TrimRight(baseURL, "/")+"/join", nil)
	if err != nil {
		return proto.JoinResponseV1{}, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return proto.JoinResponseV1{}, fmt.Errorf("join: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != nethttp.StatusOK {
		return proto.JoinResponseV1{}, fmt.Errorf("join: unexpected status %s", resp.Status)
	}
	var join proto.JoinResponseV1
	if err := json.NewDecoder(resp.Body).Decode(&join); err != nil {
		return proto.JoinResponseV1{}, fmt.Errorf("join: decode response: %w", err)
	}
	if join.Ver != proto.Version {
		return proto.JoinResponseV1{}, fmt.Errorf("join: unsupported protocol version %d", join.Ver)
	}
	return join, nil
}

// Dial opens the websocket at wsURL for actorID.
func Dial(ctx context.Context, wsURL string, actorID actor.ID, cfg ClientConfig) (*Client, error) {
	parsed, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse websocket url: %w", err)
	}
	query := parsed.Query()
	query.Set("id", string(actorID))
	parsed.RawQuery = query.Encode()

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, parsed.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", parsed.Redacted(), err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Discard
	}
	return &Client{
		actorID: actorID,
		conn:    conn,
		mirror:  replication.NewMirror(cfg.MirrorInterval),
		logger:  logger,
		notify:  cfg.OnMessage,
	}, nil
}

func (c *Client) ActorID() actor.ID {
	return c.actorID
}

// Mirror exposes the replicated state for rendering.
func (c *Client) Mirror() *replication.Mirror {
	return c.mirror
}

// Run reads frames into the mirror until the connection closes or ctx is
// cancelled. A cancelled ctx is not reported as an error.
func (c *Client) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		msg, err := proto.DecodeServerMessage(payload)
		if err != nil {
			c.logger.Printf("discarding frame: %v", err)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg proto.ServerMessage) {
	switch msg.Type {
	case proto.TypeStaminaState:
		for _, snapshot := range msg.Snapshots {
			c.mirror.Apply(snapshot)
		}
	case proto.TypeSlideStarted:
		c.mirror.SlideStarted(msg.ActorID, actor.Vec2{X: msg.X, Y: msg.Y}, msg.SlideTime)
	case proto.TypeActorLeft:
		c.mirror.Forget(msg.ActorID)
	}
	if c.notify != nil {
		c.notify(msg)
	}
}

// SendInput sends a movement intent and returns its sequence number.
func (c *Client) SendInput(dx, dy float64, sprint bool) (uint64, error) {
	return c.sendCommand(proto.ClientMessage{Type: proto.TypeInput, DX: dx, DY: dy, Sprint: sprint})
}

// RequestSlide sends a slide request when the mirror allows one. The
// authority has the final word; a refusal arrives as a commandReject.
func (c *Client) RequestSlide(target actor.Vec2) (uint64, error) {
	request, ok := c.mirror.RequestSlide(c.actorID, target)
	if !ok {
		return 0, ErrSlideGated
	}
	return c.sendCommand(proto.ClientMessage{Type: proto.TypeSlideRequest, X: request.Target.X, Y: request.Target.Y})
}

// Heartbeat pings the authority with the local send time.
func (c *Client) Heartbeat(now time.Time) error {
	return c.send(proto.ClientMessage{Type: proto.TypeHeartbeat, SentAt: now.UnixMilli()})
}

func (c *Client) sendCommand(msg proto.ClientMessage) (uint64, error) {
	seq := c.seq.Add(1)
	msg.CommandSeq = &seq
	return seq, c.send(msg)
}

func (c *Client) send(msg proto.ClientMessage) error {
	data, err := proto.EncodeClientMessage(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and tears down the connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
