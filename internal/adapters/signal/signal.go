package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ShonaLabs/ShonClub/internal/config"
	"github.com/ShonaLabs/ShonClub/internal/core"
	"github.com/ShonaLabs/ShonClub/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// SignalWSController dispatches every inbound signaling event: it validates
// the per-connection session state, authorizes against room state, mutates
// the registry and fans results out through the hub.
type SignalWSController struct {
	Hub      *Hub
	Registry core.RoomRegistry
	Media    core.MediaTransport
	Cfg      *config.Config
}

func NewSignalWSController(hub *Hub, reg core.RoomRegistry, media core.MediaTransport, cfg *config.Config) *SignalWSController {
	return &SignalWSController{
		Hub:      hub,
		Registry: reg,
		Media:    media,
		Cfg:      cfg,
	}
}

// Client is one live connection plus its session state machine:
// unauthenticated -> authenticated (fid set) -> bound (roomID set).
type Client struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
	fid    domain.Fid
	roomID domain.RoomID
}

var _ core.SignalConnection = (*Client)(nil)

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan core.Frame, 32),
	}
}

func (c *Client) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
}

func (c *Client) Fid() domain.Fid {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fid
}

func (c *Client) setFid(fid domain.Fid) {
	c.mu.Lock()
	c.fid = fid
	c.mu.Unlock()
}

func (c *Client) Room() domain.RoomID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

func (c *Client) bind(id domain.RoomID) {
	c.mu.Lock()
	c.roomID = id
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the connection's pumps. The
// dispatcher owns the client for its whole lifetime; disconnect cleanup runs
// exactly once from the read pump.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := c.GetString("client_token")
	log.Info().Str("module", "signal").Str("sid", sid).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	if ctl.Cfg != nil && ctl.Cfg.ReadLimit > 0 {
		ws.SetReadLimit(ctl.Cfg.ReadLimit)
	}

	client := newClient(ws)
	ctl.Hub.Register(client)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, client)
	go func() {
		defer cancel()
		ctl.readPump(ctx, sid, client)
	}()
}
