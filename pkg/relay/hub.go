// Package relay lets a browser act as the capture device. Phones and laptops
// open /ws/camera, and the Hub drives their getUserMedia stream over the
// socket: it sends start/stop and receives JPEG frames or camera errors.
package relay

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-fishid/internal/log"
	"github.com/teslashibe/go-fishid/pkg/media"
	"github.com/teslashibe/go-fishid/pkg/protocol"
)

// CameraConnection represents a connected browser camera
type CameraConnection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time
	UserAgent string
	Mobile    bool

	// gone is closed when the socket disconnects.
	gone chan struct{}

	mu      sync.Mutex // guards writes and the fields above
	current *stream
}

// Send sends a message to the camera
func (c *CameraConnection) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

func (c *CameraConnection) attach(s *stream) *stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.current
	c.current = s
	return prev
}

func (c *CameraConnection) detach(s *stream) {
	c.mu.Lock()
	if c.current == s {
		c.current = nil
	}
	c.mu.Unlock()
}

func (c *CameraConnection) active() *stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// Hub manages camera connections and implements media.Device over them.
type Hub struct {
	mu      sync.RWMutex
	cameras map[string]*CameraConnection
	// joined is closed and replaced whenever a camera connects.
	joined chan struct{}
	logger *slog.Logger

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
}

// NewHub creates a new camera hub
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		cameras: make(map[string]*CameraConnection),
		joined:  make(chan struct{}),
		logger:  log.Component("relay"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the camera WebSocket endpoint on a Fiber router
func (h *Hub) RegisterRoutes(r fiber.Router) {
	r.Use("/ws/camera", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	r.Get("/ws/camera", websocket.New(h.handleCamera))
	r.Get("/ws/camera/:id", websocket.New(h.handleCamera))
}

// handleCamera handles a camera WebSocket connection
func (h *Hub) handleCamera(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}

	cam := &CameraConnection{
		ID:        id,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
		gone:      make(chan struct{}),
	}

	h.mu.Lock()
	if old, ok := h.cameras[id]; ok {
		// same id reconnected; the old socket is dead or about to be
		old.Conn.Close()
	}
	h.cameras[id] = cam
	count := len(h.cameras)
	close(h.joined)
	h.joined = make(chan struct{})
	h.mu.Unlock()

	h.logger.Info("camera connected", "camera", id, "total", count)

	defer func() {
		close(cam.gone)
		h.mu.Lock()
		if h.cameras[id] == cam {
			delete(h.cameras, id)
		}
		count := len(h.cameras)
		h.mu.Unlock()

		h.logger.Info("camera disconnected", "camera", id, "total", count)
	}()

	// Read loop
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			h.logger.Debug("camera read error", "camera", id, "error", err)
			return
		}

		cam.mu.Lock()
		cam.LastSeen = time.Now()
		cam.mu.Unlock()

		h.messagesReceived.Add(1)
		h.handleMessage(cam, data)
	}
}

// handleMessage processes an incoming message from a camera
func (h *Hub) handleMessage(cam *CameraConnection, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.logger.Debug("parse error", "camera", cam.ID, "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeHello:
		hello, err := msg.GetHelloData()
		if err == nil {
			cam.mu.Lock()
			cam.UserAgent = hello.UserAgent
			cam.Mobile = hello.Mobile
			cam.mu.Unlock()
		}

	case protocol.TypeFrame:
		h.framesReceived.Add(1)
		frame, err := msg.GetFrameData()
		if err != nil {
			return
		}
		if s := cam.active(); s != nil {
			s.push(frame)
		}

	case protocol.TypeError:
		e, err := msg.GetErrorData()
		if err != nil {
			return
		}
		h.logger.Warn("camera reported error", "camera", cam.ID, "name", e.Name, "message", e.Message)
		if s := cam.active(); s != nil {
			s.fail(e)
		}

	case protocol.TypePing:
		h.SendPong(cam.ID, msg.Timestamp)
	}
}

// Open implements media.Device. It starts the most recently connected
// camera, waiting for one to connect if none is, and returns once the
// first frame arrives.
func (h *Hub) Open(ctx context.Context, c media.Constraints) (media.Stream, error) {
	cam, err := h.waitForCamera(ctx)
	if err != nil {
		return nil, err
	}

	s := newStream(h, cam)
	if prev := cam.attach(s); prev != nil {
		prev.closeLocal()
	}

	msg, err := protocol.NewStartMessage(string(c.Facing), c.Width, c.Height)
	if err != nil {
		cam.detach(s)
		return nil, err
	}
	if err := h.send(cam, msg); err != nil {
		cam.detach(s)
		return nil, media.NewAccessError(media.AccessOther, err)
	}

	select {
	case <-s.ready:
		h.logger.Info("camera started", "camera", cam.ID, "facing", c.Facing)
		return s, nil
	case e := <-s.failed:
		s.stop()
		return nil, media.NewAccessError(AccessKindFor(e.Name), &BrowserError{Name: e.Name, Message: e.Message})
	case <-cam.gone:
		s.stop()
		return nil, media.NewAccessError(media.AccessNotFound, ErrCameraGone)
	case <-ctx.Done():
		s.stop()
		return nil, media.NewAccessError(media.AccessOther, ctx.Err())
	}
}

func (h *Hub) waitForCamera(ctx context.Context) (*CameraConnection, error) {
	for {
		h.mu.RLock()
		cam := h.newestLocked()
		joined := h.joined
		h.mu.RUnlock()

		if cam != nil {
			return cam, nil
		}

		select {
		case <-joined:
		case <-ctx.Done():
			return nil, media.NewAccessError(media.AccessNotFound, ErrNoCamera)
		}
	}
}

func (h *Hub) newestLocked() *CameraConnection {
	var newest *CameraConnection
	for _, c := range h.cameras {
		if newest == nil || c.Connected.After(newest.Connected) {
			newest = c
		}
	}
	return newest
}

// SendPong sends a pong response to a camera
func (h *Hub) SendPong(cameraID string, pingTS int64) error {
	msg, err := protocol.NewPongMessage("", pingTS, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	return h.sendToCamera(cameraID, msg)
}

// sendToCamera sends a message to a specific camera
func (h *Hub) sendToCamera(cameraID string, msg *protocol.Message) error {
	h.mu.RLock()
	cam, ok := h.cameras[cameraID]
	h.mu.RUnlock()

	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "camera not connected")
	}
	return h.send(cam, msg)
}

func (h *Hub) send(cam *CameraConnection, msg *protocol.Message) error {
	h.messagesSent.Add(1)
	return cam.Send(msg)
}

// GetCamera returns a camera connection by ID
func (h *Hub) GetCamera(cameraID string) *CameraConnection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cameras[cameraID]
}

// CameraCount returns the number of connected cameras
func (h *Hub) CameraCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.cameras)
}

// Stats contains hub statistics
type Stats struct {
	CameraCount      int    `json:"camera_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		CameraCount:      h.CameraCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		FramesReceived:   h.framesReceived.Load(),
	}
}

// CameraInfo contains info about a connected camera
type CameraInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
	UserAgent string    `json:"user_agent,omitempty"`
	Mobile    bool      `json:"mobile"`
	Streaming bool      `json:"streaming"`
}

// GetCameraInfos returns info about all connected cameras
func (h *Hub) GetCameraInfos() []CameraInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]CameraInfo, 0, len(h.cameras))
	for _, c := range h.cameras {
		c.mu.Lock()
		infos = append(infos, CameraInfo{
			ID:        c.ID,
			Connected: c.Connected,
			LastSeen:  c.LastSeen,
			UserAgent: c.UserAgent,
			Mobile:    c.Mobile,
			Streaming: c.current != nil,
		})
		c.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers API routes for camera inspection
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	cameras := api.Group("/cameras")

	// List connected cameras
	cameras.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"cameras": h.GetCameraInfos(),
			"count":   h.CameraCount(),
		})
	})

	// Get hub stats
	cameras.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}

// Verify Hub implements media.Device at compile time.
var _ media.Device = (*Hub)(nil)
