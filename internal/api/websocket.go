package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-compat/internal/auth"
	"github.com/nerrad567/gray-logic-compat/internal/engine"
	"github.com/nerrad567/gray-logic-compat/internal/export"
	"github.com/nerrad567/gray-logic-compat/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-compat/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeRequest     = "request"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256

	// wsRequestTimeout bounds how long a request message waits for the worker.
	wsRequestTimeout = 2 * time.Minute
)

// Request operations accepted in "request" messages.
const (
	WSOpLoad         = "load"
	WSOpQuery        = "query"
	WSOpDistinct     = "distinct"
	WSOpExport       = "export"
	WSOpStats        = "stats"
	WSOpColumns      = "columns"
	WSOpSearchFields = "search_fields"
)

// ChannelCatalogLoaded carries a LoadedPayload after every load attempt.
const ChannelCatalogLoaded = "catalog.loaded"

// wsOpPermissions is the permission each request operation needs when
// authentication is required.
var wsOpPermissions = map[string]auth.Permission{
	WSOpLoad:         auth.PermCatalogLoad,
	WSOpQuery:        auth.PermCatalogRead,
	WSOpDistinct:     auth.PermCatalogRead,
	WSOpExport:       auth.PermCatalogExport,
	WSOpStats:        auth.PermCatalogRead,
	WSOpColumns:      auth.PermCatalogRead,
	WSOpSearchFields: auth.PermCatalogConfigure,
}

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Op        string `json:"op,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// WSErrorPayload is the payload of an error message.
type WSErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExportPayload is the response to an export request. Data is
// base64-encoded in JSON.
type ExportPayload struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

// LoadedPayload is broadcast on ChannelCatalogLoaded.
type LoadedPayload struct {
	RequestID  string `json:"requestId"`
	Source     string `json:"source"`
	OK         bool   `json:"ok"`
	Count      int    `json:"count"`
	Devices    int    `json:"devices"`
	UpdateTime int64  `json:"updateTime"`
	DurationMS int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

// Hub manages WebSocket connections and broadcasts events.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	hub           *Hub
	srv           *Server
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	mu            sync.RWMutex

	// role is set when the connection authenticated with a token.
	role auth.Role
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// Unregister removes a client from the hub.
// Only the goroutine that removes the client from the map closes its send
// channel.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// Broadcast sends an event to all clients subscribed to channel.
// The client list is snapshotted under the hub lock, which is released
// before any client lock is taken.
func (h *Hub) Broadcast(channel string, payload any) {
	msg := WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sentCount := 0
	for _, client := range clients {
		if client.isSubscribed(channel) {
			client.trySend(data)
			sentCount++
		}
	}
	if sentCount > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "recipients", sentCount)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// handleWebSocket upgrades the connection. When authentication is required
// the token comes from the Authorization header or the token query
// parameter and is checked before the upgrade.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var role auth.Role
	if s.secCfg.RequireAuth {
		claims, err := s.authenticate(r)
		if err != nil {
			writeUnauthorized(w, "valid token required")
			return
		}
		role = claims.Role
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:           s.hub,
		srv:           s,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
		role:          role,
	}

	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline.
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "", ErrCodeBadRequest, "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.handleSubscribe(msg)
	case WSTypeUnsubscribe:
		c.handleUnsubscribe(msg)
	case WSTypePing:
		c.sendResponse(msg.ID, "", WSTypePong, nil)
	case WSTypeRequest:
		// Requests may take a while (exports, loads); keep reading meanwhile.
		go c.handleRequest(msg)
	default:
		c.sendError(msg.ID, "", ErrCodeBadRequest, "unknown message type: "+msg.Type)
	}
}

func (c *WSClient) handleSubscribe(msg WSMessage) {
	var sub WSSubscribePayload
	if err := decodePayload(msg.Payload, &sub); err != nil {
		c.sendError(msg.ID, "", ErrCodeBadRequest, "invalid subscribe payload")
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		c.subscriptions[ch] = struct{}{}
	}
	c.mu.Unlock()

	c.hub.logger.Debug("websocket client subscribed", "channels", sub.Channels)

	c.sendResponse(msg.ID, "", WSTypeResponse, map[string]any{
		"subscribed": sub.Channels,
	})
}

func (c *WSClient) handleUnsubscribe(msg WSMessage) {
	var sub WSSubscribePayload
	if err := decodePayload(msg.Payload, &sub); err != nil {
		c.sendError(msg.ID, "", ErrCodeBadRequest, "invalid unsubscribe payload")
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		delete(c.subscriptions, ch)
	}
	c.mu.Unlock()

	c.sendResponse(msg.ID, "", WSTypeResponse, map[string]any{
		"unsubscribed": sub.Channels,
	})
}

// handleRequest runs one catalogue operation and replies with a response
// or error message carrying the same ID and op.
func (c *WSClient) handleRequest(msg WSMessage) {
	if c.srv == nil {
		c.sendError(msg.ID, msg.Op, ErrCodeInternal, "requests are not served on this connection")
		return
	}

	perm, ok := wsOpPermissions[msg.Op]
	if !ok {
		c.sendError(msg.ID, msg.Op, ErrCodeBadRequest, "unknown op: "+msg.Op)
		return
	}
	if c.srv.secCfg.RequireAuth && !auth.HasPermission(c.role, perm) {
		c.sendError(msg.ID, msg.Op, ErrCodeForbidden, "role "+string(c.role)+" lacks "+string(perm))
		return
	}

	ctx, cancel := context.WithTimeout(c.srv.baseCtx, wsRequestTimeout)
	defer cancel()

	result, err := c.srv.dispatch(ctx, msg.Op, msg.Payload)
	if err != nil {
		status, code := classifyError(err)
		message := err.Error()
		if status == http.StatusInternalServerError {
			c.hub.logger.Error("websocket request failed", "op", msg.Op, "error", err)
			message = "internal server error"
		}
		c.sendError(msg.ID, msg.Op, code, message)
		return
	}
	c.sendResponse(msg.ID, msg.Op, WSTypeResponse, result)
}

// badPayloadError marks a request payload that could not be decoded.
type badPayloadError struct{ err error }

func (e badPayloadError) Error() string { return "invalid payload: " + e.err.Error() }

// dispatch executes op with the decoded payload through the worker.
func (s *Server) dispatch(ctx context.Context, op string, payload any) (any, error) {
	switch op {
	case WSOpStats:
		return s.catalog.Stats(), nil

	case WSOpColumns:
		return describeColumns(), nil

	case WSOpLoad:
		var req LoadRequest
		if err := decodePayload(payload, &req); err != nil {
			return nil, badPayloadError{err}
		}
		start := time.Now()
		res, err := s.catalog.Load(ctx, req.Source, req.SearchFields)
		if err != nil {
			return nil, err
		}
		return LoadResponse{LoadResult: res, DurationMS: time.Since(start).Milliseconds()}, nil

	case WSOpQuery:
		var in engine.QueryInput
		if err := decodePayload(payload, &in); err != nil {
			return nil, badPayloadError{err}
		}
		return s.catalog.Query(ctx, in)

	case WSOpDistinct:
		var in engine.DistinctInput
		if err := decodePayload(payload, &in); err != nil {
			return nil, badPayloadError{err}
		}
		if in.Limit == 0 {
			in.Limit = s.catCfg.FacetLimit
		}
		return s.catalog.Distinct(ctx, in)

	case WSOpExport:
		var spec export.Spec
		if err := decodePayload(payload, &spec); err != nil {
			return nil, badPayloadError{err}
		}
		data, err := s.catalog.BuildExport(ctx, spec)
		if err != nil {
			return nil, err
		}
		return ExportPayload{
			Filename:    exportFilename(time.Now()),
			ContentType: export.ContentType,
			Data:        data,
		}, nil

	case WSOpSearchFields:
		var req SearchFieldsRequest
		if err := decodePayload(payload, &req); err != nil {
			return nil, badPayloadError{err}
		}
		if len(req.Fields) == 0 {
			return nil, badPayloadError{errors.New("fields is required")}
		}
		if err := s.catalog.SetSearchFields(ctx, req.Fields); err != nil {
			return nil, err
		}
		return map[string]any{"searchFields": s.catalog.Stats().SearchFields}, nil
	}
	return nil, badPayloadError{errors.New("unknown op " + op)}
}

// decodePayload converts a generically decoded payload into v.
// A nil payload leaves v at its zero value.
func decodePayload(payload any, v any) error {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// trySend attempts to send data to the client's send channel.
// It absorbs sends on a closed channel (client disconnected during a
// broadcast) and drops the message when the buffer is full.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

func (c *WSClient) sendResponse(id, op, msgType string, payload any) {
	msg := WSMessage{
		Type:      msgType,
		ID:        id,
		Op:        op,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, op, code, message string) {
	c.sendResponse(id, op, WSTypeError, WSErrorPayload{Code: code, Message: message})
}
