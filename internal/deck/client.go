// Package deck talks to the deck host application over its plugin websocket.
// The host delivers button lifecycle and input events; the plugin answers
// with rendering commands and settings updates.
package deck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"statusdeck/internal/display"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("not connected")

// Host defines the interface for the deck host connection
type Host interface {
	Connect() error
	Disconnect() error
	IsConnected() bool
	// SubscribeAction registers handler for events of one action UUID.
	// Handlers run on the receive goroutine and must not block on host requests.
	SubscribeAction(action string, handler EventHandler) (Subscription, error)
	// OnReconnect registers handler to run after the connection has been
	// re-established. Handlers may make host requests.
	OnReconnect(handler func())
	SetBackgroundColor(context string, color display.RGBA) error
	SetTitle(context, title string, color display.RGBA, fontSize int) error
	SetImage(context, path string) error
	SetSettings(context string, settings map[string]any) error
	GetSettings(context string) (map[string]any, error)
}

// subscriberEntry holds a handler with its unique subscription ID
type subscriberEntry struct {
	subID   int
	handler EventHandler
}

// Client implements Host over a websocket connection
type Client struct {
	url         string
	pluginUUID  string
	logger      *zap.Logger
	conn        *websocket.Conn
	connected   bool
	connMu      sync.RWMutex
	msgID       int
	msgIDMu     sync.Mutex
	pending     map[int]chan Message
	pendingMu   sync.Mutex
	subscribers map[string][]subscriberEntry
	subsMu      sync.RWMutex
	nextSubID   int
	nextSubIDMu sync.Mutex
	onReconnect []func()
	reconnectMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	reconnect   bool
	writeMu     sync.Mutex // Protects websocket writes

	requestTimeout time.Duration
	maxBackoff     time.Duration
}

// NewClient creates a new deck host client
func NewClient(url, pluginUUID string, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:            url,
		pluginUUID:     pluginUUID,
		logger:         logger.Named("deck"),
		pending:        make(map[int]chan Message),
		subscribers:    make(map[string][]subscriberEntry),
		ctx:            ctx,
		cancel:         cancel,
		reconnect:      true,
		requestTimeout: 10 * time.Second,
		maxBackoff:     30 * time.Second,
	}
}

func (c *Client) resetContextLocked() {
	if c.cancel != nil {
		c.cancel()
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
}

// Connect establishes the websocket connection and registers the plugin
func (c *Client) Connect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.connected {
		return fmt.Errorf("already connected")
	}

	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to deck host: %w", err)
	}

	if err := c.register(conn); err != nil {
		conn.Close()
		return err
	}

	c.conn = conn
	c.resetContextLocked()
	c.connected = true
	c.reconnect = true
	c.logger.Info("Connected to deck host", zap.String("url", c.url))

	go c.receiveMessages(c.ctx, conn)
	return nil
}

// register performs the registration handshake on a fresh connection
func (c *Client) register(conn *websocket.Conn) error {
	c.writeMu.Lock()
	err := conn.WriteJSON(Message{Event: EventRegisterPlugin, UUID: c.pluginUUID})
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to send registration: %w", err)
	}

	var reply Message
	if err := conn.ReadJSON(&reply); err != nil {
		return fmt.Errorf("failed to read registration reply: %w", err)
	}

	switch reply.Event {
	case EventRegistered:
		return nil
	case EventRegistrationFailed:
		return fmt.Errorf("registration failed: host rejected plugin uuid")
	}
	return fmt.Errorf("expected %s, got %s", EventRegistered, reply.Event)
}

// Disconnect closes the websocket connection and stops reconnecting
func (c *Client) Disconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.reconnect = false
	c.cancel()

	if !c.connected {
		return nil
	}
	c.connected = false

	if c.conn != nil {
		c.writeMu.Lock()
		c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		c.conn.Close()
		c.conn = nil
	}

	c.subsMu.Lock()
	c.subscribers = make(map[string][]subscriberEntry)
	c.subsMu.Unlock()

	c.logger.Info("Disconnected from deck host")
	return nil
}

// IsConnected returns true if client is connected
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// nextMsgID returns the next message ID
func (c *Client) nextMsgID() int {
	c.msgIDMu.Lock()
	defer c.msgIDMu.Unlock()
	c.msgID++
	return c.msgID
}

// send writes a message without waiting for a reply
func (c *Client) send(msg Message) error {
	c.connMu.RLock()
	conn := c.conn
	connected := c.connected
	c.connMu.RUnlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	err := conn.WriteJSON(msg)
	c.writeMu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Event, err)
	}
	return nil
}

// request sends a message with a fresh ID and waits for the reply carrying it
func (c *Client) request(msg Message) (*Message, error) {
	msg.ID = c.nextMsgID()

	respChan := make(chan Message, 1)
	c.pendingMu.Lock()
	c.pending[msg.ID] = respChan
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, msg.ID)
		c.pendingMu.Unlock()
	}()

	if err := c.send(msg); err != nil {
		return nil, err
	}

	c.connMu.RLock()
	done := c.ctx.Done()
	c.connMu.RUnlock()

	select {
	case resp := <-respChan:
		if resp.Error != nil {
			return nil, fmt.Errorf("host error: %s - %s", resp.Error.Code, resp.Error.Message)
		}
		return &resp, nil
	case <-time.After(c.requestTimeout):
		return nil, fmt.Errorf("timeout waiting for %s reply", msg.Event)
	case <-done:
		return nil, fmt.Errorf("client disconnected")
	}
}

// receiveMessages handles incoming messages in the background
func (c *Client) receiveMessages(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				c.logger.Error("Failed to read message", zap.Error(err))
				c.handleDisconnect(conn)
			}
			return
		}

		// Route replies to the waiting request
		if msg.ID > 0 {
			c.pendingMu.Lock()
			ch, ok := c.pending[msg.ID]
			c.pendingMu.Unlock()
			if ok {
				select {
				case ch <- msg:
				default:
					c.logger.Warn("Response channel full", zap.Int("msg_id", msg.ID))
				}
				continue
			}
		}

		c.handleEvent(&msg)
	}
}

// handleEvent decodes a host event and notifies the action's subscribers
func (c *Client) handleEvent(msg *Message) {
	event := Event{
		Type:    msg.Event,
		Action:  msg.Action,
		Context: msg.Context,
	}

	switch msg.Event {
	case EventWillAppear, EventDidReceiveSettings:
		var payload SettingsPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				c.logger.Error("Failed to unmarshal settings payload",
					zap.String("event", msg.Event),
					zap.String("context", msg.Context),
					zap.Error(err))
				return
			}
		}
		event.Settings = payload.Settings
	case EventWillDisappear, EventKeyDown, EventDialDown, EventTouchTap:
	default:
		c.logger.Debug("Ignoring host event", zap.String("event", msg.Event))
		return
	}

	c.subsMu.RLock()
	entries := append([]subscriberEntry(nil), c.subscribers[msg.Action]...)
	c.subsMu.RUnlock()

	for _, entry := range entries {
		entry.handler(event)
	}
}

// handleDisconnect handles connection loss
func (c *Client) handleDisconnect(conn *websocket.Conn) {
	c.connMu.Lock()
	if c.conn != conn {
		c.connMu.Unlock()
		return
	}
	c.connected = false
	c.conn = nil
	conn.Close()
	reconnect := c.reconnect
	ctx := c.ctx
	c.connMu.Unlock()

	c.logger.Warn("Connection lost")

	if !reconnect {
		return
	}

	go c.attemptReconnect(ctx)
}

// attemptReconnect tries to reconnect with exponential backoff
func (c *Client) attemptReconnect(ctx context.Context) {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		c.logger.Info("Attempting to reconnect...")

		if err := c.Connect(); err != nil {
			c.logger.Error("Reconnection failed", zap.Error(err))
			backoff *= 2
			if backoff > c.maxBackoff {
				backoff = c.maxBackoff
			}
			continue
		}

		c.logger.Info("Reconnected successfully")

		c.reconnectMu.Lock()
		handlers := append([]func(){}, c.onReconnect...)
		c.reconnectMu.Unlock()
		for _, handler := range handlers {
			handler()
		}
		return
	}
}

// SubscribeAction subscribes to events for one action UUID
func (c *Client) SubscribeAction(action string, handler EventHandler) (Subscription, error) {
	c.nextSubIDMu.Lock()
	subID := c.nextSubID
	c.nextSubID++
	c.nextSubIDMu.Unlock()

	c.subsMu.Lock()
	c.subscribers[action] = append(c.subscribers[action], subscriberEntry{
		subID:   subID,
		handler: handler,
	})
	c.subsMu.Unlock()

	return &subscription{action: action, subID: subID, host: c}, nil
}

// OnReconnect registers handler to run on the reconnect goroutine after each
// successful reconnect
func (c *Client) OnReconnect(handler func()) {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()
	c.onReconnect = append(c.onReconnect, handler)
}

// unsubscribe removes a specific subscription by action and subscription ID
func (c *Client) unsubscribe(action string, subID int) error {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	subscribers, ok := c.subscribers[action]
	if !ok {
		return nil // Already unsubscribed
	}

	for i, entry := range subscribers {
		if entry.subID == subID {
			c.subscribers[action] = append(subscribers[:i], subscribers[i+1:]...)
			if len(c.subscribers[action]) == 0 {
				delete(c.subscribers, action)
			}
			break
		}
	}

	return nil
}

// SetBackgroundColor paints a button's background
func (c *Client) SetBackgroundColor(context string, color display.RGBA) error {
	return c.sendPayload(EventSetBackgroundColor, context, BackgroundPayload{Color: color})
}

// SetTitle sets a button's center label
func (c *Client) SetTitle(context, title string, color display.RGBA, fontSize int) error {
	return c.sendPayload(EventSetTitle, context, TitlePayload{Title: title, Color: color, FontSize: fontSize})
}

// SetImage shows an image on a button; an empty path clears it
func (c *Client) SetImage(context, path string) error {
	payload := ImagePayload{}
	if path != "" {
		payload.Path = &path
	}
	return c.sendPayload(EventSetImage, context, payload)
}

// SetSettings persists a button's settings on the host
func (c *Client) SetSettings(context string, settings map[string]any) error {
	return c.sendPayload(EventSetSettings, context, SettingsPayload{Settings: settings})
}

// GetSettings fetches a button's persisted settings from the host
func (c *Client) GetSettings(context string) (map[string]any, error) {
	resp, err := c.request(Message{Event: EventGetSettings, Context: context})
	if err != nil {
		return nil, err
	}

	var payload SettingsPayload
	if len(resp.Payload) > 0 {
		if err := json.Unmarshal(resp.Payload, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}
	if payload.Settings == nil {
		payload.Settings = make(map[string]any)
	}
	return payload.Settings, nil
}

func (c *Client) sendPayload(event, context string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	return c.send(Message{Event: event, Context: context, Payload: data})
}
