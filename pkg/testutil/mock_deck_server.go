// Package testutil provides testing utilities for deck plugins.
// This package contains a mock deck host websocket server and helpers
// for writing integration tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"statusdeck/internal/deck"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// connWrapper wraps a WebSocket connection with its write mutex
type connWrapper struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (w *connWrapper) write(msg deck.Message) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteJSON(msg)
}

// MockDeckServer simulates the deck host application
type MockDeckServer struct {
	server     *http.Server
	listener   net.Listener
	addr       string
	pluginUUID string

	settings   map[string]map[string]any
	settingsMu sync.RWMutex

	connections []*connWrapper
	connsMu     sync.Mutex

	commands   []Command
	commandsMu sync.Mutex
}

// NewMockDeckServer creates a mock host accepting pluginUUID. Use an addr of
// "127.0.0.1:0" to pick a free port.
func NewMockDeckServer(addr, pluginUUID string) *MockDeckServer {
	return &MockDeckServer{
		addr:        addr,
		pluginUUID:  pluginUUID,
		settings:    make(map[string]map[string]any),
		connections: make([]*connWrapper, 0),
	}
}

// Start starts the mock server
func (s *MockDeckServer) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebSocket)
	s.server = &http.Server{Handler: mux}

	go func() {
		if err := s.server.Serve(listener); err != http.ErrServerClosed {
			log.Printf("Mock deck server error: %v", err)
		}
	}()
	return nil
}

// URL returns the websocket URL clients should dial
func (s *MockDeckServer) URL() string {
	return "ws://" + s.listener.Addr().String()
}

// Stop stops the mock server
func (s *MockDeckServer) Stop() error {
	s.connsMu.Lock()
	for _, wrapper := range s.connections {
		wrapper.conn.Close()
	}
	s.connections = nil
	s.connsMu.Unlock()

	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// Connected returns the number of registered plugin connections
func (s *MockDeckServer) Connected() int {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return len(s.connections)
}

// Appear places a button, as when the user drags the action onto the deck
func (s *MockDeckServer) Appear(action, context string, settings map[string]any) {
	s.settingsMu.Lock()
	s.settings[context] = copySettings(settings)
	s.settingsMu.Unlock()

	s.broadcast(deck.EventWillAppear, action, context, deck.SettingsPayload{Settings: settings})
}

// Disappear removes a button
func (s *MockDeckServer) Disappear(action, context string) {
	s.broadcast(deck.EventWillDisappear, action, context, nil)
}

// KeyDown presses a button
func (s *MockDeckServer) KeyDown(action, context string) {
	s.broadcast(deck.EventKeyDown, action, context, nil)
}

// EditSettings simulates the user editing a button's settings
func (s *MockDeckServer) EditSettings(action, context string, settings map[string]any) {
	s.settingsMu.Lock()
	s.settings[context] = copySettings(settings)
	s.settingsMu.Unlock()

	s.broadcast(deck.EventDidReceiveSettings, action, context, deck.SettingsPayload{Settings: settings})
}

// Settings returns the settings the host has persisted for a button
func (s *MockDeckServer) Settings(context string) map[string]any {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()
	return copySettings(s.settings[context])
}

// handleWebSocket handles plugin connections
func (s *MockDeckServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	wrapper := &connWrapper{conn: conn}

	var reg deck.Message
	if err := conn.ReadJSON(&reg); err != nil {
		log.Printf("Failed to read registration: %v", err)
		return
	}
	if reg.Event != deck.EventRegisterPlugin || reg.UUID != s.pluginUUID {
		wrapper.write(deck.Message{Event: deck.EventRegistrationFailed})
		return
	}

	// Track the connection before acknowledging so events sent right after
	// the client's Connect returns are delivered
	s.connsMu.Lock()
	s.connections = append(s.connections, wrapper)
	s.connsMu.Unlock()

	defer func() {
		s.connsMu.Lock()
		for i, w := range s.connections {
			if w == wrapper {
				s.connections = append(s.connections[:i], s.connections[i+1:]...)
				break
			}
		}
		s.connsMu.Unlock()
	}()

	if err := wrapper.write(deck.Message{Event: deck.EventRegistered}); err != nil {
		return
	}

	for {
		var msg deck.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Event {
		case deck.EventGetSettings:
			s.handleGetSettings(wrapper, msg)
		case deck.EventSetSettings:
			var payload deck.SettingsPayload
			if err := json.Unmarshal(msg.Payload, &payload); err == nil {
				s.settingsMu.Lock()
				s.settings[msg.Context] = copySettings(payload.Settings)
				s.settingsMu.Unlock()
			}
			s.record(msg)
		default:
			s.record(msg)
		}
	}
}

func (s *MockDeckServer) handleGetSettings(wrapper *connWrapper, msg deck.Message) {
	payload, _ := json.Marshal(deck.SettingsPayload{Settings: s.Settings(msg.Context)})
	wrapper.write(deck.Message{
		ID:      msg.ID,
		Event:   deck.EventDidReceiveSettings,
		Context: msg.Context,
		Payload: payload,
	})
}

func (s *MockDeckServer) record(msg deck.Message) {
	var payload map[string]any
	if len(msg.Payload) > 0 {
		json.Unmarshal(msg.Payload, &payload)
	}

	s.commandsMu.Lock()
	s.commands = append(s.commands, Command{
		Timestamp: time.Now(),
		Event:     msg.Event,
		Context:   msg.Context,
		Payload:   payload,
	})
	s.commandsMu.Unlock()
}

// broadcast sends an event to every registered connection
func (s *MockDeckServer) broadcast(event, action, context string, payload any) {
	msg := deck.Message{Event: event, Action: action, Context: context}
	if payload != nil {
		data, _ := json.Marshal(payload)
		msg.Payload = data
	}

	s.connsMu.Lock()
	wrappers := make([]*connWrapper, len(s.connections))
	copy(wrappers, s.connections)
	s.connsMu.Unlock()

	for _, wrapper := range wrappers {
		wrapper.write(msg)
	}
}

// GetCommands returns all commands received since last clear
func (s *MockDeckServer) GetCommands() []Command {
	s.commandsMu.Lock()
	defer s.commandsMu.Unlock()
	commands := make([]Command, len(s.commands))
	copy(commands, s.commands)
	return commands
}

// ClearCommands resets the command log
func (s *MockDeckServer) ClearCommands() {
	s.commandsMu.Lock()
	defer s.commandsMu.Unlock()
	s.commands = nil
}

// WaitForCommand waits until a command with event for context arrives.
// It returns nil on timeout.
func (s *MockDeckServer) WaitForCommand(event, context string, timeout time.Duration) *Command {
	deadline := time.Now().Add(timeout)
	for {
		if cmd := FindCommand(s.GetCommands(), event, context); cmd != nil {
			return cmd
		}
		if time.Now().After(deadline) {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func copySettings(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
