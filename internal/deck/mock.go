package deck

import (
	"fmt"
	"sync"
	"time"

	"statusdeck/internal/display"
)

// Command records an outbound call made on a MockHost
type Command struct {
	Event    string
	Context  string
	Color    display.RGBA
	Title    string
	FontSize int
	Path     string
	Settings map[string]any
	Time     time.Time
}

// MockHost implements Host for testing
type MockHost struct {
	settings    map[string]map[string]any
	settingsMu  sync.RWMutex
	subscribers map[string][]subscriberEntry
	subsMu      sync.RWMutex
	nextSubID   int
	nextSubIDMu sync.Mutex
	connected   bool
	connMu      sync.RWMutex
	commands    []Command
	commandsMu  sync.Mutex
	onReconnect []func()
	reconnectMu sync.Mutex
}

// NewMockHost creates a new mock deck host
func NewMockHost() *MockHost {
	return &MockHost{
		settings:    make(map[string]map[string]any),
		subscribers: make(map[string][]subscriberEntry),
	}
}

// Connect simulates connecting to the host
func (m *MockHost) Connect() error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}
	m.connected = true
	return nil
}

// Disconnect simulates disconnecting
func (m *MockHost) Disconnect() error {
	m.connMu.Lock()
	m.connected = false
	m.connMu.Unlock()

	m.subsMu.Lock()
	m.subscribers = make(map[string][]subscriberEntry)
	m.subsMu.Unlock()
	return nil
}

// IsConnected returns connection status
func (m *MockHost) IsConnected() bool {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.connected
}

// SubscribeAction subscribes to events for an action UUID
func (m *MockHost) SubscribeAction(action string, handler EventHandler) (Subscription, error) {
	m.nextSubIDMu.Lock()
	subID := m.nextSubID
	m.nextSubID++
	m.nextSubIDMu.Unlock()

	m.subsMu.Lock()
	m.subscribers[action] = append(m.subscribers[action], subscriberEntry{subID: subID, handler: handler})
	m.subsMu.Unlock()

	return &subscription{action: action, subID: subID, host: m}, nil
}

func (m *MockHost) unsubscribe(action string, subID int) error {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	subscribers := m.subscribers[action]
	for i, entry := range subscribers {
		if entry.subID == subID {
			m.subscribers[action] = append(subscribers[:i], subscribers[i+1:]...)
			if len(m.subscribers[action]) == 0 {
				delete(m.subscribers, action)
			}
			break
		}
	}
	return nil
}

// SubscriberCount returns how many handlers listen to action
func (m *MockHost) SubscriberCount(action string) int {
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()
	return len(m.subscribers[action])
}

// SetBackgroundColor records the command
func (m *MockHost) SetBackgroundColor(context string, color display.RGBA) error {
	m.record(Command{Event: EventSetBackgroundColor, Context: context, Color: color})
	return nil
}

// SetTitle records the command
func (m *MockHost) SetTitle(context, title string, color display.RGBA, fontSize int) error {
	m.record(Command{Event: EventSetTitle, Context: context, Title: title, Color: color, FontSize: fontSize})
	return nil
}

// SetImage records the command
func (m *MockHost) SetImage(context, path string) error {
	m.record(Command{Event: EventSetImage, Context: context, Path: path})
	return nil
}

// SetSettings records the command and stores the settings
func (m *MockHost) SetSettings(context string, settings map[string]any) error {
	m.settingsMu.Lock()
	m.settings[context] = copySettings(settings)
	m.settingsMu.Unlock()

	m.record(Command{Event: EventSetSettings, Context: context, Settings: copySettings(settings)})
	return nil
}

// GetSettings returns the stored settings for a context
func (m *MockHost) GetSettings(context string) (map[string]any, error) {
	m.settingsMu.RLock()
	defer m.settingsMu.RUnlock()

	s, ok := m.settings[context]
	if !ok {
		return make(map[string]any), nil
	}
	return copySettings(s), nil
}

// Emit delivers an event to the action's subscribers, as the host would
func (m *MockHost) Emit(event Event) {
	m.subsMu.RLock()
	entries := append([]subscriberEntry(nil), m.subscribers[event.Action]...)
	m.subsMu.RUnlock()

	for _, entry := range entries {
		entry.handler(event)
	}
}

// OnReconnect registers a handler run by Reconnect
func (m *MockHost) OnReconnect(handler func()) {
	m.reconnectMu.Lock()
	defer m.reconnectMu.Unlock()
	m.onReconnect = append(m.onReconnect, handler)
}

// Reconnect simulates a dropped and re-established connection, running the
// reconnect handlers synchronously
func (m *MockHost) Reconnect() {
	m.reconnectMu.Lock()
	handlers := append([]func(){}, m.onReconnect...)
	m.reconnectMu.Unlock()

	for _, handler := range handlers {
		handler()
	}
}

// Commands returns all recorded commands
func (m *MockHost) Commands() []Command {
	m.commandsMu.Lock()
	defer m.commandsMu.Unlock()

	out := make([]Command, len(m.commands))
	copy(out, m.commands)
	return out
}

// CommandsFor returns recorded commands for one context
func (m *MockHost) CommandsFor(context string) []Command {
	var out []Command
	for _, cmd := range m.Commands() {
		if cmd.Context == context {
			out = append(out, cmd)
		}
	}
	return out
}

// ClearCommands clears the command history
func (m *MockHost) ClearCommands() {
	m.commandsMu.Lock()
	defer m.commandsMu.Unlock()
	m.commands = nil
}

func (m *MockHost) record(cmd Command) {
	cmd.Time = time.Now()
	m.commandsMu.Lock()
	m.commands = append(m.commands, cmd)
	m.commandsMu.Unlock()
}

func copySettings(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
