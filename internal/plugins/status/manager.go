package status

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"statusdeck/internal/clock"
	"statusdeck/internal/deck"
	"statusdeck/internal/display"
	"statusdeck/internal/settings"
	"statusdeck/internal/shadowstate"

	"go.uber.org/zap"
)

// ActionUUID identifies the status action on the deck host
const ActionUUID = "com.bgrande.StatusPlugin::StatusChecker"

// tickInterval is the cadence at which every action is offered a tick
const tickInterval = time.Second

var ErrUnknownAction = errors.New("unknown action")

// Manager owns every status button instance and drives their ticks
type Manager struct {
	host    deck.Host
	checker Checker
	clock   clock.Clock
	tracker *shadowstate.Tracker
	logger  *zap.Logger

	mu      sync.RWMutex
	actions map[string]*Action

	// Checks of removed buttons still finishing
	retiring sync.WaitGroup

	subscription deck.Subscription
	active       atomic.Bool
	stopCh       chan struct{}
	doneCh       chan struct{}
}

// NewManager creates a status manager. With a nil host the manager runs
// headless: buttons are placed with Place and results are logged.
func NewManager(host deck.Host, checker Checker, clk clock.Clock, tracker *shadowstate.Tracker, logger *zap.Logger) *Manager {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	if tracker == nil {
		tracker = shadowstate.NewTracker()
	}
	return &Manager{
		host:    host,
		checker: checker,
		clock:   clk,
		tracker: tracker,
		logger:  logger.Named("status"),
		actions: make(map[string]*Action),
	}
}

// Start subscribes to host events and starts the tick loop
func (m *Manager) Start() error {
	m.logger.Info("Starting status manager")

	if m.host != nil {
		sub, err := m.host.SubscribeAction(ActionUUID, m.handleEvent)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", ActionUUID, err)
		}
		m.subscription = sub
		m.host.OnReconnect(m.Resync)
	}
	m.active.Store(true)

	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.run(m.clock.NewTicker(tickInterval))

	m.logger.Info("Status manager started")
	return nil
}

// Stop stops ticking and waits for running checks to finish
func (m *Manager) Stop() {
	m.logger.Info("Stopping status manager")
	m.active.Store(false)

	if m.subscription != nil {
		m.subscription.Unsubscribe()
		m.subscription = nil
	}

	if m.stopCh != nil {
		close(m.stopCh)
		<-m.doneCh
		m.stopCh = nil
	}

	m.Wait()
	m.logger.Info("Status manager stopped")
}

func (m *Manager) run(ticker clock.Ticker) {
	defer close(m.doneCh)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C():
			for _, a := range m.snapshot() {
				a.OnTick()
			}
		}
	}
}

// handleEvent routes host events for the status action
func (m *Manager) handleEvent(event deck.Event) {
	switch event.Type {
	case deck.EventWillAppear:
		m.Appear(event.Context, event.Settings)
	case deck.EventWillDisappear:
		m.Remove(event.Context)
	case deck.EventKeyDown, deck.EventDialDown, deck.EventTouchTap:
		if _, err := m.Trigger(event.Context, TriggerKey); err != nil {
			m.logger.Warn("Input for unknown button", zap.String("context", event.Context))
		}
	case deck.EventDidReceiveSettings:
		m.ApplySettings(event.Context, event.Settings)
	}
}

// Appear places a button from host settings. Missing keys are filled with
// defaults and written back to the host.
func (m *Manager) Appear(context string, raw map[string]any) {
	merged, added := settings.MergeDefaults(raw)
	if added && m.host != nil {
		if err := m.host.SetSettings(context, merged); err != nil {
			m.logger.Warn("Failed to persist default settings",
				zap.String("context", context),
				zap.Error(err))
		}
	}

	m.Place(context, m.parse(context, merged, settings.Defaults()))
}

// Place adds a button with the given settings, or updates it if it already
// exists. A newly placed button runs its ready check.
func (m *Manager) Place(name string, s settings.Settings) {
	m.mu.Lock()
	if existing, ok := m.actions[name]; ok {
		m.mu.Unlock()
		existing.UpdateSettings(s)
		return
	}

	a := NewAction(name, s, m.checker, m.surfaceFor(name), m.clock, m.logger)
	m.actions[name] = a
	m.mu.Unlock()

	m.tracker.RegisterProvider(name, func() shadowstate.PluginShadowState {
		return a.GetShadowState()
	})

	m.logger.Info("Button placed",
		zap.String("button", name),
		zap.String("kind", s.Check.Kind.String()),
		zap.String("target", s.Check.Target),
		zap.Duration("interval", s.Check.Interval),
		zap.Bool("periodic", s.Check.Periodic()))

	a.OnReady()
}

// Remove forgets a button. A check already running for it completes.
func (m *Manager) Remove(name string) {
	m.mu.Lock()
	a, ok := m.actions[name]
	delete(m.actions, name)
	m.mu.Unlock()

	if !ok {
		return
	}
	m.tracker.Unregister(name)

	m.retiring.Add(1)
	go func() {
		defer m.retiring.Done()
		a.Wait()
	}()

	m.logger.Info("Button removed", zap.String("button", name))
}

// ApplySettings replaces a button's settings from a host settings map.
// Invalid settings are logged and the current settings stay in effect.
func (m *Manager) ApplySettings(name string, raw map[string]any) {
	a, ok := m.Get(name)
	if !ok {
		m.logger.Warn("Settings for unknown button", zap.String("button", name))
		return
	}

	merged, _ := settings.MergeDefaults(raw)
	s, warnings, err := settings.FromMap(merged)
	if err != nil {
		m.logger.Error("Rejected settings update",
			zap.String("button", name),
			zap.Error(err))
		return
	}
	m.logWarnings(name, warnings)

	a.UpdateSettings(s)
	m.logger.Debug("Settings updated", zap.String("button", name))
}

// Resync re-reads the settings of every placed button from the host and
// applies them, picking up edits made while the connection was down. It
// makes host requests and must not run on the host's receive goroutine.
func (m *Manager) Resync() {
	if m.host == nil || !m.active.Load() {
		return
	}

	applied := 0
	for _, name := range m.Names() {
		raw, err := m.host.GetSettings(name)
		if err != nil {
			m.logger.Warn("Failed to re-read button settings",
				zap.String("button", name),
				zap.Error(err))
			continue
		}
		if len(raw) == 0 {
			continue
		}
		m.ApplySettings(name, raw)
		applied++
	}

	m.logger.Info("Button settings re-read from host", zap.Int("buttons", applied))
}

// Sync makes the placed buttons match buttons: new ones are placed, known
// ones updated and missing ones removed.
func (m *Manager) Sync(buttons []settings.Button) {
	keep := make(map[string]bool, len(buttons))
	for _, b := range buttons {
		keep[b.Name] = true
		m.Place(b.Name, b.Settings)
	}

	for _, name := range m.Names() {
		if !keep[name] {
			m.Remove(name)
		}
	}
}

// Trigger runs a check for a button now. It reports whether a check was
// started; false means one was already running.
func (m *Manager) Trigger(name string, reason Trigger) (bool, error) {
	a, ok := m.Get(name)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	return a.Trigger(reason), nil
}

// Get returns the action for a button
func (m *Manager) Get(name string) (*Action, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.actions[name]
	return a, ok
}

// Names returns the placed buttons in sorted order
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.actions))
	for name := range m.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Wait blocks until no check is running
func (m *Manager) Wait() {
	for _, a := range m.snapshot() {
		a.Wait()
	}
	m.retiring.Wait()
}

func (m *Manager) snapshot() []*Action {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Action, 0, len(m.actions))
	for _, a := range m.actions {
		out = append(out, a)
	}
	return out
}

func (m *Manager) parse(name string, raw map[string]any, fallback settings.Settings) settings.Settings {
	s, warnings, err := settings.FromMap(raw)
	if err != nil {
		m.logger.Error("Invalid button settings, using defaults",
			zap.String("button", name),
			zap.Error(err))
		return fallback
	}
	m.logWarnings(name, warnings)
	return s
}

func (m *Manager) logWarnings(name string, warnings []string) {
	for _, w := range warnings {
		m.logger.Warn("Button settings warning",
			zap.String("button", name),
			zap.String("warning", w))
	}
}

func (m *Manager) surfaceFor(name string) display.Surface {
	if m.host == nil {
		return display.NewLogSurface(name, m.logger)
	}
	return &deckSurface{host: m.host, context: name}
}

// deckSurface renders onto one button of the deck host
type deckSurface struct {
	host    deck.Host
	context string
}

func (s *deckSurface) SetBackgroundColor(color display.RGBA) error {
	return s.host.SetBackgroundColor(s.context, color)
}

func (s *deckSurface) SetCenterLabel(text string, color display.RGBA, fontSize int) error {
	return s.host.SetTitle(s.context, text, color, fontSize)
}

func (s *deckSurface) SetMedia(path string) error {
	return s.host.SetImage(s.context, path)
}
