package status

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"statusdeck/internal/check"
	"statusdeck/internal/clock"
	"statusdeck/internal/display"
	"statusdeck/internal/settings"
	"statusdeck/internal/shadowstate"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Trigger names what initiated a check
type Trigger string

const (
	TriggerReady Trigger = "ready"
	TriggerTick  Trigger = "tick"
	TriggerKey   Trigger = "key"
	TriggerAPI   Trigger = "api"
)

// Checker runs a single check. check.Runner is the production implementation.
type Checker interface {
	Run(ctx context.Context, cfg check.Config) check.Result
}

// Action is one status button instance. It decides when to check, runs at
// most one check at a time and renders each result.
type Action struct {
	name       string
	checker    Checker
	dispatcher *display.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
	tracker    *shadowstate.StatusTracker

	settings atomic.Pointer[settings.Settings]
	running  atomic.Bool

	lastMu    sync.Mutex
	lastStart time.Time

	wg sync.WaitGroup
}

// NewAction creates an action rendering onto surface
func NewAction(name string, s settings.Settings, checker Checker, surface display.Surface, clk clock.Clock, logger *zap.Logger) *Action {
	logger = logger.Named("button").With(zap.String("button", name))
	a := &Action{
		name:       name,
		checker:    checker,
		dispatcher: display.NewDispatcher(surface, logger),
		clock:      clk,
		logger:     logger,
		tracker:    shadowstate.NewStatusTracker(name),
	}
	a.UpdateSettings(s)
	return a
}

// Name returns the button this action renders to
func (a *Action) Name() string {
	return a.name
}

// Settings returns the settings the next check will use
func (a *Action) Settings() settings.Settings {
	return *a.settings.Load()
}

// UpdateSettings replaces the settings. A running check keeps the settings it
// started with.
func (a *Action) UpdateSettings(s settings.Settings) {
	a.settings.Store(&s)
	a.tracker.UpdateCurrentInputs(redact(s.ToMap()))
}

// OnReady runs the initial check when the button appears, if enabled
func (a *Action) OnReady() bool {
	if !a.settings.Load().CheckOnReady {
		return false
	}
	return a.Trigger(TriggerReady)
}

// OnTick is called once per second. It starts a check when periodic checking
// is enabled and the interval has elapsed since the last check started.
func (a *Action) OnTick() bool {
	cfg := a.settings.Load().Check
	if !cfg.Periodic() {
		return false
	}

	a.lastMu.Lock()
	last := a.lastStart
	a.lastMu.Unlock()

	if !last.IsZero() && a.clock.Since(last) < cfg.Interval {
		return false
	}
	return a.Trigger(TriggerTick)
}

// OnKeyDown checks immediately unless a check is already running
func (a *Action) OnKeyDown() bool {
	return a.Trigger(TriggerKey)
}

// Trigger starts a check in the background. It returns false and drops the
// trigger when a check is already in flight.
func (a *Action) Trigger(reason Trigger) bool {
	if !a.running.CompareAndSwap(false, true) {
		a.tracker.RecordDroppedTrigger()
		a.logger.Debug("Check already in flight, dropping trigger",
			zap.String("trigger", string(reason)))
		return false
	}

	started := a.clock.Now()
	a.lastMu.Lock()
	a.lastStart = started
	a.lastMu.Unlock()

	s := a.settings.Load()
	a.tracker.RecordCheckStarted()

	a.wg.Add(1)
	go a.perform(reason, s, started)
	return true
}

// Wait blocks until the in-flight check, if any, has finished
func (a *Action) Wait() {
	a.wg.Wait()
}

// InFlight reports whether a check is running
func (a *Action) InFlight() bool {
	return a.running.Load()
}

// GetShadowState returns the observable state of this button
func (a *Action) GetShadowState() *shadowstate.StatusShadowState {
	return a.tracker.GetState()
}

func (a *Action) perform(reason Trigger, s *settings.Settings, started time.Time) {
	defer a.wg.Done()
	defer a.running.Store(false)

	id := uuid.NewString()
	logger := a.logger.With(
		zap.String("check_id", id),
		zap.String("trigger", string(reason)))

	logger.Debug("Running check",
		zap.String("kind", s.Check.Kind.String()),
		zap.String("target", s.Check.Target))

	result := a.checker.Run(context.Background(), s.Check)
	matched := check.Evaluate(result, s.Check.MatchMode, s.Check.MatchValue)
	a.dispatcher.Dispatch(matched, result, s.Styles, s.Display())

	a.tracker.RecordCheck(shadowstate.CheckRecord{
		ID:         id,
		Trigger:    string(reason),
		StartedAt:  started,
		Duration:   a.clock.Since(started),
		Output:     result.Output,
		StatusCode: result.StatusCode,
		Succeeded:  result.Succeeded,
		Matched:    matched,
		ReturnType: s.ReturnType.String(),
	})

	logger.Info("Check finished",
		zap.Int("status_code", result.StatusCode),
		zap.Bool("succeeded", result.Succeeded),
		zap.Bool("matched", matched),
		zap.String("match_mode", s.Check.MatchMode.String()))
}

func redact(m map[string]any) map[string]any {
	if p, ok := m[settings.KeyPassword].(string); ok && p != "" {
		m[settings.KeyPassword] = "********"
	}
	return m
}
