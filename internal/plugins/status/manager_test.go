package status

import (
	"testing"
	"time"

	"statusdeck/internal/check"
	"statusdeck/internal/clock"
	"statusdeck/internal/deck"
	"statusdeck/internal/display"
	"statusdeck/internal/settings"
	"statusdeck/internal/shadowstate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type managerFixture struct {
	manager *Manager
	host    *deck.MockHost
	clock   *clock.MockClock
	checker *fakeChecker
	tracker *shadowstate.Tracker
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	f := &managerFixture{
		host:    deck.NewMockHost(),
		clock:   clock.NewMockClock(time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)),
		checker: &fakeChecker{result: check.Result{Output: "ok", StatusCode: 200, Succeeded: true}},
		tracker: shadowstate.NewTracker(),
	}
	f.manager = NewManager(f.host, f.checker, f.clock, f.tracker, zap.NewNop())
	require.NoError(t, f.manager.Start())
	t.Cleanup(f.manager.Stop)
	return f
}

func (f *managerFixture) emit(eventType, context string, s map[string]any) {
	f.host.Emit(deck.Event{Type: eventType, Action: ActionUUID, Context: context, Settings: s})
}

func (f *managerFixture) callsFor(target string) int {
	n := 0
	for _, cfg := range f.checker.Calls() {
		if cfg.Target == target {
			n++
		}
	}
	return n
}

func TestManager_AppearWritesBackDefaultsAndChecks(t *testing.T) {
	f := newManagerFixture(t)

	f.emit(deck.EventWillAppear, "ctx-1", map[string]any{settings.KeyTarget: "https://example.com"})
	f.manager.Wait()

	var persisted *deck.Command
	for _, cmd := range f.host.CommandsFor("ctx-1") {
		if cmd.Event == deck.EventSetSettings {
			c := cmd
			persisted = &c
		}
	}
	require.NotNil(t, persisted, "merged defaults should be written back")
	assert.Equal(t, "https://example.com", persisted.Settings[settings.KeyTarget])
	assert.Equal(t, "Status Code", persisted.Settings[settings.KeyMatchMode])

	// Ready check runs by default and renders onto the button
	assert.Equal(t, 1, f.callsFor("https://example.com"))
	var sawBackground bool
	for _, cmd := range f.host.CommandsFor("ctx-1") {
		if cmd.Event == deck.EventSetBackgroundColor {
			sawBackground = true
			assert.Equal(t, display.Green, cmd.Color)
		}
		if cmd.Event == deck.EventSetTitle {
			assert.Equal(t, "Online", cmd.Title)
			assert.Equal(t, display.LabelFontSize, cmd.FontSize)
		}
	}
	assert.True(t, sawBackground)

	assert.Equal(t, []string{"ctx-1"}, f.tracker.Keys())
}

func TestManager_AppearWithCompleteSettingsDoesNotPersist(t *testing.T) {
	f := newManagerFixture(t)

	raw := settings.DefaultMap()
	raw[settings.KeyCheckOnReady] = false
	f.emit(deck.EventWillAppear, "ctx-1", raw)
	f.manager.Wait()

	for _, cmd := range f.host.Commands() {
		assert.NotEqual(t, deck.EventSetSettings, cmd.Event)
	}
	assert.Empty(t, f.checker.Calls())
}

func TestManager_InvalidSettingsFallBackToDefaults(t *testing.T) {
	f := newManagerFixture(t)

	f.emit(deck.EventWillAppear, "ctx-1", map[string]any{settings.KeyCheckType: "Carrier Pigeon"})
	f.manager.Wait()

	a, ok := f.manager.Get("ctx-1")
	require.True(t, ok)
	assert.Equal(t, check.KindWeb, a.Settings().Check.Kind)
}

func TestManager_InputEventsTriggerChecks(t *testing.T) {
	f := newManagerFixture(t)

	raw := settings.DefaultMap()
	raw[settings.KeyCheckOnReady] = false
	f.emit(deck.EventWillAppear, "ctx-1", raw)

	for _, event := range []string{deck.EventKeyDown, deck.EventDialDown, deck.EventTouchTap} {
		f.emit(event, "ctx-1", nil)
		f.manager.Wait()
	}
	assert.Len(t, f.checker.Calls(), 3)

	// Unknown buttons are ignored
	f.emit(deck.EventKeyDown, "ctx-unknown", nil)
	f.manager.Wait()
	assert.Len(t, f.checker.Calls(), 3)
}

func TestManager_DidReceiveSettings(t *testing.T) {
	f := newManagerFixture(t)

	raw := settings.DefaultMap()
	raw[settings.KeyCheckOnReady] = false
	f.emit(deck.EventWillAppear, "ctx-1", raw)

	updated := settings.DefaultMap()
	updated[settings.KeyTarget] = "echo ok"
	updated[settings.KeyCheckType] = "Local Script"
	updated[settings.KeyMatchMode] = "Equals"
	updated[settings.KeyMatchValue] = "ok"
	f.emit(deck.EventDidReceiveSettings, "ctx-1", updated)

	a, ok := f.manager.Get("ctx-1")
	require.True(t, ok)
	assert.Equal(t, check.KindLocalScript, a.Settings().Check.Kind)
	assert.Equal(t, check.MatchEquals, a.Settings().Check.MatchMode)

	// A rejected update keeps the current settings
	bad := settings.DefaultMap()
	bad[settings.KeyMatchMode] = "Vibes"
	f.emit(deck.EventDidReceiveSettings, "ctx-1", bad)
	assert.Equal(t, check.MatchEquals, a.Settings().Check.MatchMode)

	f.emit(deck.EventKeyDown, "ctx-1", nil)
	f.manager.Wait()
	require.Len(t, f.checker.Calls(), 1)
	assert.Equal(t, "echo ok", f.checker.Calls()[0].Target)
}

func TestManager_WillDisappearRemovesButton(t *testing.T) {
	f := newManagerFixture(t)

	f.emit(deck.EventWillAppear, "ctx-1", settings.DefaultMap())
	f.emit(deck.EventWillDisappear, "ctx-1", nil)
	f.manager.Wait()

	assert.Empty(t, f.manager.Names())
	assert.Empty(t, f.tracker.Keys())

	_, err := f.manager.Trigger("ctx-1", TriggerAPI)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestManager_TickLoop(t *testing.T) {
	f := newManagerFixture(t)

	periodic := settings.DefaultMap()
	periodic[settings.KeyTarget] = "https://periodic.example.com"
	periodic[settings.KeyInterval] = 5
	periodic[settings.KeyCheckOnReady] = false
	f.emit(deck.EventWillAppear, "periodic", periodic)

	manual := settings.DefaultMap()
	manual[settings.KeyTarget] = "https://manual.example.com"
	manual[settings.KeyInterval] = 0
	manual[settings.KeyCheckOnReady] = false
	f.emit(deck.EventWillAppear, "manual", manual)

	// First tick: nothing has run yet, so the periodic button is due
	f.clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		return f.callsFor("https://periodic.example.com") == 1
	}, time.Second, 5*time.Millisecond)
	f.manager.Wait()

	f.clock.Advance(5 * time.Second)
	require.Eventually(t, func() bool {
		return f.callsFor("https://periodic.example.com") == 2
	}, time.Second, 5*time.Millisecond)

	f.manager.Stop()
	assert.Equal(t, 0, f.callsFor("https://manual.example.com"))
}

func TestManager_StopUnsubscribes(t *testing.T) {
	f := newManagerFixture(t)
	assert.Equal(t, 1, f.host.SubscriberCount(ActionUUID))

	f.manager.Stop()
	assert.Equal(t, 0, f.host.SubscriberCount(ActionUUID))

	// Stop is safe to call again
	f.manager.Stop()
}

func TestManager_HeadlessSync(t *testing.T) {
	checker := &fakeChecker{result: check.Result{Output: "ok", StatusCode: 200, Succeeded: true}}
	tracker := shadowstate.NewTracker()
	m := NewManager(nil, checker, clock.NewMockClock(time.Now()), tracker, zap.NewNop())
	require.NoError(t, m.Start())
	defer m.Stop()

	a := settings.Defaults()
	a.Check.Target = "https://a.example.com"
	b := settings.Defaults()
	b.Check.Target = "https://b.example.com"

	m.Sync([]settings.Button{{Name: "a", Settings: a}, {Name: "b", Settings: b}})
	m.Wait()
	assert.Equal(t, []string{"a", "b"}, m.Names())
	assert.Len(t, checker.Calls(), 2)

	a.Check.Target = "https://a2.example.com"
	m.Sync([]settings.Button{{Name: "a", Settings: a}})
	m.Wait()

	assert.Equal(t, []string{"a"}, m.Names())
	assert.Equal(t, []string{"a"}, tracker.Keys())
	action, _ := m.Get("a")
	assert.Equal(t, "https://a2.example.com", action.Settings().Check.Target)

	// Updating an existing button does not rerun the ready check
	assert.Len(t, checker.Calls(), 2)

	started, err := m.Trigger("a", TriggerAPI)
	require.NoError(t, err)
	assert.True(t, started)
	m.Wait()
	assert.Equal(t, "https://a2.example.com", checker.Calls()[2].Target)
}

func TestManager_ReconnectRereadsSettings(t *testing.T) {
	f := newManagerFixture(t)

	raw := settings.DefaultMap()
	raw[settings.KeyTarget] = "https://before.example"
	raw[settings.KeyCheckOnReady] = false
	f.emit(deck.EventWillAppear, "ctx-1", raw)

	raw = settings.DefaultMap()
	raw[settings.KeyCheckOnReady] = false
	f.emit(deck.EventWillAppear, "ctx-2", raw)

	// Edited on the host while the plugin was disconnected
	edited := settings.DefaultMap()
	edited[settings.KeyTarget] = "https://after.example"
	edited[settings.KeyMatchValue] = "204"
	require.NoError(t, f.host.SetSettings("ctx-1", edited))

	// The host lost ctx-2's settings; it keeps its current ones
	require.NoError(t, f.host.SetSettings("ctx-2", map[string]any{}))

	f.host.Reconnect()

	a, ok := f.manager.Get("ctx-1")
	require.True(t, ok)
	assert.Equal(t, "https://after.example", a.Settings().Check.Target)
	assert.Equal(t, "204", a.Settings().Check.MatchValue)

	b, ok := f.manager.Get("ctx-2")
	require.True(t, ok)
	assert.Equal(t, settings.Defaults().Check.Target, b.Settings().Check.Target)
	assert.False(t, b.Settings().CheckOnReady)
}

func TestManager_ReconnectAfterStopIsIgnored(t *testing.T) {
	f := newManagerFixture(t)

	raw := settings.DefaultMap()
	raw[settings.KeyTarget] = "https://before.example"
	raw[settings.KeyCheckOnReady] = false
	f.emit(deck.EventWillAppear, "ctx-1", raw)

	edited := settings.DefaultMap()
	edited[settings.KeyTarget] = "https://after.example"
	require.NoError(t, f.host.SetSettings("ctx-1", edited))

	f.manager.Stop()
	f.host.Reconnect()

	a, ok := f.manager.Get("ctx-1")
	require.True(t, ok)
	assert.Equal(t, "https://before.example", a.Settings().Check.Target)
}
