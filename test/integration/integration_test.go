// Package integration runs the status plugin end to end against a mock deck
// host over a real websocket connection.
package integration

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"statusdeck/internal/clock"
	"statusdeck/internal/deck"
	"statusdeck/internal/plugins/status"
	"statusdeck/internal/settings"
	"statusdeck/internal/shadowstate"
	"statusdeck/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 3 * time.Second

func setupTest(t *testing.T, clk clock.Clock) *testutil.TestEnv {
	t.Helper()

	env, err := testutil.NewTestEnv()
	require.NoError(t, err)
	t.Cleanup(env.Cleanup)

	_, err = env.StartPlugin(status.PluginName, clk)
	require.NoError(t, err)
	return env
}

// endpoint serves the status code currently stored in code
func endpoint(t *testing.T, code *atomic.Int32) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(code.Load()))
		fmt.Fprintf(w, "status %d", code.Load())
	}))
	t.Cleanup(server.Close)
	return server
}

func buttonSettings(target string) map[string]any {
	raw := settings.DefaultMap()
	raw[settings.KeyTarget] = target
	raw[settings.KeyPeriodicEnabled] = false
	return raw
}

func TestBasicConnection(t *testing.T) {
	env := setupTest(t, nil)

	assert.True(t, env.Host.IsConnected())
	assert.Equal(t, 1, env.Server.Connected())

	// Settings round trip through the host
	require.NoError(t, env.Host.SetSettings("ctx", map[string]any{"match_value": "204"}))
	require.Eventually(t, func() bool {
		return env.Server.Settings("ctx")["match_value"] == "204"
	}, waitTimeout, 10*time.Millisecond)

	got, err := env.Host.GetSettings("ctx")
	require.NoError(t, err)
	assert.Equal(t, "204", got["match_value"])
}

func TestScenario_WebsiteUpThenDown(t *testing.T) {
	env := setupTest(t, nil)

	var code atomic.Int32
	code.Store(http.StatusOK)
	site := endpoint(t, &code)

	t.Log("GIVEN: a button checking a healthy website")
	env.Server.Appear(status.ActionUUID, "btn-web", buttonSettings(site.URL))

	t.Log("THEN: the ready check paints it green with the match label")
	bg := env.Server.WaitForCommand(deck.EventSetBackgroundColor, "btn-web", waitTimeout)
	require.NotNil(t, bg, "expected a background update")
	assert.Equal(t, []any{0.0, 255.0, 0.0, 255.0}, bg.Payload["color"])
	require.NotNil(t, testutil.FindTitle(env.GetCommands(), "btn-web", "Online"))

	env.ClearCommands()

	t.Log("WHEN: the site starts failing and the key is pressed")
	code.Store(http.StatusServiceUnavailable)
	require.Eventually(t, func() bool {
		return !stateOf(t, env, "btn-web").Outputs.InFlight
	}, waitTimeout, 10*time.Millisecond)
	env.Server.KeyDown(status.ActionUUID, "btn-web")

	t.Log("THEN: the button turns red")
	bg = env.Server.WaitForCommand(deck.EventSetBackgroundColor, "btn-web", waitTimeout)
	require.NotNil(t, bg)
	assert.Equal(t, []any{255.0, 0.0, 0.0, 255.0}, bg.Payload["color"])
	require.NotNil(t, testutil.FindTitle(env.GetCommands(), "btn-web", "Offline"))

	state := stateOf(t, env, "btn-web")
	require.NotNil(t, state.Outputs.LastCheck)
	assert.Equal(t, http.StatusServiceUnavailable, state.Outputs.LastCheck.StatusCode)
	assert.True(t, state.Outputs.LastCheck.Succeeded)
	assert.False(t, state.Outputs.LastCheck.Matched)
}

func TestScenario_DefaultsPersistedOnAppear(t *testing.T) {
	env := setupTest(t, nil)

	var code atomic.Int32
	code.Store(http.StatusOK)
	site := endpoint(t, &code)

	env.Server.Appear(status.ActionUUID, "btn-new", map[string]any{settings.KeyTarget: site.URL})

	cmd := env.Server.WaitForCommand(deck.EventSetSettings, "btn-new", waitTimeout)
	require.NotNil(t, cmd, "merged defaults should be written back")

	persisted := env.Server.Settings("btn-new")
	assert.Equal(t, site.URL, persisted[settings.KeyTarget])
	assert.Equal(t, "Status Code", persisted[settings.KeyMatchMode])
	assert.Equal(t, "background_color", persisted[settings.KeyReturnType])
}

func TestScenario_ScriptTextMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell")
	}
	env := setupTest(t, nil)

	raw := buttonSettings("echo 12")
	raw[settings.KeyCheckType] = "Local Script"
	raw[settings.KeyMatchMode] = "Regex"
	raw[settings.KeyMatchValue] = `^\d+$`
	raw[settings.KeyReturnType] = "text"
	raw[settings.KeyTextSuffix] = " ms"
	env.Server.Appear(status.ActionUUID, "btn-script", raw)

	require.Eventually(t, func() bool {
		return testutil.FindTitle(env.GetCommands(), "btn-script", "12 ms") != nil
	}, waitTimeout, 10*time.Millisecond)

	title := testutil.FindTitle(env.GetCommands(), "btn-script", "12 ms")
	assert.Equal(t, 14.0, title.Payload["fontSize"])
	assert.Equal(t, []any{255.0, 255.0, 255.0, 255.0}, title.Payload["color"])

	// Text mode never touches the background
	assert.Empty(t, testutil.FilterCommands(env.GetCommands(), deck.EventSetBackgroundColor, "btn-script"))
}

func TestScenario_EditedSettingsUsedByNextCheck(t *testing.T) {
	env := setupTest(t, nil)

	var code atomic.Int32
	code.Store(http.StatusOK)
	site := endpoint(t, &code)

	raw := buttonSettings(site.URL)
	raw[settings.KeyCheckOnReady] = false
	env.Server.Appear(status.ActionUUID, "btn-edit", raw)

	t.Log("WHEN: the user switches the rule to expect a 404")
	edited := buttonSettings(site.URL)
	edited[settings.KeyMatchValue] = "404"
	env.Server.EditSettings(status.ActionUUID, "btn-edit", edited)

	require.Eventually(t, func() bool {
		return stateOf(t, env, "btn-edit").Inputs.Current[settings.KeyMatchValue] == "404"
	}, waitTimeout, 10*time.Millisecond)

	env.Server.KeyDown(status.ActionUUID, "btn-edit")

	t.Log("THEN: the healthy site no longer matches")
	require.Eventually(t, func() bool {
		return testutil.FindTitle(env.GetCommands(), "btn-edit", "Offline") != nil
	}, waitTimeout, 10*time.Millisecond)
}

func TestScenario_PeriodicChecks(t *testing.T) {
	clk := clock.NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	env := setupTest(t, clk)

	var hits atomic.Int32
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer site.Close()

	raw := buttonSettings(site.URL)
	raw[settings.KeyPeriodicEnabled] = true
	raw[settings.KeyInterval] = 30
	raw[settings.KeyCheckOnReady] = false
	env.Server.Appear(status.ActionUUID, "btn-periodic", raw)

	require.Eventually(t, func() bool {
		_, ok := env.Tracker.Get("btn-periodic")
		return ok
	}, waitTimeout, 10*time.Millisecond)

	t.Log("WHEN: the first tick arrives")
	clk.Advance(time.Second)
	require.Eventually(t, func() bool { return hits.Load() == 1 }, waitTimeout, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return !stateOf(t, env, "btn-periodic").Outputs.InFlight
	}, waitTimeout, 10*time.Millisecond)

	t.Log("WHEN: less than the interval passes")
	clk.Advance(10 * time.Second)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), hits.Load())

	t.Log("WHEN: the interval has elapsed")
	clk.Advance(20 * time.Second)
	require.Eventually(t, func() bool { return hits.Load() == 2 }, waitTimeout, 10*time.Millisecond)
}

func TestScenario_Disappear(t *testing.T) {
	env := setupTest(t, nil)

	raw := buttonSettings("http://127.0.0.1:1")
	raw[settings.KeyCheckOnReady] = false
	env.Server.Appear(status.ActionUUID, "btn-gone", raw)
	require.Eventually(t, func() bool {
		_, ok := env.Tracker.Get("btn-gone")
		return ok
	}, waitTimeout, 10*time.Millisecond)

	env.Server.Disappear(status.ActionUUID, "btn-gone")
	require.Eventually(t, func() bool {
		return len(env.Tracker.Keys()) == 0
	}, waitTimeout, 10*time.Millisecond)
}

func stateOf(t *testing.T, env *testutil.TestEnv, context string) *shadowstate.StatusShadowState {
	t.Helper()
	state, ok := env.Tracker.Get(context)
	require.True(t, ok, "no shadow state for %s", context)
	return state.(*shadowstate.StatusShadowState)
}
