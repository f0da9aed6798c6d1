package settings

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"statusdeck/internal/check"
	"statusdeck/internal/display"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap_EmptyUsesDefaults(t *testing.T) {
	s, warnings, err := FromMap(map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, Defaults(), s)

	assert.Equal(t, check.KindWeb, s.Check.Kind)
	assert.Equal(t, "https://google.com", s.Check.Target)
	assert.Equal(t, 60*time.Second, s.Check.Interval)
	assert.Equal(t, check.MatchStatusCode, s.Check.MatchMode)
	assert.Equal(t, "200", s.Check.MatchValue)
	assert.Equal(t, display.Green, s.Styles.Match.Background)
	assert.Equal(t, display.Red, s.Styles.NoMatch.Background)
	assert.Equal(t, "Online", s.Styles.Match.Label)
	assert.Equal(t, "Offline", s.Styles.NoMatch.Label)
	assert.True(t, s.CheckOnReady)
}

func TestFromMap_HostJSONShapes(t *testing.T) {
	// Settings round-tripped through the host arrive as generic JSON values
	raw := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"check_type": "Local Script",
		"target": " ./status.sh ",
		"interval": 15,
		"periodic_enabled": false,
		"match_mode": "Regex",
		"match_value": "\\d+ms",
		"return_type": "text",
		"text_suffix": " ms",
		"check_on_ready": false,
		"match_bg_color": [1, 2, 3, 4],
		"nomatch_text_color": [10, 20, 30, 40],
		"match_image": "/tmp/up.png"
	}`), &raw))

	s, warnings, err := FromMap(raw)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, check.KindLocalScript, s.Check.Kind)
	assert.Equal(t, "./status.sh", s.Check.Target)
	assert.Equal(t, 15*time.Second, s.Check.Interval)
	assert.False(t, s.Check.PeriodicEnabled)
	assert.Equal(t, check.MatchRegex, s.Check.MatchMode)
	assert.Equal(t, `\d+ms`, s.Check.MatchValue)
	assert.Equal(t, display.ReturnText, s.ReturnType)
	assert.Equal(t, " ms", s.TextSuffix)
	assert.False(t, s.CheckOnReady)
	assert.Equal(t, display.RGBA{1, 2, 3, 4}, s.Styles.Match.Background)
	assert.Equal(t, display.RGBA{10, 20, 30, 40}, s.Styles.NoMatch.TextColor)
	assert.Equal(t, "/tmp/up.png", s.Styles.Match.ImagePath)
}

func TestFromMap_UnknownEnums(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want error
	}{
		{name: "check type", raw: map[string]any{KeyCheckType: "Carrier Pigeon"}, want: ErrUnknownCheckType},
		{name: "match mode", raw: map[string]any{KeyMatchMode: "Fuzzy"}, want: ErrUnknownMatchMode},
		{name: "return type", raw: map[string]any{KeyReturnType: "sound"}, want: ErrUnknownReturnType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := FromMap(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestFromMap_MalformedValuesDegrade(t *testing.T) {
	s, warnings, err := FromMap(map[string]any{
		KeyHeaders:         "{not json",
		KeyInterval:        -5,
		"match_bg_color":   []any{"red"},
		"nomatch_bg_color": []any{256.0, 0.0, 0.0, 255.0},
		"match_text_color": "white",
	})
	require.NoError(t, err)
	assert.Len(t, warnings, 2)

	assert.Nil(t, s.Check.Headers)
	assert.Equal(t, time.Duration(0), s.Check.Interval)
	assert.False(t, s.Check.Periodic())
	assert.Equal(t, display.Black, s.Styles.Match.Background)
	assert.Equal(t, display.Black, s.Styles.NoMatch.Background)
	assert.Equal(t, display.White, s.Styles.Match.TextColor)
}

func TestFromMap_IntervalOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"overflows duration", 1e10},
		{"past int64 as float", 1e19},
		{"past int64 as uint64", uint64(math.MaxUint64)},
		{"overflows duration as int", int(maxIntervalSeconds + 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, warnings, err := FromMap(map[string]any{
				KeyInterval:        tt.value,
				KeyPeriodicEnabled: true,
			})
			require.NoError(t, err)
			require.Len(t, warnings, 1)
			assert.Contains(t, warnings[0], "periodic checks disabled")
			assert.Equal(t, time.Duration(0), s.Check.Interval)
			assert.False(t, s.Check.Periodic())
			assert.Equal(t, 0, s.ToMap()[KeyInterval])
		})
	}

	s, warnings, err := FromMap(map[string]any{KeyInterval: float64(maxIntervalSeconds)})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.True(t, s.Check.Interval > 0)
}

func TestParseHeaders(t *testing.T) {
	h, err := ParseHeaders(`{"Accept": "application/json", "X-Token": "abc"}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Accept": "application/json", "X-Token": "abc"}, h)

	h, err = ParseHeaders("")
	require.NoError(t, err)
	assert.Nil(t, h)

	h, err = ParseHeaders(map[string]any{"Accept": "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Accept": "text/plain"}, h)

	_, err = ParseHeaders(map[string]any{"Retries": 3})
	assert.ErrorIs(t, err, ErrInvalidHeaders)

	_, err = ParseHeaders(`["a"]`)
	assert.ErrorIs(t, err, ErrInvalidHeaders)
}

func TestToMap_RoundTrip(t *testing.T) {
	original := Defaults()
	original.Check.Kind = check.KindLocalScript
	original.Check.Target = "systemctl is-active nginx"
	original.Check.Headers = map[string]string{"X-Env": "prod"}
	original.Check.Username = "ops"
	original.Check.MatchMode = check.MatchEquals
	original.Check.MatchValue = "active"
	original.ReturnType = display.ReturnImage
	original.Styles.NoMatch.ImagePath = "/icons/down.png"

	// Pass through JSON like the host does
	data, err := json.Marshal(original.ToMap())
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	parsed, warnings, err := FromMap(raw)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, original, parsed)
}

func TestMergeDefaults(t *testing.T) {
	merged, added := MergeDefaults(map[string]any{KeyTarget: "https://example.com"})
	assert.True(t, added)
	assert.Equal(t, "https://example.com", merged[KeyTarget])
	assert.Equal(t, "Status Code", merged[KeyMatchMode])
	assert.Equal(t, "Online", merged["match_label"])

	_, added = MergeDefaults(merged)
	assert.False(t, added, "a complete map needs no defaults")
}
