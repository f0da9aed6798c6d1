package check

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		mode   MatchMode
		value  string
		want   bool
	}{
		{
			name:   "status code matches",
			result: Result{StatusCode: 200, Succeeded: true},
			mode:   MatchStatusCode,
			value:  "200",
			want:   true,
		},
		{
			name:   "status code differs",
			result: Result{StatusCode: 404, Succeeded: true},
			mode:   MatchStatusCode,
			value:  "200",
			want:   false,
		},
		{
			name:   "failed check reports -1",
			result: Result{StatusCode: -1},
			mode:   MatchStatusCode,
			value:  "-1",
			want:   true,
		},
		{
			name:   "contains substring",
			result: Result{Output: "system ok"},
			mode:   MatchContains,
			value:  "ok",
			want:   true,
		},
		{
			name:   "contains missing substring",
			result: Result{Output: "system degraded"},
			mode:   MatchContains,
			value:  "ok",
			want:   false,
		},
		{
			name:   "equals exact",
			result: Result{Output: "ready"},
			mode:   MatchEquals,
			value:  "ready",
			want:   true,
		},
		{
			name:   "equals is not a prefix match",
			result: Result{Output: "ready!"},
			mode:   MatchEquals,
			value:  "ready",
			want:   false,
		},
		{
			name:   "success ignores value",
			result: Result{StatusCode: 500, Succeeded: true},
			mode:   MatchSuccess,
			value:  "anything",
			want:   true,
		},
		{
			name:   "success false on failed check",
			result: Result{StatusCode: -1, Output: "dial tcp: refused"},
			mode:   MatchSuccess,
			want:   false,
		},
		{
			name:   "regex finds match anywhere",
			result: Result{Output: "latency: 12ms"},
			mode:   MatchRegex,
			value:  `\d+ms`,
			want:   true,
		},
		{
			name:   "regex no match",
			result: Result{Output: "latency: unknown"},
			mode:   MatchRegex,
			value:  `\d+ms`,
			want:   false,
		},
		{
			name:   "malformed regex is a non-match",
			result: Result{Output: "("},
			mode:   MatchRegex,
			value:  "(",
			want:   false,
		},
		{
			name:   "unknown mode never matches",
			result: Result{Output: "x", Succeeded: true},
			mode:   MatchMode(42),
			value:  "x",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.result, tt.mode, tt.value))
		})
	}
}

func TestEvaluate_RegexCacheKeepsResultsStable(t *testing.T) {
	res := Result{Output: "build 42 passed"}
	for i := 0; i < 3; i++ {
		assert.True(t, Evaluate(res, MatchRegex, `build \d+ passed`))
		assert.False(t, Evaluate(res, MatchRegex, `[`))
	}
}

func TestConfig_Periodic(t *testing.T) {
	assert.False(t, Config{PeriodicEnabled: true}.Periodic(), "zero interval disables ticking")
	assert.False(t, Config{Interval: time.Minute}.Periodic(), "switch off disables ticking")
	assert.True(t, Config{PeriodicEnabled: true, Interval: time.Minute}.Periodic())
}
