// Package settings converts between the host's persisted key/value settings
// and the immutable Settings value used by a status button.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"statusdeck/internal/check"
	"statusdeck/internal/display"
)

// Persisted keys.
const (
	KeyCheckType       = "check_type"
	KeyTarget          = "target"
	KeyHTTPMethod      = "http_method"
	KeyHeaders         = "headers"
	KeyUsername        = "username"
	KeyPassword        = "password"
	KeyInterval        = "interval"
	KeyPeriodicEnabled = "periodic_enabled"
	KeyMatchMode       = "match_mode"
	KeyMatchValue      = "match_value"
	KeyReturnType      = "return_type"
	KeyTextSuffix      = "text_suffix"
	KeyCheckOnReady    = "check_on_ready"

	// maxIntervalSeconds is the largest interval a time.Duration can hold
	maxIntervalSeconds = math.MaxInt64 / int64(time.Second)

	matchPrefix   = "match_"
	noMatchPrefix = "nomatch_"
)

var (
	ErrUnknownCheckType  = errors.New("unknown check type")
	ErrUnknownMatchMode  = errors.New("unknown match mode")
	ErrUnknownReturnType = errors.New("unknown return type")
	ErrInvalidHeaders    = errors.New("headers must be a JSON object of strings")
)

// Settings is everything a status button needs. Treat it as immutable:
// build a new value with FromMap or by copying instead of mutating.
type Settings struct {
	Check        check.Config
	Styles       display.Styles
	ReturnType   display.ReturnType
	TextSuffix   string
	CheckOnReady bool
}

// Display returns the dispatcher options for these settings.
func (s Settings) Display() display.Options {
	return display.Options{ReturnType: s.ReturnType, TextSuffix: s.TextSuffix}
}

// Defaults returns the settings of a freshly placed button.
func Defaults() Settings {
	return Settings{
		Check: check.Config{
			Kind:            check.KindWeb,
			Target:          "https://google.com",
			Method:          "GET",
			Interval:        60 * time.Second,
			PeriodicEnabled: true,
			MatchMode:       check.MatchStatusCode,
			MatchValue:      "200",
		},
		Styles: display.Styles{
			Match: display.Style{
				Background: display.Green,
				TextColor:  display.White,
				Label:      "Online",
			},
			NoMatch: display.Style{
				Background: display.Red,
				TextColor:  display.White,
				Label:      "Offline",
			},
		},
		ReturnType:   display.ReturnBackground,
		CheckOnReady: true,
	}
}

// DefaultMap returns Defaults in persisted form.
func DefaultMap() map[string]any {
	return Defaults().ToMap()
}

// MergeDefaults returns a copy of raw with every missing key filled from the
// defaults, and whether anything was added.
func MergeDefaults(raw map[string]any) (map[string]any, bool) {
	merged := make(map[string]any, len(raw))
	for k, v := range raw {
		merged[k] = v
	}

	added := false
	for k, v := range DefaultMap() {
		if _, ok := merged[k]; !ok {
			merged[k] = v
			added = true
		}
	}
	return merged, added
}

// FromMap builds Settings from a persisted map, starting from the defaults.
// Unknown enum strings are errors; malformed colors fall back to black or
// white and malformed headers are reported through warnings.
func FromMap(raw map[string]any) (Settings, []string, error) {
	s := Defaults()
	var warnings []string

	if v, ok := raw[KeyCheckType]; ok {
		kind, err := ParseKind(asString(v))
		if err != nil {
			return Settings{}, nil, err
		}
		s.Check.Kind = kind
	}
	if v, ok := raw[KeyTarget]; ok {
		s.Check.Target = strings.TrimSpace(asString(v))
	}
	if v, ok := raw[KeyHTTPMethod]; ok {
		if m := strings.ToUpper(strings.TrimSpace(asString(v))); m != "" {
			s.Check.Method = m
		}
	}
	if v, ok := raw[KeyHeaders]; ok {
		headers, err := ParseHeaders(v)
		if err != nil {
			warnings = append(warnings, err.Error())
		} else {
			s.Check.Headers = headers
		}
	}
	if v, ok := raw[KeyUsername]; ok {
		s.Check.Username = asString(v)
	}
	if v, ok := raw[KeyPassword]; ok {
		s.Check.Password = asString(v)
	}
	if v, ok := raw[KeyInterval]; ok {
		n, ok := asInt(v)
		if !ok || n < 0 {
			warnings = append(warnings, fmt.Sprintf("interval %v is not a non-negative integer, periodic checks disabled", v))
			n = 0
		} else if int64(n) > maxIntervalSeconds {
			warnings = append(warnings, fmt.Sprintf("interval %v exceeds %d seconds, periodic checks disabled", v, maxIntervalSeconds))
			n = 0
		}
		s.Check.Interval = time.Duration(n) * time.Second
	}
	if v, ok := raw[KeyPeriodicEnabled]; ok {
		s.Check.PeriodicEnabled = asBool(v)
	}
	if v, ok := raw[KeyMatchMode]; ok {
		mode, err := ParseMatchMode(asString(v))
		if err != nil {
			return Settings{}, nil, err
		}
		s.Check.MatchMode = mode
	}
	if v, ok := raw[KeyMatchValue]; ok {
		s.Check.MatchValue = asString(v)
	}
	if v, ok := raw[KeyReturnType]; ok {
		rt, err := ParseReturnType(asString(v))
		if err != nil {
			return Settings{}, nil, err
		}
		s.ReturnType = rt
	}
	if v, ok := raw[KeyTextSuffix]; ok {
		s.TextSuffix = asString(v)
	}
	if v, ok := raw[KeyCheckOnReady]; ok {
		s.CheckOnReady = asBool(v)
	}

	s.Styles.Match = styleFromMap(raw, matchPrefix, s.Styles.Match)
	s.Styles.NoMatch = styleFromMap(raw, noMatchPrefix, s.Styles.NoMatch)

	return s, warnings, nil
}

// ToMap converts Settings to the persisted form.
func (s Settings) ToMap() map[string]any {
	headers := ""
	if len(s.Check.Headers) > 0 {
		data, _ := json.Marshal(s.Check.Headers)
		headers = string(data)
	}

	m := map[string]any{
		KeyCheckType:       s.Check.Kind.String(),
		KeyTarget:          s.Check.Target,
		KeyHTTPMethod:      s.Check.Method,
		KeyHeaders:         headers,
		KeyUsername:        s.Check.Username,
		KeyPassword:        s.Check.Password,
		KeyInterval:        int(s.Check.Interval / time.Second),
		KeyPeriodicEnabled: s.Check.PeriodicEnabled,
		KeyMatchMode:       s.Check.MatchMode.String(),
		KeyMatchValue:      s.Check.MatchValue,
		KeyReturnType:      s.ReturnType.String(),
		KeyTextSuffix:      s.TextSuffix,
		KeyCheckOnReady:    s.CheckOnReady,
	}
	styleToMap(m, matchPrefix, s.Styles.Match)
	styleToMap(m, noMatchPrefix, s.Styles.NoMatch)
	return m
}

// ParseKind accepts the persisted check type names.
func ParseKind(s string) (check.Kind, error) {
	switch strings.TrimSpace(s) {
	case "API/Website", "web":
		return check.KindWeb, nil
	case "Local Script", "script":
		return check.KindLocalScript, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCheckType, s)
}

// ParseMatchMode accepts the persisted match mode names.
func ParseMatchMode(s string) (check.MatchMode, error) {
	switch strings.TrimSpace(s) {
	case "Status Code":
		return check.MatchStatusCode, nil
	case "Contains":
		return check.MatchContains, nil
	case "Equals":
		return check.MatchEquals, nil
	case "Success":
		return check.MatchSuccess, nil
	case "Regex":
		return check.MatchRegex, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMatchMode, s)
}

// ParseReturnType accepts the persisted return type names.
func ParseReturnType(s string) (display.ReturnType, error) {
	switch strings.TrimSpace(s) {
	case "background_color":
		return display.ReturnBackground, nil
	case "text":
		return display.ReturnText, nil
	case "image":
		return display.ReturnImage, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownReturnType, s)
}

// ParseHeaders accepts either a JSON-encoded object string (the persisted
// form) or an already decoded map. An empty string means no headers.
func ParseHeaders(v any) (map[string]string, error) {
	switch h := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(h) == "" {
			return nil, nil
		}
		var headers map[string]string
		if err := json.Unmarshal([]byte(h), &headers); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidHeaders, err)
		}
		return headers, nil
	case map[string]string:
		return h, nil
	case map[string]any:
		headers := make(map[string]string, len(h))
		for k, val := range h {
			s, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("%w: header %q is %T", ErrInvalidHeaders, k, val)
			}
			headers[k] = s
		}
		return headers, nil
	}
	return nil, fmt.Errorf("%w: got %T", ErrInvalidHeaders, v)
}

// ParseColor reads a 4-element channel list. Anything else yields fallback.
func ParseColor(v any, fallback display.RGBA) display.RGBA {
	var items []any
	switch c := v.(type) {
	case []any:
		items = c
	case []int:
		for _, n := range c {
			items = append(items, n)
		}
	case display.RGBA:
		if c.Valid() {
			return c
		}
		return fallback
	default:
		return fallback
	}

	if len(items) != 4 {
		return fallback
	}
	var color display.RGBA
	for i, item := range items {
		n, ok := asInt(item)
		if !ok {
			return fallback
		}
		color[i] = n
	}
	if !color.Valid() {
		return fallback
	}
	return color
}

func styleFromMap(raw map[string]any, prefix string, base display.Style) display.Style {
	s := base
	if v, ok := raw[prefix+"bg_color"]; ok {
		s.Background = ParseColor(v, display.Black)
	}
	if v, ok := raw[prefix+"text_color"]; ok {
		s.TextColor = ParseColor(v, display.White)
	}
	if v, ok := raw[prefix+"label"]; ok {
		s.Label = asString(v)
	}
	if v, ok := raw[prefix+"image"]; ok {
		s.ImagePath = strings.TrimSpace(asString(v))
	}
	return s
}

func styleToMap(m map[string]any, prefix string, s display.Style) {
	m[prefix+"bg_color"] = []int{s.Background[0], s.Background[1], s.Background[2], s.Background[3]}
	m[prefix+"text_color"] = []int{s.TextColor[0], s.TextColor[1], s.TextColor[2], s.TextColor[3]}
	m[prefix+"label"] = s.Label
	m[prefix+"image"] = s.ImagePath
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	}
	return fmt.Sprint(v)
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(b, "true") || b == "1"
	}
	n, ok := asInt(v)
	return ok && n != 0
}

// asInt accepts the integer shapes produced by JSON and YAML decoders.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		if n > math.MaxInt || n < math.MinInt {
			return 0, false
		}
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float64:
		if n != math.Trunc(n) || n < float64(math.MinInt) || n >= -float64(math.MinInt) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return asInt(i)
	}
	return 0, false
}
