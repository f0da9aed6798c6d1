package deck

import (
	"encoding/json"

	"statusdeck/internal/display"
)

// Event names exchanged with the deck host.
const (
	EventRegisterPlugin     = "registerPlugin"
	EventRegistered         = "registered"
	EventRegistrationFailed = "registrationFailed"

	EventWillAppear         = "willAppear"
	EventWillDisappear      = "willDisappear"
	EventKeyDown            = "keyDown"
	EventDialDown           = "dialDown"
	EventTouchTap           = "touchTap"
	EventDidReceiveSettings = "didReceiveSettings"

	EventSetBackgroundColor = "setBackgroundColor"
	EventSetTitle           = "setTitle"
	EventSetImage           = "setImage"
	EventSetSettings        = "setSettings"
	EventGetSettings        = "getSettings"
)

// Message is the envelope of every frame to and from the host
type Message struct {
	ID      int             `json:"id,omitempty"`
	Event   string          `json:"event"`
	UUID    string          `json:"uuid,omitempty"`
	Action  string          `json:"action,omitempty"`
	Context string          `json:"context,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents an error reply from the host
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SettingsPayload carries a button's persisted settings
type SettingsPayload struct {
	Settings map[string]any `json:"settings"`
}

// BackgroundPayload is sent with setBackgroundColor
type BackgroundPayload struct {
	Color display.RGBA `json:"color"`
}

// TitlePayload is sent with setTitle
type TitlePayload struct {
	Title    string       `json:"title"`
	Color    display.RGBA `json:"color"`
	FontSize int          `json:"fontSize"`
}

// ImagePayload is sent with setImage. A nil path clears the image.
type ImagePayload struct {
	Path *string `json:"path"`
}

// Event is an inbound host event for one button instance
type Event struct {
	Type    string
	Action  string
	Context string
	// Settings is set for willAppear and didReceiveSettings
	Settings map[string]any
}

// EventHandler is called for every event addressed to a subscribed action
type EventHandler func(Event)

// Subscription represents an active event subscription
type Subscription interface {
	Unsubscribe() error
}

// subscription implements Subscription interface
type subscription struct {
	action string
	subID  int
	host   interface {
		unsubscribe(action string, subID int) error
	}
}

func (s *subscription) Unsubscribe() error {
	return s.host.unsubscribe(s.action, s.subID)
}
