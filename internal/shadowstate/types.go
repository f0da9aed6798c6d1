package shadowstate

import "time"

// PluginShadowState is the interface that all shadow states must implement
type PluginShadowState interface {
	GetCurrentInputs() map[string]interface{}
	GetLastActionInputs() map[string]interface{}
	GetOutputs() interface{}
	GetMetadata() StateMetadata
}

// StateMetadata contains metadata about the shadow state
type StateMetadata struct {
	LastUpdated time.Time `json:"lastUpdated"`
	PluginName  string    `json:"pluginName"`
}

// StatusShadowState captures what a status button was configured with and
// what its most recent check did.
type StatusShadowState struct {
	Plugin   string        `json:"plugin"`
	Button   string        `json:"button"`
	Inputs   StatusInputs  `json:"inputs"`
	Outputs  StatusOutputs `json:"outputs"`
	Metadata StateMetadata `json:"metadata"`
}

// StatusInputs tracks the current settings and the settings used by the last check
type StatusInputs struct {
	Current      map[string]interface{} `json:"current"`
	AtLastAction map[string]interface{} `json:"atLastAction"`
}

// StatusOutputs tracks the results of checks
type StatusOutputs struct {
	LastCheck       *CheckRecord `json:"lastCheck,omitempty"`
	InFlight        bool         `json:"inFlight"`
	ChecksRun       int          `json:"checksRun"`
	TriggersDropped int          `json:"triggersDropped"`
}

// CheckRecord describes one completed check
type CheckRecord struct {
	ID         string        `json:"id"`
	Trigger    string        `json:"trigger"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"durationNs"`
	Output     string        `json:"output"`
	StatusCode int           `json:"statusCode"`
	Succeeded  bool          `json:"succeeded"`
	Matched    bool          `json:"matched"`
	ReturnType string        `json:"returnType"`
}

// GetCurrentInputs implements PluginShadowState
func (s *StatusShadowState) GetCurrentInputs() map[string]interface{} {
	return s.Inputs.Current
}

// GetLastActionInputs implements PluginShadowState
func (s *StatusShadowState) GetLastActionInputs() map[string]interface{} {
	return s.Inputs.AtLastAction
}

// GetOutputs implements PluginShadowState
func (s *StatusShadowState) GetOutputs() interface{} {
	return s.Outputs
}

// GetMetadata implements PluginShadowState
func (s *StatusShadowState) GetMetadata() StateMetadata {
	return s.Metadata
}

// NewStatusShadowState creates an empty shadow state for one button
func NewStatusShadowState(button string) *StatusShadowState {
	return &StatusShadowState{
		Plugin: "status",
		Button: button,
		Inputs: StatusInputs{
			Current:      make(map[string]interface{}),
			AtLastAction: make(map[string]interface{}),
		},
		Metadata: StateMetadata{
			LastUpdated: time.Now(),
			PluginName:  "status",
		},
	}
}
