package shadowstate

import (
	"sort"
	"sync"
	"time"
)

// Tracker exposes the shadow state of every button. Each button registers a
// provider that builds a fresh snapshot on every read.
type Tracker struct {
	mu        sync.RWMutex
	providers map[string]func() PluginShadowState
}

// NewTracker creates a new shadow state tracker
func NewTracker() *Tracker {
	return &Tracker{
		providers: make(map[string]func() PluginShadowState),
	}
}

// RegisterProvider registers a function that builds a shadow state on demand
func (t *Tracker) RegisterProvider(key string, provider func() PluginShadowState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.providers[key] = provider
}

// Unregister removes the provider for key
func (t *Tracker) Unregister(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.providers, key)
}

// Get builds the shadow state registered under key
func (t *Tracker) Get(key string) (PluginShadowState, bool) {
	t.mu.RLock()
	provider, ok := t.providers[key]
	t.mu.RUnlock()

	if !ok {
		return nil, false
	}
	return provider(), true
}

// All builds every shadow state
func (t *Tracker) All() map[string]PluginShadowState {
	t.mu.RLock()
	providers := make(map[string]func() PluginShadowState, len(t.providers))
	for k, provider := range t.providers {
		providers[k] = provider
	}
	t.mu.RUnlock()

	states := make(map[string]PluginShadowState, len(providers))
	for k, provider := range providers {
		states[k] = provider()
	}
	return states
}

// Keys returns all registered keys in sorted order
func (t *Tracker) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([]string, 0, len(t.providers))
	for k := range t.providers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StatusTracker manages shadow state for a single status button
type StatusTracker struct {
	mu    sync.RWMutex
	state *StatusShadowState
}

// NewStatusTracker creates a tracker for the named button
func NewStatusTracker(button string) *StatusTracker {
	return &StatusTracker{state: NewStatusShadowState(button)}
}

// UpdateCurrentInputs replaces the current settings snapshot
func (st *StatusTracker) UpdateCurrentInputs(inputs map[string]interface{}) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.state.Inputs.Current = copyMap(inputs)
	st.state.Metadata.LastUpdated = time.Now()
}

// RecordCheckStarted captures the current settings as the inputs of the check
func (st *StatusTracker) RecordCheckStarted() {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.state.Inputs.AtLastAction = copyMap(st.state.Inputs.Current)
	st.state.Outputs.InFlight = true
	st.state.Metadata.LastUpdated = time.Now()
}

// RecordCheck stores a completed check
func (st *StatusTracker) RecordCheck(record CheckRecord) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.state.Outputs.LastCheck = &record
	st.state.Outputs.InFlight = false
	st.state.Outputs.ChecksRun++
	st.state.Metadata.LastUpdated = time.Now()
}

// RecordDroppedTrigger counts a trigger that arrived while a check was running
func (st *StatusTracker) RecordDroppedTrigger() {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.state.Outputs.TriggersDropped++
	st.state.Metadata.LastUpdated = time.Now()
}

// GetState returns a deep copy of the current shadow state
func (st *StatusTracker) GetState() *StatusShadowState {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := *st.state
	out.Inputs.Current = copyMap(st.state.Inputs.Current)
	out.Inputs.AtLastAction = copyMap(st.state.Inputs.AtLastAction)
	if st.state.Outputs.LastCheck != nil {
		record := *st.state.Outputs.LastCheck
		out.Outputs.LastCheck = &record
	}
	return &out
}

func copyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
