package plugin

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Priority constants for plugin registration.
// Higher priority values override lower priority plugins with the same name.
const (
	// PriorityDefault is the default priority for plugins.
	PriorityDefault = 0

	// PriorityOverride is used by private builds to replace a public plugin
	// with the same name.
	PriorityOverride = 100
)

// DefaultOrder is the startup order of plugins that do not set one.
const DefaultOrder = 50

// PluginInfo contains metadata about a registered plugin.
type PluginInfo struct {
	// Name is the unique identifier for the plugin.
	// Plugins with the same name will override based on priority.
	Name string

	// Description is a human-readable description of the plugin.
	Description string

	// Actions lists the deck host action UUIDs the plugin serves.
	Actions []string

	// Priority determines which plugin wins when multiple plugins
	// register with the same name. Higher priority wins.
	Priority int

	// Factory creates new instances of the plugin.
	Factory Factory

	// Order specifies the startup order. Lower values start first.
	Order int
}

// Registry manages plugin registration and instantiation.
// It supports priority-based override, allowing private implementations
// to replace public ones at compile time through import ordering.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]PluginInfo
	order   []string
	logger  *zap.Logger
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]PluginInfo),
		order:   make([]string, 0),
		logger:  zap.NewNop(),
	}
}

// SetLogger sets the logger used for registration messages.
// Registrations made from init() run before any logger exists, so they
// are only visible once one is set and Describe is called.
func (r *Registry) SetLogger(logger *zap.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger.Named("plugin")
}

// Register adds a plugin to the registry.
// If a plugin with the same name already exists, the one with higher
// priority wins. If priorities are equal, the later registration wins.
// Two different plugins may not claim the same action.
func (r *Registry) Register(info PluginInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info.Name == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}

	if info.Factory == nil {
		return fmt.Errorf("plugin %s: factory cannot be nil", info.Name)
	}

	if info.Order == 0 {
		info.Order = DefaultOrder
	}

	for _, action := range info.Actions {
		for name, other := range r.plugins {
			if name == info.Name {
				continue
			}
			for _, claimed := range other.Actions {
				if claimed == action {
					return fmt.Errorf("plugin %s: action %s already served by %s", info.Name, action, name)
				}
			}
		}
	}

	existing, exists := r.plugins[info.Name]
	if exists {
		if info.Priority < existing.Priority {
			r.logger.Info("Plugin registration skipped",
				zap.String("plugin", info.Name),
				zap.Int("priority", info.Priority),
				zap.Int("existing_priority", existing.Priority))
			return nil
		}

		r.logger.Info("Plugin being overridden",
			zap.String("plugin", info.Name),
			zap.Int("old_priority", existing.Priority),
			zap.Int("new_priority", info.Priority))
	}

	r.plugins[info.Name] = info

	if !exists {
		r.order = append(r.order, info.Name)
	}

	r.logger.Debug("Plugin registered",
		zap.String("plugin", info.Name),
		zap.Int("priority", info.Priority),
		zap.Int("order", info.Order),
		zap.Strings("actions", info.Actions))

	return nil
}

// Get returns the plugin info for a given name, or nil if not found.
func (r *Registry) Get(name string) *PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.plugins[name]
	if !ok {
		return nil
	}
	return &info
}

// ForAction returns the plugin serving a host action, or nil.
func (r *Registry) ForAction(action string) *PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		info := r.plugins[name]
		for _, a := range info.Actions {
			if a == action {
				return &info
			}
		}
	}
	return nil
}

// List returns all registered plugins sorted by their startup order.
func (r *Registry) List() []PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]PluginInfo, 0, len(r.plugins))
	for _, name := range r.order {
		result = append(result, r.plugins[name])
	}

	// Sort by order (lower first), then by name for stability
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Order != result[j].Order {
			return result[i].Order < result[j].Order
		}
		return result[i].Name < result[j].Name
	})

	return result
}

// Describe logs every registered plugin at Info level.
func (r *Registry) Describe() {
	r.mu.RLock()
	logger := r.logger
	r.mu.RUnlock()

	for _, info := range r.List() {
		logger.Info("Plugin available",
			zap.String("plugin", info.Name),
			zap.String("description", info.Description),
			zap.Strings("actions", info.Actions),
			zap.Int("order", info.Order))
	}
}

// CreateAll instantiates all registered plugins using the provided context.
// Plugins are created in order (by Order field), so dependencies should
// have lower Order values.
func (r *Registry) CreateAll(ctx *Context) ([]Plugin, error) {
	plugins := r.List()
	result := make([]Plugin, 0, len(plugins))

	for _, info := range plugins {
		plugin, err := info.Factory(ctx)
		if err != nil {
			// Clean up already-created plugins on error
			StopAll(result)
			return nil, fmt.Errorf("failed to create plugin %s: %w", info.Name, err)
		}
		result = append(result, plugin)
	}

	return result, nil
}

// StartAll starts plugins in order. If one fails, the ones already started
// are stopped in reverse order.
func StartAll(plugins []Plugin) error {
	for i, p := range plugins {
		if err := p.Start(); err != nil {
			StopAll(plugins[:i])
			return fmt.Errorf("failed to start plugin %s: %w", p.Name(), err)
		}
	}
	return nil
}

// StopAll stops plugins in reverse order.
func StopAll(plugins []Plugin) {
	for i := len(plugins) - 1; i >= 0; i-- {
		plugins[i].Stop()
	}
}

// Names returns the names of all registered plugins.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, len(r.order))
	copy(result, r.order)
	return result
}

// Clear removes all registered plugins. Useful for testing.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.plugins = make(map[string]PluginInfo)
	r.order = make([]string, 0)
}

// Global registry instance
var globalRegistry = NewRegistry()

// Register adds a plugin to the global registry.
// This is typically called from init() functions in plugin packages.
func Register(info PluginInfo) error {
	return globalRegistry.Register(info)
}

// SetLogger sets the logger of the global registry.
func SetLogger(logger *zap.Logger) {
	globalRegistry.SetLogger(logger)
}

// Get returns plugin info from the global registry.
func Get(name string) *PluginInfo {
	return globalRegistry.Get(name)
}

// ForAction returns the plugin serving action from the global registry.
func ForAction(action string) *PluginInfo {
	return globalRegistry.ForAction(action)
}

// List returns all plugins from the global registry.
func List() []PluginInfo {
	return globalRegistry.List()
}

// Describe logs all plugins of the global registry.
func Describe() {
	globalRegistry.Describe()
}

// CreateAll creates all plugins from the global registry.
func CreateAll(ctx *Context) ([]Plugin, error) {
	return globalRegistry.CreateAll(ctx)
}

// Names returns all plugin names from the global registry.
func Names() []string {
	return globalRegistry.Names()
}

// ClearGlobal clears the global registry. Useful for testing.
func ClearGlobal() {
	globalRegistry.Clear()
}
