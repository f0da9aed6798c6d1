// Package plugin provides the plugin system interfaces and registry for
// deck actions. Plugins can register themselves with the global
// registry using init() functions, allowing for compile-time plugin selection
// and override mechanisms for private implementations.
package plugin

// Plugin is the core interface that all plugins must implement.
// Each plugin serves one or more deck host actions.
type Plugin interface {
	// Name returns the unique identifier for this plugin.
	// This name is used for registration and logging.
	Name() string

	// Start begins the plugin's operation.
	// - Subscribes to its host actions
	// - Starts any background goroutines
	// - Returns error if initialization fails
	Start() error

	// Stop gracefully shuts down the plugin.
	// - Unsubscribes from host actions
	// - Waits for in-flight work
	// - Stops any background goroutines
	// - Releases resources
	Stop()
}

// Refresher is an optional interface for plugins that can re-run every
// check on demand, for example after the host connection is restored.
type Refresher interface {
	// Refresh triggers a check on every button the plugin owns.
	// Buttons with a check already in flight are skipped.
	Refresh() error
}

// Triggerer is an optional interface for plugins whose buttons can be fired
// from outside the host, such as the HTTP API.
type Triggerer interface {
	// Trigger runs a check for one button and reports whether it started.
	Trigger(context string) (bool, error)
}

// Factory is a function that creates a new plugin instance given a context.
// Factories are registered with the global registry and called during
// application startup to instantiate plugins.
type Factory func(ctx *Context) (Plugin, error)
