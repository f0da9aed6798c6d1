package plugin

import (
	"statusdeck/internal/clock"
	"statusdeck/internal/deck"
	"statusdeck/internal/shadowstate"

	"go.uber.org/zap"
)

// Context provides dependencies to plugins during initialization.
// It wraps the core services needed by all plugins in a single struct
// for cleaner constructor signatures.
type Context struct {
	// Host is the deck host connection. Nil when running headless, in
	// which case plugins render to the log.
	Host deck.Host

	// Logger is a structured logger for the plugin to use.
	// Plugins should use logger.Named("pluginname") for namespacing.
	Logger *zap.Logger

	// Clock drives tick scheduling. Tests substitute a MockClock.
	Clock clock.Clock

	// Tracker collects shadow state for the HTTP API.
	Tracker *shadowstate.Tracker

	// ConfigDir is the path to the configuration directory.
	// Plugins that need configuration files can find them here.
	ConfigDir string
}

// NewContext creates a new plugin context with all required dependencies.
func NewContext(
	host deck.Host,
	logger *zap.Logger,
	clk clock.Clock,
	tracker *shadowstate.Tracker,
	configDir string,
) *Context {
	return &Context{
		Host:      host,
		Logger:    logger,
		Clock:     clk,
		Tracker:   tracker,
		ConfigDir: configDir,
	}
}
