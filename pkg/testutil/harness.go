// Package testutil provides testing utilities for deck plugins.
// This file provides a TestEnv for integration testing plugins end to end.
package testutil

import (
	"fmt"

	"statusdeck/internal/clock"
	"statusdeck/internal/deck"
	"statusdeck/internal/shadowstate"
	"statusdeck/pkg/plugin"

	"go.uber.org/zap"
)

// TestPluginUUID is the plugin UUID the mock host accepts in a TestEnv
const TestPluginUUID = "statusdeck-test"

// TestEnv provides a complete test environment for plugin integration tests:
// a mock deck host, a connected client and the plugin context to build
// plugins with.
type TestEnv struct {
	Server  *MockDeckServer
	Host    deck.Host
	Tracker *shadowstate.Tracker
	Logger  *zap.Logger

	plugins []plugin.Plugin
	client  *deck.Client
}

// NewTestEnv creates a test environment with a running mock host and a
// connected client.
//
// Example usage:
//
//	env, err := testutil.NewTestEnv()
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer env.Cleanup()
//
//	p, err := env.StartPlugin("status", clk)
func NewTestEnv() (*TestEnv, error) {
	logger := zap.NewNop()

	server := NewMockDeckServer("127.0.0.1:0", TestPluginUUID)
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("failed to start mock server: %w", err)
	}

	client := deck.NewClient(server.URL(), TestPluginUUID, logger)
	if err := client.Connect(); err != nil {
		server.Stop()
		return nil, fmt.Errorf("failed to connect client: %w", err)
	}

	return &TestEnv{
		Server:  server,
		Host:    client,
		Tracker: shadowstate.NewTracker(),
		Logger:  logger,
		client:  client,
	}, nil
}

// StartPlugin creates and starts a registered plugin against the mock host.
// A nil clock uses the real clock.
func (e *TestEnv) StartPlugin(name string, clk clock.Clock) (plugin.Plugin, error) {
	info := plugin.Get(name)
	if info == nil {
		return nil, fmt.Errorf("plugin %s is not registered", name)
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}

	p, err := info.Factory(plugin.NewContext(e.Host, e.Logger, clk, e.Tracker, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create plugin %s: %w", name, err)
	}
	if err := p.Start(); err != nil {
		return nil, fmt.Errorf("failed to start plugin %s: %w", name, err)
	}
	e.plugins = append(e.plugins, p)
	return p, nil
}

// Cleanup stops all components in the correct order.
// Always call this in a defer after creating the TestEnv.
func (e *TestEnv) Cleanup() {
	plugin.StopAll(e.plugins)
	e.plugins = nil
	if e.client != nil {
		e.client.Disconnect()
	}
	if e.Server != nil {
		e.Server.Stop()
	}
}

// GetCommands returns all commands the plugins sent to the mock host.
func (e *TestEnv) GetCommands() []Command {
	return e.Server.GetCommands()
}

// ClearCommands clears the recorded commands.
func (e *TestEnv) ClearCommands() {
	e.Server.ClearCommands()
}
