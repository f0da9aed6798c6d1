package status

import (
	"fmt"
	"path/filepath"

	"statusdeck/internal/check"
	"statusdeck/internal/settings"
	"statusdeck/pkg/plugin"

	"go.uber.org/zap"
)

// PluginName is the registry name of the status plugin
const PluginName = "status"

// ButtonsFile is the headless buttons file looked up in the config directory
const ButtonsFile = "buttons.yaml"

func init() {
	plugin.Register(plugin.PluginInfo{
		Name:        PluginName,
		Description: "Checks a website or local script and shows the result on a button",
		Actions:     []string{ActionUUID},
		Priority:    plugin.PriorityDefault,
		Factory:     createPlugin,
	})
}

// createPlugin creates a new status plugin instance from the plugin context.
func createPlugin(ctx *plugin.Context) (plugin.Plugin, error) {
	if ctx == nil || ctx.Logger == nil {
		return nil, fmt.Errorf("status plugin requires a logger")
	}

	manager := NewManager(ctx.Host, check.NewRunner(ctx.Logger), ctx.Clock, ctx.Tracker, ctx.Logger)
	p := &pluginAdapter{manager: manager, logger: ctx.Logger.Named(PluginName)}

	// Without a host, buttons come from the buttons file
	if ctx.Host == nil && ctx.ConfigDir != "" {
		p.loader = settings.NewLoader(filepath.Join(ctx.ConfigDir, ButtonsFile), ctx.Logger)
	}
	return p, nil
}

// pluginAdapter wraps the Manager to implement the plugin.Plugin interface.
type pluginAdapter struct {
	manager *Manager
	loader  *settings.Loader
	logger  *zap.Logger
}

func (p *pluginAdapter) Name() string {
	return PluginName
}

func (p *pluginAdapter) Start() error {
	if err := p.manager.Start(); err != nil {
		return err
	}
	if p.loader == nil {
		return nil
	}

	buttons, err := p.loader.Load()
	if err != nil {
		p.manager.Stop()
		return fmt.Errorf("failed to load buttons: %w", err)
	}
	p.manager.Sync(buttons)

	if err := p.loader.Watch(p.manager.Sync); err != nil {
		p.logger.Warn("Buttons file will not be reloaded", zap.Error(err))
	}
	return nil
}

func (p *pluginAdapter) Stop() {
	if p.loader != nil {
		p.loader.Stop()
	}
	p.manager.Stop()
}

// Implement plugin.Refresher
func (p *pluginAdapter) Refresh() error {
	started := 0
	for _, name := range p.manager.Names() {
		if ok, err := p.manager.Trigger(name, TriggerAPI); err == nil && ok {
			started++
		}
	}
	p.logger.Info("Refreshed buttons", zap.Int("started", started))
	return nil
}

// Implement plugin.Triggerer
func (p *pluginAdapter) Trigger(context string) (bool, error) {
	return p.manager.Trigger(context, TriggerAPI)
}

// GetManager returns the underlying Manager instance.
func (p *pluginAdapter) GetManager() *Manager {
	return p.manager
}
