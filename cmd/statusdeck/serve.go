package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"statusdeck/internal/api"
	"statusdeck/internal/clock"
	"statusdeck/internal/deck"
	"statusdeck/internal/plugins/status"
	"statusdeck/internal/shadowstate"
	"statusdeck/pkg/plugin"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	deckURL    string
	pluginUUID string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to the deck host and drive the status buttons",
	Long: `Connects to the deck host websocket, registers the plugin and handles
button events until interrupted.

The host URL and plugin UUID come from the flags or from DECK_URL and
DECK_PLUGIN_UUID.`,
	RunE: runServe,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the buttons from buttons.yaml without a deck host",
	Long: `Runs every button defined in <config-dir>/buttons.yaml headless. Results
are logged instead of rendered and the file is reloaded when it changes.`,
	RunE: runWatch,
}

func init() {
	serveCmd.Flags().StringVar(&deckURL, "url", "", "Deck host websocket URL (default $DECK_URL)")
	serveCmd.Flags().StringVar(&pluginUUID, "uuid", "", "Plugin UUID assigned by the host (default $DECK_PLUGIN_UUID)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	url := deckURL
	if url == "" {
		url = os.Getenv("DECK_URL")
	}
	uuid := pluginUUID
	if uuid == "" {
		uuid = os.Getenv("DECK_PLUGIN_UUID")
	}
	if url == "" || uuid == "" {
		return fmt.Errorf("DECK_URL and DECK_PLUGIN_UUID must be set")
	}

	logger.Info("Starting statusdeck",
		zap.String("url", url),
		zap.Int("api_port", apiPort))

	client := deck.NewClient(url, uuid, logger)
	if err := client.Connect(); err != nil {
		return fmt.Errorf("failed to connect to deck host: %w", err)
	}
	defer client.Disconnect()

	logger.Info("Connected to deck host")

	return runPlugins(cmd.Context(), logger, client, "")
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting statusdeck headless",
		zap.String("config_dir", configDir),
		zap.Int("api_port", apiPort))

	return runPlugins(cmd.Context(), logger, nil, configDir)
}

// runPlugins starts every registered plugin against host and serves the API
// until a shutdown signal arrives. A nil host runs headless from configDir.
func runPlugins(parent context.Context, logger *zap.Logger, host deck.Host, configDir string) error {
	if parent == nil {
		parent = context.Background()
	}
	plugin.SetLogger(logger)
	plugin.Describe()

	tracker := shadowstate.NewTracker()
	pctx := plugin.NewContext(host, logger, clock.NewRealClock(), tracker, configDir)

	plugins, err := plugin.CreateAll(pctx)
	if err != nil {
		return fmt.Errorf("failed to create plugins: %w", err)
	}
	if err := plugin.StartAll(plugins); err != nil {
		return fmt.Errorf("failed to start plugins: %w", err)
	}
	defer plugin.StopAll(plugins)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if actions := findActions(plugins); actions != nil && apiPort > 0 {
		server := api.NewServer(tracker, actions, logger, apiPort)
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")
		return nil
	})

	logger.Info("Application running. Press Ctrl+C to exit.")
	return g.Wait()
}

// findActions returns the plugin that owns the status action on the host.
// The API triggers and refreshes buttons through it.
func findActions(plugins []plugin.Plugin) api.Actions {
	info := plugin.ForAction(status.ActionUUID)
	if info == nil {
		return nil
	}

	for _, p := range plugins {
		if p.Name() != info.Name {
			continue
		}
		if a, ok := p.(api.Actions); ok {
			return a
		}
	}
	return nil
}
