// Package main is the entry point for the Jarvis daemon: a
// conversational assistant with turn-taking voice interaction, remote
// reply providers, and a rule-based local fallback.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/inertz/Jarvis/internal/bus"
	"github.com/inertz/Jarvis/internal/config"
	"github.com/inertz/Jarvis/internal/logging"
	"github.com/inertz/Jarvis/internal/orchestrator"
	"github.com/inertz/Jarvis/internal/server"
	"github.com/inertz/Jarvis/internal/speech"
)

var (
	version = "0.1.0"
	cfgPath string
	listen  string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "jarvisd",
		Short: "Jarvis - conversational assistant with voice interaction",
		Long: `Jarvis is a conversational assistant daemon. Clients connect over a
websocket gateway to exchange typed or spoken messages; replies come
from a configurable remote provider, with a rule-based local responder
standing in whenever the remote path is unavailable.`,
		RunE: run,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.jarvis/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&listen, "listen", "", "gateway listen address (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Jarvis v%s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if listen != "" {
		cfg.Server.Listen = listen
	}

	logCfg := &logging.Config{
		LogDir:  cfg.Logging.Dir,
		Level:   cfg.Logging.Level,
		Console: true,
	}
	if verbose {
		logCfg.Level = "debug"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()

	events := bus.New()
	defer events.Close()

	capture := server.NewClientCapture()
	speaker := speech.NewSynthesizer(logger.Component("speech"))

	orch := orchestrator.New(cfg, capture, speaker, events, logger.Component("orchestrator"))
	defer orch.Close()

	srv := server.New(cfg.Server.Listen, orch, events, logger.Component("gateway"))
	capture.Attach(srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}

	// Pick up on-disk config edits without a restart.
	config.Watch(func(fresh *config.Config) {
		cfgLog := logger.Component("config")
		cfgLog.Info().Msg("configuration file changed")
		orch.ReloadConfig(fresh)
	})

	orch.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	mainLog := logger.Component("main")
	mainLog.Info().Str("signal", sig.String()).Msg("shutting down")
	cancel()
	return nil
}
