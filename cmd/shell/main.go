package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/registry"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/shell/internal/server"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shell"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		cfg = config.Default()
	}

	// Flags override env vars
	port := flag.String("port", cfg.Server.Port, "Admin server port")
	env := flag.String("env", cfg.Shell.Env, "Shell environment (local or production)")
	registryPath := flag.String("registry", cfg.Shell.RegistryPath, "Application manifest file or directory")
	document := flag.String("document", cfg.Shell.DocumentPath, "Host HTML document")
	toggleURL := flag.String("toggle-url", cfg.Shell.ToggleURL, "Remote toggle endpoint")
	route := flag.String("route", cfg.Shell.Route, "Initial route")
	storageKind := flag.String("storage", cfg.Shell.Storage, "Persistent storage backend (memory, file, redis)")
	broadcastKind := flag.String("broadcast", cfg.Shell.Broadcast, "Cross-tab broadcast backend (memory, redis)")
	redisAddr := flag.String("redis", cfg.Redis.Addr, "Redis address")
	logLevel := flag.String("log-level", cfg.Logging.Level, "Log level")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development logging")
	visible := flag.Bool("visible", true, "Start with the tab visible")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Shell.Env = *env
	cfg.Shell.RegistryPath = *registryPath
	cfg.Shell.DocumentPath = *document
	cfg.Shell.ToggleURL = *toggleURL
	cfg.Shell.Route = *route
	cfg.Shell.Storage = *storageKind
	cfg.Shell.Broadcast = *broadcastKind
	cfg.Redis.Addr = *redisAddr
	cfg.Logging.Level = *logLevel
	cfg.Logging.Development = *dev

	log, err := logging.New(logging.FromConfig(cfg.Logging))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, *visible, log); err != nil {
		log.Fatal("Shell exited", zap.Error(err))
	}
}

func run(cfg *config.Config, visible bool, log *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting shell",
		zap.String("env", string(cfg.Env())),
		zap.String("registry", cfg.Shell.RegistryPath),
		zap.String("storage", cfg.Shell.Storage),
		zap.String("broadcast", cfg.Shell.Broadcast),
	)

	manifest, err := registry.NewLoader(log.For("registry")).Load(cfg.Shell.RegistryPath)
	if err != nil {
		return err
	}
	reg, err := registry.Build(manifest, registry.Options{
		Env:            cfg.Env(),
		AlwaysOn:       cfg.Shell.AlwaysOn,
		FormatAdaptive: cfg.Shell.FormatAdaptive,
	})
	if err != nil {
		return err
	}
	log.Info("Registry loaded", zap.Strings("apps", reg.Names()))

	var doc []byte
	if cfg.Shell.DocumentPath != "" {
		if doc, err = os.ReadFile(cfg.Shell.DocumentPath); err != nil {
			return fmt.Errorf("read document: %w", err)
		}
	}

	backends, err := shell.OpenBackends(ctx, cfg, log.For("backends"))
	if err != nil {
		return err
	}
	defer func() {
		if err := backends.Close(); err != nil {
			log.Warn("Failed to close backends", zap.Error(err))
		}
	}()

	metrics := monitoring.NewMetrics()

	var sc shell.Context
	if err := sc.Init(shell.Options{
		Config:    cfg,
		Registry:  reg,
		Local:     backends.Local,
		Broadcast: backends.Broadcast,
		Document:  doc,
		Visible:   visible,
		Metrics:   metrics,
		Logger:    log.For("shell"),
	}); err != nil {
		return err
	}
	tab, err := shell.NewTab(&sc)
	if err != nil {
		return err
	}
	tabLog := log.ForTab(sc.TabID().String())
	tabLog.Info("Tab initialized")

	srv := server.New(server.Options{
		Config:  cfg,
		Tab:     tab,
		Remote:  backends.Local,
		Metrics: metrics,
		Logger:  tabLog.For("server"),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tab.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("Shell stopped")
	return err
}
