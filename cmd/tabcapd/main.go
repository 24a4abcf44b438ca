package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"tabcap/internal/config"
	"tabcap/internal/daemon"
	"tabcap/internal/ipc"
	"tabcap/internal/journal"
	"tabcap/internal/logging"
	"tabcap/internal/preflight"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	for _, result := range preflight.RunAll(ctx, cfg) {
		if !result.Passed {
			logger.Warn("preflight check failed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
		}
	}

	store, err := journal.Open(cfg)
	if err != nil {
		logger.Error("open journal store", logging.Error(err))
		store = nil
	}

	d, err := daemon.New(cfg, store, logger)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		log.Fatalf("start IPC server: %v", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Warn("daemon start", logging.Error(err))
	}

	<-ctx.Done()
	logger.Info("tabcapd shutting down")
}
