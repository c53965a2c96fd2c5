package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go2spectra/internal/adminserver"
	"go2spectra/internal/config"
	"go2spectra/internal/coordinator"
	"go2spectra/internal/ingest"
	"go2spectra/internal/reports/exact"
	"go2spectra/internal/ticker"
)

func main() {
	log.Println("Starting ns-coordinator...")

	cfg, err := config.LoadConfig("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	globals := coordinator.NewGlobals(ticker.New())
	coord := coordinator.New(globals, coordinator.Config{
		InputBufferCapacity:      cfg.Coordinator.InputBufferCapacity,
		ReportHostBufferCapacity: cfg.Coordinator.ReportHostBufferCapacity,
	})
	coord.Startup()

	for _, def := range cfg.Coordinator.Reports {
		report, err := buildReport(def)
		if err != nil {
			log.Fatalf("Failed to build report %q: %v", def.Name, err)
		}
		if err := coord.AddReport(report); err != nil {
			log.Fatalf("Failed to start report %q: %v", def.Name, err)
		}
		log.Printf("Started report %q (type=%s)", def.Name, def.Type)
	}

	sub := ingest.NewSubscriber(ingest.Config{
		NATSURL: cfg.Ingest.NATSURL,
		Subject: cfg.Ingest.Subject,
	}, coord.InputChannel())
	if err := sub.Start(); err != nil {
		log.Fatalf("Failed to start ingest subscriber: %v", err)
	}

	admin := adminserver.New(coord, cfg.Admin.ListenAddr, reportFactories())
	admin.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutdown signal received, stopping ns-coordinator...")

	sub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := admin.Shutdown(ctx); err != nil {
		log.Printf("admin server shutdown error: %v", err)
	}

	if err := coord.Shutdown(); err != nil {
		log.Printf("coordinator shutdown error: %v", err)
	}

	log.Println("Shutdown complete.")
}

func buildReport(def config.ReportDef) (coordinator.Report, error) {
	window, err := time.ParseDuration(def.Window)
	if err != nil {
		return nil, fmt.Errorf("invalid window: %w", err)
	}

	switch def.Type {
	case "exact":
		return exact.New(def.Name, def.KeyFields, window, def.TickCount), nil
	default:
		return nil, fmt.Errorf("unknown report type: %s", def.Type)
	}
}

func reportFactories() map[string]adminserver.ReportFactory {
	return map[string]adminserver.ReportFactory{
		"exact": func(name string, keyFields []string, window time.Duration, tickCount uint32) (coordinator.Report, error) {
			return exact.New(name, keyFields, window, tickCount), nil
		},
	}
}
