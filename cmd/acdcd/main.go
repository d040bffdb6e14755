package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/matthewbaird/acdc/internal/config"
	"github.com/matthewbaird/acdc/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.ServerFromEnv()
	if err != nil {
		log.Fatalf("reading configuration: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	log.Printf("acdcd: root %s, upload limit %d bytes, evaluation step %s", cfg.Root, cfg.MaxUpload, cfg.EvalStep)
	if err := server.Run(ctx, server.Config{
		Server:   cfg,
		Registry: reg,
	}); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
