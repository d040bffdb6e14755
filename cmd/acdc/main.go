// Command acdc edits the current analysis of an acdc server: it renders the
// schema-driven input form, applies edits through the synchronizer, imports
// models, manages operating conditions and follows evaluations.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/matthewbaird/acdc/internal/client"
	"github.com/matthewbaird/acdc/internal/config"
	"github.com/matthewbaird/acdc/internal/form"
	"github.com/matthewbaird/acdc/internal/metrics"
	"github.com/matthewbaird/acdc/internal/syncer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app holds what every command needs once flags are parsed.
type app struct {
	configPath  string
	url         string
	metricsAddr string

	cfg        *config.Client
	api        *client.Client
	metrics    *metrics.Client
	metricsSrv *http.Server
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "acdc",
		Short:        "Edit and evaluate acdc analyses",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "acdc.yaml", "Path to the YAML configuration file")
	root.PersistentFlags().StringVar(&a.url, "url", "", "API base URL (overrides config and ACDC_URL)")
	root.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the command runs")

	root.AddCommand(
		createSchemaCmd(a),
		createShowCmd(a),
		createSetCmd(a),
		createDefaultCmd(a),
		createImportCmd(a),
		createConditionsCmd(a),
		createValidateCmd(a),
		createNewCmd(a),
		createEvalCmd(a),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.LoadClient(a.configPath)
	if err != nil {
		return err
	}
	if a.url != "" {
		cfg.URL = a.url
	}
	if a.metricsAddr != "" {
		cfg.MetricsAddr = a.metricsAddr
	}
	a.cfg = cfg
	a.api = client.New(cfg.URL, client.WithTimeout(cfg.Timeout))

	reg := prometheus.NewRegistry()
	a.metrics = metrics.NewClient(reg)
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		a.metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("acdc: metrics server: %v", err)
			}
		}()
	}
	return nil
}

func (a *app) close() error {
	if a.metricsSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return a.metricsSrv.Shutdown(ctx)
}

// open loads the current analysis into a synchronizer.
func (a *app) open(ctx context.Context) (*syncer.Synchronizer, error) {
	sy := syncer.New(a.api, syncer.Config{
		Debounce: a.cfg.Debounce,
		Timeout:  a.cfg.Timeout,
		Metrics:  a.metrics,
	})
	if err := sy.Load(ctx); err != nil {
		sy.Close()
		return nil, err
	}
	return sy, nil
}

// schema fetches the configured form schema.
func (a *app) schema(ctx context.Context) (*form.Schema, error) {
	return form.LoadSchema(ctx, a.api, a.cfg.Schema)
}
