package main

import (
	"context"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/utils/clock"

	"jobwatch/internal/cancel"
	"jobwatch/internal/jobs"
	"jobwatch/internal/source"
)

// jobSource is a collaborator that can both list and cancel jobs.
type jobSource interface {
	jobs.Lister
	cancel.Canceler
}

// RootCmd is the root Cobra command; with no sub-command it runs the monitor.
func RootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "jobwatch",
		Short:         "jobwatch monitors and cancels your batch jobs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(viper.New(), configPath, cmd.Flags())
			if err != nil {
				return err
			}
			return runMonitor(cmd.Context(), config)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default ./jobwatch.yaml or ~/.config/jobwatch/jobwatch.yaml)")
	flags.String("source", sourceSlurm, "job source: slurm or http")
	flags.String("url", "", "job API base url for the http source")
	flags.String("user", "", "only show jobs of this user")
	flags.Duration("poll-interval", 5*time.Second, "how often to fetch the job list (0 fetches once)")
	flags.String("metrics-addr", "", "serve prometheus metrics on this address")
	flags.String("log-level", "info", "log level")

	cmd.AddCommand(
		listCmd(&configPath),
		cancelCmd(&configPath),
	)
	return cmd
}

func newSource(config Config) (jobSource, error) {
	switch config.Source {
	case sourceHTTP:
		client, err := source.NewHTTPClient(config.URL, config.User, &http.Client{Timeout: config.RequestTimeout})
		if err != nil {
			return nil, err
		}
		return client, nil
	case sourceSlurm:
		return source.NewSlurm(config.User), nil
	default:
		return nil, errors.Errorf("unknown source %q", config.Source)
	}
}

func monitorConfig(config Config) jobs.MonitorConfig {
	return jobs.MonitorConfig{
		TickInterval: config.TickInterval,
		PollInterval: config.PollInterval,
		Poller: jobs.PollerConfig{
			Timeout:    config.RequestTimeout,
			Attempts:   config.FetchAttempts,
			RetryDelay: time.Second,
		},
	}
}

func cancelConfig(config Config) cancel.Config {
	return cancel.Config{
		User:      config.User,
		Cluster:   config.Cluster,
		StatusTTL: config.CancelStatusTTL,
	}
}

func subtitle(config Config) string {
	s := config.Source
	if config.Source == sourceHTTP {
		s = config.URL
	}
	if config.User != "" {
		s += " user:" + config.User
	}
	if config.Cluster != "" {
		s += " cluster:" + config.Cluster
	}
	return s
}

// serveMetrics exposes /metrics until ctx is done.
func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	go func() {
		log.Infof("serving metrics on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server failed")
		}
	}()
}

func runMonitor(ctx context.Context, config Config) error {
	closer, err := configureLogging(config.Log, true)
	if err != nil {
		return err
	}
	defer closer.Close()

	src, err := newSource(config)
	if err != nil {
		return err
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	if config.MetricsAddr != "" {
		serveMetrics(ctx, config.MetricsAddr)
	}

	store := jobs.NewStore()
	monitor := jobs.NewMonitor(store, src, clock.RealClock{}, monitorConfig(config))
	controller := cancel.NewController(src, store, cancelConfig(config))

	monitor.Start(ctx)
	defer func() {
		controller.Close()
		monitor.Stop()
		log.Info("jobwatch stopped")
	}()
	log.WithField("source", config.Source).Info("jobwatch started")

	p := tea.NewProgram(newModel(ctx, monitor, controller, subtitle(config)), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return errors.Wrap(err, "running terminal UI")
	}
	return nil
}

func main() {
	if err := RootCmd().Execute(); err != nil {
		log.SetOutput(os.Stderr)
		log.Error(err)
		os.Exit(1)
	}
}
