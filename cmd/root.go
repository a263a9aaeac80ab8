package cmd

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Lkhag/procsync/internal/config"
	"github.com/Lkhag/procsync/internal/events"
	"github.com/Lkhag/procsync/internal/history"
	"github.com/Lkhag/procsync/internal/log"
	"github.com/Lkhag/procsync/internal/metrics"
	"github.com/Lkhag/procsync/internal/pool"
	"github.com/Lkhag/procsync/internal/priority"
	"github.com/Lkhag/procsync/internal/pubsub"
	"github.com/Lkhag/procsync/internal/sampler"
	"github.com/Lkhag/procsync/internal/tracing"
	"github.com/Lkhag/procsync/internal/watcher"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "procsync",
	Short: "A task pool simulator for observing process synchronization",
	Long: `Procsync runs a pool of cooperating worker tasks under shared pause and
stop signals, reconciles their events into a live view, and records
finished runs. Type p to pause/resume, s to stop, q to quit.`,
	Version: version,
	RunE:    runPool,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/procsync/config.yaml)")
	rootCmd.Flags().IntP("count", "n", 0,
		"number of worker tasks (1-32)")
	rootCmd.Flags().Float64("speed", 0,
		"speed multiplier: 0.1, 0.25, 0.5, 1, 2, 5, 10")
	rootCmd.Flags().String("priority", "",
		"task priority: Low, Normal, High")
	rootCmd.Flags().Duration("duration", 0,
		"stop the pool after this long (0 = run until done or interrupted)")
	rootCmd.Flags().Bool("no-save", false,
		"do not persist the run settings back to the config file")

	_ = viper.BindPFlag("pool.count", rootCmd.Flags().Lookup("count"))
	_ = viper.BindPFlag("pool.speed", rootCmd.Flags().Lookup("speed"))
	_ = viper.BindPFlag("pool.priority", rootCmd.Flags().Lookup("priority"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("pool.count", defaults.Pool.Count)
	viper.SetDefault("pool.speed", defaults.Pool.Speed)
	viper.SetDefault("pool.priority", defaults.Pool.Priority)
	viper.SetDefault("pool.base_delay", defaults.Pool.BaseDelay)
	viper.SetDefault("pool.grace_period", defaults.Pool.GracePeriod)
	viper.SetDefault("pool.reconcile_interval", defaults.Pool.ReconcileInterval)
	viper.SetDefault("sampler.interval", defaults.Sampler.Interval)
	viper.SetDefault("sampler.log_probability", defaults.Sampler.LogProbability)
	viper.SetDefault("history.enabled", defaults.History.Enabled)
	viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	viper.SetDefault("metrics.listen_addr", defaults.Metrics.ListenAddr)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(config.DefaultConfigDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create the default one.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultPath := filepath.Join(config.DefaultConfigDir(), "config.yaml")
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults.
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// multiRecorder fans RecordRun out to every recorder, keeping the
// first error.
type multiRecorder []pool.Recorder

func (m multiRecorder) RecordRun(run pool.RunResult) error {
	var firstErr error
	for _, r := range m {
		if err := r.RecordRun(run); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// metricsRecorder adapts the exporter's run counter to pool.Recorder.
type metricsRecorder struct {
	exporter *metrics.Exporter
}

func (m metricsRecorder) RecordRun(run pool.RunResult) error {
	m.exporter.ObserveRun(run)
	return nil
}

func runPool(cmd *cobra.Command, args []string) error {
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	prio, err := priority.Parse(cfg.Pool.Priority)
	if err != nil {
		return err
	}

	cleanup, err := log.Init(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer cleanup()

	tracingCfg := cfg.Tracing
	if tracingCfg.Enabled && tracingCfg.Exporter == "file" && tracingCfg.FilePath == "" {
		tracingCfg.FilePath = config.DefaultTracesFilePath()
	}
	provider, err := tracing.NewProvider(tracingCfg)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	recorders := multiRecorder{}
	if cfg.History.Enabled {
		historyPath := cfg.History.Path
		if historyPath == "" {
			historyPath = config.DefaultHistoryPath()
		}
		db, err := history.NewDB(historyPath)
		if err != nil {
			return fmt.Errorf("opening history database: %w", err)
		}
		defer db.Close()
		recorders = append(recorders, history.NewService(history.NewRunRepository(db)))
	}

	var exporter *metrics.Exporter
	if cfg.Metrics.Enabled {
		exporter, err = metrics.NewExporter(nil)
		if err != nil {
			return fmt.Errorf("initializing metrics: %w", err)
		}
		recorders = append(recorders, metricsRecorder{exporter})

		server := &http.Server{
			Addr:              cfg.Metrics.ListenAddr,
			Handler:           promhttp.HandlerFor(exporter.Registry(), promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.ErrorErr(log.CatPool, "Metrics server failed", err, "addr", cfg.Metrics.ListenAddr)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	logSink := pubsub.NewBroker[events.LogEvent]()
	defer logSink.Close()

	controller := pool.New(pool.Config{
		BaseDelay:   cfg.Pool.BaseDelay,
		GracePeriod: cfg.Pool.GracePeriod,
		Recorder:    recorders,
		Tracer:      provider.Tracer(),
		LogSink:     logSink,
	})
	defer controller.Close()

	monitor := sampler.New(sampler.Config{
		Interval:       cfg.Sampler.Interval,
		LogProbability: cfg.Sampler.LogProbability,
		LogSink:        logSink,
	})
	monitor.Start()
	defer monitor.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Print the merged observer log stream.
	logCh := logSink.Subscribe(ctx)
	go func() {
		for evt := range logCh {
			fmt.Printf("[%s] %s\n", evt.Payload.Time.Format("15:04:05"), evt.Payload.Text)
		}
	}()

	if exporter != nil {
		sampleCh := monitor.Subscribe(ctx)
		go func() {
			for evt := range sampleCh {
				exporter.ObserveSample(evt.Payload)
			}
		}()
	}

	if configFilePath := viper.ConfigFileUsed(); configFilePath != "" {
		w, err := watcher.New(watcher.DefaultConfig(configFilePath))
		if err == nil {
			if onChange, startErr := w.Start(); startErr == nil {
				defer func() { _ = w.Stop() }()
				go func() {
					for {
						select {
						case <-ctx.Done():
							return
						case <-onChange:
							reloadConfig(configFilePath)
						}
					}
				}()
			}
		}
	}

	if err := controller.Start(cfg.Pool.Count, cfg.Pool.Speed, prio); err != nil {
		return err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	commands := readCommands(ctx)

	var deadline <-chan time.Time
	if duration, _ := cmd.Flags().GetDuration("duration"); duration > 0 {
		deadline = time.After(duration)
	}

	ticker := time.NewTicker(cfg.Pool.ReconcileInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ticker.C:
			controller.ReconcileTick()
			snap := controller.Snapshot()
			if exporter != nil {
				exporter.ObserveSnapshot(snap)
				exporter.ObserveDrained(controller.EventsDrained())
			}
			if !snap.Running && snap.Generation > 0 {
				break loop
			}
		case line := <-commands:
			switch line {
			case "p":
				controller.TogglePause()
			case "s":
				controller.Stop()
			case "q":
				controller.Stop()
				break loop
			}
		case <-deadline:
			controller.Stop()
			break loop
		case <-interrupt:
			controller.Stop()
			break loop
		}
	}

	// Let the final reconcile land before the log goroutine dies.
	controller.ReconcileTick()
	printSummary(controller.Snapshot())

	if noSave, _ := cmd.Flags().GetBool("no-save"); !noSave {
		if configFilePath := viper.ConfigFileUsed(); configFilePath != "" {
			saveErr := config.SavePoolSettings(configFilePath, config.PoolConfig{
				Count:    cfg.Pool.Count,
				Speed:    cfg.Pool.Speed,
				Priority: prio.String(),
			})
			if saveErr != nil {
				log.ErrorErr(log.CatConfig, "Failed to save pool settings", saveErr)
			}
		}
	}
	return nil
}

// reloadConfig re-reads the config file after a change, updating the
// defaults the next Start will use. The live generation keeps its
// settings. Invalid edits are logged and ignored.
func reloadConfig(path string) {
	if err := viper.ReadInConfig(); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to re-read config", err, "path", path)
		return
	}
	var next config.Config
	if err := viper.Unmarshal(&next); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to parse config", err, "path", path)
		return
	}
	if err := config.Validate(next); err != nil {
		log.ErrorErr(log.CatConfig, "Rejected config change", err, "path", path)
		return
	}
	cfg = next
	log.Info(log.CatConfig, "Config reloaded", "path", path,
		"count", cfg.Pool.Count, "speed", cfg.Pool.Speed, "priority", cfg.Pool.Priority)
}

// readCommands forwards single-letter stdin commands. The goroutine
// leaks a blocked Read on exit, which is fine for a process that is
// about to terminate.
func readCommands(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(strings.ToLower(scanner.Text()))
			if line == "" {
				continue
			}
			select {
			case out <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func printSummary(snap pool.Snapshot) {
	counts := snap.CountByState()
	fmt.Printf("run %s finished: %d completed, %d terminated\n",
		snap.RunID,
		counts[events.StateCompleted],
		counts[events.StateTerminated],
	)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
