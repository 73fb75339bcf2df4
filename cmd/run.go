package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/procguard/internal/config"
	"github.com/smazurov/procguard/internal/events"
	"github.com/smazurov/procguard/internal/logging"
	"github.com/smazurov/procguard/internal/metrics"
	"github.com/smazurov/procguard/internal/metrics/exporters"
	"github.com/smazurov/procguard/internal/process"
	"github.com/smazurov/procguard/internal/systemd"
	"github.com/smazurov/procguard/internal/version"
	"github.com/smazurov/procguard/pkg/procguard"
)

// RunOptions for the run command - flat structure with toml mapping.
type RunOptions struct {
	Config string `help:"Path to configuration file" short:"c" default:"procguard.toml"`

	// Guard settings
	Strategy procguard.Strategy `help:"Termination strategy, see 'procguard strategies'" short:"s" default:"ctrlc-wait-timeout-kill:5s" toml:"guard.strategy" env:"STRATEGY"`
	Deadline time.Duration      `help:"Dispose the child after this long (0 = no deadline)" toml:"guard.deadline" env:"DEADLINE"`
	StopFile string             `help:"Dispose the child when this file appears" toml:"guard.stop_file" env:"STOP_FILE"`
	Command  string             `help:"Command line used when none is given after --" toml:"guard.command" env:"COMMAND"`
	Dir      string             `help:"Working directory for the child" toml:"guard.dir" env:"DIR"`
	Env      []string           `help:"Extra KEY=VALUE environment entries for the child" toml:"guard.env" env:"ENV"`

	// Metrics settings
	MetricsAddr string `help:"Serve Prometheus metrics on this address (empty = disabled)" toml:"metrics.addr" env:"METRICS_ADDR"`

	// Logging settings
	LogLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOG_LEVEL"`
	LogFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOG_FORMAT"`
}

// CreateRunCmd creates the run command.
func CreateRunCmd() *cobra.Command {
	return newRunCmd(&RunOptions{})
}

func newRunCmd(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] [-- command [args...]]",
		Short: "Run a command and dispose of it with a termination strategy",
		Long: `Starts the command with the terminal inherited and waits until it exits, ` +
			`procguard receives SIGINT or SIGTERM, the deadline elapses or the stop file appears. ` +
			`The child is then disposed with the configured strategy and procguard exits with ` +
			`the child's exit code (124 timed out, 130 interrupted, 137 killed, 1 spawn failure).`,
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(runGuarded(cmd, opts, args))
		},
	}

	if err := config.BindFlags(cmd.Flags(), opts); err != nil {
		panic(fmt.Sprintf("run flags: %v", err))
	}

	return cmd
}

func runGuarded(cmd *cobra.Command, opts *RunOptions, args []string) int {
	if err := config.LoadConfig(opts, cmd); err != nil {
		logging.Initialize(logging.Config{Level: opts.LogLevel, Format: opts.LogFormat})
		logging.GetLogger("main").Error("Failed to load config", "error", err, "config", opts.Config)
		return process.ExitSpawnFailed
	}

	logging.Initialize(loggingConfig(cmd, opts, config.LoadLoggingConfig(opts.Config)))
	logger := logging.GetLogger("runner")

	argv, err := commandLine(opts, args)
	if err != nil {
		logger.Error("Invalid command", "error", err)
		return process.ExitSpawnFailed
	}

	if stop := watchLogging(cmd, opts, logger); stop != nil {
		defer stop()
	}

	bus := events.New()
	defer metrics.Subscribe(bus)()
	defer systemd.NewNotifier(logging.GetLogger("systemd")).Subscribe(bus)()
	metrics.RecordBuildInfo(version.Get())

	if opts.MetricsAddr != "" {
		srv, listenErr := exporters.Listen(opts.MetricsAddr, logging.GetLogger("metrics"))
		if listenErr != nil {
			logger.Warn("Metrics server disabled", "addr", opts.MetricsAddr, "error", listenErr)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if shutdownErr := srv.Shutdown(ctx); shutdownErr != nil {
					logger.Debug("Metrics server shutdown", "error", shutdownErr)
				}
			}()
		}
	}

	runner := process.NewRunner(process.Options{
		Args:        argv,
		Strategy:    opts.Strategy,
		Deadline:    opts.Deadline,
		StopFile:    opts.StopFile,
		Dir:         opts.Dir,
		Env:         opts.Env,
		GuardLogger: logging.GetLogger("guard"),
	}, bus, logger)

	res := runner.Run()
	logger.Info("procguard exiting", "exit_code", res.ExitCode, "reason", string(res.Reason))
	return res.ExitCode
}

// commandLine prefers arguments after -- over the configured command string.
func commandLine(opts *RunOptions, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if opts.Command == "" {
		return nil, errors.New("no command given; pass it after -- or set guard.command")
	}
	argv, err := process.ParseCommand(opts.Command)
	if err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		return nil, errors.New("guard.command is empty")
	}
	return argv, nil
}

// loggingConfig merges the [logging] table with the resolved options. Module
// levels only come from the file; global level and format follow the usual
// flag > env > file precedence.
func loggingConfig(cmd *cobra.Command, opts *RunOptions, fileCfg logging.Config) logging.Config {
	cfg := fileCfg
	cfg.Level = opts.LogLevel
	cfg.Format = opts.LogFormat
	if cmd == nil {
		return cfg
	}
	// A reload re-reads the file; explicitly set flags keep winning
	if !cmd.Flags().Changed("log-level") && os.Getenv(config.EnvPrefix+"LOG_LEVEL") == "" && fileCfg.Level != "" {
		cfg.Level = fileCfg.Level
	}
	return cfg
}

// watchLogging re-applies logging levels whenever the config file changes.
func watchLogging(cmd *cobra.Command, opts *RunOptions, logger *slog.Logger) func() {
	if opts.Config == "" {
		return nil
	}

	loader := func(path string) (logging.Config, error) {
		if _, err := os.Stat(path); err != nil {
			return logging.Config{}, err
		}
		return config.LoadLoggingConfig(path), nil
	}

	watcher := config.NewConfigWatcher(opts.Config, loader, logger,
		config.WithDebounce[logging.Config](500*time.Millisecond))
	watcher.OnReload(func(fileCfg logging.Config) {
		cfg := loggingConfig(cmd, opts, fileCfg)
		logging.Initialize(cfg)
		logger.Info("Logging configuration reloaded", "level", cfg.Level)
	})

	if err := watcher.Start(); err != nil {
		logger.Debug("Config watcher not started, logging reload disabled", "error", err)
		return nil
	}
	return func() { _ = watcher.Stop() }
}
