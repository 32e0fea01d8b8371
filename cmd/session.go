package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papapumpkin/buildscript/internal/assemble"
	"github.com/papapumpkin/buildscript/internal/config"
	"github.com/papapumpkin/buildscript/internal/fetch"
	"github.com/papapumpkin/buildscript/internal/gitutil"
	"github.com/papapumpkin/buildscript/internal/hostenv"
	"github.com/papapumpkin/buildscript/internal/targets"
	"github.com/papapumpkin/buildscript/internal/ui"
)

// session bundles what every command resolves before doing work.
type session struct {
	root    string
	cfg     config.Config
	printer *ui.Printer
	logger  *slog.Logger
}

func newSession() (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	if err := exportWorkspace(root); err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if cfg.Verbose {
		level = "debug"
	}
	return &session{
		root:    root,
		cfg:     cfg,
		printer: ui.New(),
		logger:  assemble.NewLogger(level, cfg.LogFormat, os.Stderr),
	}, nil
}

// exportWorkspace publishes the workspace root to every child process.
func exportWorkspace(root string) error {
	for _, key := range []string{"WORKSPACE", "MINDURKA_WORKSPACE"} {
		if err := os.Setenv(key, root); err != nil {
			return fmt.Errorf("exporting %s: %w", key, err)
		}
	}
	return nil
}

func (s *session) assembler() (*assemble.Assembler, error) {
	reg, err := targets.Registry()
	if err != nil {
		return nil, err
	}
	f := fetch.New()
	f.Progress = s.printer.DownloadProgress
	return &assemble.Assembler{
		Root:     s.root,
		Config:   s.cfg,
		Registry: reg,
		UI:       s.printer,
		Fetch:    f,
		Host:     hostenv.Lookup{},
		Repos:    gitutil.Git{},
		HostPath: os.Getenv("PATH"),
		Logger:   s.logger,
	}, nil
}

// addBuildFlags registers the options shared by build and watch.
func addBuildFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("run", false, "start services after building (same as the run target)")
	f.Bool("isolate", false, "never use host tools; install everything into the workspace")
	f.Bool("autoinstall", false, "install missing tools into the workspace without asking")
	f.Bool("ssh", false, "clone repositories over ssh instead of https")
	f.String("mindustry", "", "Mindustry server version (v154, v153, v150, v149, v146, be)")
	f.Bool("stacktrace", false, "pass --stacktrace to gradle")
	f.Int("ports-start", 0, "first port handed out to services")
	f.String("server-ip", "", "address services advertise in the shared config")
	f.String("rabbitmq-url", "", "AMQP URL written to the shared config instead of the local broker")
	cmd.MarkFlagsMutuallyExclusive("isolate", "autoinstall")
}

// applyBuildFlags copies explicitly set build flags into viper so that
// config.Load sees them with the highest precedence.
func applyBuildFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if v, _ := f.GetBool("isolate"); v {
		viper.Set("mode", string(config.ModeIsolate))
	}
	if v, _ := f.GetBool("autoinstall"); v {
		viper.Set("mode", string(config.ModeAutoinstall))
	}
	if v, _ := f.GetBool("ssh"); v {
		viper.Set("git_backend", string(config.GitSSH))
	}
	if v, _ := f.GetBool("stacktrace"); v {
		viper.Set("stacktrace", true)
	}
	if f.Changed("mindustry") {
		v, _ := f.GetString("mindustry")
		viper.Set("mindustry_version", v)
	}
	if f.Changed("ports-start") {
		v, _ := f.GetInt("ports-start")
		viper.Set("ports_start", v)
	}
	if f.Changed("server-ip") {
		v, _ := f.GetString("server-ip")
		viper.Set("server_ip", v)
	}
	if f.Changed("rabbitmq-url") {
		v, _ := f.GetString("rabbitmq-url")
		viper.Set("rabbitmq_url", v)
	}
}

// goalNames returns args plus the run pseudo-target when --run is set.
func goalNames(cmd *cobra.Command, args []string) []string {
	names := append([]string(nil), args...)
	if v, _ := cmd.Flags().GetBool("run"); v {
		names = append(names, "run")
	}
	return names
}

// setupSignalContext returns a context that is canceled on SIGINT or SIGTERM.
func setupSignalContext(printer *ui.Printer) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			printer.Info("shutting down...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
