package cmd

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papapumpkin/buildscript/internal/config"
	"github.com/papapumpkin/buildscript/internal/target"
	"github.com/papapumpkin/buildscript/internal/targets"
)

func TestSubcommands_Registered(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"build", "env", "targets", "clean", "watch", "events"} {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected %q subcommand to be registered on rootCmd", name)
		}
	}
}

func TestBuildCmd_Flags(t *testing.T) {
	t.Parallel()
	for _, flag := range []string{"run", "isolate", "autoinstall", "ssh", "mindustry", "stacktrace", "ports-start", "server-ip", "rabbitmq-url"} {
		if buildCmd.Flags().Lookup(flag) == nil {
			t.Errorf("expected flag %q on build", flag)
		}
		if watchCmd.Flags().Lookup(flag) == nil {
			t.Errorf("expected flag %q on watch", flag)
		}
	}
}

func newBuildCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "build", RunE: func(*cobra.Command, []string) error { return nil }}
	addBuildFlags(c)
	c.SetArgs(args)
	c.SetOut(&bytes.Buffer{})
	c.SetErr(&bytes.Buffer{})
	return c
}

func TestBuildFlags_MutuallyExclusive(t *testing.T) {
	t.Parallel()
	c := newBuildCommand(t, "--isolate", "--autoinstall")
	if err := c.Execute(); err == nil {
		t.Error("expected --isolate and --autoinstall to be rejected together")
	}
}

func TestApplyBuildFlags(t *testing.T) {
	// Not parallel: mutates the global viper instance.
	viper.Reset()
	defer viper.Reset()

	c := newBuildCommand(t, "--autoinstall", "--ssh", "--stacktrace", "--mindustry", "v146",
		"--ports-start", "5000", "--server-ip", "10.0.0.2", "--rabbitmq-url", "amqp://broker/")
	if err := c.Execute(); err != nil {
		t.Fatal(err)
	}
	applyBuildFlags(c)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != config.ModeAutoinstall {
		t.Errorf("Mode = %q", cfg.Mode)
	}
	if cfg.GitBackend != config.GitSSH {
		t.Errorf("GitBackend = %q", cfg.GitBackend)
	}
	if !cfg.Stacktrace {
		t.Error("Stacktrace not set")
	}
	if cfg.MindustryVersion != config.MindustryV146 {
		t.Errorf("MindustryVersion = %q", cfg.MindustryVersion)
	}
	if cfg.PortsStart != 5000 || cfg.ServerIP != "10.0.0.2" || cfg.RabbitMQURL != "amqp://broker/" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestApplyBuildFlags_UnsetFlagsKeepDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	c := newBuildCommand(t)
	if err := c.Execute(); err != nil {
		t.Fatal(err)
	}
	applyBuildFlags(c)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != config.ModeHost || cfg.PortsStart != 4100 {
		t.Errorf("Mode = %q, PortsStart = %d; want host, 4100", cfg.Mode, cfg.PortsStart)
	}
}

func TestGoalNames(t *testing.T) {
	t.Parallel()
	c := newBuildCommand(t, "--run", "forts")
	if err := c.Execute(); err != nil {
		t.Fatal(err)
	}
	got := goalNames(c, []string{"forts"})
	if !slices.Equal(got, []string{"forts", "run"}) {
		t.Errorf("goalNames = %v", got)
	}
}

func TestRunBuild_NoTargets(t *testing.T) {
	t.Parallel()
	c := newBuildCommand(t)
	if err := runBuild(c, nil); !errors.Is(err, errNoTargets) {
		t.Errorf("err = %v, want errNoTargets", err)
	}
}

func TestEnvCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		args    []string
		goos    string
		shell   string
		want    []string
		wantErr bool
	}{
		{"explicit", []string{"gradle", "--version"}, "linux", "/bin/zsh", []string{"gradle", "--version"}, false},
		{"shell", nil, "linux", "/bin/zsh", []string{"/bin/zsh"}, false},
		{"windows", nil, "windows", "", []string{"cmd.exe"}, false},
		{"no shell", nil, "linux", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := envCommand(tt.args, tt.goos, tt.shell)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("envCommand = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTargetRows(t *testing.T) {
	t.Parallel()
	reg, err := targets.Registry()
	if err != nil {
		t.Fatal(err)
	}
	goals, err := target.ParseGoals(reg, []string{"forts"})
	if err != nil {
		t.Fatal(err)
	}
	rows := targetRows(reg, goals.Recipe, reg.Kinds())
	if len(rows) != reg.Len() {
		t.Fatalf("got %d rows, want %d", len(rows), reg.Len())
	}
	byName := make(map[string]int)
	for i, r := range rows {
		byName[r.Name] = i
	}

	mprocs := rows[byName["mprocs"]]
	if !slices.Contains(mprocs.Flags, "supervisor") || mprocs.Enablement != "disabled" {
		t.Errorf("mprocs row = %+v", mprocs)
	}
	forts := rows[byName["forts"]]
	if forts.Enablement != "build" || !slices.Contains(forts.Requires, "coreplugin") {
		t.Errorf("forts row = %+v", forts)
	}
	wantClosure := []string{"coreutils", "rabbitmq", "surrealdb", "mindustry", "java", "coreplugin"}
	if !slices.Equal(forts.Closure, wantClosure) {
		t.Errorf("forts closure = %v, want %v", forts.Closure, wantClosure)
	}
	if got := rows[byName["mprocs"]].Closure; len(got) != 0 {
		t.Errorf("mprocs closure = %v, want none", got)
	}
	if got := rows[byName["java"]].Enablement; got != "dependency" {
		t.Errorf("java enablement = %q, want dependency", got)
	}
	if !slices.Contains(rows[byName["hub"]].Flags, "deprecated") {
		t.Errorf("hub row = %+v", rows[byName["hub"]])
	}

	if rows := targetRows(reg, nil, reg.Kinds()); rows[0].Enablement != "" {
		t.Errorf("without goals Enablement = %q, want empty", rows[0].Enablement)
	}
}

func TestPrintEvent(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		line string
		want []string
	}{
		{
			name: "with target and data",
			line: `{"ts":"2026-01-02T15:04:05Z","kind":"target_acquired","run":"01J","target":"java","data":{"tier":"host","enablement":"dependency"}}`,
			want: []string{"[15:04:05] target_acquired target=java enablement=dependency tier=host"},
		},
		{
			name: "no target",
			line: `{"ts":"2026-01-02T15:04:05Z","kind":"invocation_start"}`,
			want: []string{"[15:04:05] invocation_start"},
		},
		{
			name: "garbage",
			line: `not json`,
			want: []string{"??? not json"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			printEvent(&buf, tt.line)
			got := strings.Split(strings.TrimSpace(buf.String()), "\n")
			if !slices.Equal(got, tt.want) {
				t.Errorf("printEvent = %q, want %q", got, tt.want)
			}
		})
	}
}
