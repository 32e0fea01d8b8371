package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

//go:embed config.schema.json
var schemaJSON []byte

// ErrInvalidConfig is returned when the merged configuration fails schema validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Mode selects how tools are acquired during initialization.
type Mode string

const (
	// ModeHost prefers host tools and asks before installing into the workspace.
	ModeHost Mode = "host"
	// ModeAutoinstall installs missing tools into the workspace without asking.
	ModeAutoinstall Mode = "autoinstall"
	// ModeIsolate never probes the host; every tool lives in the workspace.
	ModeIsolate Mode = "isolate"
)

// GitBackend selects the transport used when cloning plugin repositories.
type GitBackend string

const (
	GitHTTPS GitBackend = "https"
	GitSSH   GitBackend = "ssh"
)

// RepoURL returns the clone URL for a GitHub "owner/name" repository.
func (g GitBackend) RepoURL(repo string) string {
	if g == GitSSH {
		return "git@github.com:" + repo
	}
	return "https://github.com/" + repo
}

// MindustryVersion names a supported Mindustry server release.
type MindustryVersion string

// Supported Mindustry versions. Bleeding edge tracks the newest build.
const (
	MindustryV154         MindustryVersion = "v154"
	MindustryV153         MindustryVersion = "v153"
	MindustryV150         MindustryVersion = "v150"
	MindustryV149         MindustryVersion = "v149"
	MindustryV146         MindustryVersion = "v146"
	MindustryBleedingEdge MindustryVersion = "be"
)

// Tag returns the release tag substituted into gradle descriptors.
// Bleeding edge builds against the newest tagged release.
func (v MindustryVersion) Tag() string {
	switch v {
	case MindustryV146:
		return "v146.8"
	case MindustryBleedingEdge:
		return "v153"
	default:
		return string(v)
	}
}

// ArcPackage returns the maven group of the Arc library for this version.
func (v MindustryVersion) ArcPackage() string {
	if v == MindustryV146 {
		return "com.github.5GameMaker.ArcV7"
	}
	return "com.github.Anuken.Arc"
}

// MindustryPackage returns the maven group of the Mindustry core for this version.
func (v MindustryVersion) MindustryPackage() string {
	if v == MindustryV146 {
		return "com.github.5GameMaker.MindustryV7"
	}
	return "com.github.Anuken.Mindustry"
}

// WatchConfig controls the rebuild-on-change loop.
type WatchConfig struct {
	Patterns   []string `mapstructure:"patterns" json:"patterns"`
	DebounceMS int      `mapstructure:"debounce_ms" json:"debounce_ms"`
}

// Config holds all runtime configuration for a buildscript invocation.
// Values are populated from .buildscript.yaml, BUILDSCRIPT_* env vars, and CLI flags.
type Config struct {
	Mode             Mode             `mapstructure:"mode" json:"mode"`
	GitBackend       GitBackend       `mapstructure:"git_backend" json:"git_backend"`
	MindustryVersion MindustryVersion `mapstructure:"mindustry_version" json:"mindustry_version"`
	PortsStart       int              `mapstructure:"ports_start" json:"ports_start"`
	ServerIP         string           `mapstructure:"server_ip" json:"server_ip"`
	RabbitMQURL      string           `mapstructure:"rabbitmq_url" json:"rabbitmq_url"`
	Stacktrace       bool             `mapstructure:"stacktrace" json:"stacktrace"`
	Verbose          bool             `mapstructure:"verbose" json:"verbose"`
	LogLevel         string           `mapstructure:"log_level" json:"log_level"`
	LogFormat        string           `mapstructure:"log_format" json:"log_format"`
	Watch            WatchConfig      `mapstructure:"watch" json:"watch"`
	// CargoMembers are workspace crates listed in the generated Cargo.toml
	// alongside any a target registers.
	CargoMembers     []string         `mapstructure:"cargo_members" json:"cargo_members"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags. The merged result is
// validated against the embedded JSON schema.
func Load() (Config, error) {
	viper.SetDefault("mode", string(ModeHost))
	viper.SetDefault("git_backend", string(GitHTTPS))
	viper.SetDefault("mindustry_version", string(MindustryV154))
	viper.SetDefault("ports_start", 4100)
	viper.SetDefault("server_ip", "127.0.0.1")
	viper.SetDefault("rabbitmq_url", "")
	viper.SetDefault("stacktrace", false)
	viper.SetDefault("verbose", false)
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("watch.patterns", []string{"coreplugin/**/*.java", "forts/**/*.java", "**/*.gradle"})
	viper.SetDefault("watch.debounce_ms", 500)
	viper.SetDefault("cargo_members", []string{})

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg against the embedded JSON schema.
func Validate(cfg Config) error {
	schema, err := compileSchema()
	if err != nil {
		return fmt.Errorf("config: compile schema: %w", err)
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("config: decode: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("config.schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile("config.schema.json")
}

// LoadDotEnv loads KEY=VALUE pairs from root/.env into the process
// environment. Variables already set are left untouched. A missing file is
// not an error.
func LoadDotEnv(root string) error {
	path := filepath.Join(root, ".env")
	if err := gotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}
