package mindustry

import (
	"errors"
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/papapumpkin/buildscript/internal/config"
)

// PluginConfig is corePlugin.toml, read by the core plugin inside every game
// server.
type PluginConfig struct {
	ServerName       string `toml:"serverName"`
	Gamemode         string `toml:"gamemode,omitempty"`
	SharedConfigPath string `toml:"sharedConfigPath"`
}

// Marshal encodes c as TOML.
func (c PluginConfig) Marshal() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding corePlugin.toml: %w", err)
	}
	return data, nil
}

// ErrNoRelease is returned for versions without a published server jar.
var ErrNoRelease = errors.New("no downloadable server release")

// ServerURL returns the download URL of the dedicated server jar for v.
func ServerURL(v config.MindustryVersion) (string, error) {
	switch v {
	case config.MindustryV146:
		return "https://github.com/5GameMaker/MindustryHotfixv7/releases/download/v146.8/server-release.jar", nil
	case config.MindustryBleedingEdge:
		return "", fmt.Errorf("%w for %s", ErrNoRelease, v)
	case "":
		return "", fmt.Errorf("%w: empty version", ErrNoRelease)
	}
	return "https://github.com/Anuken/Mindustry/releases/download/" + string(v) + "/server-release.jar", nil
}
