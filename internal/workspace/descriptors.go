package workspace

import (
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/papapumpkin/buildscript/internal/config"
)

// Descriptor paths relative to the workspace root.
const (
	CargoFile          = "Cargo.toml"
	SettingsFile       = "settings.gradle"
	SharedSettingsFile = "buildscript/assets/shared.settings.gradle"
	SharedConfigFile   = "sharedConfig.toml"
)

var (
	//go:embed assets/settings.gradle.in
	settingsTemplate string

	//go:embed assets/shared.settings.gradle.in
	sharedSettingsTemplate string
)

// Descriptors are the inputs of the generated build descriptors.
type Descriptors struct {
	CargoMembers  []string
	GradleMembers []string
	Version       config.MindustryVersion
}

type cargoManifest struct {
	Workspace cargoWorkspace `toml:"workspace"`
}

type cargoWorkspace struct {
	Resolver string   `toml:"resolver"`
	Members  []string `toml:"members,multiline"`
}

// Cargo renders the cargo workspace manifest.
func (d Descriptors) Cargo() ([]byte, error) {
	members := d.CargoMembers
	if members == nil {
		members = []string{}
	}
	data, err := toml.Marshal(cargoManifest{Workspace: cargoWorkspace{Resolver: "2", Members: members}})
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", CargoFile, err)
	}
	return append([]byte("# Generated by buildscript. Local edits are overwritten on every build.\n"), data...), nil
}

// Settings renders settings.gradle: the template followed by one
// includeBuild line per gradle member, in registration order.
func (d Descriptors) Settings() []byte {
	var b strings.Builder
	b.WriteString(settingsTemplate)
	for _, m := range d.GradleMembers {
		fmt.Fprintf(&b, "\nincludeBuild '%s'", m)
	}
	if len(d.GradleMembers) > 0 {
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// SharedSettings renders the gradle fragment pinning the Mindustry version
// and package coordinates.
func (d Descriptors) SharedSettings() []byte {
	r := strings.NewReplacer(
		"@MINDUSTRY_VERSION@", d.Version.Tag(),
		"@PKG_ARC@", d.Version.ArcPackage(),
		"@PKG_MINDUSTRY@", d.Version.MindustryPackage(),
	)
	return []byte(r.Replace(sharedSettingsTemplate))
}

// WriteDescriptors regenerates every descriptor under root and returns the
// relative paths of the files whose content changed.
func WriteDescriptors(root string, d Descriptors) ([]string, error) {
	cargo, err := d.Cargo()
	if err != nil {
		return nil, err
	}
	files := []struct {
		name string
		data []byte
	}{
		{SharedSettingsFile, d.SharedSettings()},
		{CargoFile, cargo},
		{SettingsFile, d.Settings()},
	}

	var changed []string
	for _, f := range files {
		wrote, err := WriteIfDiff(filepath.Join(root, filepath.FromSlash(f.name)), f.data)
		if err != nil {
			return changed, err
		}
		if wrote {
			changed = append(changed, f.name)
		}
	}
	return changed, nil
}

// SharedConfig is the configuration every service reads from
// .run/sharedConfig.toml.
type SharedConfig struct {
	ServerIP    string `toml:"serverIp"`
	RabbitMQURL string `toml:"rabbitMqUrl"`
}

// WriteSharedConfig writes .run/sharedConfig.toml.
func (l Layout) WriteSharedConfig(c SharedConfig) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", SharedConfigFile, err)
	}
	if _, err := WriteIfDiff(l.Run(SharedConfigFile), data); err != nil {
		return err
	}
	return nil
}
