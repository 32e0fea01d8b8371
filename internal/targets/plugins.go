package targets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/papapumpkin/buildscript/internal/hostenv"
	"github.com/papapumpkin/buildscript/internal/mindustry"
	"github.com/papapumpkin/buildscript/internal/target"
	"github.com/papapumpkin/buildscript/internal/workspace"
)

// plugin is a gradle project cloned into the workspace root and included in
// the generated settings.gradle.
type plugin struct {
	dir   string   // checkout directory under the root, also the gradle member
	repo  string   // GitHub owner/name
	tasks []string // gradle tasks producing jar
	jar   string   // artifact name under .bin
}

// acquireCached adopts an existing checkout.
func (pl plugin) acquireCached(p *target.InitParams) bool {
	if !hostenv.IsDir(filepath.Join(p.Root, pl.dir)) {
		return false
	}
	p.AddGradleMember(pl.dir)
	return true
}

// acquireLocal clones the plugin sources.
func (pl plugin) acquireLocal(ctx context.Context, p *target.InitParams) error {
	url := p.Config.GitBackend.RepoURL(pl.repo)
	if err := p.Repos.Clone(ctx, url, filepath.Join(p.Root, pl.dir)); err != nil {
		return fmt.Errorf("cloning %s: %w", url, err)
	}
	p.AddGradleMember(pl.dir)
	return nil
}

// build runs the gradle tasks and checks that the artifact was produced.
func (pl plugin) build(ctx context.Context, p *target.BuildParams) error {
	if err := p.Gradle(ctx, pl.tasks...).Run(); err != nil {
		return fmt.Errorf("gradle %v: %w", pl.tasks, err)
	}
	jar := layout(p.Root).Bin(pl.jar)
	if !hostenv.Exists(jar) {
		return fmt.Errorf("gradle %v did not produce %s", pl.tasks, jar)
	}
	return nil
}

var corePlugin = plugin{
	dir:   "coreplugin",
	repo:  "Darkdustry-Coders/CorePlugin",
	tasks: []string{":coreplugin:build", ":coreplugin:publishAllPublicationsToMavenRepository"},
	jar:   "CorePlugin.jar",
}

type corePluginInit struct{}

type corePluginTarget struct{}

func (corePluginInit) InitializeHost(context.Context, target.Enablement, *target.Collection, *target.InitParams) (target.Target, error) {
	return nil, nil
}

func (corePluginInit) InitializeCached(_ context.Context, _ target.Enablement, _ *target.Collection, p *target.InitParams) (target.Target, error) {
	if !corePlugin.acquireCached(p) {
		return nil, nil
	}
	return &corePluginTarget{}, nil
}

func (corePluginInit) InitializeLocal(ctx context.Context, _ target.Enablement, _ *target.Collection, p *target.InitParams) (target.Target, error) {
	if err := corePlugin.acquireLocal(ctx, p); err != nil {
		return nil, err
	}
	return &corePluginTarget{}, nil
}

func (*corePluginTarget) Build(ctx context.Context, _ *target.Collection, p *target.BuildParams) error {
	return corePlugin.build(ctx, p)
}

// server is a game server: a plugin plus the dedicated server that loads
// it next to the core plugin.
type server struct {
	plugin
	name          string // service name, also the .run subdirectory
	testMap       bool   // copy <dir>/assets/testmap.msav into the maps folder
	gamemode      string
	startCommands string
}

var (
	fortsServer = server{
		plugin: plugin{
			dir:   "forts",
			repo:  "Darkdustry-Coders/Forts",
			tasks: []string{":forts:build"},
			jar:   "Forts.jar",
		},
		name:          "forts",
		testMap:       true,
		gamemode:      "forts",
		startCommands: "host Forts_v1.5 attack",
	}
	hubServer = server{
		plugin: plugin{
			dir:   "hub",
			repo:  "Darkdustry-Coders/LightweightHub",
			tasks: []string{":hub:build"},
			jar:   "LightweightHub.jar",
		},
		name:          "hub",
		testMap:       true,
		gamemode:      "hub",
		startCommands: "host Protohub survival",
	}
	hexedServer = server{
		plugin: plugin{
			dir:   "hexed",
			repo:  "Darkdustry-Coders/HexedPlugin",
			tasks: []string{"build"},
			jar:   "Hexed.jar",
		},
		name: "hexed",
	}
)

type serverInit struct {
	server server
}

type serverTarget struct {
	server
	cmdPath string
	cmdArgs []string
	runDir  string
}

func (serverInit) InitializeHost(context.Context, target.Enablement, *target.Collection, *target.InitParams) (target.Target, error) {
	return nil, nil
}

func (i serverInit) InitializeCached(_ context.Context, _ target.Enablement, _ *target.Collection, p *target.InitParams) (target.Target, error) {
	if !i.server.acquireCached(p) {
		return nil, nil
	}
	return &serverTarget{server: i.server}, nil
}

func (i serverInit) InitializeLocal(ctx context.Context, _ target.Enablement, _ *target.Collection, p *target.InitParams) (target.Target, error) {
	if err := i.server.acquireLocal(ctx, p); err != nil {
		return nil, err
	}
	return &serverTarget{server: i.server}, nil
}

func (s *serverTarget) Build(ctx context.Context, _ *target.Collection, p *target.BuildParams) error {
	return s.build(ctx, p)
}

// RunInit lays out the server directory: plugin jars linked into
// config/mods, the optional test map, corePlugin.toml and settings.bin.
func (s *serverTarget) RunInit(_ context.Context, deps *target.Collection, p *target.RunParams) error {
	java, err := need[*javaTarget](deps, Java, "java")
	if err != nil {
		return err
	}
	game, err := need[*mindustryTarget](deps, Mindustry, "mindustry")
	if err != nil {
		return err
	}

	l := layout(p.Root)
	s.runDir = l.Run(s.name)
	mods := filepath.Join(s.runDir, "config", "mods")
	maps := filepath.Join(s.runDir, "config", "maps")
	for _, dir := range []string{mods, maps} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	for _, jar := range []string{corePlugin.jar, s.jar} {
		if err := relink(l.Bin(jar), filepath.Join(mods, jar)); err != nil {
			return err
		}
	}
	if s.testMap {
		src := filepath.Join(p.Root, s.plugin.dir, "assets", "testmap.msav")
		if err := copyFile(src, filepath.Join(maps, "testmap.msav")); err != nil {
			return err
		}
	}

	conf, err := mindustry.PluginConfig{
		ServerName:       s.name,
		Gamemode:         s.gamemode,
		SharedConfigPath: l.Run(workspace.SharedConfigFile),
	}.Marshal()
	if err != nil {
		return err
	}
	if _, err := workspace.WriteIfDiff(filepath.Join(s.runDir, "config", "corePlugin.toml"), conf); err != nil {
		return err
	}

	settings, err := mindustry.ServerSettings("Template Server", p.NextPort(), s.startCommands).MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := workspace.WriteIfDiff(filepath.Join(s.runDir, "config", "settings.bin"), settings); err != nil {
		return err
	}

	s.cmdPath = java.Java()
	s.cmdArgs = []string{"-jar", game.jar}
	return nil
}

func (s *serverTarget) Run(ctx context.Context, deps *target.Collection, p *target.RunParams) error {
	sup, err := supervisorOf(deps)
	if err != nil {
		return err
	}
	cmd := p.Command(s.cmdPath, s.cmdArgs...)
	cmd.Dir = s.runDir
	return sup.Register(ctx, cmd, s.name)
}
