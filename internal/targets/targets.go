// Package targets declares the concrete kinds of the workspace: the tools
// the game servers need, the plugin sources, and the servers themselves.
package targets

import (
	"os"

	"github.com/papapumpkin/buildscript/internal/target"
)

// Kinds in declaration order. Every lifecycle pass visits them in this order.
const (
	Mprocs target.Kind = iota
	Coreutils
	RabbitMQ
	SurrealDB
	Mindustry
	Java
	CorePlugin
	Forts
	Hub
	Hexed
)

// Options tunes host detection.
type Options struct {
	// Getenv reads the host environment; nil uses os.Getenv.
	Getenv func(string) string
	// JVMDir is scanned for JDK installs when JAVA_HOME is unusable.
	JVMDir string
}

func (o Options) getenv(key string) string {
	if o.Getenv == nil {
		return os.Getenv(key)
	}
	return o.Getenv(key)
}

// Registry returns the registration table with default host detection.
func Registry() (*target.Registry, error) {
	return NewRegistry(Options{})
}

// NewRegistry returns the registration table.
func NewRegistry(opts Options) (*target.Registry, error) {
	if opts.JVMDir == "" {
		opts.JVMDir = "/usr/lib/jvm"
	}
	return target.NewRegistry(
		target.Spec{
			Kind:  Mprocs,
			Name:  "mprocs",
			Doc:   "terminal process multiplexer supervising every service",
			Flags: target.Flags{AlwaysLocal: true, Supervisor: true},
			Init:  mprocsInit{},
		},
		target.Spec{
			Kind: Coreutils,
			Name: "coreutils",
			Doc:  "POSIX userland for service start scripts",
			Init: coreutilsInit{},
		},
		target.Spec{
			Kind:     RabbitMQ,
			Name:     "rabbitmq",
			Doc:      "message broker linking the game servers",
			Requires: []target.Kind{Coreutils},
			Init:     rabbitmqInit{},
		},
		target.Spec{
			Kind:  SurrealDB,
			Name:  "surrealdb",
			Doc:   "database backing player data",
			Flags: target.Flags{AlwaysLocal: true},
			Init:  surrealInit{},
		},
		target.Spec{
			Kind:     Mindustry,
			Name:     "mindustry",
			Doc:      "dedicated server jar",
			Flags:    target.Flags{AlwaysLocal: true},
			Requires: []target.Kind{Java},
			Init:     mindustryInit{},
		},
		target.Spec{
			Kind:     Java,
			Name:     "java",
			Doc:      "JDK 17 or newer",
			Requires: []target.Kind{Coreutils},
			Init:     javaInit{opts: opts},
		},
		target.Spec{
			Kind:     CorePlugin,
			Name:     "coreplugin",
			Doc:      "shared plugin loaded by every game server",
			Flags:    target.Flags{AlwaysLocal: true},
			Requires: []target.Kind{Java, RabbitMQ, SurrealDB, Mindustry},
			Init:     corePluginInit{},
		},
		target.Spec{
			Kind:     Forts,
			Name:     "forts",
			Doc:      "forts game mode server",
			Flags:    target.Flags{AlwaysLocal: true},
			Requires: []target.Kind{Java, CorePlugin},
			Init:     serverInit{fortsServer},
		},
		target.Spec{
			Kind:     Hub,
			Name:     "hub",
			Doc:      "lobby server",
			Flags:    target.Flags{AlwaysLocal: true, Deprecated: true},
			Requires: []target.Kind{Java, CorePlugin},
			Init:     serverInit{hubServer},
		},
		target.Spec{
			Kind:     Hexed,
			Name:     "hexed",
			Doc:      "hexed game mode server",
			Flags:    target.Flags{AlwaysLocal: true, Deprecated: true},
			Requires: []target.Kind{Java, CorePlugin},
			Init:     serverInit{hexedServer},
		},
	)
}
