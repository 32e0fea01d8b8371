package targets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/papapumpkin/buildscript/internal/config"
	"github.com/papapumpkin/buildscript/internal/mindustry"
	"github.com/papapumpkin/buildscript/internal/target"
	"github.com/papapumpkin/buildscript/internal/workspace"
)

func TestParseApplets(t *testing.T) {
	t.Parallel()
	usage := `BusyBox v1.35.0 (2022-01-17 19:57:02 CET) multi-call binary.
Usage: busybox [function [arguments]...]

Currently defined functions:
	[, [[, acpid, add-shell, addgroup,
	yes, zcat
`
	got := parseApplets(usage)
	want := []string{"[", "[[", "acpid", "add-shell", "addgroup", "yes", "zcat"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseApplets = %v, want %v", got, want)
	}
	if got := parseApplets("no listing here"); got != nil {
		t.Errorf("parseApplets without header = %v, want nil", got)
	}
}

func TestParseJavaVersion(t *testing.T) {
	t.Parallel()
	tests := []struct {
		out  string
		want int
		ok   bool
	}{
		{`openjdk version "21.0.7" 2025-04-15 LTS`, 21, true},
		{`openjdk version "17" 2021-09-14`, 17, true},
		{`java version "1.8.0_402"`, 8, true},
		{`Picked up _JAVA_OPTIONS: -Xmx1g` + "\n" + `openjdk version "11.0.22"`, 11, true},
		{`garbage`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.out, func(t *testing.T) {
			t.Parallel()
			got, ok := parseJavaVersion(tt.out)
			if got != tt.want || ok != tt.ok {
				t.Errorf("parseJavaVersion = %d, %v; want %d, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

// fakeJDK lays out a JDK whose java reports version.
func fakeJDK(t *testing.T, home, version string) {
	t.Helper()
	writeExecutable(t, filepath.Join(home, "bin", "javac"), "#!/bin/sh\nexit 0\n")
	writeExecutable(t, filepath.Join(home, "bin", "java"),
		"#!/bin/sh\necho 'openjdk version \""+version+"\" 2024-01-16' >&2\n")
}

func TestJavaHost(t *testing.T) {
	skipWindows(t)
	t.Parallel()

	tests := []struct {
		name     string
		javaHome string // relative to the temp dir, "" for unset
		jdks     map[string]string
		want     string
	}{
		{"java home", "home", map[string]string{"home": "21.0.2"}, "home"},
		{"java home too old falls back to jvm dir", "home",
			map[string]string{"home": "11.0.1", "jvm/java-17": "17.0.9"}, "jvm/java-17"},
		{"jvm dir first usable", "",
			map[string]string{"jvm/java-11": "11.0.1", "jvm/java-21": "21.0.2"}, "jvm/java-21"},
		{"nothing usable", "", map[string]string{"jvm/java-8": "1.8.0_402"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			for rel, v := range tt.jdks {
				fakeJDK(t, filepath.Join(dir, rel), v)
			}
			env := map[string]string{}
			if tt.javaHome != "" {
				env["JAVA_HOME"] = filepath.Join(dir, tt.javaHome)
			}
			ji := javaInit{opts: Options{
				Getenv: func(k string) string { return env[k] },
				JVMDir: filepath.Join(dir, "jvm"),
			}}

			got, err := ji.InitializeHost(context.Background(), target.Build, nil, nil)
			if err != nil {
				t.Fatal(err)
			}
			if tt.want == "" {
				if got != nil {
					t.Errorf("got %+v, want no host JDK", got)
				}
				return
			}
			want, _ := filepath.EvalSymlinks(filepath.Join(dir, tt.want))
			j, ok := got.(*javaTarget)
			if !ok {
				t.Fatalf("got %T, want *javaTarget", got)
			}
			gotHome, _ := filepath.EvalSymlinks(j.home)
			if gotHome != want {
				t.Errorf("home = %q, want %q", j.home, want)
			}
		})
	}
}

func TestJavaBuild(t *testing.T) {
	t.Parallel()
	j := &javaTarget{home: "/ws/.cache/tools/java"}
	b := &target.BuildParams{Env: map[string]string{}}
	if err := j.Build(context.Background(), nil, b); err != nil {
		t.Fatal(err)
	}
	if b.Env["JAVA_HOME"] != j.home {
		t.Errorf("JAVA_HOME = %q", b.Env["JAVA_HOME"])
	}
	if want := []string{filepath.Join(j.home, "bin")}; !reflect.DeepEqual(b.Path, want) {
		t.Errorf("Path = %v, want %v", b.Path, want)
	}
}

func TestCoreutilsHost(t *testing.T) {
	skipWindows(t)
	t.Parallel()

	full := t.TempDir()
	for _, name := range append([]string{"xargs"}, coreutilsProbe...) {
		writeExecutable(t, filepath.Join(full, name), "#!/bin/sh\n")
	}
	partial := t.TempDir()
	writeExecutable(t, filepath.Join(partial, "xargs"), "#!/bin/sh\n")

	tests := []struct {
		name string
		host fakeHost
		want string
	}{
		{"complete userland", fakeHost{"xargs": filepath.Join(full, "xargs")}, full},
		{"missing applets", fakeHost{"xargs": filepath.Join(partial, "xargs")}, ""},
		{"no xargs", fakeHost{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := target.NewInitParams(t.TempDir(), config.Config{}, nil, tt.host, nil)
			got, err := coreutilsInit{}.InitializeHost(context.Background(), target.Dependency, nil, p)
			if err != nil {
				t.Fatal(err)
			}
			if tt.want == "" {
				if got != nil {
					t.Errorf("got %+v, want nil", got)
				}
				return
			}
			if c, ok := got.(*coreutilsTarget); !ok || c.dir != tt.want {
				t.Errorf("got %+v, want dir %q", got, tt.want)
			}
		})
	}
}

func TestCoreutilsCached(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	p, _, _ := initParams(t, root)

	got, err := coreutilsInit{}.InitializeCached(context.Background(), target.Dependency, nil, p)
	if err != nil || got != nil {
		t.Fatalf("empty cache = %v, %v; want nil, nil", got, err)
	}
	dir := workspace.Layout{Root: root}.Tool("coreutils")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	got, err = coreutilsInit{}.InitializeCached(context.Background(), target.Dependency, nil, p)
	if err != nil {
		t.Fatal(err)
	}
	b := &target.BuildParams{Env: map[string]string{}}
	if err := got.Build(context.Background(), nil, b); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(b.Path, []string{dir}) {
		t.Errorf("Path = %v, want [%s]", b.Path, dir)
	}
}

func TestMindustry_LocalThenCached(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	p, f, _ := initParams(t, root)
	ctx := context.Background()

	if got, _ := (mindustryInit{}).InitializeCached(ctx, target.Dependency, nil, p); got != nil {
		t.Fatal("cache should start empty")
	}
	got, err := mindustryInit{}.InitializeLocal(ctx, target.Dependency, nil, p)
	if err != nil {
		t.Fatal(err)
	}
	jar := workspace.Layout{Root: root}.Tool("mindustry", "server-v146.jar")
	wantURL, _ := mindustry.ServerURL(config.MindustryV146)
	if len(f.downloads) != 1 || f.downloads[0] != (download{wantURL, jar}) {
		t.Errorf("downloads = %v", f.downloads)
	}
	if m := got.(*mindustryTarget); m.jar != jar {
		t.Errorf("jar = %q, want %q", m.jar, jar)
	}

	cached, err := mindustryInit{}.InitializeCached(ctx, target.Dependency, nil, p)
	if err != nil || cached == nil {
		t.Fatalf("cached = %v, %v; want the downloaded jar", cached, err)
	}
	b := &target.BuildParams{Env: map[string]string{}}
	if err := cached.Build(ctx, nil, b); err != nil {
		t.Fatal(err)
	}
	if b.Env["MINDUSTRY_PATH"] != jar {
		t.Errorf("MINDUSTRY_PATH = %q, want %q", b.Env["MINDUSTRY_PATH"], jar)
	}
}

func TestMindustry_BleedingEdgeHasNoRelease(t *testing.T) {
	t.Parallel()
	p, f, _ := initParams(t, t.TempDir())
	p.Config.MindustryVersion = config.MindustryBleedingEdge
	_, err := mindustryInit{}.InitializeLocal(context.Background(), target.Dependency, nil, p)
	if !errors.Is(err, mindustry.ErrNoRelease) {
		t.Errorf("err = %v, want ErrNoRelease", err)
	}
	if len(f.downloads) != 0 {
		t.Errorf("downloads = %v, want none", f.downloads)
	}
}
