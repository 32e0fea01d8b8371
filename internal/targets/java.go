package targets

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"

	"github.com/papapumpkin/buildscript/internal/hostenv"
	"github.com/papapumpkin/buildscript/internal/target"
)

const temurinURL = "https://github.com/adoptium/temurin21-binaries/releases/download/jdk-21.0.7%2B6/OpenJDK21U-jdk_x64_linux_hotspot_21.0.7_6.tar.gz"

// minJavaVersion is the oldest feature release the plugins compile with.
const minJavaVersion = 17

type javaInit struct {
	opts Options
}

type javaTarget struct {
	home string
}

// Java returns the path of the java launcher.
func (j *javaTarget) Java() string {
	return filepath.Join(j.home, "bin", exeName("java"))
}

func exeName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func (i javaInit) InitializeHost(ctx context.Context, _ target.Enablement, _ *target.Collection, _ *target.InitParams) (target.Target, error) {
	if home := i.opts.getenv("JAVA_HOME"); home != "" && usableJDK(ctx, home) {
		return &javaTarget{home: home}, nil
	}
	entries, err := os.ReadDir(i.opts.JVMDir)
	if err != nil {
		return nil, nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		home := filepath.Join(i.opts.JVMDir, name)
		if usableJDK(ctx, home) {
			return &javaTarget{home: hostenv.Resolve(home)}, nil
		}
	}
	return nil, nil
}

func (javaInit) InitializeCached(_ context.Context, _ target.Enablement, _ *target.Collection, p *target.InitParams) (target.Target, error) {
	home := layout(p.Root).Tool("java")
	if !hostenv.IsExecutable(filepath.Join(home, "bin", exeName("javac"))) ||
		!hostenv.IsExecutable(filepath.Join(home, "bin", exeName("java"))) {
		return nil, nil
	}
	return &javaTarget{home: home}, nil
}

func (javaInit) InitializeLocal(ctx context.Context, _ target.Enablement, _ *target.Collection, p *target.InitParams) (target.Target, error) {
	if runtime.GOOS != "linux" || runtime.GOARCH != "amd64" {
		return nil, unsupported("java")
	}
	if err := installArchive(ctx, p, "java", temurinURL, "archive.tar.gz", 1); err != nil {
		return nil, err
	}
	return &javaTarget{home: layout(p.Root).Tool("java")}, nil
}

func (j *javaTarget) Build(_ context.Context, _ *target.Collection, p *target.BuildParams) error {
	p.Env["JAVA_HOME"] = j.home
	p.Path = append(p.Path, filepath.Join(j.home, "bin"))
	return nil
}

// usableJDK reports whether home holds a compiler and a runtime of at least
// minJavaVersion.
func usableJDK(ctx context.Context, home string) bool {
	bin := filepath.Join(home, "bin")
	if !hostenv.IsExecutable(filepath.Join(bin, exeName("javac"))) {
		return false
	}
	v, ok := javaVersion(ctx, filepath.Join(bin, exeName("java")))
	return ok && v >= minJavaVersion
}

var versionRe = regexp.MustCompile(`version "(\d+)(?:\.(\d+))?`)

// javaVersion runs java -version and returns the feature release number.
// Legacy "1.x" strings report x.
func javaVersion(ctx context.Context, java string) (int, bool) {
	cmd := exec.CommandContext(ctx, java, "-version")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return 0, false
	}
	return parseJavaVersion(out.String())
}

func parseJavaVersion(s string) (int, bool) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	if major == 1 && m[2] != "" {
		minor, err := strconv.Atoi(m[2])
		if err != nil {
			return 0, false
		}
		return minor, true
	}
	return major, true
}
