// Package supervisor adapts a terminal process multiplexer into a registry of
// long-running service commands. Services register a fully prepared Command
// under a display name; the caller then blocks in Wait until the operator
// quits the multiplexer.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrSupervisorFailed is returned by Wait when the multiplexer exits with a
// non-zero status, and by Register when the control request is rejected.
var ErrSupervisorFailed = errors.New("process supervisor failed")

// ErrNotStarted is returned when registering with a supervisor whose
// multiplexer has not been started.
var ErrNotStarted = errors.New("process supervisor not started")

// Supervisor accepts service commands for supervised execution.
type Supervisor interface {
	// Register hands cmd to the supervisor, which starts it under name.
	Register(ctx context.Context, cmd *Command, name string) error
	// Wait blocks until the supervisor exits.
	Wait() error
}

// Command is a fully prepared child process description.
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  map[string]string
}

// Shell renders c as a single POSIX shell command line of the form
// "cd DIR && K=V ... PROG ARGS". Environment assignments are sorted by key.
func (c *Command) Shell() string {
	var b strings.Builder
	if c.Dir != "" {
		b.WriteString("cd ")
		b.WriteString(Quote(c.Dir))
		b.WriteString(" && ")
	}
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(Quote(c.Env[k]))
		b.WriteByte(' ')
	}
	b.WriteString(Quote(c.Path))
	for _, a := range c.Args {
		b.WriteByte(' ')
		b.WriteString(Quote(a))
	}
	return b.String()
}

// Quote wraps s in single quotes so a POSIX shell reads it as one literal word.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// AddProcMessage encodes the multiplexer control message that adds a process
// running shell under name. The message is a single-line YAML flow mapping.
func AddProcMessage(shell, name string) (string, error) {
	node := &yaml.Node{
		Kind:  yaml.MappingNode,
		Style: yaml.FlowStyle,
		Content: []*yaml.Node{
			scalar("c"), scalar("add-proc"),
			scalar("cmd"), scalar(shell),
			scalar("name"), scalar(name),
		},
	}
	out, err := yaml.Marshal(node)
	if err != nil {
		return "", fmt.Errorf("supervisor: encode control message: %w", err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}
