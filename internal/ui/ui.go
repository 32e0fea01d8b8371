// Package ui renders operator-facing progress to stderr.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/papapumpkin/buildscript/internal/ansi"
	"github.com/papapumpkin/buildscript/internal/target"
)

// UI is the operator surface an invocation reports to.
type UI interface {
	TargetAcquired(name string, tier target.Tier)
	PhaseStarted(phase target.Phase, name string)
	ConfirmInstall(name string) bool
	DownloadProgress(url string, done, total int64)
	DescriptorsWritten(files []string)
	RebuildTriggered(changed []string)
	Info(msg string)
	Error(msg string)
}

// Printer writes colored progress lines to stderr and reads confirmations
// from stdin.
type Printer struct {
	in    *bufio.Reader
	tty   bool
	color bool

	progressOpen bool
	progressURL  string
}

// New returns a Printer on the process's standard streams. Download
// progress is only drawn when stderr is a terminal, and colors only when it
// is a terminal and NO_COLOR is unset.
func New() *Printer {
	fd := os.Stderr.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return &Printer{
		in:    bufio.NewReader(os.Stdin),
		tty:   tty,
		color: tty && os.Getenv("NO_COLOR") == "",
	}
}

func (p *Printer) stderr() io.Writer {
	return ansi.Writer(os.Stderr, p.color)
}

// NewWithInput returns a Printer that reads confirmations from in.
func NewWithInput(in io.Reader) *Printer {
	p := New()
	p.in = bufio.NewReader(in)
	return p
}

// TargetAcquired reports how a target was obtained.
func (p *Printer) TargetAcquired(name string, tier target.Tier) {
	p.endProgress()
	color := ansi.Green
	switch tier {
	case target.TierCached:
		color = ansi.Blue
	case target.TierLocal:
		color = ansi.Magenta
	}
	fmt.Fprintf(p.stderr(), color+"✓ %s"+ansi.Reset+ansi.Dim+" (%s)"+ansi.Reset+"\n", name, tier)
}

// PhaseStarted reports a lifecycle pass reaching a target. Initialization
// is reported by TargetAcquired instead.
func (p *Printer) PhaseStarted(phase target.Phase, name string) {
	if phase == target.PhaseInitialize {
		return
	}
	p.endProgress()
	color := ansi.Cyan
	if phase == target.PhaseRun || phase == target.PhaseRunInit {
		color = ansi.Yellow
	}
	fmt.Fprintf(p.stderr(), color+ansi.Bold+"▶ %s"+ansi.Reset+" %s\n", phase, name)
}

// ConfirmInstall asks whether a missing tool may be installed into the
// workspace. Anything but an answer starting with y declines, as does end of
// input.
func (p *Printer) ConfirmInstall(name string) bool {
	p.endProgress()
	fmt.Fprintf(p.stderr(), ansi.Yellow+"Could not find tool %s"+ansi.Reset+"\n", name)
	fmt.Fprintf(p.stderr(), ansi.Bold+"Install in $WORKSPACE/.cache? [yn] > "+ansi.Reset)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(p.stderr())
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return strings.HasPrefix(answer, "y")
}

// DownloadProgressLine formats a progress line without escape codes.
func DownloadProgressLine(url string, done, total int64) string {
	name := path.Base(url)
	if total <= 0 {
		return fmt.Sprintf("↓ %s %s", name, formatBytes(done))
	}
	pct := done * 100 / total
	return fmt.Sprintf("↓ %s %s / %s (%d%%)", name, formatBytes(done), formatBytes(total), pct)
}

// DownloadProgress redraws the progress line of the current download in
// place. It is silent when stderr is not a terminal.
func (p *Printer) DownloadProgress(url string, done, total int64) {
	if !p.tty {
		return
	}
	if p.progressOpen && p.progressURL != url {
		p.endProgress()
	}
	p.progressOpen = true
	p.progressURL = url
	fmt.Fprintf(p.stderr(), "\r"+ansi.ClearLine+ansi.Cyan+"%s"+ansi.Reset, DownloadProgressLine(url, done, total))
	if total > 0 && done >= total {
		p.endProgress()
	}
}

// endProgress terminates an open progress line so later output starts on a
// fresh line.
func (p *Printer) endProgress() {
	if !p.progressOpen {
		return
	}
	fmt.Fprintln(p.stderr())
	p.progressOpen = false
	p.progressURL = ""
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Info prints a dimmed informational line.
func (p *Printer) Info(msg string) {
	p.endProgress()
	fmt.Fprintf(p.stderr(), ansi.Dim+"%s"+ansi.Reset+"\n", msg)
}

// Success prints a highlighted completion line.
func (p *Printer) Success(msg string) {
	p.endProgress()
	fmt.Fprintf(p.stderr(), ansi.Green+ansi.Bold+"✓ %s"+ansi.Reset+"\n", msg)
}

// Warn prints a warning line.
func (p *Printer) Warn(msg string) {
	p.endProgress()
	fmt.Fprintf(p.stderr(), ansi.Yellow+"⚠ %s"+ansi.Reset+"\n", msg)
}

// Error prints an error line.
func (p *Printer) Error(msg string) {
	p.endProgress()
	fmt.Fprintf(p.stderr(), ansi.Red+ansi.Bold+"error: "+ansi.Reset+"%s\n", msg)
}

// DescriptorsWritten lists regenerated build descriptors.
func (p *Printer) DescriptorsWritten(files []string) {
	if len(files) == 0 {
		return
	}
	p.endProgress()
	fmt.Fprintf(p.stderr(), ansi.Dim+"wrote %s"+ansi.Reset+"\n", strings.Join(files, ", "))
}

// RebuildTriggered reports the files that started a watch-mode rebuild.
func (p *Printer) RebuildTriggered(changed []string) {
	p.endProgress()
	const shown = 3
	list := changed
	more := ""
	if len(list) > shown {
		more = fmt.Sprintf(" (+%d more)", len(list)-shown)
		list = list[:shown]
	}
	fmt.Fprintf(p.stderr(), "\n"+ansi.Magenta+ansi.Bold+"── rebuild ──"+ansi.Reset+" %s%s\n", strings.Join(list, ", "), more)
}
