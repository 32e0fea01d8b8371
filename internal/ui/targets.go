package ui

import (
	"fmt"
	"strings"

	"github.com/papapumpkin/buildscript/internal/ansi"
)

// TargetRow is one line of the target listing.
type TargetRow struct {
	Name       string
	Doc        string
	Requires   []string
	Closure    []string // transitive requirements in declaration order
	Flags      []string
	Enablement string // empty when no goals were given
}

// TargetList prints the registered targets in declaration order.
func (p *Printer) TargetList(rows []TargetRow) {
	p.endProgress()
	width := 0
	for _, r := range rows {
		width = max(width, len(r.Name))
	}
	for _, r := range rows {
		fmt.Fprintf(p.stderr(), ansi.Bold+"%-*s"+ansi.Reset+"  %s", width, r.Name, r.Doc)
		if len(r.Flags) > 0 {
			fmt.Fprintf(p.stderr(), ansi.Yellow+" [%s]"+ansi.Reset, strings.Join(r.Flags, ", "))
		}
		if r.Enablement != "" {
			fmt.Fprintf(p.stderr(), ansi.Cyan+" %s"+ansi.Reset, r.Enablement)
		}
		fmt.Fprintln(p.stderr())
		if len(r.Requires) > 0 {
			fmt.Fprintf(p.stderr(), "%-*s  "+ansi.Dim+"requires %s"+ansi.Reset+"\n", width, "", strings.Join(r.Requires, ", "))
		}
		if len(r.Closure) > len(r.Requires) {
			fmt.Fprintf(p.stderr(), "%-*s  "+ansi.Dim+"pulls in %s"+ansi.Reset+"\n", width, "", strings.Join(r.Closure, ", "))
		}
	}
}
