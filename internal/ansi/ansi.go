// Package ansi holds the escape codes used for operator output and a writer
// that drops the color codes when they would end up as noise in a log file.
package ansi

import "io"

// SGR (Select Graphic Rendition) codes.
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Dim     = "\033[2m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
)

// ClearLine erases the current line; progress lines are redrawn after it.
const ClearLine = "\033[2K"

// StripColor removes SGR sequences from b. Other control sequences, such as
// ClearLine, are kept.
func StripColor(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\033' || i+1 >= len(b) || b[i+1] != '[' {
			out = append(out, b[i])
			continue
		}
		j := i + 2
		for j < len(b) && (b[j] == ';' || (b[j] >= '0' && b[j] <= '9')) {
			j++
		}
		if j < len(b) && b[j] == 'm' {
			i = j
			continue
		}
		out = append(out, b[i])
	}
	return out
}

// Writer returns w itself when color is true and otherwise a writer that
// passes everything through StripColor.
func Writer(w io.Writer, color bool) io.Writer {
	if color {
		return w
	}
	return plainWriter{w}
}

type plainWriter struct {
	w io.Writer
}

func (p plainWriter) Write(b []byte) (int, error) {
	if _, err := p.w.Write(StripColor(b)); err != nil {
		return 0, err
	}
	return len(b), nil
}
