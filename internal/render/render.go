// Package render holds the shared terminal-table conventions used by
// the report renderers.
package render

import (
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// Colorize reports whether output to w should carry ANSI colors.
func Colorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// NewTable builds a table writer mirrored to w, with the title set when
// non-empty.
func NewTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.Style().Format.Header = text.FormatDefault
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

// StatusCell colors a status word green or red for terminals and leaves
// it alone when piped.
func StatusCell(w io.Writer, value string, ok bool) string {
	if !Colorize(w) {
		return value
	}
	if ok {
		return text.FgGreen.Sprint(value)
	}
	return text.FgRed.Sprint(value)
}
