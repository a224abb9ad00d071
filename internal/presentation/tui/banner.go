// Package tui styles terminal output of the dialtone commands.
package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{"      _ _       _ _                    ", "#34d399"},
	{"   __| (_) __ _| | |_ ___  _ __   ___  ", "#2dd4bf"},
	{"  / _` | |/ _` | | __/ _ \\| '_ \\ / _ \\ ", "#22d3ee"},
	{" | (_| | | (_| | | || (_) | | | |  __/ ", "#38bdf8"},
	{"  \\__,_|_|\\__,_|_|\\__\\___/|_| |_|\\___| ", "#60a5fa"},
}

// PrintBanner writes the dialtone banner followed by the version.
// Colors are dropped when w is not a color terminal.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  v"+version).Faint())
	fmt.Fprintln(w)
}
