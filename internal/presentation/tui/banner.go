package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Funnel ASCII banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	// Using a subtle gradient-like color scheme (Indigo/Violet)
	lines := []struct {
		text  string
		color string
	}{
		{"  _____                       _ ", "#818cf8"},
		{" |  ___|   _ _ __  _ __   ___| |", "#a78bfa"},
		{" | |_ | | | | '_ \\| '_ \\ / _ \\ |", "#c084fc"},
		{" |  _|| |_| | | | | | | |  __/ |", "#e879f9"},
		{" |_|   \\__,_|_| |_|_| |_|\\___|_|", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
