package main

import (
	"fmt"
	"io"

	"github.com/gookit/color"
)

var (
	styleOK    = color.Style{color.FgGreen, color.OpBold}
	styleLabel = color.Style{color.FgCyan}
	styleMuted = color.Style{color.FgGray}
)

func printOK(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleOK.Sprint("✓"), fmt.Sprintf(format, args...))
}

func printField(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "  %s %v\n", styleLabel.Sprintf("%-10s", label+":"), value)
}

func printNote(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleMuted.Sprintf(format, args...))
}
