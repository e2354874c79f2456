package io

import (
	"io"
	"strings"
)

// LineWriter returns a line handler that writes each line to w, preceded by
// prefix. The line and its newline go out in a single Write.
func LineWriter(w io.Writer, prefix string) func(line string) error {
	return func(line string) error {
		var b strings.Builder
		b.Grow(len(prefix) + len(line) + 1)
		b.WriteString(prefix)
		b.WriteString(line)
		b.WriteByte('\n')
		_, err := io.WriteString(w, b.String())
		return err
	}
}

// Prefix returns the tag prefix for streamed lines, or "" when
// tagging is off.
func Prefix(tag string, enabled bool) string {
	if !enabled {
		return ""
	}
	return "[" + tag + "] "
}
