package io

import (
	"bufio"
	"io"
	"sync"
)

// FlushingWriter wraps an io.Writer and flushes after each write so streamed
// command output reaches the terminal as soon as a line is captured.
// It is safe for concurrent use; each Write lands as one unit, so lines from
// stdout and stderr handlers never interleave mid-line.
type FlushingWriter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher interface{ Flush() error }
}

// NewFlushingWriter creates a new FlushingWriter. If the writer already supports
// flushing, it uses that directly. Otherwise, it wraps it in a bufio.Writer.
func NewFlushingWriter(w io.Writer) *FlushingWriter {
	if fw, ok := w.(*FlushingWriter); ok {
		return fw
	}

	fw := &FlushingWriter{w: w}
	if f, ok := w.(interface{ Flush() error }); ok {
		fw.flusher = f
	} else {
		bw := bufio.NewWriter(w)
		fw.w = bw
		fw.flusher = bw
	}

	return fw
}

// Write writes p and flushes before returning.
func (fw *FlushingWriter) Write(p []byte) (n int, err error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	n, err = fw.w.Write(p)
	if err != nil {
		return n, err
	}

	if flushErr := fw.flusher.Flush(); flushErr != nil {
		return n, flushErr
	}

	return n, nil
}

// Flush explicitly flushes any buffered data.
func (fw *FlushingWriter) Flush() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.flusher.Flush()
}
