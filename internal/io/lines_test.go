package io

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineWriter(t *testing.T) {
	t.Run("writes each line with a newline", func(t *testing.T) {
		var buf bytes.Buffer
		handler := LineWriter(&buf, "")

		require.NoError(t, handler("first"))
		require.NoError(t, handler(""))
		require.NoError(t, handler("third"))

		assert.Equal(t, "first\n\nthird\n", buf.String())
	})

	t.Run("prefixes lines", func(t *testing.T) {
		var buf bytes.Buffer
		handler := LineWriter(&buf, Prefix("stderr", true))

		require.NoError(t, handler("oops"))

		assert.Equal(t, "[stderr] oops\n", buf.String())
	})

	t.Run("returns write errors", func(t *testing.T) {
		handler := LineWriter(&errorWriter{err: errors.New("closed")}, "")

		assert.EqualError(t, handler("x"), "closed")
	})

	t.Run("keeps concurrent lines whole through a flushing writer", func(t *testing.T) {
		mf := &mockFlusher{}
		fw := NewFlushingWriter(mf)
		stdout := LineWriter(fw, "out ")
		stderr := LineWriter(fw, "err ")

		var wg sync.WaitGroup
		for _, handler := range []func(string) error{stdout, stderr} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 100 {
					_ = handler("0123456789")
				}
			}()
		}
		wg.Wait()

		lines := strings.Split(strings.TrimSuffix(mf.String(), "\n"), "\n")
		require.Len(t, lines, 200)
		for _, line := range lines {
			assert.Contains(t, []string{"out 0123456789", "err 0123456789"}, line)
		}
	})
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "", Prefix("stdout", false))
	assert.Equal(t, "[stdout] ", Prefix("stdout", true))
}
