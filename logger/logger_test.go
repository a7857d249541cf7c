package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}

		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		entries = append(entries, m)
	}

	return entries
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"warn", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := ParseLevel("loud")
		assert.Error(t, err)
	})
}

func TestNew(t *testing.T) {
	t.Run("writes json with service and fields", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := New(Options{Service: "telnetd", Level: "info", Output: &buf})
		require.NoError(t, err)
		defer l.Close()

		l.Info("client connected", Field{Key: "remote", Value: "10.0.0.1:4000"})
		l.Debug("hidden")

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "telnetd", entries[0]["service"])
		assert.Equal(t, "client connected", entries[0]["message"])
		assert.Equal(t, "10.0.0.1:4000", entries[0]["remote"])
		assert.Equal(t, "info", entries[0]["level"])
	})

	t.Run("with attaches fields to derived logger only", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := New(Options{Service: "telnetd", Level: "debug", Output: &buf})
		require.NoError(t, err)

		s := l.With(Field{Key: "session", Value: 7})
		s.Warn("recv failed", Field{Key: "error", Value: errors.New("reset")})
		l.Error("plain")

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 2)
		assert.EqualValues(t, 7, entries[0]["session"])
		assert.Equal(t, "reset", entries[0]["error"])
		_, ok := entries[1]["session"]
		assert.False(t, ok)
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		_, err := New(Options{Level: "verbose"})
		assert.Error(t, err)
	})

	t.Run("writes to daily file when dir is set", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "logs")
		var buf bytes.Buffer
		l, err := New(Options{Service: "telnetd", Dir: dir, Output: &buf})
		require.NoError(t, err)

		l.Info("listening")
		require.NoError(t, l.Close())
		require.NoError(t, l.Close())

		name := filepath.Join(dir, "telnetd_"+time.Now().Format(time.DateOnly)+".log")
		data, err := os.ReadFile(name)
		require.NoError(t, err)
		assert.Contains(t, string(data), "listening")
		assert.Contains(t, buf.String(), "listening")
	})
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Info("nothing")
	l.With(Field{Key: "k", Value: "v"}).Error("nothing")
	assert.NoError(t, l.Close())
}

func TestDailyFileWriter(t *testing.T) {
	dir := t.TempDir()
	w, err := NewDailyFileWriter("svc", dir)
	require.NoError(t, err)

	day := time.Date(2026, 10, 16, 23, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return day }

	t.Run("rotates when the date changes", func(t *testing.T) {
		_, err := w.Write([]byte("first\n"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "svc_2026-10-16.log"), w.CurrentLogFile())

		day = day.Add(2 * time.Minute)
		_, err = w.Write([]byte("second\n"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "svc_2026-10-17.log"), w.CurrentLogFile())

		data, err := os.ReadFile(filepath.Join(dir, "svc_2026-10-17.log"))
		require.NoError(t, err)
		assert.Equal(t, "second\n", string(data))
	})

	t.Run("writes fail after close", func(t *testing.T) {
		require.NoError(t, w.Close())
		require.NoError(t, w.Close())

		_, err := w.Write([]byte("late\n"))
		assert.Error(t, err)
		assert.Empty(t, w.CurrentLogFile())
	})
}
