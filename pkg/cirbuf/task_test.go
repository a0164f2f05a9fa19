package cirbuf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTaskDiscardsStalledPacket(t *testing.T) {
	b := New(16, TypePacket, FormatBinary, WithPartialTimeout(100*time.Millisecond))
	now := time.Unix(1000, 0)
	require.NoError(t, b.PutPacket([]byte{1}))
	b.Task(now)
	b.Task(now.Add(time.Second))
	require.Equal(t, 2, b.Count(), "whole packets are kept")

	b.RemovePacket()
	b.PutArray([]byte{4, 1, 2})
	b.Task(now)
	b.Task(now.Add(50 * time.Millisecond))
	require.Equal(t, 3, b.Count())
	b.PutByte(3)
	b.Task(now.Add(120 * time.Millisecond))
	require.Equal(t, 4, b.Count(), "progress restarts the timer")
	b.Task(now.Add(200 * time.Millisecond))
	require.Equal(t, 4, b.Count())
	b.Task(now.Add(230 * time.Millisecond))
	require.True(t, b.IsEmpty())
	require.Equal(t, StatusUnderflow, b.Status())
}

func TestTaskDiscardsUnterminatedFrame(t *testing.T) {
	b := New(16, TypeStreaming, FormatASCIIEsc, WithPartialTimeout(time.Second))
	now := time.Unix(1000, 0)
	b.PutString("abc")
	b.Task(now)
	b.Task(now.Add(2 * time.Second))
	require.True(t, b.IsEmpty())

	b.PutString("abc\n")
	b.Task(now)
	b.Task(now.Add(2 * time.Second))
	require.Equal(t, 4, b.Count())
}

func TestTaskDisabled(t *testing.T) {
	b := New(16, TypePacket, FormatBinary)
	b.PutByte(5)
	now := time.Now()
	b.Task(now)
	b.Task(now.Add(time.Hour))
	require.Equal(t, 1, b.Count())
	require.Equal(t, StatusNone, b.Status())
}
