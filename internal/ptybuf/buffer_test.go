package ptybuf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_AppendSplitsOnNewlines(t *testing.T) {
	b := New(0)
	b.Append([]byte("hello\nworld\npartial"))

	lines := b.ReadAll()
	require.Equal(t, []string{"hello", "world"}, lines)
	assert.Equal(t, 2, b.TotalLines())
}

func TestBuffer_AppendCompletesPartialAcrossCalls(t *testing.T) {
	b := New(0)
	b.Append([]byte("hel"))
	b.Append([]byte("lo\n"))

	assert.Equal(t, []string{"hello"}, b.ReadAll())
}

func TestBuffer_StripsANSIEscapes(t *testing.T) {
	b := New(0)
	b.Append([]byte("\x1b[31mred text\x1b[0m\n"))

	assert.Equal(t, []string{"red text"}, b.ReadAll())
}

func TestBuffer_StripsCarriageReturns(t *testing.T) {
	b := New(0)
	b.Append([]byte("progress...\rdone\n"))

	assert.Equal(t, []string{"progress...done"}, b.ReadAll())
}

func TestBuffer_EvictsOldestLinesPastMax(t *testing.T) {
	b := New(2)
	b.AppendText("a\nb\nc\n")

	assert.Equal(t, []string{"b", "c"}, b.ReadAll())
	assert.Equal(t, 3, b.TotalLines(), "eviction must not affect the total line counter")
}

func TestBuffer_ReadTailReturnsMostRecent(t *testing.T) {
	b := New(0)
	b.AppendText("1\n2\n3\n4\n5\n")

	assert.Equal(t, []string{"3", "4", "5"}, b.ReadTail(3))
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, b.ReadTail(100))
}

func TestBuffer_ReadReturnsWindowAtOffset(t *testing.T) {
	b := New(0)
	b.AppendText("1\n2\n3\n4\n5\n")

	assert.Equal(t, []string{"2", "3"}, b.Read(1, 2))
	assert.Equal(t, []string{"5"}, b.Read(4, 10))
	assert.Empty(t, b.Read(10, 10))
	assert.Empty(t, b.Read(0, 0))
}

func TestBuffer_ReadClampsNegativeOffset(t *testing.T) {
	b := New(0)
	b.AppendText("1\n2\n3\n")

	assert.Equal(t, []string{"1", "2"}, b.Read(-5, 2))
}

func TestBuffer_SearchReturnsIndexLinePairs(t *testing.T) {
	b := New(0)
	b.AppendText("main: entry point\nhelper: noop\nmain: exit\n")

	matches, err := b.Search("^main:", 0)
	require.NoError(t, err)
	assert.Equal(t, []Match{
		{Index: 0, Line: "main: entry point"},
		{Index: 2, Line: "main: exit"},
	}, matches)
}

func TestBuffer_SearchRespectsLimit(t *testing.T) {
	b := New(0)
	b.AppendText("a\na\na\n")

	matches, err := b.Search("a", 2)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestBuffer_SearchReturnsErrorOnInvalidPattern(t *testing.T) {
	b := New(0)
	b.AppendText("line\n")

	_, err := b.Search("(", 0)
	require.Error(t, err)
}

func TestBuffer_WaitForDataIsEdgeTriggered(t *testing.T) {
	b := New(0)
	b.AppendText("already here\n")

	done := make(chan bool, 1)
	go func() {
		done <- b.WaitForData(200 * time.Millisecond)
	}()

	select {
	case got := <-done:
		assert.False(t, got, "WaitForData must not fire for data appended before the wait began")
	case <-time.After(500 * time.Millisecond):
		t.Fatal("WaitForData did not return")
	}
}

func TestBuffer_WaitForDataWakesOnNewAppend(t *testing.T) {
	b := New(0)

	done := make(chan bool, 1)
	go func() {
		done <- b.WaitForData(2 * time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	b.AppendText("new line\n")

	select {
	case got := <-done:
		assert.True(t, got)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForData did not wake on new data")
	}
}

func TestBuffer_Clear(t *testing.T) {
	b := New(0)
	b.AppendText("one\ntwo\n")
	b.Clear()

	assert.Empty(t, b.ReadAll())
	assert.Equal(t, 2, b.TotalLines())
}
