package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (c *recordingClipboard) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.writes...)
}

func TestClipboardWriter_ClearsAfterTimeout(t *testing.T) {
	clip := &recordingClipboard{}
	w := newClipboardWriter(10 * time.Millisecond)
	w.write = clip.write

	require.NoError(t, w.Copy("secret"))
	assert.Eventually(t, func() bool {
		got := clip.snapshot()
		return len(got) == 2 && got[1] == ""
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Flush())
	assert.Len(t, clip.snapshot(), 2, "nothing pending after the timer ran")
}

func TestClipboardWriter_NewCopyReplacesTimer(t *testing.T) {
	clip := &recordingClipboard{}
	w := newClipboardWriter(time.Hour)
	w.write = clip.write

	require.NoError(t, w.Copy("one"))
	require.NoError(t, w.Copy("two"))
	require.NoError(t, w.Flush())
	assert.Equal(t, []string{"one", "two", ""}, clip.snapshot())
}

func TestClipboardWriter_NoClear(t *testing.T) {
	clip := &recordingClipboard{}
	w := newClipboardWriter(0)
	w.write = clip.write

	require.NoError(t, w.Copy("value"))
	require.NoError(t, w.Flush())
	assert.Equal(t, []string{"value"}, clip.snapshot())
}
