package cli

import (
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/pkg/errors"
)

// clipboardWriter copies secrets to the system clipboard and empties it
// again after clearAfter. Flush empties it at once if a clear is pending.
type clipboardWriter struct {
	write      func(string) error
	clearAfter time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func newClipboardWriter(clearAfter time.Duration) *clipboardWriter {
	return &clipboardWriter{write: clipboard.WriteAll, clearAfter: clearAfter}
}

func (c *clipboardWriter) Copy(value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.write(value); err != nil {
		return errors.Wrap(err, "copy to clipboard")
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.clearAfter <= 0 {
		return nil
	}
	var t *time.Timer
	t = time.AfterFunc(c.clearAfter, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.timer != t {
			return
		}
		c.timer = nil
		_ = c.write("")
	})
	c.timer = t
	return nil
}

// Flush clears the clipboard now when a timed clear has not run yet.
func (c *clipboardWriter) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer == nil {
		return nil
	}
	c.timer.Stop()
	c.timer = nil
	return errors.Wrap(c.write(""), "clear clipboard")
}
