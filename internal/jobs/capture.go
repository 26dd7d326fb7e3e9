package jobs

import (
	"bytes"
	"strings"
	"sync"
)

// capture keeps everything a process writes to one stream and hands each
// complete line to emit as it arrives. Progress bars that redraw with '\r'
// are split the same way as newlines.
type capture struct {
	mu      sync.Mutex
	all     bytes.Buffer
	pending []byte
	emit    func(line string)
}

func newCapture(emit func(line string)) *capture {
	return &capture{emit: emit}
}

func (c *capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.all.Write(p)
	c.pending = append(c.pending, p...)
	for {
		i := bytes.IndexAny(c.pending, "\r\n")
		if i < 0 {
			break
		}
		if line := strings.TrimSpace(string(c.pending[:i])); line != "" && c.emit != nil {
			c.emit(line)
		}
		c.pending = c.pending[i+1:]
	}
	return len(p), nil
}

// flush emits a trailing partial line, if any.
func (c *capture) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if line := strings.TrimSpace(string(c.pending)); line != "" && c.emit != nil {
		c.emit(line)
	}
	c.pending = nil
}

func (c *capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.all.String()
}
