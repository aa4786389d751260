package session

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/OCAP2/demotimeline/pkg/core"
)

// Context holds the demo being replayed and the replay position. It is read
// by the log handler from any goroutine.
type Context struct {
	mu     sync.RWMutex
	header *core.DemoHeader
	name   string

	demoTime atomic.Uint64 // float64 bits
	line     atomic.Int64
}

// NewContext creates a Context with default values.
func NewContext() *Context {
	return &Context{name: "No demo loaded"}
}

// Header returns the current demo header, nil before SetDemo.
func (c *Context) Header() *core.DemoHeader {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.header
}

// Name returns the demo name used in log records.
func (c *Context) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// SetDemo sets the current demo.
func (c *Context) SetDemo(name string, header *core.DemoHeader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
	c.header = header
}

func (c *Context) setPosition(line int, t float64) {
	c.line.Store(int64(line))
	c.demoTime.Store(math.Float64bits(t))
}

// DemoTime returns the time of the last dispatched notification.
func (c *Context) DemoTime() float64 {
	return math.Float64frombits(c.demoTime.Load())
}

// Line returns the last dispatched transcript line.
func (c *Context) Line() int {
	return int(c.line.Load())
}

// LogAttrs is a logging.ContextProvider.
func (c *Context) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("demo", c.Name()),
		slog.Float64("demoTime", c.DemoTime()),
		slog.Int("line", c.Line()),
	}
}
