// Package clock provides the logical tick clock the scheduler counts periods in.
package clock

import (
	"sync"

	"QuantSentinel/internal/model"
)

// Clock reports the current logical tick.
type Clock interface {
	Now() model.Tick
}

// Logical is a manually advanced clock.
type Logical struct {
	mu  sync.Mutex
	now model.Tick
}

// NewLogical starts a clock at tick start. Tick 0 is reserved for "stopped",
// so an instance cannot be started until the clock has advanced past it.
func NewLogical(start model.Tick) *Logical {
	return &Logical{now: start}
}

func (c *Logical) Now() model.Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by n ticks and returns the new tick.
func (c *Logical) Advance(n uint64) model.Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += model.Tick(n)
	return c.now
}

// Set jumps the clock to t. Used when restoring persisted state.
func (c *Logical) Set(t model.Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
