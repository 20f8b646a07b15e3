package sim

import (
	"sync"

	"aisim/internal/engine"
	"aisim/internal/protocol"
)

// Context is the simulation context shared by the control server, the
// stepping loop and the presentation layer. The engine is not safe for
// concurrent use, so every access goes through the lock.
type Context struct {
	mu    sync.RWMutex
	model *engine.Model
}

// NewContext wraps a loaded model.
func NewContext(m *engine.Model) *Context {
	return &Context{model: m}
}

// Snapshot returns the current sensor readings in model order.
func (c *Context) Snapshot() protocol.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sensors := c.model.Sensors()
	snap := make(protocol.Snapshot, len(sensors))
	for i, s := range sensors {
		snap[i] = protocol.Reading{Name: s.Name, Values: s.Values}
	}
	return snap
}

// Apply resolves the command target by name and writes the value into its
// input slot. Unknown names return engine.ErrUnknownActuator and leave the
// engine untouched.
func (c *Context) Apply(cmd protocol.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model.SetControlByName(cmd.Name, cmd.Value)
}

// Step advances the simulation by one timestep and returns the post-step
// step count, simulation time and sensor readings.
func (c *Context) Step() (int, float64, []engine.Sensor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model.Step()
	return c.model.Steps(), c.model.Time(), c.model.Sensors()
}

// Reset restores the initial state and recomputes the sensors.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model.Reset()
}

// View calls fn with the model under the read lock. fn must not retain the
// model or mutate it.
func (c *Context) View(fn func(m *engine.Model)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.model)
}

// Update calls fn with the model under the write lock.
func (c *Context) Update(fn func(m *engine.Model)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.model)
}
