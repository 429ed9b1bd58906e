package counters

import (
	"sync/atomic"
)

// NewCounters initializes new counters handler. Thread safe.
func NewCounters() *Counters {

	return &Counters{
		counters: make([]uint32, errMax),
	}
}

// CounterNames returns an array of names
func CounterNames() []string {
	names := make([]string, errMax)
	var ct CounterType
	for ct = 0; ct < errMax; ct++ {
		names[ct] = ct.String()
	}
	return names
}

// CounterError is a convinence function which returns error as well as increments the counter.
func (c *Counters) CounterError(t CounterType, err error) error {

	atomic.AddUint32(&c.counters[int(t)], 1)

	return err
}

// IncrementCounter increments the given counter
func (c *Counters) IncrementCounter(t CounterType) {
	atomic.AddUint32(&c.counters[int(t)], 1)
}

// Value returns the current value of a counter without resetting it.
func (c *Counters) Value(t CounterType) uint32 {
	return atomic.LoadUint32(&c.counters[int(t)])
}

// GetErrorCounters returns the error counters and resets the counters to zero
func (c *Counters) GetErrorCounters() []uint32 {

	c.Lock()
	defer c.Unlock()

	report := make([]uint32, errMax)

	for index := range c.counters {
		report[index] = atomic.SwapUint32(&c.counters[index], 0)
	}

	return report
}

// Report returns the non zero counters by name and resets all of them.
func (c *Counters) Report() map[string]uint32 {

	report := map[string]uint32{}
	for index, v := range c.GetErrorCounters() {
		if v != 0 {
			report[CounterType(index).String()] = v
		}
	}

	return report
}
