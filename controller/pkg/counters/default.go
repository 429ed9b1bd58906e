package counters

// defaultCounters are a global instance of counters.
// These are used when we dont have an engine at hand.
var defaultCounters = NewCounters()

// CounterError is a convinence function which returns error as well as increments the counter.
func CounterError(t CounterType, err error) error { // nolint
	return defaultCounters.CounterError(t, err)
}

// IncrementCounter increments the given global counter
func IncrementCounter(err CounterType) {
	defaultCounters.IncrementCounter(err)
}

// GetErrorCounters returns the error counters and resets the counters to zero
func GetErrorCounters() []uint32 {
	return defaultCounters.GetErrorCounters()
}
