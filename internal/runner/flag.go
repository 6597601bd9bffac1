package runner

import "sync/atomic"

// Flag is a cooperative cancellation flag. Setting it never interrupts an
// attempt in flight; it only stops the next attempt or target from starting.
type Flag struct {
	set atomic.Bool
}

// Set requests cancellation.
func (f *Flag) Set() {
	if f != nil {
		f.set.Store(true)
	}
}

// IsSet reports whether cancellation was requested. A nil Flag is never set.
func (f *Flag) IsSet() bool {
	return f != nil && f.set.Load()
}

// Reset clears the flag.
func (f *Flag) Reset() {
	if f != nil {
		f.set.Store(false)
	}
}
