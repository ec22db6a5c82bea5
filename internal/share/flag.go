// Package share provides the inter-task signaling primitives used by the
// cooperative scheduler: single-slot flags and bounded FIFO queues.
//
// Neither type locks. Every task runs on the scheduler's single goroutine and
// is never preempted mid-step, so a value written during one task's step is
// read whole by any later step.
package share

// Flag is a single-slot signal with exactly one logical writer.
//
// Concurrency invariant: only one task may call Put on a given Flag. Readers
// receive a snapshot of the last written value. A second writer breaks the
// "last write wins, single owner" contract and the resulting value is
// undefined. Flags must not be touched from goroutines other than the
// scheduler's; publish a copy instead (see web telemetry).
type Flag[T any] struct {
	name string
	v    T
}

// NewFlag creates a flag holding initial until the first Put.
func NewFlag[T any](name string, initial T) *Flag[T] {
	return &Flag[T]{name: name, v: initial}
}

// Get returns the last written value, or the initial value.
func (f *Flag[T]) Get() T {
	return f.v
}

// Put overwrites the value unconditionally.
func (f *Flag[T]) Put(v T) {
	f.v = v
}

// Name returns the flag's label.
func (f *Flag[T]) Name() string {
	return f.name
}
