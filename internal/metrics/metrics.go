// Package metrics collects counters for the push fan-out and the match
// controller.
package metrics

// Metrics decouples callers from the Prometheus implementation.
type Metrics interface {
	SetSubscribers(n int)
	IncPublishes()
	IncDroppedSubscribers()
	IncMutations(op string, ok bool)
}

// Nop discards everything.
type Nop struct{}

func (Nop) SetSubscribers(int)        {}
func (Nop) IncPublishes()             {}
func (Nop) IncDroppedSubscribers()    {}
func (Nop) IncMutations(string, bool) {}
