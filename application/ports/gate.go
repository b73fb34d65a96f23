package ports

import (
	"sync/atomic"
)

// SuppressionGate marks exactly one upcoming change notification as
// self-inflicted. Armed immediately before any programmatic scene
// replacement (load, collaboration snapshot apply, save-triggered
// rewrites); the first Consume after arming returns true and clears the
// gate, so suppression can never leak into a later, unrelated
// notification.
type SuppressionGate struct {
	armed atomic.Bool
}

// NewSuppressionGate creates an unarmed gate.
func NewSuppressionGate() *SuppressionGate {
	return &SuppressionGate{}
}

// Arm marks the next change notification as programmatic.
func (g *SuppressionGate) Arm() {
	g.armed.Store(true)
}

// Consume reports whether the current notification was programmatic. It
// clears the gate, auto-resetting after exactly one notification.
func (g *SuppressionGate) Consume() bool {
	return g.armed.Swap(false)
}

// Armed reports the gate state without clearing it.
func (g *SuppressionGate) Armed() bool {
	return g.armed.Load()
}
