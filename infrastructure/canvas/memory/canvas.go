// Package memory provides an in-process canvas: the scene lives in plain
// slices and change notifications fire synchronously, mirroring how the
// rendering framework notifies on programmatic replacement. Used by tests
// and headless embeddings.
package memory

import (
	"sync"

	"archsync-backend/application/ports"
	"archsync-backend/domain/core/entities"
)

// Canvas is an in-memory ports.Canvas.
type Canvas struct {
	mu       sync.Mutex
	shapes   []*entities.Shape
	view     entities.ViewState
	listener ports.ChangeListener
	readyFns []func()
	ready    bool
}

var _ ports.Canvas = (*Canvas)(nil)

// NewCanvas creates a canvas holding the given initial scene.
func NewCanvas(shapes []*entities.Shape) *Canvas {
	return &Canvas{shapes: shapes}
}

// Shapes returns the current shape graph.
func (c *Canvas) Shapes() []*entities.Shape {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shapes
}

// ViewState returns the current camera.
func (c *Canvas) ViewState() entities.ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// ReplaceScene swaps in the update and fires the change notification
// synchronously, exactly like a framework-driven replacement would.
func (c *Canvas) ReplaceScene(update ports.SceneUpdate) {
	c.mu.Lock()
	if update.Shapes != nil {
		c.shapes = update.Shapes
	}
	if update.ViewState != nil {
		c.view = *update.ViewState
	}
	shapes := c.shapes
	view := c.view
	listener := c.listener
	c.mu.Unlock()

	if listener != nil {
		listener(shapes, view)
	}
}

// SetChangeListener registers the single change-notification callback.
func (c *Canvas) SetChangeListener(fn ports.ChangeListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = fn
}

// OnReady registers a callback fired once the scene is loaded. Callbacks
// registered after Ready fire immediately.
func (c *Canvas) OnReady(fn func()) {
	c.mu.Lock()
	if c.ready {
		c.mu.Unlock()
		fn()
		return
	}
	c.readyFns = append(c.readyFns, fn)
	c.mu.Unlock()
}

// Ready marks the scene as loaded and fires pending callbacks.
func (c *Canvas) Ready() {
	c.mu.Lock()
	if c.ready {
		c.mu.Unlock()
		return
	}
	c.ready = true
	fns := c.readyFns
	c.readyFns = nil
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// EmitLocalChange simulates a user edit: it mutates nothing and only fires
// the change notification.
func (c *Canvas) EmitLocalChange() {
	c.mu.Lock()
	shapes := c.shapes
	view := c.view
	listener := c.listener
	c.mu.Unlock()

	if listener != nil {
		listener(shapes, view)
	}
}
