package ports

import (
	"archsync-backend/domain/core/entities"
)

// SceneUpdate is a partial scene replacement. Nil fields are left as-is.
type SceneUpdate struct {
	Shapes    []*entities.Shape
	ViewState *entities.ViewState
}

// ChangeListener receives locally-originated canvas change notifications.
type ChangeListener func(shapes []*entities.Shape, view entities.ViewState)

// Canvas is the boundary to the rendering/editing library, treated as a
// black box. Programmatic replacements trigger the same change
// notification as user edits; callers arm a SuppressionGate around
// ReplaceScene so that notification is not mistaken for a user edit.
type Canvas interface {
	// Shapes returns the current shape graph.
	Shapes() []*entities.Shape

	// ViewState returns the current camera.
	ViewState() entities.ViewState

	// ReplaceScene swaps in the given shapes and/or view state.
	ReplaceScene(update SceneUpdate)

	// SetChangeListener registers the single change-notification callback.
	SetChangeListener(fn ChangeListener)

	// OnReady registers a callback fired once the scene is loaded. Gates
	// the very first reconciliation/collaboration attempt.
	OnReady(fn func())
}
