package board

import (
	"math"

	"github.com/evanschultz/pitchside/internal/domain"
)

// Droppable is one mounted drop target. Its stage is its only identity.
type Droppable struct {
	Stage domain.StageID
	Rect  Rect
}

// CollisionInput is everything drop resolution needs at release time.
type CollisionInput struct {
	Pointer     Point
	BoardRect   Rect
	ScrollLeft  float64
	ScrollWidth float64
	Stages      []domain.StageID
	Droppables  []Droppable
}

// ResolveDropTarget picks the stage under the pointer.
//
// Inside the board the strip is split into len(Stages) equal segments across the full scroll
// width, so columns scrolled out of view stay reachable. Outside the board, or when the
// scroll width is unknown, it falls back to plain hit testing against Droppables.
func ResolveDropTarget(in CollisionInput) (domain.StageID, bool) {
	n := len(in.Stages)
	if n == 0 {
		return "", false
	}
	if !in.BoardRect.Contains(in.Pointer) || in.ScrollWidth <= 0 {
		return pointerWithin(in.Pointer, in.Droppables)
	}
	x := in.ScrollLeft + (in.Pointer.X - in.BoardRect.Left)
	index := int(math.Floor(x * float64(n) / in.ScrollWidth))
	index = max(0, min(index, n-1))
	return in.Stages[index], true
}

func pointerWithin(p Point, droppables []Droppable) (domain.StageID, bool) {
	for _, d := range droppables {
		if d.Rect.containsHalfOpen(p) {
			return d.Stage, true
		}
	}
	return "", false
}
