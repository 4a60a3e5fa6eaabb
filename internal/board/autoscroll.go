package board

// Auto-scroll defaults in logical pixels.
const (
	DefaultEdgeZone   = 80
	DefaultScrollStep = 20
)

// Viewport describes the horizontally scrolling board container.
type Viewport struct {
	Rect        Rect
	ScrollLeft  float64
	ScrollWidth float64
	ClientWidth float64
}

// MaxScroll is the largest valid scroll offset.
func (v Viewport) MaxScroll() float64 {
	return max(0, v.ScrollWidth-v.ClientWidth)
}

// AutoScroller advances the board while a dragged pointer rests near a horizontal edge.
type AutoScroller struct {
	EdgeZone float64
	Step     float64
}

// NewAutoScroller returns a scroller with the given zone and step, using defaults for non-positive values.
func NewAutoScroller(edgeZone, step float64) AutoScroller {
	if edgeZone <= 0 {
		edgeZone = DefaultEdgeZone
	}
	if step <= 0 {
		step = DefaultScrollStep
	}
	return AutoScroller{EdgeZone: edgeZone, Step: step}
}

// Next returns the scroll offset for one frame and whether it moved.
// The pointer must be inside the viewport; the left edge wins when both zones overlap.
func (a AutoScroller) Next(pointer Point, vp Viewport) (float64, bool) {
	r := vp.Rect
	if !r.Contains(pointer) {
		return vp.ScrollLeft, false
	}
	next := vp.ScrollLeft
	switch {
	case pointer.X < r.Left+a.EdgeZone:
		next -= a.Step
	case pointer.X > r.Right()-a.EdgeZone:
		next += a.Step
	default:
		return vp.ScrollLeft, false
	}
	next = max(0, min(next, vp.MaxScroll()))
	return next, next != vp.ScrollLeft
}
