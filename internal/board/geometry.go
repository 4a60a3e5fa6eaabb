package board

// Point is a pointer position in logical pixels.
type Point struct {
	X float64
	Y float64
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Rect is an axis-aligned rectangle in logical pixels.
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Right is the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.Left + r.Width }

// Bottom is the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Contains reports whether p lies inside r, edges inclusive.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left && p.X <= r.Right() && p.Y >= r.Top && p.Y <= r.Bottom()
}

// containsHalfOpen excludes the right and bottom edges so adjacent rects never both match.
func (r Rect) containsHalfOpen(p Point) bool {
	return p.X >= r.Left && p.X < r.Right() && p.Y >= r.Top && p.Y < r.Bottom()
}
