package game

// HitRadius is the distance under which a bullet touches a ship.
const HitRadius = 20.0

// CirclesTouch reports whether two points are strictly closer than r.
func CirclesTouch(x1, y1, x2, y2, r float32) bool {
	dx := x2 - x1
	dy := y2 - y1
	return dx*dx+dy*dy < r*r
}

// Outside reports whether (x, y) lies strictly outside b. Points on the
// edge are inside.
func Outside(x, y float32, b Rect) bool {
	return x < b.X || x > b.X+b.W || y < b.Y || y > b.Y+b.H
}

// Wrap moves v to the opposite edge when it has stepped one cell past
// either end of [0, n). Values further out are not folded.
func Wrap(v, n int) int {
	if v < 0 {
		return n - 1
	}
	if v >= n {
		return 0
	}
	return v
}
