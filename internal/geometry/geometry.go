// Package geometry holds the normalized-box math shared by the orchestrator
// and any renderer. All functions are pure: no job or network knowledge.
package geometry

import "github.com/playsight/api/internal/model"

// Epsilon tolerated on containment checks so float accumulation at the frame
// edge does not reject a legal box.
const Epsilon = 1e-9

// Point is a position in display pixels.
type Point struct {
	X float64
	Y float64
}

// Size is a display container size in pixels.
type Size struct {
	W float64
	H float64
}

// Handle identifies which corner or edge of a box a resize gesture grabs.
type Handle int

const (
	HandleN Handle = iota
	HandleS
	HandleE
	HandleW
	HandleNE
	HandleNW
	HandleSE
	HandleSW
)

// Clamp01 clamps v into [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// BoxFromDrag converts a pixel drag into a normalized box anchored to the
// container. Returns false when the container is degenerate or the drag has
// no area; a violating drag must produce no box.
func BoxFromDrag(start, end Point, container Size) (model.Box, bool) {
	if container.W <= 0 || container.H <= 0 {
		return model.Box{}, false
	}
	x1 := Clamp01(start.X / container.W)
	y1 := Clamp01(start.Y / container.H)
	x2 := Clamp01(end.X / container.W)
	y2 := Clamp01(end.Y / container.H)
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	b := model.Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
	if b.W <= 0 || b.H <= 0 {
		return model.Box{}, false
	}
	return b, true
}

// OutOfBounds reports whether b leaves the [0,1] frame space.
func OutOfBounds(b model.Box) bool {
	return b.X < -Epsilon || b.Y < -Epsilon ||
		b.X+b.W > 1+Epsilon || b.Y+b.H > 1+Epsilon ||
		b.W <= 0 || b.H <= 0
}

// SizeOutOfBand reports whether either dimension falls outside [min,max].
func SizeOutOfBand(b model.Box, min, max float64) bool {
	return b.W < min || b.H < min || b.W > max || b.H > max
}

// Resize applies a handle drag to origin, in normalized units. Width and
// height never drop below min and the box never leaves [0,1].
func Resize(origin model.Box, handle Handle, dx, dy float64, min float64) model.Box {
	b := origin
	moveW := func(d float64) {
		nx := b.X + d
		if nx < 0 {
			nx = 0
		}
		if b.X+b.W-nx < min {
			nx = b.X + b.W - min
		}
		b.W = b.X + b.W - nx
		b.X = nx
	}
	moveE := func(d float64) {
		nw := b.W + d
		if nw < min {
			nw = min
		}
		if b.X+nw > 1 {
			nw = 1 - b.X
		}
		b.W = nw
	}
	moveN := func(d float64) {
		ny := b.Y + d
		if ny < 0 {
			ny = 0
		}
		if b.Y+b.H-ny < min {
			ny = b.Y + b.H - min
		}
		b.H = b.Y + b.H - ny
		b.Y = ny
	}
	moveS := func(d float64) {
		nh := b.H + d
		if nh < min {
			nh = min
		}
		if b.Y+nh > 1 {
			nh = 1 - b.Y
		}
		b.H = nh
	}

	switch handle {
	case HandleN:
		moveN(dy)
	case HandleS:
		moveS(dy)
	case HandleE:
		moveE(dx)
	case HandleW:
		moveW(dx)
	case HandleNE:
		moveN(dy)
		moveE(dx)
	case HandleNW:
		moveN(dy)
		moveW(dx)
	case HandleSE:
		moveS(dy)
		moveE(dx)
	case HandleSW:
		moveS(dy)
		moveW(dx)
	}
	return b
}

// MapToPixels converts a normalized box into display pixels for a container.
func MapToPixels(b model.Box, container Size) (x, y, w, h float64) {
	return b.X * container.W, b.Y * container.H, b.W * container.W, b.H * container.H
}
