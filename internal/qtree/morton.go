package qtree

import "math"

// Outside is the Morton code returned for points that fall outside the world
const Outside = -1

// MaxSupportedLevel bounds maxLevel so interleaved codes fit in 32 bits and
// the backing array stays allocatable
const MaxSupportedLevel = 12

// Rect is an axis-aligned rectangle given by its center and full extents
type Rect struct {
	X, Y float64 // center
	W, H float64
}

// MinX returns the left edge
func (r Rect) MinX() float64 { return r.X - r.W/2 }

// MinY returns the top edge
func (r Rect) MinY() float64 { return r.Y - r.H/2 }

// MaxX returns the right edge
func (r Rect) MaxX() float64 { return r.X + r.W/2 }

// MaxY returns the bottom edge
func (r Rect) MaxY() float64 { return r.Y + r.H/2 }

// Overlap reports whether two centered rectangles intersect. Touching edges count.
func Overlap(a, b Rect) bool {
	return math.Abs(a.X-b.X)*2 <= a.W+b.W && math.Abs(a.Y-b.Y)*2 <= a.H+b.H
}

// Bounds is the fixed world area shared by every tree that gets compared
type Bounds struct {
	Width  float64
	Height float64
}

// Contains reports whether a point lies in the closed world rectangle.
// NaN coordinates are never contained.
func (b Bounds) Contains(x, y float64) bool {
	return x >= 0 && x <= b.Width && y >= 0 && y <= b.Height
}

// Intersects reports whether any part of r lies inside the world
func (b Bounds) Intersects(r Rect) bool {
	return r.MaxX() >= 0 && r.MinX() <= b.Width && r.MaxY() >= 0 && r.MinY() <= b.Height
}

// PointToMorton returns the Z-order code of the leaf cell holding (x, y) at
// maxLevel, or Outside when the point is not in the world.
func (b Bounds) PointToMorton(x, y float64, maxLevel int) int {
	if !b.Contains(x, y) {
		return Outside
	}
	n := 1 << uint(maxLevel)
	cx := gridCoord(x, b.Width, n)
	cy := gridCoord(y, b.Height, n)
	return int(spreadBits(uint32(cx)) | spreadBits(uint32(cy))<<1)
}

// gridCoord maps v in [0, size] onto [0, n-1]; the closed upper edge folds
// into the last column
func gridCoord(v, size float64, n int) int {
	c := int(math.Floor(v / (size / float64(n))))
	if c >= n {
		c = n - 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

// spreadBits inserts a zero bit between each of the low 16 bits of v
func spreadBits(v uint32) uint32 {
	v &= 0x0000ffff
	v = (v | v<<8) & 0x00ff00ff
	v = (v | v<<4) & 0x0f0f0f0f
	v = (v | v<<2) & 0x33333333
	v = (v | v<<1) & 0x55555555
	return v
}

// compactBits is the inverse of spreadBits
func compactBits(v uint32) uint32 {
	v &= 0x55555555
	v = (v | v>>1) & 0x33333333
	v = (v | v>>2) & 0x0f0f0f0f
	v = (v | v>>4) & 0x00ff00ff
	v = (v | v>>8) & 0x0000ffff
	return v
}

// DecodeMorton splits a code back into grid coordinates
func DecodeMorton(code int) (cx, cy int) {
	return int(compactBits(uint32(code))), int(compactBits(uint32(code) >> 1))
}

// RectToCell finds the smallest cell that fully contains r.
//
// ok is false when r does not touch the world at all; the caller is expected
// to drop the entity. Corners hanging over the world edge are clamped first,
// so a partially visible rectangle is stored by its visible part.
func (b Bounds) RectToCell(r Rect, maxLevel int) (level, index int, ok bool) {
	if !b.Intersects(r) {
		return 0, 0, false
	}
	tl := b.PointToMorton(clamp(r.MinX(), 0, b.Width), clamp(r.MinY(), 0, b.Height), maxLevel)
	br := b.PointToMorton(clamp(r.MaxX(), 0, b.Width), clamp(r.MaxY(), 0, b.Height), maxLevel)
	if tl == Outside && br == Outside {
		return 0, 0, false
	}
	if tl == br {
		return maxLevel, tl, true
	}

	// The highest differing 2-bit group is the first level where the corners
	// split into different children.
	xor := tl ^ br
	shared := 0
	for i := 0; i < maxLevel; i++ {
		if (xor>>(uint(i)*2))&0x3 != 0 {
			shared = i + 1
		}
	}
	level = maxLevel - shared

	code := tl
	if br > code {
		code = br
	}
	return level, code >> (uint(shared) * 2), true
}

// Offset returns the linear index of the first cell at level
func Offset(level int) int {
	return ((1 << (2 * uint(level))) - 1) / 3
}

// Parent returns the linear index of the parent of idx (idx > 0)
func Parent(idx int) int {
	return (idx - 1) / 4
}

// Child returns the linear index of the k-th child of idx
func Child(idx, k int) int {
	return idx*4 + 1 + k
}

// LevelOf returns the level a linear index belongs to
func LevelOf(idx int) int {
	level := 0
	for Offset(level+1) <= idx {
		level++
	}
	return level
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
