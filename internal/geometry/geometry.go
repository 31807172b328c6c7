// Package geometry implements the coordinate primitives shared by the hOCR
// parser, the text-layer renderer, and the grafter: bounding boxes, affine
// transforms, baselines, and resolution conversions.
package geometry

import "math"

// BoundingBox is an axis-aligned box in some pixel or point space, with
// origin at the top-left as hOCR defines it (Y grows downward).
type BoundingBox struct {
	Left, Top, Right, Bottom float64
}

// NewBoundingBox builds a box from raw coordinates without reordering them;
// callers that parse untrusted input should call Normalized.
func NewBoundingBox(left, top, right, bottom float64) BoundingBox {
	return BoundingBox{Left: left, Top: top, Right: right, Bottom: bottom}
}

// Width returns Right-Left.
func (b BoundingBox) Width() float64 { return b.Right - b.Left }

// Height returns Bottom-Top.
func (b BoundingBox) Height() float64 { return b.Bottom - b.Top }

// Empty reports whether the box has zero or negative area.
func (b BoundingBox) Empty() bool { return b.Width() <= 0 || b.Height() <= 0 }

// Normalized returns a box with Left<=Right and Top<=Bottom.
func (b BoundingBox) Normalized() BoundingBox {
	if b.Left > b.Right {
		b.Left, b.Right = b.Right, b.Left
	}
	if b.Top > b.Bottom {
		b.Top, b.Bottom = b.Bottom, b.Top
	}
	return b
}

// AspectRatio returns Width/Height, or 0 if Height is 0.
func (b BoundingBox) AspectRatio() float64 {
	h := b.Height()
	if h == 0 {
		return 0
	}
	return b.Width() / h
}

// Matrix is a 2x3 affine transform in PDF's row-vector convention:
//
//	[x' y' 1] = [x y 1] * | A B 0 |
//	                      | C D 0 |
//	                      | E F 1 |
type Matrix struct {
	A, B, C, D, E, F float64
}

// Identity returns the identity transform.
func Identity() Matrix { return Matrix{A: 1, D: 1} }

// Translated returns a pure translation matrix.
func Translated(dx, dy float64) Matrix { return Matrix{A: 1, D: 1, E: dx, F: dy} }

// Scaled returns a pure scale matrix.
func Scaled(sx, sy float64) Matrix { return Matrix{A: sx, D: sy} }

// Rotated returns a counter-clockwise rotation matrix for degrees.
func Rotated(degrees float64) Matrix {
	r := degrees * math.Pi / 180
	sin, cos := math.Sin(r), math.Cos(r)
	return Matrix{A: cos, B: sin, C: -sin, D: cos}
}

// Compose returns m applied first, then other (m * other in row-vector form).
func (m Matrix) Compose(other Matrix) Matrix {
	return Matrix{
		A: m.A*other.A + m.B*other.C,
		B: m.A*other.B + m.B*other.D,
		C: m.C*other.A + m.D*other.C,
		D: m.C*other.B + m.D*other.D,
		E: m.E*other.A + m.F*other.C + other.E,
		F: m.E*other.B + m.F*other.D + other.F,
	}
}

// Apply transforms a point.
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return x*m.A + y*m.C + m.E, x*m.B + y*m.D + m.F
}

// ApplyBox transforms all four corners of a box and returns their bounding
// box, which is the correct way to carry a box through a rotation.
func (m Matrix) ApplyBox(b BoundingBox) BoundingBox {
	xs := make([]float64, 0, 4)
	ys := make([]float64, 0, 4)
	for _, corner := range [][2]float64{
		{b.Left, b.Top}, {b.Right, b.Top}, {b.Right, b.Bottom}, {b.Left, b.Bottom},
	} {
		x, y := m.Apply(corner[0], corner[1])
		xs = append(xs, x)
		ys = append(ys, y)
	}
	minX, maxX := xs[0], xs[0]
	minY, maxY := ys[0], ys[0]
	for i := 1; i < 4; i++ {
		minX, maxX = math.Min(minX, xs[i]), math.Max(maxX, xs[i])
		minY, maxY = math.Min(minY, ys[i]), math.Max(maxY, ys[i])
	}
	return BoundingBox{Left: minX, Top: minY, Right: maxX, Bottom: maxY}
}

// Encode renders the matrix as a PDF "cm" operand list: "A B C D E F".
func (m Matrix) Encode() [6]float64 {
	return [6]float64{m.A, m.B, m.C, m.D, m.E, m.F}
}

// Baseline is the slope/intercept of a text line's baseline, as hOCR's
// title="baseline s i" property encodes it.
type Baseline struct {
	Slope     float64
	Intercept float64
}

// IsFlat reports whether the baseline is close enough to horizontal that
// per-word baseline adjustment is not worth the complexity (|slope| < 0.005,
// matching the original renderer's threshold).
func (b Baseline) IsFlat() bool {
	return math.Abs(b.Slope) < 0.005
}

// YAt returns the baseline's vertical offset at horizontal position x.
func (b Baseline) YAt(x float64) float64 {
	return b.Slope*x + b.Intercept
}

// Resolution is a page's horizontal/vertical pixel density in DPI.
type Resolution struct {
	X, Y float64
}

// PxToPt converts a pixel length at this resolution's X density into PDF
// points (72 per inch).
func (r Resolution) PxToPt(px float64) float64 {
	if r.X == 0 {
		return px
	}
	return px * 72.0 / r.X
}

// PxToPtY converts a pixel length using the Y density.
func (r Resolution) PxToPtY(px float64) float64 {
	if r.Y == 0 {
		return px
	}
	return px * 72.0 / r.Y
}
