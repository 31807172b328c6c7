package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundingBoxDimensions(t *testing.T) {
	b := NewBoundingBox(10, 20, 110, 70)
	assert.Equal(t, 100.0, b.Width())
	assert.Equal(t, 50.0, b.Height())
	assert.False(t, b.Empty())
	assert.Equal(t, 2.0, b.AspectRatio())
}

func TestBoundingBoxNormalized(t *testing.T) {
	b := NewBoundingBox(110, 70, 10, 20).Normalized()
	assert.Equal(t, 10.0, b.Left)
	assert.Equal(t, 20.0, b.Top)
}

func TestMatrixComposeIdentity(t *testing.T) {
	m := Translated(5, 5).Compose(Identity())
	x, y := m.Apply(1, 1)
	assert.InDelta(t, 6.0, x, 1e-9)
	assert.InDelta(t, 6.0, y, 1e-9)
}

func TestMatrixRotated90(t *testing.T) {
	m := Rotated(90)
	x, y := m.Apply(1, 0)
	assert.InDelta(t, 0.0, x, 1e-9)
	assert.InDelta(t, 1.0, y, 1e-9)
}

func TestMatrixApplyBoxRotation(t *testing.T) {
	b := NewBoundingBox(0, 0, 10, 2)
	rotated := Rotated(90).ApplyBox(b)
	assert.InDelta(t, 10.0, rotated.Height(), 1e-9)
	assert.InDelta(t, 2.0, rotated.Width(), 1e-9)
}

func TestBaselineIsFlat(t *testing.T) {
	assert.True(t, Baseline{Slope: 0.001}.IsFlat())
	assert.False(t, Baseline{Slope: 0.1}.IsFlat())
	assert.InDelta(t, 0.1, Baseline{Slope: 0.1, Intercept: 0}.YAt(1), 1e-9)
}

func TestResolutionPxToPt(t *testing.T) {
	r := Resolution{X: 144, Y: 144}
	assert.InDelta(t, 72.0, r.PxToPt(144), 1e-9)
}

func TestMatrixEncodeRoundTrip(t *testing.T) {
	m := Rotated(45).Compose(Translated(3, 4))
	enc := m.Encode()
	assert.InDelta(t, m.A, enc[0], 1e-9)
	assert.InDelta(t, math.Hypot(m.A, m.B), math.Hypot(enc[0], enc[1]), 1e-9)
}
