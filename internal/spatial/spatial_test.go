package spatial

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
)

func angleBetween(a, b quat.Number) float64 {
	_, angle := AxisAngle(quat.Mul(a, quat.Conj(b)))
	return angle
}

func randomRotation(r *rand.Rand) quat.Number {
	q, err := NormalizeQuaternion(quat.Number{
		Real: r.NormFloat64(), Imag: r.NormFloat64(), Jmag: r.NormFloat64(), Kmag: r.NormFloat64(),
	})
	if err != nil {
		return Identity()
	}
	return q
}

func TestAxisAngleIdentity(t *testing.T) {
	axis, angle := AxisAngle(Identity())
	assert.Equal(t, r3.Vector{}, axis)
	assert.Equal(t, 0.0, angle)

	axis, angle = AxisAngle(quat.Number{Real: 1, Kmag: 1e-15})
	assert.Equal(t, r3.Vector{}, axis)
	assert.Equal(t, 0.0, angle)
}

func TestAxisAngleQuarterTurn(t *testing.T) {
	axis, angle := AxisAngle(FromAxisAngle(r3.Vector{Z: 2}, math.Pi/2))
	assert.InDelta(t, math.Pi/2, angle, 1e-12)
	assert.InDelta(t, 1.0, axis.Z, 1e-12)
	assert.InDelta(t, 0.0, axis.X, 1e-12)
}

func TestAxisAngleShortestPath(t *testing.T) {
	// 270 degrees about +z is 90 degrees about -z.
	axis, angle := AxisAngle(FromAxisAngle(r3.Vector{Z: 1}, 3*math.Pi/2))
	assert.InDelta(t, math.Pi/2, angle, 1e-12)
	assert.InDelta(t, -1.0, axis.Z, 1e-12)
}

func TestInverseComposeIsIdentity(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		q := randomRotation(r)
		p := NewPose(r3.Vector{X: r.Float64(), Y: r.Float64(), Z: r.Float64()}, q)

		composed := Compose(Inverse(p), p)
		_, angle := AxisAngle(composed.Orientation().Quaternion())
		assert.InDelta(t, 0.0, angle, 1e-6)
		assert.InDelta(t, 0.0, composed.Point().Norm(), 1e-6)

		_, angle = AxisAngle(quat.Mul(quat.Conj(q), q))
		assert.InDelta(t, 0.0, angle, 1e-9)
	}
}

func TestRelativeRotation(t *testing.T) {
	current := NewPose(r3.Vector{}, FromAxisAngle(r3.Vector{X: 1}, 0.4))
	target := NewPose(r3.Vector{}, quat.Mul(FromAxisAngle(r3.Vector{Y: 1}, 0.3), current.Orientation().Quaternion()))

	axis, angle := AxisAngle(RelativeRotation(target, current))
	assert.InDelta(t, 0.3, angle, 1e-9)
	assert.InDelta(t, 1.0, axis.Y, 1e-9)
}

func TestNormalize(t *testing.T) {
	unit, n := Normalize(r3.Vector{X: 3, Y: 4})
	assert.InDelta(t, 5.0, n, 1e-12)
	assert.InDelta(t, 0.6, unit.X, 1e-12)
	assert.InDelta(t, 0.8, unit.Y, 1e-12)

	unit, n = Normalize(r3.Vector{})
	assert.Equal(t, r3.Vector{}, unit)
	assert.Equal(t, 0.0, n)
}

func TestClamp(t *testing.T) {
	tests := []struct {
		x, bound, want float64
	}{
		{0.5, 1, 0.5},
		{1.5, 1, 1},
		{-1.5, 1, -1},
		{-0.25, 1, -0.25},
		{1, 1, 1},
	}
	for _, tt := range tests {
		got := ClampSymmetric(tt.x, tt.bound)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, ClampSymmetric(got, tt.bound), "clamp is idempotent")
		assert.Equal(t, -got, ClampSymmetric(-tt.x, tt.bound), "clamp is symmetric")
	}
}

func TestFromRPY(t *testing.T) {
	assert.InDelta(t, 0.0, angleBetween(FromRPY(0.3, 0, 0), FromAxisAngle(r3.Vector{X: 1}, 0.3)), 1e-9)
	assert.InDelta(t, 0.0, angleBetween(FromRPY(0, 0.3, 0), FromAxisAngle(r3.Vector{Y: 1}, 0.3)), 1e-9)
	assert.InDelta(t, 0.0, angleBetween(FromRPY(0, 0, 0.3), FromAxisAngle(r3.Vector{Z: 1}, 0.3)), 1e-9)

	zyx := quat.Mul(FromAxisAngle(r3.Vector{Z: 1}, 0.3), quat.Mul(FromAxisAngle(r3.Vector{Y: 1}, 0.2), FromAxisAngle(r3.Vector{X: 1}, 0.1)))
	assert.InDelta(t, 0.0, angleBetween(FromRPY(0.1, 0.2, 0.3), zyx), 1e-9)
}

func TestRotationVectorRoundTrip(t *testing.T) {
	v := r3.Vector{X: 0.2, Y: -0.4, Z: 0.9}
	got := RotationVector(FromRotationVector(v))
	assert.InDelta(t, 0.0, got.Sub(v).Norm(), 1e-9)

	assert.InDelta(t, 0.0, angleBetween(FromRotationVector(r3.Vector{}), Identity()), 1e-12)
}

func TestRotate(t *testing.T) {
	got := Rotate(FromAxisAngle(r3.Vector{Z: 1}, math.Pi/2), r3.Vector{X: 1})
	assert.InDelta(t, 0.0, got.X, 1e-12)
	assert.InDelta(t, 1.0, got.Y, 1e-12)
}

func TestNormalizeQuaternion(t *testing.T) {
	q, err := NormalizeQuaternion(quat.Number{Real: 2})
	require.NoError(t, err)
	assert.Equal(t, 1.0, q.Real)

	_, err = NormalizeQuaternion(quat.Number{})
	assert.ErrorIs(t, err, ErrDegenerateQuaternion)

	_, err = NormalizeQuaternion(quat.Number{Real: math.NaN()})
	assert.ErrorIs(t, err, ErrDegenerateQuaternion)
}
