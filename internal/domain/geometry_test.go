package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func assertVecNear(t *testing.T, want, got Vec3) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-9)
	assert.InDelta(t, want.Y, got.Y, 1e-9)
	assert.InDelta(t, want.Z, got.Z, 1e-9)
}

func TestPose_ForwardFromIdentity(t *testing.T) {
	got := IdentityPose().Forward(1)
	assertVecNear(t, Vec3{0, 0, -1}, got.Position)
	assert.Equal(t, IdentityQuat(), got.Rotation)
}

func TestPose_ForwardFollowsViewDirection(t *testing.T) {
	// 90 degrees about +Y turns -Z into -X.
	half := math.Pi / 4
	camera := Pose{
		Position: Vec3{1, 2, 3},
		Rotation: Quat{Y: math.Sin(half), W: math.Cos(half)},
	}

	got := camera.Forward(2)
	assertVecNear(t, Vec3{-1, 2, 3}, got.Position)
}

func TestQuat_NormalizeDegenerate(t *testing.T) {
	assert.Equal(t, IdentityQuat(), Quat{}.Normalize())
}

func TestMarkedArea_ContainsInclusive(t *testing.T) {
	area := MarkedArea{Min: Vec3{0, 0, 0}, Max: Vec3{1, 1, 1}}

	assert.True(t, area.Contains(Vec3{0.5, 0.5, 0.5}))
	assert.True(t, area.Contains(Vec3{1, 1, 1}))
	assert.True(t, area.Contains(Vec3{0, 0, 0}))
	assert.False(t, area.Contains(Vec3{1.01, 0.5, 0.5}))
}
