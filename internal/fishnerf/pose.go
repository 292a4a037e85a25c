package fishnerf

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Pose is a rigid transform from the camera's local NED frame to the world
// NED frame: rotate by Rotation, then translate by Translation.
type Pose struct {
	Translation mgl64.Vec3
	Rotation    mgl64.Quat
}

// NewPose builds a pose from a translation and an xyzw quaternion,
// normalizing the quaternion. A zero quaternion is an error.
func NewPose(translation mgl64.Vec3, qx, qy, qz, qw Real) (Pose, error) {
	q := mgl64.Quat{W: qw, V: mgl64.Vec3{qx, qy, qz}}
	if q.Norm() == 0 || !isFinite(q.Norm()) {
		return Pose{}, fmt.Errorf("quaternion (%g, %g, %g, %g) is not normalizable", qx, qy, qz, qw)
	}
	return Pose{Translation: translation, Rotation: q.Normalize()}, nil
}

// Identity returns the pose that maps the camera frame onto the world frame.
func Identity() Pose {
	return Pose{Rotation: mgl64.QuatIdent()}
}

// Apply maps a camera-local NED direction into the world frame.
func (p Pose) Apply(dir mgl64.Vec3) mgl64.Vec3 {
	return p.Rotation.Rotate(dir)
}

// RotatedZ returns the pose rotated by theta radians about its own down
// (NED Z) axis. Used for surround renders that spin the camera in place.
func (p Pose) RotatedZ(theta Real) Pose {
	spin := mgl64.QuatRotate(theta, mgl64.Vec3{0, 0, 1})
	return Pose{Translation: p.Translation, Rotation: p.Rotation.Mul(spin).Normalize()}
}

// nedFromCam permutes a camera-frame vector (+Z optical axis, +X right,
// +Y down) into the camera-local NED frame (x forward, y right, z down).
func nedFromCam(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v.Z(), v.X(), v.Y()}
}
