// Package joint holds the excahauler's static link geometry and the
// joint-angle vector that drives it: the link tree (pit -> frame -> arm/scoop/camera
// links), per-link local/world transforms, and coarse joint sanity checking.
package joint

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Axis names a link's revolute rotation axis, or None for a fixed link.
type Axis int

const (
	AxisNone Axis = iota
	AxisX
	AxisY
	AxisZ
)

// Index names one link in the static link tree. Values double as indices
// into the geometry table, so ordering matters: a parent's Index must be
// smaller than any child's.
type Index int

const (
	Pit Index = iota
	Frame
	Fork
	Dump
	Boom
	Stick
	Tilt
	Spin
	Coupler
	Grinder
	DepthCam
	DriveCamFlip
	DriveCam
	linkCount
)

var linkNames = [linkCount]string{
	Pit: "pit", Frame: "frame", Fork: "fork", Dump: "dump",
	Boom: "boom", Stick: "stick", Tilt: "tilt", Spin: "spin",
	Coupler: "coupler", Grinder: "grinder", DepthCam: "depthcam",
	DriveCamFlip: "drivecamflip", DriveCam: "drivecam",
}

func (i Index) String() string { return linkNames[i] }

// Geometry is one entry in the static link table: name, parent, offset from
// the parent's origin, rotation axis, a fixed angle offset (applied to
// revolute joints and as the whole rotation for fixed links), the index of
// this link's entry in a JointState.Angles slice (-1 if this link is fixed),
// and that joint's angle limits in degrees.
type Geometry struct {
	Name        string
	Parent      Index
	Offset      mgl64.Vec3
	Axis        Axis
	FixedOffset float64
	JointIndex  int
	AngleMin    float64
	AngleMax    float64
}

// geom mirrors the excahauler's link_geometry table field for field: the
// pit->frame chain, the fork/dump scoop, the boom/stick/tilt/spin arm, and
// the fixed coupler/grinder/camera links hung off it.
var geom = [linkCount]Geometry{
	Pit:    {Name: "pit", Parent: Pit, Offset: mgl64.Vec3{0, 0, 0}, Axis: AxisNone, JointIndex: -1},
	Frame:  {Name: "frame", Parent: Pit, Offset: mgl64.Vec3{0, 0, 0}, Axis: AxisZ, JointIndex: -1},
	Fork:   {Name: "fork", Parent: Frame, Offset: mgl64.Vec3{0, 0.455, 0.150}, Axis: AxisX, JointIndex: 0, AngleMin: -58.7, AngleMax: 10},
	Dump:   {Name: "dump", Parent: Fork, Offset: mgl64.Vec3{0, 0.250, 0.020}, Axis: AxisX, JointIndex: 1, AngleMin: -80, AngleMax: -10},
	Boom:   {Name: "boom", Parent: Frame, Offset: mgl64.Vec3{0, 0.570, 0.215}, Axis: AxisX, JointIndex: 2, AngleMin: -58, AngleMax: 52},
	Stick:  {Name: "stick", Parent: Boom, Offset: mgl64.Vec3{0, -0.312, 0.750}, Axis: AxisX, JointIndex: 3, AngleMin: -32, AngleMax: 60},
	Tilt:   {Name: "tilt", Parent: Stick, Offset: mgl64.Vec3{0, 0.735, 0.012}, Axis: AxisX, JointIndex: 4, AngleMin: -75, AngleMax: 52},
	Spin:   {Name: "spin", Parent: Tilt, Offset: mgl64.Vec3{0, 0.000, -0.075}, Axis: AxisY, JointIndex: 5, AngleMin: -30, AngleMax: 30},

	Coupler:      {Name: "coupler", Parent: Spin, Offset: mgl64.Vec3{0, 0.0, 0.035}, Axis: AxisNone, JointIndex: -1},
	Grinder:      {Name: "grinder", Parent: Coupler, Offset: mgl64.Vec3{0, 0.475, -0.311}, Axis: AxisNone, JointIndex: -1},
	DepthCam:     {Name: "depthcam", Parent: Stick, Offset: mgl64.Vec3{0, 0.490, 0.500}, Axis: AxisX, FixedOffset: -180 + 57 + 1, JointIndex: -1},
	DriveCamFlip: {Name: "drivecamflip", Parent: Frame, Offset: mgl64.Vec3{0, -0.575, 0.270 + 0.215}, Axis: AxisZ, FixedOffset: 180, JointIndex: -1},
	DriveCam:     {Name: "drivecam", Parent: DriveCamFlip, Offset: mgl64.Vec3{0, 0, 0}, Axis: AxisX, FixedOffset: -90, JointIndex: -1},
}

// Geom returns the static geometry entry for a link.
func Geom(l Index) Geometry { return geom[l] }

// revoluteLinks lists the links whose joint index feeds back into a
// JointState, in the order joint_state_sane walks them.
var revoluteLinks = [...]Index{Fork, Dump, Boom, Stick, Tilt, Spin}

// NumJoints is the length of the JointState.Angles vector.
const NumJoints = 6

// JointState is the fixed-size vector of revolute joint angles, in degrees,
// indexed by each link's JointIndex: {fork, dump, boom, stick, tilt, spin}.
type JointState struct {
	Angles [NumJoints]float64
}

func (j JointState) Fork() float64  { return j.Angles[Geom(Fork).JointIndex] }
func (j JointState) Dump() float64  { return j.Angles[Geom(Dump).JointIndex] }
func (j JointState) Boom() float64  { return j.Angles[Geom(Boom).JointIndex] }
func (j JointState) Stick() float64 { return j.Angles[Geom(Stick).JointIndex] }
func (j JointState) Tilt() float64  { return j.Angles[Geom(Tilt).JointIndex] }
func (j JointState) Spin() float64  { return j.Angles[Geom(Spin).JointIndex] }

// Sane reports whether every revolute joint's angle lies within its
// declared [AngleMin, AngleMax].
func (j JointState) Sane() bool {
	for _, l := range revoluteLinks {
		g := Geom(l)
		a := j.Angles[g.JointIndex]
		if a < g.AngleMin || a > g.AngleMax {
			return false
		}
	}
	return true
}

// localTransform is the rigid transform from a link's own frame to its
// parent's frame: rotation about the link's axis by (joint angle +
// FixedOffset), for revolute links commanded by j, followed by translation
// to the link's offset.
func localTransform(j JointState, l Index) mgl64.Mat4 {
	g := Geom(l)
	angleDeg := g.FixedOffset
	if g.JointIndex >= 0 {
		angleDeg += j.Angles[g.JointIndex]
	}
	rad := mgl64.DegToRad(angleDeg)

	var rot mgl64.Mat4
	switch g.Axis {
	case AxisX:
		rot = mgl64.HomogRotate3DX(rad)
	case AxisY:
		rot = mgl64.HomogRotate3DY(rad)
	case AxisZ:
		rot = mgl64.HomogRotate3DZ(rad)
	default:
		rot = mgl64.Ident4()
	}
	return mgl64.Translate3D(g.Offset[0], g.Offset[1], g.Offset[2]).Mul4(rot)
}

// Transform returns link's coordinate frame expressed in robot-frame space:
// the product of localTransform along the chain from the root.
func Transform(j JointState, l Index) mgl64.Mat4 {
	if l == Pit {
		return mgl64.Ident4()
	}
	return Transform(j, Geom(l).Parent).Mul4(localTransform(j, l))
}

// PointWorldFromLocal maps a point expressed in link's own frame into
// robot-frame space.
func PointWorldFromLocal(j JointState, l Index, p mgl64.Vec3) mgl64.Vec3 {
	return mgl64.TransformCoordinate(p, Transform(j, l))
}

// PointLocalFromWorld maps a point expressed in robot-frame space into
// link's own frame: the inverse of PointWorldFromLocal.
func PointLocalFromWorld(j JointState, l Index, p mgl64.Vec3) mgl64.Vec3 {
	inv := Transform(j, l).Inv()
	return mgl64.TransformCoordinate(p, inv)
}

// ParentFromChild maps a point expressed in child's frame into parent's
// frame, going through robot-frame space. parent need not be child's
// immediate parent in the link table.
func ParentFromChild(j JointState, parent, child Index, p mgl64.Vec3) mgl64.Vec3 {
	world := PointWorldFromLocal(j, child, p)
	return PointLocalFromWorld(j, parent, world)
}
