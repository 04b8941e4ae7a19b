package world

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Face identifies which side of a block a ray crossed last.
type Face uint8

const (
	FaceBottom Face = iota // -Y
	FaceTop                // +Y
	FaceNorth              // -Z
	FaceSouth              // +Z
	FaceWest               // -X
	FaceEast               // +X
)

func (f Face) String() string {
	switch f {
	case FaceBottom:
		return "bottom"
	case FaceTop:
		return "top"
	case FaceNorth:
		return "north"
	case FaceSouth:
		return "south"
	case FaceWest:
		return "west"
	case FaceEast:
		return "east"
	}
	return "unknown"
}

// Hit is the result of a successful raycast.
type Hit struct {
	Position  BlockPos
	Face      Face
	Intersect mgl64.Vec3
	StateID   uint32
}

// Ties between axis boundary crossings inside this range resolve X first,
// then Y, then Z.
const tieEpsilon = 1e-9

// faceForStep maps a step direction on an axis (0=X, 1=Y, 2=Z) to the face
// the ray enters the next block through.
func faceForStep(axis int, step int32) Face {
	switch axis {
	case 0:
		if step > 0 {
			return FaceWest
		}
		return FaceEast
	case 1:
		if step > 0 {
			return FaceBottom
		}
		return FaceTop
	default:
		if step > 0 {
			return FaceNorth
		}
		return FaceSouth
	}
}

// Raycast walks the voxel grid from origin along direction until it finds a
// non-air block the ignore predicate does not exclude, or the accumulated
// distance exceeds maxDistance. The direction need not be unit length; a
// zero direction or negative maxDistance is an error, a miss is (nil, nil).
func (w *World) Raycast(origin, direction mgl64.Vec3, maxDistance float64, ignore func(stateID uint32) bool) (*Hit, error) {
	if maxDistance < 0 {
		return nil, fmt.Errorf("raycast max distance %v: %w", maxDistance, ErrInvalidArgument)
	}
	if direction.Len() == 0 {
		return nil, fmt.Errorf("raycast direction: %w", ErrInvalidArgument)
	}
	dir := direction.Normalize()

	voxel := [3]int32{
		int32(math.Floor(origin.X())),
		int32(math.Floor(origin.Y())),
		int32(math.Floor(origin.Z())),
	}

	var step [3]int32
	var tMax, tDelta [3]float64
	for a := 0; a < 3; a++ {
		d := dir[a]
		switch {
		case d > 0:
			step[a] = 1
			tDelta[a] = 1 / d
			tMax[a] = (float64(voxel[a]) + 1 - origin[a]) / d
		case d < 0:
			step[a] = -1
			tDelta[a] = -1 / d
			tMax[a] = (float64(voxel[a]) - origin[a]) / d
		default:
			step[a] = 0
			tDelta[a] = math.Inf(1)
			tMax[a] = math.Inf(1)
		}
	}

	// Next boundary crossing, earliest axis wins ties.
	nextAxis := func() int {
		axis := 0
		for a := 1; a < 3; a++ {
			if tMax[a] < tMax[axis]-tieEpsilon {
				axis = a
			}
		}
		return axis
	}

	// Per-column handle cache: the ray crosses many blocks of the same
	// column in a row, and the column map lookup only needs to repeat when
	// the ray leaves it.
	var col *Column
	var colCX, colCZ int32
	stateAt := func(x, y, z int32) uint32 {
		cx, cz := x>>4, z>>4
		if col == nil || cx != colCX || cz != colCZ {
			col = w.column(cx, cz)
			colCX, colCZ = cx, cz
		}
		if col == nil {
			return 0
		}
		return col.StateID(x, y, z)
	}

	hits := func(id uint32) bool {
		return id != 0 && (ignore == nil || !ignore(id))
	}

	// The block the ray starts inside counts as a hit before any step; its
	// face and distance come from the step the ray would take to leave it.
	if id := stateAt(voxel[0], voxel[1], voxel[2]); hits(id) {
		axis := nextAxis()
		tHit := tMax[axis]
		return &Hit{
			Position:  BlockPos{voxel[0], voxel[1], voxel[2]},
			Face:      faceForStep(axis, step[axis]),
			Intersect: origin.Add(dir.Mul(tHit)),
			StateID:   id,
		}, nil
	}

	for {
		axis := nextAxis()
		tHit := tMax[axis]
		if tHit > maxDistance {
			return nil, nil
		}
		voxel[axis] += step[axis]
		face := faceForStep(axis, step[axis])
		tMax[axis] += tDelta[axis]

		if id := stateAt(voxel[0], voxel[1], voxel[2]); hits(id) {
			return &Hit{
				Position:  BlockPos{voxel[0], voxel[1], voxel[2]},
				Face:      face,
				Intersect: origin.Add(dir.Mul(tHit)),
				StateID:   id,
			}, nil
		}
	}
}
