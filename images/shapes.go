// Package images - Image processing utilities
package images

// Box is an axis-aligned box in pixel coordinates, corners inclusive of X1,Y1.
type Box struct {
	X1, Y1, X2, Y2 float32
}

// Width returns the box width, never negative.
func (b Box) Width() float32 {
	return max(b.X2-b.X1, 0)
}

// Height returns the box height, never negative.
func (b Box) Height() float32 {
	return max(b.Y2-b.Y1, 0)
}

// Area returns Width*Height.
func (b Box) Area() float32 {
	return b.Width() * b.Height()
}

// Clamp restricts the box corners to [0,w]x[0,h].
func (b Box) Clamp(w, h float32) Box {
	return Box{
		X1: min(max(b.X1, 0), w),
		Y1: min(max(b.Y1, 0), h),
		X2: min(max(b.X2, 0), w),
		Y2: min(max(b.Y2, 0), h),
	}
}

// CalculateIoU returns the Intersection over Union of two boxes.
//
//	IoU = Area of Intersection / Area of Union
//
// 1.0 means the boxes are identical, 0.0 means they do not overlap. Boxes
// that only touch along an edge have no intersection.
//
// Arguments:
//   - r: The first box.
//   - o: The other box to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
//
// Example Usage:
// ```go
//
//	a := Box{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	b := Box{X1: 5, Y1: 5, X2: 15, Y2: 15}
//
//	iou := CalculateIoU(a, b) // 25 / (100 + 100 - 25) = 0.142857
//
// ```
func CalculateIoU(r, o Box) float32 {
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	// Inclusion-exclusion.
	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}
	return interArea / unionArea
}
