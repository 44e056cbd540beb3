package inference

import (
	"fmt"

	"github.com/pkg/errors"
)

// Tensor is a named, dense tensor exchanged with an Engine. Exactly one of
// Float32 or Int64 holds the data.
type Tensor struct {
	Name    string
	Shape   []int64
	Float32 []float32
	Int64   []int64
}

// NewFloat32Tensor creates a float32 tensor.
func NewFloat32Tensor(name string, shape []int64, data []float32) Tensor {
	return Tensor{Name: name, Shape: shape, Float32: data}
}

// NewInt64Tensor creates an int64 tensor.
func NewInt64Tensor(name string, shape []int64, data []int64) Tensor {
	return Tensor{Name: name, Shape: shape, Int64: data}
}

// Elements returns the element count implied by the shape.
func (t Tensor) Elements() int64 {
	if len(t.Shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Validate checks that exactly one data slice is set and matches the shape.
func (t Tensor) Validate() error {
	var n int
	switch {
	case t.Float32 != nil && t.Int64 != nil:
		return fmt.Errorf("tensor %q holds both float32 and int64 data", t.Name)
	case t.Float32 != nil:
		n = len(t.Float32)
	case t.Int64 != nil:
		n = len(t.Int64)
	default:
		return fmt.Errorf("tensor %q has no data", t.Name)
	}
	for _, d := range t.Shape {
		if d <= 0 {
			return fmt.Errorf("tensor %q has non-positive dimension in shape %v", t.Name, t.Shape)
		}
	}
	if int64(n) != t.Elements() {
		return fmt.Errorf("tensor %q has %d elements, shape %v needs %d", t.Name, n, t.Shape, t.Elements())
	}
	return nil
}

// Find returns the tensor called name.
func Find(tensors []Tensor, name string) (Tensor, error) {
	for _, t := range tensors {
		if t.Name == name {
			return t, nil
		}
	}
	return Tensor{}, errors.Errorf("tensor %q not found", name)
}
