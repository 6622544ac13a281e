package tensor

import "fmt"

// Reshape returns a tensor with the same data but a different shape.
// The new shape must describe the same number of elements.
func Reshape(t *RawTensor, newShape Shape) (*RawTensor, error) {
	if t == nil {
		return nil, fmt.Errorf("reshape: input tensor is nil")
	}
	if err := newShape.Validate(); err != nil {
		return nil, fmt.Errorf("reshape: %w", err)
	}
	if newShape.NumElements() != t.NumElements() {
		return nil, fmt.Errorf("reshape: cannot reshape %v (%d elements) to %v (%d elements)",
			t.shape, t.NumElements(), newShape, newShape.NumElements())
	}
	out := t.Clone()
	out.shape = newShape.Clone()
	out.stride = newShape.ComputeStrides()
	return out, nil
}

// Unsqueeze inserts a dimension of size 1 at the given position.
// Negative dims index from the end, -1 appending a trailing dimension.
func Unsqueeze(t *RawTensor, dim int) (*RawTensor, error) {
	if t == nil {
		return nil, fmt.Errorf("unsqueeze: input tensor is nil")
	}
	nd := len(t.shape)
	if dim < 0 {
		dim = nd + dim + 1
	}
	if dim < 0 || dim > nd {
		return nil, fmt.Errorf("unsqueeze: dim %d out of range for %dD tensor", dim, nd)
	}
	newShape := make(Shape, 0, nd+1)
	newShape = append(newShape, t.shape[:dim]...)
	newShape = append(newShape, 1)
	newShape = append(newShape, t.shape[dim:]...)
	return Reshape(t, newShape)
}
