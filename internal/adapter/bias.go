package adapter

import (
	"fmt"

	"github.com/weft-ml/weft/internal/tensor"
)

// sparseBias is a COO-encoded bias tensor carried by some adapter
// checkpoints ("bias_indices" / "bias_values" / "bias_size" entries).
// It is densified on demand when a layer reconstructs its delta.
type sparseBias struct {
	indices *tensor.RawTensor // [ndim, nnz], Int64
	values  *tensor.RawTensor // [nnz]
	size    tensor.Shape
}

// newSparseBias builds a sparse bias from the three checkpoint entries, or
// returns nil when the group carries none.
func newSparseBias(values map[string]*tensor.RawTensor) (*sparseBias, error) {
	indices, okI := values["bias_indices"]
	vals, okV := values["bias_values"]
	sizeT, okS := values["bias_size"]
	if !okI || !okV || !okS {
		return nil, nil
	}

	if sizeT.DType() != tensor.Int64 {
		var err error
		sizeT, err = tensor.Cast(sizeT, tensor.Int64)
		if err != nil {
			return nil, fmt.Errorf("bias_size: %w", err)
		}
	}
	size := make(tensor.Shape, sizeT.NumElements())
	for i, v := range sizeT.AsInt64() {
		size[i] = int(v)
	}
	if err := size.Validate(); err != nil {
		return nil, fmt.Errorf("bias_size: %w", err)
	}

	if indices.DType() != tensor.Int64 {
		var err error
		indices, err = tensor.Cast(indices, tensor.Int64)
		if err != nil {
			return nil, fmt.Errorf("bias_indices: %w", err)
		}
	}
	idxShape := indices.Shape()
	if len(idxShape) != 2 || idxShape[0] != len(size) {
		return nil, fmt.Errorf("bias_indices shape %v does not index a %dD bias", idxShape, len(size))
	}
	if vals.NumElements() != idxShape[1] {
		return nil, fmt.Errorf("bias has %d values for %d indices", vals.NumElements(), idxShape[1])
	}

	return &sparseBias{indices: indices, values: vals, size: size}, nil
}

// dense scatters the bias into a zero Float32 tensor of its declared size.
func (b *sparseBias) dense() (*tensor.RawTensor, error) {
	out, err := tensor.NewRaw(b.size, tensor.Float32, b.values.Device())
	if err != nil {
		return nil, fmt.Errorf("bias: %w", err)
	}
	vals, err := tensor.EnsureFloat32(b.values)
	if err != nil {
		return nil, fmt.Errorf("bias: %w", err)
	}

	ov := out.AsFloat32()
	vv := vals.AsFloat32()
	iv := b.indices.AsInt64()
	strides := b.size.ComputeStrides()
	nnz := b.indices.Shape()[1]
	for n := 0; n < nnz; n++ {
		offset := 0
		for d := 0; d < len(b.size); d++ {
			idx := int(iv[d*nnz+n])
			if idx < 0 || idx >= b.size[d] {
				return nil, fmt.Errorf("bias index %d out of range for dimension %d (size %d)", idx, d, b.size[d])
			}
			offset += idx * strides[d]
		}
		ov[offset] = vv[n]
	}
	return out, nil
}

// to migrates the bias values; the integer indices only change device.
func (b *sparseBias) to(device tensor.Device, dtype tensor.DataType) error {
	vals, err := b.values.To(device, dtype)
	if err != nil {
		return err
	}
	idx, err := b.indices.To(device, tensor.Int64)
	if err != nil {
		return err
	}
	b.values, b.indices = vals, idx
	return nil
}

func (b *sparseBias) byteSize() int {
	return b.values.ByteSize() + b.indices.ByteSize()
}
