package tensor

import "fmt"

// Compute kernels operate on Float32 CPU tensors and allocate fresh outputs.
// Half-precision operands must be run through EnsureFloat32 first; the
// adapter reconstruction path does this before any math.

// Add performs element-wise addition of two same-shaped tensors.
func Add(a, b *RawTensor) (*RawTensor, error) {
	if err := checkFloat32Pair("add", a, b); err != nil {
		return nil, err
	}
	if !a.shape.Equal(b.shape) {
		return nil, fmt.Errorf("add: shape mismatch %v vs %v", a.shape, b.shape)
	}
	result, err := NewRaw(a.shape, Float32, a.device)
	if err != nil {
		return nil, fmt.Errorf("add: %w", err)
	}
	av, bv, out := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
	for i := range av {
		out[i] = av[i] + bv[i]
	}
	return result, nil
}

// Mul performs element-wise (Hadamard) multiplication of two same-shaped tensors.
func Mul(a, b *RawTensor) (*RawTensor, error) {
	if err := checkFloat32Pair("mul", a, b); err != nil {
		return nil, err
	}
	if !a.shape.Equal(b.shape) {
		return nil, fmt.Errorf("mul: shape mismatch %v vs %v", a.shape, b.shape)
	}
	result, err := NewRaw(a.shape, Float32, a.device)
	if err != nil {
		return nil, fmt.Errorf("mul: %w", err)
	}
	av, bv, out := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
	for i := range av {
		out[i] = av[i] * bv[i]
	}
	return result, nil
}

// Scale multiplies every element by a scalar.
func Scale(a *RawTensor, s float32) (*RawTensor, error) {
	if err := checkFloat32("scale", a); err != nil {
		return nil, err
	}
	result, err := NewRaw(a.shape, Float32, a.device)
	if err != nil {
		return nil, fmt.Errorf("scale: %w", err)
	}
	av, out := a.AsFloat32(), result.AsFloat32()
	for i := range av {
		out[i] = av[i] * s
	}
	return result, nil
}

// MatMul computes the 2-D matrix product (M, K) @ (K, N) -> (M, N).
func MatMul(a, b *RawTensor) (*RawTensor, error) {
	if err := checkFloat32Pair("matmul", a, b); err != nil {
		return nil, err
	}
	if len(a.shape) != 2 || len(b.shape) != 2 {
		return nil, fmt.Errorf("matmul: expected 2D operands, got %v and %v", a.shape, b.shape)
	}
	m, k := a.shape[0], a.shape[1]
	if b.shape[0] != k {
		return nil, fmt.Errorf("matmul: inner dimensions disagree, %v vs %v", a.shape, b.shape)
	}
	n := b.shape[1]

	result, err := NewRaw(Shape{m, n}, Float32, a.device)
	if err != nil {
		return nil, fmt.Errorf("matmul: %w", err)
	}
	av, bv, out := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
	for i := 0; i < m; i++ {
		for l := 0; l < k; l++ {
			scale := av[i*k+l]
			if scale == 0 {
				continue
			}
			row := bv[l*n : (l+1)*n]
			dst := out[i*n : (i+1)*n]
			for j := range row {
				dst[j] += scale * row[j]
			}
		}
	}
	return result, nil
}

// Transpose2D swaps the rows and columns of a 2-D tensor.
func Transpose2D(a *RawTensor) (*RawTensor, error) {
	if err := checkFloat32("transpose", a); err != nil {
		return nil, err
	}
	if len(a.shape) != 2 {
		return nil, fmt.Errorf("transpose: expected 2D operand, got %v", a.shape)
	}
	m, n := a.shape[0], a.shape[1]
	result, err := NewRaw(Shape{n, m}, Float32, a.device)
	if err != nil {
		return nil, fmt.Errorf("transpose: %w", err)
	}
	av, out := a.AsFloat32(), result.AsFloat32()
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			out[j*m+i] = av[i*n+j]
		}
	}
	return result, nil
}

// Kron computes the Kronecker product of two tensors.
//
// Both operands must have the same number of dimensions, either 2 or 4. The
// result dimension i is a[i]*b[i]; for factor groups (p,q) and (r,s) this
// yields the block-structured (p*r, q*s) matrix.
func Kron(a, b *RawTensor) (*RawTensor, error) {
	if err := checkFloat32Pair("kron", a, b); err != nil {
		return nil, err
	}
	nd := len(a.shape)
	if nd != len(b.shape) || (nd != 2 && nd != 4) {
		return nil, fmt.Errorf("kron: expected matching 2D or 4D operands, got %v and %v", a.shape, b.shape)
	}

	outShape := make(Shape, nd)
	for i := range outShape {
		outShape[i] = a.shape[i] * b.shape[i]
	}
	result, err := NewRaw(outShape, Float32, a.device)
	if err != nil {
		return nil, fmt.Errorf("kron: %w", err)
	}

	av, bv, out := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
	oStr := outShape.ComputeStrides()
	aStrides := a.shape.ComputeStrides()
	bStrides := b.shape.ComputeStrides()
	aIdx := make([]int, nd)
	bIdx := make([]int, nd)
	for ai := 0; ai < a.NumElements(); ai++ {
		rem := ai
		for d := 0; d < nd; d++ {
			aIdx[d] = rem / aStrides[d]
			rem %= aStrides[d]
		}
		scale := av[ai]
		if scale == 0 {
			continue
		}
		for bi := 0; bi < b.NumElements(); bi++ {
			rem := bi
			for d := 0; d < nd; d++ {
				bIdx[d] = rem / bStrides[d]
				rem %= bStrides[d]
			}
			oOff := 0
			for d := 0; d < nd; d++ {
				oOff += (aIdx[d]*b.shape[d] + bIdx[d]) * oStr[d]
			}
			out[oOff] = scale * bv[bi]
		}
	}
	return result, nil
}

func checkFloat32(op string, t *RawTensor) error {
	if t == nil {
		return fmt.Errorf("%s: input tensor is nil", op)
	}
	if t.dtype != Float32 {
		return fmt.Errorf("%s: unsupported dtype %v (cast to float32 first)", op, t.dtype)
	}
	return nil
}

func checkFloat32Pair(op string, a, b *RawTensor) error {
	if err := checkFloat32(op, a); err != nil {
		return err
	}
	return checkFloat32(op, b)
}
