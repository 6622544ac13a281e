// Copyright 2026 Weft ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for the dense tensors the engine
// runs on.
//
// The package exposes:
//   - RawTensor: a flat, row-major tensor with typed views
//   - Shape, DataType, Device: core type definitions
//   - the CPU kernels adapter reconstruction is built from (MatMul, Kron,
//     Mul, the Linear and Conv2D forward ops)
//
// Example:
//
//	w, _ := tensor.FromFloat32([]float32{1, 0, 0, 1}, tensor.Shape{2, 2})
//	x, _ := tensor.FromFloat32([]float32{3, -1}, tensor.Shape{1, 2})
//	y, _ := tensor.Linear(x, w)
package tensor

import (
	"github.com/weft-ml/weft/internal/tensor"
)

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32  DataType = tensor.Float32
	Float64  DataType = tensor.Float64
	Float16  DataType = tensor.Float16
	BFloat16 DataType = tensor.BFloat16
	Int32    DataType = tensor.Int32
	Int64    DataType = tensor.Int64
	Uint8    DataType = tensor.Uint8
	Bool     DataType = tensor.Bool
)

// Device represents where a tensor's storage is meant to live.
type Device = tensor.Device

// Device constants.
const (
	CPU    Device = tensor.CPU
	CUDA   Device = tensor.CUDA
	Metal  Device = tensor.Metal
	WebGPU Device = tensor.WebGPU
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// RawTensor is a dense tensor backed by a flat byte buffer.
type RawTensor = tensor.RawTensor

// NewRaw creates a zero-initialized tensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// FromFloat32 creates a CPU Float32 tensor from a Go slice.
func FromFloat32(data []float32, shape Shape) (*RawTensor, error) {
	return tensor.FromFloat32(data, shape)
}

// FromInt64 creates a CPU Int64 tensor from a Go slice.
func FromInt64(data []int64, shape Shape) (*RawTensor, error) {
	return tensor.FromInt64(data, shape)
}

// Add returns the element-wise sum of two tensors.
func Add(a, b *RawTensor) (*RawTensor, error) {
	return tensor.Add(a, b)
}

// Mul returns the element-wise (Hadamard) product of two tensors.
func Mul(a, b *RawTensor) (*RawTensor, error) {
	return tensor.Mul(a, b)
}

// Scale multiplies every element by a scalar.
func Scale(a *RawTensor, s float32) (*RawTensor, error) {
	return tensor.Scale(a, s)
}

// MatMul returns the 2D matrix product a @ b.
func MatMul(a, b *RawTensor) (*RawTensor, error) {
	return tensor.MatMul(a, b)
}

// Transpose2D returns the transpose of a 2D tensor.
func Transpose2D(a *RawTensor) (*RawTensor, error) {
	return tensor.Transpose2D(a)
}

// Kron returns the Kronecker product of two tensors of matching rank
// (2D or 4D).
func Kron(a, b *RawTensor) (*RawTensor, error) {
	return tensor.Kron(a, b)
}

// Reshape returns a view-copy of the tensor with a new shape of the same
// element count.
func Reshape(t *RawTensor, shape Shape) (*RawTensor, error) {
	return tensor.Reshape(t, shape)
}

// Unsqueeze inserts a size-1 dimension at dim.
func Unsqueeze(t *RawTensor, dim int) (*RawTensor, error) {
	return tensor.Unsqueeze(t, dim)
}

// Cast converts the tensor to another dtype, preserving numeric content.
func Cast(t *RawTensor, dtype DataType) (*RawTensor, error) {
	return tensor.Cast(t, dtype)
}

// EnsureFloat32 returns the tensor itself when already Float32, or a
// Float32 conversion otherwise.
func EnsureFloat32(t *RawTensor) (*RawTensor, error) {
	return tensor.EnsureFloat32(t)
}

// Item returns the value of a single-element tensor as a float64.
func Item(t *RawTensor) (float64, error) {
	return tensor.Item(t)
}

// Linear computes input @ weightᵀ.
func Linear(input, weight *RawTensor) (*RawTensor, error) {
	return tensor.Linear(input, weight)
}

// Conv2D computes a 2D convolution over NCHW input.
func Conv2D(input, weight *RawTensor, stride, padding, dilation, groups int) (*RawTensor, error) {
	return tensor.Conv2D(input, weight, stride, padding, dilation, groups)
}
