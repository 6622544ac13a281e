package tensor

import (
	"fmt"
	"unsafe"
)

// Device identifies where a tensor's storage is meant to live.
//
// Only CPU executes kernels in this package. The other values exist so an
// adapter set can carry its target placement through To() without the engine
// owning host-network device management.
type Device int

// Supported devices.
const (
	CPU Device = iota
	CUDA
	Metal
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case CUDA:
		return "CUDA"
	case Metal:
		return "Metal"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// RawTensor is a dense, row-major tensor backed by a flat byte buffer.
//
// Buffers are never shared between tensors: Clone copies, kernels allocate
// fresh outputs. Adapter factors are immutable after construction except for
// To(), which returns a migrated tensor.
type RawTensor struct {
	data   []byte
	shape  Shape
	stride []int
	dtype  DataType
	device Device
}

// NewRaw creates a zero-initialized RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:   make([]byte, shape.NumElements()*dtype.Size()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

// FromFloat32 creates a CPU Float32 tensor from a Go slice.
// The slice is copied into the tensor's buffer.
func FromFloat32(data []float32, shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	raw, err := NewRaw(shape, Float32, CPU)
	if err != nil {
		return nil, err
	}
	copy(raw.AsFloat32(), data)
	return raw, nil
}

// FromInt64 creates a CPU Int64 tensor from a Go slice.
func FromInt64(data []int64, shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	raw, err := NewRaw(shape, Int64, CPU)
	if err != nil {
		return nil, err
	}
	copy(raw.AsInt64(), data)
	return raw, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's placement.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total storage size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.data
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsUint16 interprets the data as []uint16 bit patterns.
// Panics unless the tensor's dtype is Float16 or BFloat16.
func (r *RawTensor) AsUint16() []uint16 {
	if r.dtype != Float16 && r.dtype != BFloat16 {
		panic(fmt.Sprintf("tensor dtype is %s, not float16/bfloat16", r.dtype))
	}
	return unsafe.Slice((*uint16)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 {
	if r.dtype != Int32 {
		panic(fmt.Sprintf("tensor dtype is %s, not int32", r.dtype))
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsInt64 interprets the data as []int64.
// Panics if the tensor's dtype is not Int64.
func (r *RawTensor) AsInt64() []int64 {
	if r.dtype != Int64 {
		panic(fmt.Sprintf("tensor dtype is %s, not int64", r.dtype))
	}
	return unsafe.Slice((*int64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsUint8 interprets the data as []uint8.
// Panics if the tensor's dtype is not Uint8.
func (r *RawTensor) AsUint8() []uint8 {
	if r.dtype != Uint8 {
		panic(fmt.Sprintf("tensor dtype is %s, not uint8", r.dtype))
	}
	return r.data
}

// Clone creates a deep copy of the tensor.
func (r *RawTensor) Clone() *RawTensor {
	clone := &RawTensor{
		data:   make([]byte, len(r.data)),
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		device: r.device,
	}
	copy(clone.data, r.data)
	return clone
}

// To migrates the tensor to the given device and dtype, returning the
// migrated tensor. Numeric content is preserved through dtype conversion.
// When neither device nor dtype changes, the receiver itself is returned, so
// repeated migration with the same arguments is a no-op.
func (r *RawTensor) To(device Device, dtype DataType) (*RawTensor, error) {
	if r.device == device && r.dtype == dtype {
		return r, nil
	}
	out := r
	if r.dtype != dtype {
		var err error
		out, err = Cast(r, dtype)
		if err != nil {
			return nil, err
		}
	} else if r.device != device {
		out = r.Clone()
	}
	out.device = device
	return out, nil
}

// String returns a human-readable representation of the tensor.
func (r *RawTensor) String() string {
	return fmt.Sprintf("RawTensor[%s]%v on %s", r.dtype, r.shape, r.device)
}
