package tensor

import (
	"fmt"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// Cast converts a tensor to a different data type, returning a new tensor.
// Casting to the current dtype returns a clone with identical content.
//
// Supported conversions cover the dtypes adapter checkpoints actually ship:
// Float32 <-> Float16, Float32 <-> BFloat16, Float32 <-> Float64, and the
// half-precision types to each other through Float32.
func Cast(t *RawTensor, dtype DataType) (*RawTensor, error) {
	if t == nil {
		return nil, fmt.Errorf("cast: input tensor is nil")
	}
	if t.dtype == dtype {
		return t.Clone(), nil
	}

	// Everything funnels through float32.
	f32, err := toFloat32(t)
	if err != nil {
		return nil, err
	}
	if dtype == Float32 {
		return f32, nil
	}

	result, err := NewRaw(t.shape, dtype, t.device)
	if err != nil {
		return nil, fmt.Errorf("cast: %w", err)
	}
	in := f32.AsFloat32()
	switch dtype {
	case Float64:
		out := result.AsFloat64()
		for i, v := range in {
			out[i] = float64(v)
		}
	case Float16:
		out := result.AsUint16()
		for i, v := range in {
			out[i] = float16.Fromfloat32(v).Bits()
		}
	case BFloat16:
		copy(result.data, bfloat16.EncodeFloat32(in))
	default:
		return nil, fmt.Errorf("cast: unsupported target dtype %v", dtype)
	}
	return result, nil
}

// EnsureFloat32 returns the tensor itself when it is already Float32, or a
// Float32 conversion otherwise. Reconstruction math calls this on every
// factor so adapter sets migrated to half precision still compose.
func EnsureFloat32(t *RawTensor) (*RawTensor, error) {
	if t.dtype == Float32 {
		return t, nil
	}
	return toFloat32(t)
}

func toFloat32(t *RawTensor) (*RawTensor, error) {
	result, err := NewRaw(t.shape, Float32, t.device)
	if err != nil {
		return nil, fmt.Errorf("cast: %w", err)
	}
	out := result.AsFloat32()
	switch t.dtype {
	case Float32:
		copy(out, t.AsFloat32())
	case Float64:
		for i, v := range t.AsFloat64() {
			out[i] = float32(v)
		}
	case Float16:
		for i, v := range t.AsUint16() {
			out[i] = float16.Frombits(v).Float32()
		}
	case BFloat16:
		copy(out, bfloat16.DecodeFloat32(t.data))
	case Int32:
		for i, v := range t.AsInt32() {
			out[i] = float32(v)
		}
	case Int64:
		for i, v := range t.AsInt64() {
			out[i] = float32(v)
		}
	default:
		return nil, fmt.Errorf("cast: unsupported source dtype %v", t.dtype)
	}
	return result, nil
}

// Item reads the single element of a scalar or one-element tensor as float64,
// converting from the storage dtype. Used for checkpoint "alpha" entries.
func Item(t *RawTensor) (float64, error) {
	if t.NumElements() != 1 {
		return 0, fmt.Errorf("item: tensor has %d elements, expected 1", t.NumElements())
	}
	f32, err := toFloat32(t)
	if err != nil {
		return 0, err
	}
	return float64(f32.AsFloat32()[0]), nil
}
