// Package tensor provides the dense tensor representation and the math
// kernels used by the weft adapter composition engine.
package tensor

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
//
// Float16 and BFloat16 are storage types: checkpoints frequently ship
// half-precision weights, and adapter sets can be migrated to them to halve
// resident memory. Compute kernels operate on Float32; use Cast to move
// between storage and compute precision.
const (
	Float32 DataType = iota
	Float64
	Float16
	BFloat16
	Int32
	Int64
	Uint8
	Bool
)

// Size returns the byte size of one element of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Float16, BFloat16:
		return 2
	case Uint8, Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Float16:
		return "float16"
	case BFloat16:
		return "bfloat16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}
