package tensor

import (
	"fmt"
	"testing"
)

func TestCastFloat16RoundTrip(t *testing.T) {
	a, _ := FromFloat32([]float32{1.0, -0.5, 2.25, 0}, Shape{2, 2})

	half, err := Cast(a, Float16)
	if err != nil {
		t.Fatalf("Cast to float16 failed: %v", err)
	}
	if half.DType() != Float16 {
		t.Fatalf("expected float16 dtype, got %v", half.DType())
	}
	if half.ByteSize() != 8 {
		t.Errorf("expected 8 bytes for 4 half elements, got %d", half.ByteSize())
	}

	back, err := Cast(half, Float32)
	if err != nil {
		t.Fatalf("Cast back to float32 failed: %v", err)
	}
	// These values are exactly representable in half precision.
	for i, want := range []float32{1.0, -0.5, 2.25, 0} {
		assertFloat32(t, want, back.AsFloat32()[i], fmt.Sprintf("f16 roundtrip[%d]", i))
	}
}

func TestCastBFloat16RoundTrip(t *testing.T) {
	a, _ := FromFloat32([]float32{1.0, -2.0, 0.5, 4.0}, Shape{4})

	bf, err := Cast(a, BFloat16)
	if err != nil {
		t.Fatalf("Cast to bfloat16 failed: %v", err)
	}
	back, err := Cast(bf, Float32)
	if err != nil {
		t.Fatalf("Cast back failed: %v", err)
	}
	for i, want := range []float32{1.0, -2.0, 0.5, 4.0} {
		assertFloat32(t, want, back.AsFloat32()[i], fmt.Sprintf("bf16 roundtrip[%d]", i))
	}
}

func TestToIsIdempotent(t *testing.T) {
	a, _ := FromFloat32([]float32{1, 2, 3, 4}, Shape{2, 2})

	once, err := a.To(CPU, Float16)
	if err != nil {
		t.Fatalf("To failed: %v", err)
	}
	twice, err := once.To(CPU, Float16)
	if err != nil {
		t.Fatalf("second To failed: %v", err)
	}
	if twice != once {
		t.Error("To with unchanged arguments should return the receiver")
	}
	for i := range once.AsUint16() {
		if once.AsUint16()[i] != twice.AsUint16()[i] {
			t.Fatalf("To changed values at %d", i)
		}
	}
}

func TestToChangesDeviceTag(t *testing.T) {
	a, _ := FromFloat32([]float32{1, 2}, Shape{2})

	moved, err := a.To(CUDA, Float32)
	if err != nil {
		t.Fatalf("To failed: %v", err)
	}
	if moved.Device() != CUDA {
		t.Errorf("expected CUDA device tag, got %v", moved.Device())
	}
	if a.Device() != CPU {
		t.Errorf("source tensor device changed, got %v", a.Device())
	}
}

func TestEnsureFloat32PassThrough(t *testing.T) {
	a, _ := FromFloat32([]float32{1, 2}, Shape{2})

	b, err := EnsureFloat32(a)
	if err != nil {
		t.Fatalf("EnsureFloat32 failed: %v", err)
	}
	if b != a {
		t.Error("EnsureFloat32 should pass through float32 tensors")
	}
}

func TestItem(t *testing.T) {
	a, _ := FromFloat32([]float32{8}, Shape{1})

	v, err := Item(a)
	if err != nil {
		t.Fatalf("Item failed: %v", err)
	}
	if v != 8 {
		t.Errorf("expected 8, got %v", v)
	}

	b, _ := FromFloat32([]float32{1, 2}, Shape{2})
	if _, err := Item(b); err == nil {
		t.Error("expected error for multi-element tensor")
	}
}
