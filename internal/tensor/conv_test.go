package tensor

import (
	"fmt"
	"testing"
)

func TestLinearKernel(t *testing.T) {
	// input [1, 3] @ weight [2, 3].T -> [1, 2]
	input, _ := FromFloat32([]float32{1, 2, 3}, Shape{1, 3})
	weight, _ := FromFloat32([]float32{
		1, 0, 0,
		0, 0, 1,
	}, Shape{2, 3})

	out, err := Linear(input, weight)
	if err != nil {
		t.Fatalf("Linear failed: %v", err)
	}
	assertShape(t, Shape{1, 2}, out.Shape(), "linear shape")
	assertFloat32(t, 1, out.AsFloat32()[0], "linear[0]")
	assertFloat32(t, 3, out.AsFloat32()[1], "linear[1]")
}

func TestConv2DIdentityKernel(t *testing.T) {
	// 1x1 identity kernel leaves the input unchanged.
	input, _ := FromFloat32([]float32{1, 2, 3, 4}, Shape{1, 1, 2, 2})
	weight, _ := FromFloat32([]float32{1}, Shape{1, 1, 1, 1})

	out, err := Conv2D(input, weight, 1, 0, 1, 1)
	if err != nil {
		t.Fatalf("Conv2D failed: %v", err)
	}
	assertShape(t, Shape{1, 1, 2, 2}, out.Shape(), "conv identity shape")
	for i, want := range []float32{1, 2, 3, 4} {
		assertFloat32(t, want, out.AsFloat32()[i], fmt.Sprintf("conv identity[%d]", i))
	}
}

func TestConv2DSum(t *testing.T) {
	// 2x2 all-ones kernel, stride 1, no padding: sliding-window sums.
	input, _ := FromFloat32([]float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}, Shape{1, 1, 3, 3})
	weight, _ := FromFloat32([]float32{1, 1, 1, 1}, Shape{1, 1, 2, 2})

	out, err := Conv2D(input, weight, 1, 0, 1, 1)
	if err != nil {
		t.Fatalf("Conv2D failed: %v", err)
	}
	assertShape(t, Shape{1, 1, 2, 2}, out.Shape(), "conv sum shape")
	expected := []float32{12, 16, 24, 28}
	for i, want := range expected {
		assertFloat32(t, want, out.AsFloat32()[i], fmt.Sprintf("conv sum[%d]", i))
	}
}

func TestConv2DPadding(t *testing.T) {
	input, _ := FromFloat32([]float32{1}, Shape{1, 1, 1, 1})
	weight, _ := FromFloat32([]float32{
		0, 0, 0,
		0, 2, 0,
		0, 0, 0,
	}, Shape{1, 1, 3, 3})

	out, err := Conv2D(input, weight, 1, 1, 1, 1)
	if err != nil {
		t.Fatalf("Conv2D failed: %v", err)
	}
	assertShape(t, Shape{1, 1, 1, 1}, out.Shape(), "conv padded shape")
	assertFloat32(t, 2, out.AsFloat32()[0], "conv padded value")
}

func TestConv2DGroups(t *testing.T) {
	// Two groups, each with a scalar kernel: channel 0 doubled, channel 1 tripled.
	input, _ := FromFloat32([]float32{1, 2, 3, 4}, Shape{1, 2, 1, 2})
	weight, _ := FromFloat32([]float32{2, 3}, Shape{2, 1, 1, 1})

	out, err := Conv2D(input, weight, 1, 0, 1, 2)
	if err != nil {
		t.Fatalf("Conv2D failed: %v", err)
	}
	expected := []float32{2, 4, 9, 12}
	for i, want := range expected {
		assertFloat32(t, want, out.AsFloat32()[i], fmt.Sprintf("conv groups[%d]", i))
	}
}

func TestConv2DChannelMismatch(t *testing.T) {
	input, _ := FromFloat32([]float32{1, 2, 3, 4}, Shape{1, 4, 1, 1})
	weight, _ := FromFloat32([]float32{1, 1}, Shape{1, 2, 1, 1})

	if _, err := Conv2D(input, weight, 1, 0, 1, 1); err == nil {
		t.Error("expected channel mismatch error")
	}
}
