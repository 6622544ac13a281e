package tensor

import (
	"fmt"
	"math"
	"testing"
)

func assertShape(t *testing.T, want, got Shape, msg string) {
	t.Helper()
	if !want.Equal(got) {
		t.Errorf("%s: expected shape %v, got %v", msg, want, got)
	}
}

func assertFloat32(t *testing.T, want, got float32, msg string) {
	t.Helper()
	if math.Abs(float64(want-got)) > 1e-5 {
		t.Errorf("%s: expected %v, got %v", msg, want, got)
	}
}

func TestAdd(t *testing.T) {
	a, _ := FromFloat32([]float32{1, 2, 3, 4}, Shape{2, 2})
	b, _ := FromFloat32([]float32{10, 20, 30, 40}, Shape{2, 2})

	c, err := Add(a, b)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	expected := []float32{11, 22, 33, 44}
	for i, want := range expected {
		assertFloat32(t, want, c.AsFloat32()[i], fmt.Sprintf("Add[%d]", i))
	}
}

func TestAddShapeMismatch(t *testing.T) {
	a, _ := FromFloat32([]float32{1, 2, 3, 4}, Shape{2, 2})
	b, _ := FromFloat32([]float32{1, 2}, Shape{2})

	if _, err := Add(a, b); err == nil {
		t.Error("expected shape mismatch error")
	}
}

func TestMulHadamard(t *testing.T) {
	a, _ := FromFloat32([]float32{1, 2, 3, 4}, Shape{2, 2})
	b, _ := FromFloat32([]float32{5, 6, 7, 8}, Shape{2, 2})

	c, err := Mul(a, b)
	if err != nil {
		t.Fatalf("Mul failed: %v", err)
	}

	expected := []float32{5, 12, 21, 32}
	for i, want := range expected {
		assertFloat32(t, want, c.AsFloat32()[i], fmt.Sprintf("Mul[%d]", i))
	}
}

func TestMatMul(t *testing.T) {
	// (2, 3) @ (3, 2) -> (2, 2)
	a, _ := FromFloat32([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	b, _ := FromFloat32([]float32{7, 8, 9, 10, 11, 12}, Shape{3, 2})

	c, err := MatMul(a, b)
	if err != nil {
		t.Fatalf("MatMul failed: %v", err)
	}

	assertShape(t, Shape{2, 2}, c.Shape(), "MatMul shape")
	expected := []float32{58, 64, 139, 154}
	for i, want := range expected {
		assertFloat32(t, want, c.AsFloat32()[i], fmt.Sprintf("MatMul[%d]", i))
	}
}

func TestMatMulInnerDimMismatch(t *testing.T) {
	a, _ := FromFloat32([]float32{1, 2, 3, 4}, Shape{2, 2})
	b, _ := FromFloat32([]float32{1, 2, 3}, Shape{3, 1})

	if _, err := MatMul(a, b); err == nil {
		t.Error("expected inner dimension error")
	}
}

func TestTranspose2D(t *testing.T) {
	a, _ := FromFloat32([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})

	at, err := Transpose2D(a)
	if err != nil {
		t.Fatalf("Transpose2D failed: %v", err)
	}

	assertShape(t, Shape{3, 2}, at.Shape(), "transpose shape")
	expected := []float32{1, 4, 2, 5, 3, 6}
	for i, want := range expected {
		assertFloat32(t, want, at.AsFloat32()[i], fmt.Sprintf("Transpose[%d]", i))
	}
}

func TestKron2D(t *testing.T) {
	// kron((2,2), (3,3)) -> (6,6)
	a, _ := FromFloat32([]float32{1, 2, 3, 4}, Shape{2, 2})
	b, _ := FromFloat32([]float32{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}, Shape{3, 3})

	c, err := Kron(a, b)
	if err != nil {
		t.Fatalf("Kron failed: %v", err)
	}

	assertShape(t, Shape{6, 6}, c.Shape(), "Kron shape")

	// Block (i, j) of the result is a[i, j] * b.
	cv := c.AsFloat32()
	assertFloat32(t, 1, cv[0*6+0], "Kron block(0,0) diag")
	assertFloat32(t, 2, cv[0*6+3], "Kron block(0,1) diag")
	assertFloat32(t, 3, cv[3*6+0], "Kron block(1,0) diag")
	assertFloat32(t, 4, cv[4*6+4], "Kron block(1,1) diag")
	assertFloat32(t, 0, cv[0*6+1], "Kron off-diag")
}

func TestKron4D(t *testing.T) {
	// kron((2,2,1,1), (1,1,2,2)) -> (2,2,2,2)
	a, _ := FromFloat32([]float32{1, 2, 3, 4}, Shape{2, 2, 1, 1})
	b, _ := FromFloat32([]float32{5, 6, 7, 8}, Shape{1, 1, 2, 2})

	c, err := Kron(a, b)
	if err != nil {
		t.Fatalf("Kron failed: %v", err)
	}

	assertShape(t, Shape{2, 2, 2, 2}, c.Shape(), "Kron 4D shape")
	cv := c.AsFloat32()
	// c[i, j, :, :] == a[i, j] * b[0, 0, :, :]
	assertFloat32(t, 5, cv[0], "Kron4D[0,0,0,0]")
	assertFloat32(t, 8, cv[3], "Kron4D[0,0,1,1]")
	assertFloat32(t, 10, cv[4], "Kron4D[0,1,0,0]")
	assertFloat32(t, 32, cv[15], "Kron4D[1,1,1,1]")
}

func TestReshape(t *testing.T) {
	a, _ := FromFloat32([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})

	b, err := Reshape(a, Shape{3, 2})
	if err != nil {
		t.Fatalf("Reshape failed: %v", err)
	}
	assertShape(t, Shape{3, 2}, b.Shape(), "reshape shape")
	assertFloat32(t, 6, b.AsFloat32()[5], "reshape keeps data order")

	if _, err := Reshape(a, Shape{4, 2}); err == nil {
		t.Error("expected element count error")
	}
}

func TestUnsqueeze(t *testing.T) {
	a, _ := FromFloat32([]float32{1, 2, 3, 4}, Shape{2, 2})

	b, err := Unsqueeze(a, -1)
	if err != nil {
		t.Fatalf("Unsqueeze failed: %v", err)
	}
	assertShape(t, Shape{2, 2, 1}, b.Shape(), "unsqueeze trailing")

	c, err := Unsqueeze(b, -1)
	if err != nil {
		t.Fatalf("Unsqueeze failed: %v", err)
	}
	assertShape(t, Shape{2, 2, 1, 1}, c.Shape(), "unsqueeze twice")
}

func TestScale(t *testing.T) {
	a, _ := FromFloat32([]float32{1, -2, 3}, Shape{3})

	b, err := Scale(a, 0.5)
	if err != nil {
		t.Fatalf("Scale failed: %v", err)
	}
	expected := []float32{0.5, -1, 1.5}
	for i, want := range expected {
		assertFloat32(t, want, b.AsFloat32()[i], fmt.Sprintf("Scale[%d]", i))
	}
}
