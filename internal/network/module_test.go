package network

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-ml/weft/internal/tensor"
)

func identityLinear(t *testing.T, features int) *Linear {
	t.Helper()
	data := make([]float32, features*features)
	for i := 0; i < features; i++ {
		data[i*features+i] = 1
	}
	w, err := tensor.FromFloat32(data, tensor.Shape{features, features})
	require.NoError(t, err)
	return NewLinear(w, nil)
}

func TestContainerLookup(t *testing.T) {
	inner := NewContainer()
	inner.Add("0", identityLinear(t, 2))

	root := NewContainer()
	root.Add("down_blocks", inner)

	m, ok := root.Submodule("down_blocks")
	require.True(t, ok)
	_, ok = m.Submodule("0")
	assert.True(t, ok)

	_, ok = root.Submodule("up_blocks")
	assert.False(t, ok)
	assert.Equal(t, []string{"down_blocks"}, root.SubmoduleNames())
}

func TestLinearForward(t *testing.T) {
	w, err := tensor.FromFloat32([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	require.NoError(t, err)
	b, err := tensor.FromFloat32([]float32{10, 20}, tensor.Shape{2})
	require.NoError(t, err)
	layer := NewLinear(w, b)

	in, err := tensor.FromFloat32([]float32{1, 1}, tensor.Shape{1, 2})
	require.NoError(t, err)

	out, err := layer.Forward(in)
	require.NoError(t, err)
	assert.Equal(t, []float32{13, 27}, out.AsFloat32())
}

func TestForwardHookModifiesOutput(t *testing.T) {
	layer := identityLinear(t, 2)
	in, err := tensor.FromFloat32([]float32{1, 2}, tensor.Shape{1, 2})
	require.NoError(t, err)

	handle := layer.RegisterForwardHook(func(m Module, input, output *tensor.RawTensor) (*tensor.RawTensor, error) {
		return tensor.Scale(output, 2)
	})

	out, err := layer.Forward(in)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 4}, out.AsFloat32())

	handle.Remove()
	out, err = layer.Forward(in)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, out.AsFloat32())

	handle.Remove() // second removal is a no-op
	out, err = layer.Forward(in)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, out.AsFloat32())
}

func TestForwardHookOrder(t *testing.T) {
	layer := identityLinear(t, 1)
	in, err := tensor.FromFloat32([]float32{1}, tensor.Shape{1, 1})
	require.NoError(t, err)

	layer.RegisterForwardHook(func(m Module, input, output *tensor.RawTensor) (*tensor.RawTensor, error) {
		return tensor.Scale(output, 3)
	})
	layer.RegisterForwardHook(func(m Module, input, output *tensor.RawTensor) (*tensor.RawTensor, error) {
		// Sees the first hook's output.
		out := output.Clone()
		out.AsFloat32()[0] += 1
		return out, nil
	})

	out, err := layer.Forward(in)
	require.NoError(t, err)
	assert.Equal(t, []float32{4}, out.AsFloat32())
}

func TestForwardHookError(t *testing.T) {
	layer := identityLinear(t, 1)
	in, err := tensor.FromFloat32([]float32{1}, tensor.Shape{1, 1})
	require.NoError(t, err)

	boom := errors.New("boom")
	layer.RegisterForwardHook(func(m Module, input, output *tensor.RawTensor) (*tensor.RawTensor, error) {
		return nil, boom
	})

	_, err = layer.Forward(in)
	assert.ErrorIs(t, err, boom)
}

func TestConv2DForward(t *testing.T) {
	w, err := tensor.FromFloat32([]float32{2}, tensor.Shape{1, 1, 1, 1})
	require.NoError(t, err)
	conv := NewConv2D(w, nil)

	in, err := tensor.FromFloat32([]float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2})
	require.NoError(t, err)

	out, err := conv.Forward(in)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 4, 6, 8}, out.AsFloat32())
}
