package network

import (
	"fmt"

	"github.com/weft-ml/weft/internal/tensor"
)

// Linear is a fully connected leaf layer: y = x @ W.T + b.
//
// Weight shape: [out_features, in_features]. Bias is optional.
type Linear struct {
	leaf
	hookSet

	Weight *tensor.RawTensor
	Bias   *tensor.RawTensor
}

// NewLinear creates a Linear layer around an existing weight tensor.
func NewLinear(weight, bias *tensor.RawTensor) *Linear {
	return &Linear{Weight: weight, Bias: bias}
}

// RegisterForwardHook registers a forward-output interception callback.
func (l *Linear) RegisterForwardHook(fn HookFunc) *HookHandle {
	return l.hookSet.register(fn)
}

// Forward computes the layer output for input [batch, in_features] and then
// runs registered hooks in order.
func (l *Linear) Forward(input *tensor.RawTensor) (*tensor.RawTensor, error) {
	out, err := tensor.Linear(input, l.Weight)
	if err != nil {
		return nil, fmt.Errorf("linear forward: %w", err)
	}
	if l.Bias != nil {
		if err := addRowBias(out, l.Bias); err != nil {
			return nil, fmt.Errorf("linear forward: %w", err)
		}
	}
	return l.hookSet.run(l, input, out)
}

// addRowBias adds a [features] bias vector to every row of a [batch, features]
// tensor in place.
func addRowBias(out, bias *tensor.RawTensor) error {
	shape := out.Shape()
	bShape := bias.Shape()
	if len(bShape) != 1 || bShape[0] != shape[1] {
		return fmt.Errorf("bias shape %v does not match output %v", bShape, shape)
	}
	ov, bv := out.AsFloat32(), bias.AsFloat32()
	features := shape[1]
	for row := 0; row < shape[0]; row++ {
		dst := ov[row*features : (row+1)*features]
		for i := range dst {
			dst[i] += bv[i]
		}
	}
	return nil
}
