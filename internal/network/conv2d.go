package network

import (
	"fmt"

	"github.com/weft-ml/weft/internal/tensor"
)

// Conv2D is a 2-D convolutional leaf layer over NCHW input.
//
// Weight shape: [out_channels, in_channels/groups, kernel_h, kernel_w].
// The convolution parameters are public so interception code can apply the
// module's own operation to a substitute weight.
type Conv2D struct {
	leaf
	hookSet

	Weight *tensor.RawTensor
	Bias   *tensor.RawTensor

	Stride   int
	Padding  int
	Dilation int
	Groups   int
}

// NewConv2D creates a Conv2D layer around an existing weight tensor with
// stride 1, no padding, dilation 1 and a single group. Adjust the exported
// fields for anything else.
func NewConv2D(weight, bias *tensor.RawTensor) *Conv2D {
	return &Conv2D{
		Weight:   weight,
		Bias:     bias,
		Stride:   1,
		Padding:  0,
		Dilation: 1,
		Groups:   1,
	}
}

// RegisterForwardHook registers a forward-output interception callback.
func (c *Conv2D) RegisterForwardHook(fn HookFunc) *HookHandle {
	return c.hookSet.register(fn)
}

// Forward computes the convolution for input [batch, in_channels, h, w] and
// then runs registered hooks in order.
func (c *Conv2D) Forward(input *tensor.RawTensor) (*tensor.RawTensor, error) {
	out, err := tensor.Conv2D(input, c.Weight, c.Stride, c.Padding, c.Dilation, c.Groups)
	if err != nil {
		return nil, fmt.Errorf("conv2d forward: %w", err)
	}
	if c.Bias != nil {
		if err := addChannelBias(out, c.Bias); err != nil {
			return nil, fmt.Errorf("conv2d forward: %w", err)
		}
	}
	return c.hookSet.run(c, input, out)
}

// addChannelBias adds a [channels] bias vector to every spatial position of a
// [batch, channels, h, w] tensor in place.
func addChannelBias(out, bias *tensor.RawTensor) error {
	shape := out.Shape()
	bShape := bias.Shape()
	if len(bShape) != 1 || bShape[0] != shape[1] {
		return fmt.Errorf("bias shape %v does not match output %v", bShape, shape)
	}
	ov, bv := out.AsFloat32(), bias.AsFloat32()
	hw := shape[2] * shape[3]
	for n := 0; n < shape[0]; n++ {
		for ch := 0; ch < shape[1]; ch++ {
			base := (n*shape[1] + ch) * hw
			for i := 0; i < hw; i++ {
				ov[base+i] += bv[ch]
			}
		}
	}
	return nil
}
