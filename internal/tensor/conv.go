package tensor

import "fmt"

// Linear applies x @ W.T for input [batch, in] and weight [out, in].
// No bias term; adapter deltas are applied as bare linear maps.
func Linear(input, weight *RawTensor) (*RawTensor, error) {
	if err := checkFloat32Pair("linear", input, weight); err != nil {
		return nil, err
	}
	if len(input.shape) != 2 || len(weight.shape) != 2 {
		return nil, fmt.Errorf("linear: expected 2D input and weight, got %v and %v", input.shape, weight.shape)
	}
	if input.shape[1] != weight.shape[1] {
		return nil, fmt.Errorf("linear: input features %d do not match weight features %d",
			input.shape[1], weight.shape[1])
	}
	wT, err := Transpose2D(weight)
	if err != nil {
		return nil, err
	}
	return MatMul(input, wT)
}

// Conv2D applies a 2-D convolution over NCHW input.
//
// Input:  [batch, in_channels, height, width]
// Weight: [out_channels, in_channels/groups, kernel_h, kernel_w]
// Output: [batch, out_channels, out_h, out_w]
//
// No bias term. Supports stride, zero padding, dilation and grouped
// convolution, matching what a patched host module may carry.
func Conv2D(input, weight *RawTensor, stride, padding, dilation, groups int) (*RawTensor, error) {
	if err := checkFloat32Pair("conv2d", input, weight); err != nil {
		return nil, err
	}
	if len(input.shape) != 4 || len(weight.shape) != 4 {
		return nil, fmt.Errorf("conv2d: expected 4D input and weight, got %v and %v", input.shape, weight.shape)
	}
	if stride <= 0 || dilation <= 0 || groups <= 0 {
		return nil, fmt.Errorf("conv2d: invalid stride=%d dilation=%d groups=%d", stride, dilation, groups)
	}

	batch, inC, inH, inW := input.shape[0], input.shape[1], input.shape[2], input.shape[3]
	outC, kC, kH, kW := weight.shape[0], weight.shape[1], weight.shape[2], weight.shape[3]

	if inC%groups != 0 || outC%groups != 0 {
		return nil, fmt.Errorf("conv2d: channels (in=%d, out=%d) not divisible by groups=%d", inC, outC, groups)
	}
	if kC != inC/groups {
		return nil, fmt.Errorf("conv2d: weight expects %d input channels per group, input has %d", kC, inC/groups)
	}

	outH := (inH+2*padding-dilation*(kH-1)-1)/stride + 1
	outW := (inW+2*padding-dilation*(kW-1)-1)/stride + 1
	if outH <= 0 || outW <= 0 {
		return nil, fmt.Errorf("conv2d: kernel %dx%d does not fit input %dx%d with padding=%d", kH, kW, inH, inW, padding)
	}

	result, err := NewRaw(Shape{batch, outC, outH, outW}, Float32, input.device)
	if err != nil {
		return nil, fmt.Errorf("conv2d: %w", err)
	}

	in := input.AsFloat32()
	w := weight.AsFloat32()
	out := result.AsFloat32()
	outCPerGroup := outC / groups

	for n := 0; n < batch; n++ {
		for oc := 0; oc < outC; oc++ {
			g := oc / outCPerGroup
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					var acc float32
					for ic := 0; ic < kC; ic++ {
						inCh := g*kC + ic
						for ky := 0; ky < kH; ky++ {
							iy := oh*stride - padding + ky*dilation
							if iy < 0 || iy >= inH {
								continue
							}
							for kx := 0; kx < kW; kx++ {
								ix := ow*stride - padding + kx*dilation
								if ix < 0 || ix >= inW {
									continue
								}
								acc += in[((n*inC+inCh)*inH+iy)*inW+ix] *
									w[((oc*kC+ic)*kH+ky)*kW+kx]
							}
						}
					}
					out[((n*outC+oc)*outH+oh)*outW+ow] = acc
				}
			}
		}
	}
	return result, nil
}
