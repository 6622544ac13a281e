package adapter

import (
	"fmt"

	"github.com/weft-ml/weft/internal/network"
	"github.com/weft-ml/weft/internal/tensor"
)

// LowRank is the classic two-factor adapter layer: the weight delta is
// up @ down, with an optional mid core for higher-order (conv) variants.
type LowRank struct {
	base

	up   *tensor.RawTensor
	down *tensor.RawTensor
	mid  *tensor.RawTensor
}

var _ Layer = (*LowRank)(nil)

func newLowRank(key string, values map[string]*tensor.RawTensor) (*LowRank, error) {
	b, err := newBase(key, values)
	if err != nil {
		return nil, err
	}
	up, err := requireTensor(key, values, "lora_up.weight")
	if err != nil {
		return nil, err
	}
	down, err := requireTensor(key, values, "lora_down.weight")
	if err != nil {
		return nil, err
	}
	return &LowRank{
		base: b,
		up:   up,
		down: down,
		mid:  values["lora_mid.weight"],
	}, nil
}

// Rank is the inner dimension of the factorization, read off the down
// factor's leading dimension.
func (l *LowRank) Rank() (int, bool) {
	return l.down.Shape()[0], true
}

// ReconstructWeight rebuilds up @ down (or the mid contraction for conv
// layers with a core tensor) and reshapes it to the target weight shape.
func (l *LowRank) ReconstructWeight(target tensor.Shape) (*tensor.RawTensor, error) {
	up, err := f32(l.up)
	if err != nil {
		return nil, fmt.Errorf("layer %q: up: %w", l.key, err)
	}
	down, err := f32(l.down)
	if err != nil {
		return nil, fmt.Errorf("layer %q: down: %w", l.key, err)
	}

	var delta *tensor.RawTensor
	if l.mid != nil {
		// delta[i,j,w,h] = sum_{m,n} mid[m,n,w,h] * up[i,m] * down[n,j]
		mid, err := f32(l.mid)
		if err != nil {
			return nil, fmt.Errorf("layer %q: mid: %w", l.key, err)
		}
		up2, err := flatten2D(up)
		if err != nil {
			return nil, fmt.Errorf("layer %q: up: %w", l.key, err)
		}
		down2, err := flatten2D(down)
		if err != nil {
			return nil, fmt.Errorf("layer %q: down: %w", l.key, err)
		}
		upT, err := tensor.Transpose2D(up2)
		if err != nil {
			return nil, fmt.Errorf("layer %q: up: %w", l.key, err)
		}
		delta, err = contractFactors(mid, upT, down2)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", l.key, err)
		}
	} else {
		up2, err := flatten2D(up)
		if err != nil {
			return nil, fmt.Errorf("layer %q: up: %w", l.key, err)
		}
		down2, err := flatten2D(down)
		if err != nil {
			return nil, fmt.Errorf("layer %q: down: %w", l.key, err)
		}
		delta, err = tensor.MatMul(up2, down2)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", l.key, err)
		}
	}
	return l.reshapeDelta(delta, target)
}

func (l *LowRank) Forward(m network.Module, input *tensor.RawTensor, multiplier float32) (*tensor.RawTensor, error) {
	return l.applyDelta(l, m, input, multiplier)
}

func (l *LowRank) EstimateSizeBytes() int {
	n := l.up.ByteSize() + l.down.ByteSize() + l.biasByteSize()
	if l.mid != nil {
		n += l.mid.ByteSize()
	}
	return n
}

func (l *LowRank) To(device tensor.Device, dtype tensor.DataType) error {
	var err error
	if l.up, err = l.up.To(device, dtype); err != nil {
		return fmt.Errorf("layer %q: up: %w", l.key, err)
	}
	if l.down, err = l.down.To(device, dtype); err != nil {
		return fmt.Errorf("layer %q: down: %w", l.key, err)
	}
	if l.mid != nil {
		if l.mid, err = l.mid.To(device, dtype); err != nil {
			return fmt.Errorf("layer %q: mid: %w", l.key, err)
		}
	}
	return l.biasTo(device, dtype)
}
