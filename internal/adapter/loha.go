package adapter

import (
	"fmt"

	"github.com/weft-ml/weft/internal/network"
	"github.com/weft-ml/weft/internal/tensor"
)

// Hadamard is the LoHa layer: the weight delta is the element-wise product
// of two low-rank reconstructions, (w1_a @ w1_b) * (w2_a @ w2_b). Conv
// variants replace each matrix product with a core contraction over t1/t2.
type Hadamard struct {
	base

	w1a *tensor.RawTensor
	w1b *tensor.RawTensor
	w2a *tensor.RawTensor
	w2b *tensor.RawTensor
	t1  *tensor.RawTensor
	t2  *tensor.RawTensor
}

var _ Layer = (*Hadamard)(nil)

func newHadamard(key string, values map[string]*tensor.RawTensor) (*Hadamard, error) {
	b, err := newBase(key, values)
	if err != nil {
		return nil, err
	}
	h := &Hadamard{base: b, t1: values["hada_t1"], t2: values["hada_t2"]}
	for _, f := range []struct {
		leaf string
		dst  **tensor.RawTensor
	}{
		{"hada_w1_a", &h.w1a},
		{"hada_w1_b", &h.w1b},
		{"hada_w2_a", &h.w2a},
		{"hada_w2_b", &h.w2b},
	} {
		t, err := requireTensor(key, values, f.leaf)
		if err != nil {
			return nil, err
		}
		*f.dst = t
	}
	return h, nil
}

func (h *Hadamard) Rank() (int, bool) {
	return h.w1b.Shape()[0], true
}

// rebuildHalf reconstructs one half of the product: a @ b, or the core
// contraction when a t tensor is present.
func (h *Hadamard) rebuildHalf(core, a, b *tensor.RawTensor) (*tensor.RawTensor, error) {
	a, err := f32(a)
	if err != nil {
		return nil, err
	}
	b, err = f32(b)
	if err != nil {
		return nil, err
	}
	if core == nil {
		return tensor.MatMul(a, b)
	}
	core, err = f32(core)
	if err != nil {
		return nil, err
	}
	// half[p,r,k,l] = sum_{i,j} core[i,j,k,l] * a[i,p] * b[j,r]
	return contractFactors(core, a, b)
}

func (h *Hadamard) ReconstructWeight(target tensor.Shape) (*tensor.RawTensor, error) {
	half1, err := h.rebuildHalf(h.t1, h.w1a, h.w1b)
	if err != nil {
		return nil, fmt.Errorf("layer %q: w1: %w", h.key, err)
	}
	half2, err := h.rebuildHalf(h.t2, h.w2a, h.w2b)
	if err != nil {
		return nil, fmt.Errorf("layer %q: w2: %w", h.key, err)
	}
	delta, err := tensor.Mul(half1, half2)
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", h.key, err)
	}
	return h.reshapeDelta(delta, target)
}

func (h *Hadamard) Forward(m network.Module, input *tensor.RawTensor, multiplier float32) (*tensor.RawTensor, error) {
	return h.applyDelta(h, m, input, multiplier)
}

func (h *Hadamard) EstimateSizeBytes() int {
	n := h.w1a.ByteSize() + h.w1b.ByteSize() + h.w2a.ByteSize() + h.w2b.ByteSize() + h.biasByteSize()
	if h.t1 != nil {
		n += h.t1.ByteSize()
	}
	if h.t2 != nil {
		n += h.t2.ByteSize()
	}
	return n
}

func (h *Hadamard) To(device tensor.Device, dtype tensor.DataType) error {
	for _, f := range []struct {
		name string
		t    **tensor.RawTensor
	}{
		{"w1_a", &h.w1a}, {"w1_b", &h.w1b},
		{"w2_a", &h.w2a}, {"w2_b", &h.w2b},
		{"t1", &h.t1}, {"t2", &h.t2},
	} {
		if *f.t == nil {
			continue
		}
		moved, err := (*f.t).To(device, dtype)
		if err != nil {
			return fmt.Errorf("layer %q: %s: %w", h.key, f.name, err)
		}
		*f.t = moved
	}
	return h.biasTo(device, dtype)
}
