package adapter

import (
	"fmt"

	"github.com/weft-ml/weft/internal/network"
	"github.com/weft-ml/weft/internal/tensor"
)

// Kronecker is the LoKr layer: the weight delta is the Kronecker product of
// two blocks. Either block may be stored whole (w1, w2) or factorized
// (w1_a @ w1_b, w2_a @ w2_b); the second block additionally supports a core
// contraction over t2 for conv layers.
type Kronecker struct {
	base

	w1  *tensor.RawTensor
	w1a *tensor.RawTensor
	w1b *tensor.RawTensor

	w2  *tensor.RawTensor
	w2a *tensor.RawTensor
	w2b *tensor.RawTensor
	t2  *tensor.RawTensor
}

var _ Layer = (*Kronecker)(nil)

func newKronecker(key string, values map[string]*tensor.RawTensor) (*Kronecker, error) {
	b, err := newBase(key, values)
	if err != nil {
		return nil, err
	}
	k := &Kronecker{
		base: b,
		w1:   values["lokr_w1"],
		w1a:  values["lokr_w1_a"],
		w1b:  values["lokr_w1_b"],
		w2:   values["lokr_w2"],
		w2a:  values["lokr_w2_a"],
		w2b:  values["lokr_w2_b"],
		t2:   values["lokr_t2"],
	}
	if k.w1 == nil && (k.w1a == nil || k.w1b == nil) {
		return nil, fmt.Errorf("layer %q: missing lokr_w1 or lokr_w1_a/lokr_w1_b", key)
	}
	if k.w2 == nil && (k.w2a == nil || k.w2b == nil) {
		return nil, fmt.Errorf("layer %q: missing lokr_w2 or lokr_w2_a/lokr_w2_b", key)
	}
	return k, nil
}

// Rank reports the inner dimension of whichever block is factorized.
// A fully materialized layer (both blocks stored whole) has no rank.
func (k *Kronecker) Rank() (int, bool) {
	if k.w1b != nil {
		return k.w1b.Shape()[0], true
	}
	if k.w2b != nil {
		return k.w2b.Shape()[0], true
	}
	return 0, false
}

func (k *Kronecker) block1() (*tensor.RawTensor, error) {
	if k.w1 != nil {
		return f32(k.w1)
	}
	a, err := f32(k.w1a)
	if err != nil {
		return nil, err
	}
	b, err := f32(k.w1b)
	if err != nil {
		return nil, err
	}
	return tensor.MatMul(a, b)
}

func (k *Kronecker) block2() (*tensor.RawTensor, error) {
	if k.w2 != nil {
		return f32(k.w2)
	}
	a, err := f32(k.w2a)
	if err != nil {
		return nil, err
	}
	b, err := f32(k.w2b)
	if err != nil {
		return nil, err
	}
	if k.t2 == nil {
		return tensor.MatMul(a, b)
	}
	core, err := f32(k.t2)
	if err != nil {
		return nil, err
	}
	// block2[p,r,k,l] = sum_{i,j} t2[i,j,k,l] * w2_a[i,p] * w2_b[j,r]
	return contractFactors(core, a, b)
}

func (k *Kronecker) ReconstructWeight(target tensor.Shape) (*tensor.RawTensor, error) {
	w1, err := k.block1()
	if err != nil {
		return nil, fmt.Errorf("layer %q: w1: %w", k.key, err)
	}
	w2, err := k.block2()
	if err != nil {
		return nil, fmt.Errorf("layer %q: w2: %w", k.key, err)
	}

	// A conv second block forces the first block up to 4D so the Kronecker
	// product spans the kernel dims: [a, b] -> [a, b, 1, 1].
	if len(w2.Shape()) == 4 && len(w1.Shape()) == 2 {
		if w1, err = tensor.Unsqueeze(w1, 2); err != nil {
			return nil, fmt.Errorf("layer %q: w1: %w", k.key, err)
		}
		if w1, err = tensor.Unsqueeze(w1, 3); err != nil {
			return nil, fmt.Errorf("layer %q: w1: %w", k.key, err)
		}
	}

	delta, err := tensor.Kron(w1, w2)
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", k.key, err)
	}
	return k.reshapeDelta(delta, target)
}

func (k *Kronecker) Forward(m network.Module, input *tensor.RawTensor, multiplier float32) (*tensor.RawTensor, error) {
	return k.applyDelta(k, m, input, multiplier)
}

func (k *Kronecker) EstimateSizeBytes() int {
	n := k.biasByteSize()
	for _, t := range []*tensor.RawTensor{k.w1, k.w1a, k.w1b, k.w2, k.w2a, k.w2b, k.t2} {
		if t != nil {
			n += t.ByteSize()
		}
	}
	return n
}

func (k *Kronecker) To(device tensor.Device, dtype tensor.DataType) error {
	for _, f := range []struct {
		name string
		t    **tensor.RawTensor
	}{
		{"w1", &k.w1}, {"w1_a", &k.w1a}, {"w1_b", &k.w1b},
		{"w2", &k.w2}, {"w2_a", &k.w2a}, {"w2_b", &k.w2b},
		{"t2", &k.t2},
	} {
		if *f.t == nil {
			continue
		}
		moved, err := (*f.t).To(device, dtype)
		if err != nil {
			return fmt.Errorf("layer %q: %s: %w", k.key, f.name, err)
		}
		*f.t = moved
	}
	return k.biasTo(device, dtype)
}
