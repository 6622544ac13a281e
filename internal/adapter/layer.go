// Package adapter implements weight-delta adapter layers (low-rank,
// Hadamard-product and Kronecker-product factorizations) and the adapter
// sets that own them.
//
// A layer never touches the target network's stored weights: it
// reconstructs its delta on demand and applies the target module's own
// operation with the delta as the weight, producing an additive correction
// to the module's output.
package adapter

import (
	"fmt"

	"github.com/weft-ml/weft/internal/network"
	"github.com/weft-ml/weft/internal/tensor"
)

// Layer is one patched layer of an adapter checkpoint.
type Layer interface {
	// Key returns the layer's flat identifier within the adapter namespace.
	Key() string

	// Rank returns the factorization rank, when the variant exposes one.
	// Unranked layers are unscaled (effective scale 1.0).
	Rank() (int, bool)

	// ReconstructWeight rebuilds the full weight delta and reshapes it to
	// the target weight shape. Returns a ShapeMismatchError when the delta
	// cannot take that shape.
	ReconstructWeight(target tensor.Shape) (*tensor.RawTensor, error)

	// Forward applies the target module's operation with the reconstructed
	// delta as weight and scales the result by multiplier times the layer's
	// alpha/rank scale.
	Forward(m network.Module, input *tensor.RawTensor, multiplier float32) (*tensor.RawTensor, error)

	// EstimateSizeBytes returns the resident size of the layer's tensors.
	EstimateSizeBytes() int

	// To migrates every owned tensor to the device and dtype in place.
	To(device tensor.Device, dtype tensor.DataType) error
}

// base carries the state shared by every variant: the layer key, the
// optional alpha scalar and the optional sparse bias.
type base struct {
	key   string
	alpha *float64
	bias  *sparseBias
}

func newBase(key string, values map[string]*tensor.RawTensor) (base, error) {
	b := base{key: key}

	if alphaT, ok := values["alpha"]; ok {
		v, err := tensor.Item(alphaT)
		if err != nil {
			return base{}, fmt.Errorf("layer %q: alpha: %w", key, err)
		}
		b.alpha = &v
	}

	bias, err := newSparseBias(values)
	if err != nil {
		return base{}, fmt.Errorf("layer %q: %w", key, err)
	}
	b.bias = bias
	return b, nil
}

func (b *base) Key() string {
	return b.key
}

// scale returns alpha/rank when both are present and non-zero, 1.0 otherwise.
func (b *base) scale(rank int, hasRank bool) float64 {
	if b.alpha != nil && *b.alpha != 0 && hasRank && rank != 0 {
		return *b.alpha / float64(rank)
	}
	return 1.0
}

func (b *base) biasByteSize() int {
	if b.bias == nil {
		return 0
	}
	return b.bias.byteSize()
}

func (b *base) biasTo(device tensor.Device, dtype tensor.DataType) error {
	if b.bias == nil {
		return nil
	}
	return b.bias.to(device, dtype)
}

// reshapeDelta reshapes a reconstructed delta to the target weight shape,
// surfacing element-count disagreement as a ShapeMismatchError, and adds the
// densified bias when present.
func (b *base) reshapeDelta(delta *tensor.RawTensor, target tensor.Shape) (*tensor.RawTensor, error) {
	if delta.NumElements() != target.NumElements() {
		return nil, &ShapeMismatchError{Layer: b.key, Got: delta.Shape().Clone(), Want: target.Clone()}
	}
	out, err := tensor.Reshape(delta, target)
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", b.key, err)
	}
	if b.bias != nil {
		dense, err := b.bias.dense()
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", b.key, err)
		}
		if dense.NumElements() != target.NumElements() {
			return nil, &ShapeMismatchError{Layer: b.key, Got: dense.Shape().Clone(), Want: target.Clone()}
		}
		dense, err = tensor.Reshape(dense, target)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", b.key, err)
		}
		out, err = tensor.Add(out, dense)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", b.key, err)
		}
	}
	return out, nil
}

// applyDelta runs the target module's native operation with the delta as
// weight (no bias term) and scales the result.
func (b *base) applyDelta(l Layer, m network.Module, input *tensor.RawTensor, multiplier float32) (*tensor.RawTensor, error) {
	in, err := tensor.EnsureFloat32(input)
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", b.key, err)
	}

	var out *tensor.RawTensor
	switch mod := m.(type) {
	case *network.Conv2D:
		delta, err := l.ReconstructWeight(mod.Weight.Shape())
		if err != nil {
			return nil, err
		}
		out, err = tensor.Conv2D(in, delta, mod.Stride, mod.Padding, mod.Dilation, mod.Groups)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", b.key, err)
		}
	case *network.Linear:
		delta, err := l.ReconstructWeight(mod.Weight.Shape())
		if err != nil {
			return nil, err
		}
		out, err = tensor.Linear(in, delta)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", b.key, err)
		}
	default:
		return nil, fmt.Errorf("layer %q: unsupported target module type %T", b.key, m)
	}

	rank, hasRank := l.Rank()
	return tensor.Scale(out, multiplier*float32(b.scale(rank, hasRank)))
}

// f32 is a readability helper for reconstruction code: every factor passes
// through EnsureFloat32 before any math.
func f32(t *tensor.RawTensor) (*tensor.RawTensor, error) {
	return tensor.EnsureFloat32(t)
}

// flatten2D collapses trailing dimensions: a [a, b, c, d] factor becomes
// [a, b*c*d], matching the reshape(x.shape[0], -1) used on conv factors.
func flatten2D(t *tensor.RawTensor) (*tensor.RawTensor, error) {
	shape := t.Shape()
	if len(shape) == 2 {
		return t, nil
	}
	return tensor.Reshape(t, tensor.Shape{shape[0], t.NumElements() / shape[0]})
}

func requireTensor(key string, values map[string]*tensor.RawTensor, leaf string) (*tensor.RawTensor, error) {
	t, ok := values[leaf]
	if !ok {
		return nil, fmt.Errorf("layer %q: missing %s", key, leaf)
	}
	return t, nil
}
