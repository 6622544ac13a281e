package checkpoint

import (
	"fmt"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/weft-ml/weft/internal/tensor"
)

// LoadTorch reads a PyTorch pickle checkpoint (.pt/.bin/.ckpt) into a state
// dict. Checkpoints that nest the tensors under a "state_dict" entry are
// unwrapped transparently.
func LoadTorch(path string) (StateDict, error) {
	result, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load torch checkpoint: %w", err)
	}

	entries, err := dictEntries(result)
	if err != nil {
		return nil, err
	}

	// Common wrapper layout: {"state_dict": {...}, "epoch": ..., ...}.
	if inner, ok := entries["state_dict"]; ok {
		if innerEntries, err := dictEntries(inner); err == nil {
			entries = innerEntries
		}
	}

	sd := make(StateDict, len(entries))
	for key, value := range entries {
		t, ok := value.(*pytorch.Tensor)
		if !ok {
			// Non-tensor entries (metadata ints, nested config) are not
			// part of the weight dict.
			continue
		}
		raw, err := convertTorchTensor(key, t)
		if err != nil {
			return nil, err
		}
		sd[key] = raw
	}
	return sd, nil
}

// dictEntries flattens the pickle dict flavors gopickle can return into a
// plain string-keyed map.
func dictEntries(v any) (map[string]any, error) {
	out := make(map[string]any)
	switch d := v.(type) {
	case *types.OrderedDict:
		for key, entry := range d.Map {
			name, ok := key.(string)
			if !ok {
				continue
			}
			out[name] = entry.Value
		}
	case *types.Dict:
		for _, entry := range *d {
			name, ok := entry.Key.(string)
			if !ok {
				continue
			}
			out[name] = entry.Value
		}
	case map[string]any:
		for key, value := range d {
			out[key] = value
		}
	default:
		return nil, fmt.Errorf("unexpected checkpoint root type %T", v)
	}
	return out, nil
}

func convertTorchTensor(name string, t *pytorch.Tensor) (*tensor.RawTensor, error) {
	shape := tensor.Shape(append([]int(nil), t.Size...))
	if len(shape) == 0 {
		shape = tensor.Shape{1}
	}
	if err := validateShape(name, shape); err != nil {
		return nil, err
	}
	if !contiguous(t, shape) {
		return nil, fmt.Errorf("tensor %s is not contiguous", name)
	}

	n := shape.NumElements()
	offset := t.StorageOffset

	// gopickle decodes half-precision storages to float32; those tensors
	// land as Float32 here and To() can take them back down.
	switch s := t.Source.(type) {
	case *pytorch.FloatStorage:
		return rawFromFloat32(name, s.Data, offset, n, shape)
	case *pytorch.HalfStorage:
		return rawFromFloat32(name, s.Data, offset, n, shape)
	case *pytorch.BFloat16Storage:
		return rawFromFloat32(name, s.Data, offset, n, shape)
	case *pytorch.DoubleStorage:
		if offset+n > len(s.Data) {
			return nil, fmt.Errorf("tensor %s extends beyond its storage", name)
		}
		raw, err := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
		if err != nil {
			return nil, err
		}
		copy(raw.AsFloat64(), s.Data[offset:offset+n])
		return raw, nil
	case *pytorch.IntStorage:
		if offset+n > len(s.Data) {
			return nil, fmt.Errorf("tensor %s extends beyond its storage", name)
		}
		raw, err := tensor.NewRaw(shape, tensor.Int32, tensor.CPU)
		if err != nil {
			return nil, err
		}
		copy(raw.AsInt32(), s.Data[offset:offset+n])
		return raw, nil
	case *pytorch.LongStorage:
		if offset+n > len(s.Data) {
			return nil, fmt.Errorf("tensor %s extends beyond its storage", name)
		}
		raw, err := tensor.NewRaw(shape, tensor.Int64, tensor.CPU)
		if err != nil {
			return nil, err
		}
		copy(raw.AsInt64(), s.Data[offset:offset+n])
		return raw, nil
	case *pytorch.ByteStorage:
		if offset+n > len(s.Data) {
			return nil, fmt.Errorf("tensor %s extends beyond its storage", name)
		}
		raw, err := tensor.NewRaw(shape, tensor.Uint8, tensor.CPU)
		if err != nil {
			return nil, err
		}
		copy(raw.AsUint8(), s.Data[offset:offset+n])
		return raw, nil
	default:
		return nil, fmt.Errorf("tensor %s: unsupported storage type %T", name, t.Source)
	}
}

func rawFromFloat32(name string, data []float32, offset, n int, shape tensor.Shape) (*tensor.RawTensor, error) {
	if offset+n > len(data) {
		return nil, fmt.Errorf("tensor %s extends beyond its storage", name)
	}
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	if err != nil {
		return nil, err
	}
	copy(raw.AsFloat32(), data[offset:offset+n])
	return raw, nil
}

func contiguous(t *pytorch.Tensor, shape tensor.Shape) bool {
	if len(t.Stride) != len(t.Size) {
		return len(t.Size) == 0
	}
	expected := shape.ComputeStrides()
	for i, s := range t.Stride {
		if s != expected[i] {
			return false
		}
	}
	return true
}
