package adapter

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/weft-ml/weft/internal/checkpoint"
	"github.com/weft-ml/weft/internal/tensor"
)

// Set is a loaded adapter checkpoint: a named collection of layers keyed by
// the flat layer identifier used in the checkpoint's state dict.
type Set struct {
	name   string
	layers map[string]Layer
	keys   []string

	device tensor.Device
	dtype  tensor.DataType
}

// Load reads an adapter checkpoint from disk and materializes its layers on
// the given device and dtype. Layer groups in an unrecognized format are
// skipped with a warning rather than failing the whole load.
func Load(path string, device tensor.Device, dtype tensor.DataType) (*Set, error) {
	sd, err := checkpoint.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load adapter %q: %w", path, err)
	}
	return FromStateDict(checkpoint.Name(path), sd, device, dtype)
}

// FromStateDict builds a Set from an already-loaded state dict. Entries are
// grouped by the text before the first dot; each group becomes one layer.
func FromStateDict(name string, sd checkpoint.StateDict, device tensor.Device, dtype tensor.DataType) (*Set, error) {
	groups := make(map[string]map[string]*tensor.RawTensor)
	for key, t := range sd {
		layerKey, leaf, ok := strings.Cut(key, ".")
		if !ok {
			slog.Warn("skipping state dict entry without a layer prefix",
				"adapter", name, "key", key)
			continue
		}
		g, ok := groups[layerKey]
		if !ok {
			g = make(map[string]*tensor.RawTensor)
			groups[layerKey] = g
		}
		g[leaf] = t
	}

	s := &Set{
		name:   name,
		layers: make(map[string]Layer, len(groups)),
		device: device,
		dtype:  dtype,
	}
	for layerKey, values := range groups {
		// Release the group once its layer owns the tensors.
		delete(groups, layerKey)

		layer, err := newLayer(layerKey, values)
		if errors.Is(err, ErrUnknownFormat) {
			slog.Warn("skipping adapter layer in unknown format",
				"adapter", name, "layer", layerKey)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("adapter %q: %w", name, err)
		}
		if err := layer.To(device, dtype); err != nil {
			return nil, fmt.Errorf("adapter %q: %w", name, err)
		}
		s.layers[layerKey] = layer
		s.keys = append(s.keys, layerKey)
	}
	sort.Strings(s.keys)
	return s, nil
}

// newLayer detects the factorization variant from the leaf names present in
// a layer group and constructs the matching layer.
func newLayer(key string, values map[string]*tensor.RawTensor) (Layer, error) {
	switch {
	case values["lora_down.weight"] != nil:
		return newLowRank(key, values)
	case values["hada_w1_b"] != nil:
		return newHadamard(key, values)
	case values["lokr_w1_b"] != nil || values["lokr_w1"] != nil:
		return newKronecker(key, values)
	default:
		return nil, fmt.Errorf("layer %q: %w", key, ErrUnknownFormat)
	}
}

// Name returns the adapter's name, derived from its file path on Load.
func (s *Set) Name() string {
	return s.name
}

// Keys returns the layer keys in sorted order.
func (s *Set) Keys() []string {
	return s.keys
}

// Layer returns the layer stored under key.
func (s *Set) Layer(key string) (Layer, bool) {
	l, ok := s.layers[key]
	return l, ok
}

// Len returns the number of layers.
func (s *Set) Len() int {
	return len(s.layers)
}

// Device returns the placement the set was last migrated to.
func (s *Set) Device() tensor.Device {
	return s.device
}

// DType returns the dtype the set was last migrated to.
func (s *Set) DType() tensor.DataType {
	return s.dtype
}

// To migrates every layer to the device and dtype in place. On error the
// set is left partially migrated: layers already visited keep the new
// placement. Migration is idempotent, so retrying after the cause is fixed
// converges.
func (s *Set) To(device tensor.Device, dtype tensor.DataType) error {
	for _, key := range s.keys {
		if err := s.layers[key].To(device, dtype); err != nil {
			return fmt.Errorf("adapter %q: %w", s.name, err)
		}
	}
	s.device = device
	s.dtype = dtype
	return nil
}

// EstimateSizeBytes returns the total resident size of the set's tensors.
func (s *Set) EstimateSizeBytes() int {
	n := 0
	for _, l := range s.layers {
		n += l.EstimateSizeBytes()
	}
	return n
}
