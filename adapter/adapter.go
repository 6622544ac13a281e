// Copyright 2026 Weft ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package adapter provides the public API for loading weight-adapter
// checkpoints (low-rank, Hadamard-product and Kronecker-product variants)
// and reconstructing their weight deltas.
//
// Example:
//
//	set, err := adapter.Load("style.safetensors", tensor.CPU, tensor.Float32)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, key := range set.Keys() {
//		layer, _ := set.Layer(key)
//		fmt.Println(key, layer.EstimateSizeBytes())
//	}
package adapter

import (
	"github.com/weft-ml/weft/internal/adapter"
	"github.com/weft-ml/weft/internal/checkpoint"
	"github.com/weft-ml/weft/internal/tensor"
)

// Layer is one patched layer of an adapter checkpoint.
type Layer = adapter.Layer

// Set is a loaded adapter checkpoint.
type Set = adapter.Set

// ErrUnknownFormat marks a layer group whose leaf names match no known
// adapter variant.
var ErrUnknownFormat = adapter.ErrUnknownFormat

// ShapeMismatchError reports a delta that cannot take the target module's
// weight shape.
type ShapeMismatchError = adapter.ShapeMismatchError

// Load reads an adapter checkpoint from disk and materializes its layers on
// the given device and dtype.
func Load(path string, device tensor.Device, dtype tensor.DataType) (*Set, error) {
	return adapter.Load(path, device, dtype)
}

// FromStateDict builds a Set from an already-loaded state dict.
func FromStateDict(name string, sd checkpoint.StateDict, device tensor.Device, dtype tensor.DataType) (*Set, error) {
	return adapter.FromStateDict(name, sd, device, dtype)
}
