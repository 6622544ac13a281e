// Copyright 2026 Weft ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package checkpoint provides the public API for reading adapter
// checkpoints: safetensors files and pickled torch state dicts, loaded into
// a flat StateDict of raw tensors.
package checkpoint

import (
	"github.com/weft-ml/weft/internal/checkpoint"
)

// StateDict maps flat tensor names to their loaded tensors.
type StateDict = checkpoint.StateDict

// Load reads a checkpoint, dispatching on file extension: ".safetensors"
// uses the safetensors reader, anything else the torch pickle reader.
func Load(path string) (StateDict, error) {
	return checkpoint.Load(path)
}

// Name derives a checkpoint's display name from its file path.
func Name(path string) string {
	return checkpoint.Name(path)
}

// LoadSafetensors reads every tensor of a safetensors file.
func LoadSafetensors(path string) (StateDict, error) {
	return checkpoint.LoadSafetensors(path)
}

// LoadTorch reads every tensor of a pickled torch state dict.
func LoadTorch(path string) (StateDict, error) {
	return checkpoint.LoadTorch(path)
}

// SafetensorsReader reads tensors from a safetensors file on demand.
type SafetensorsReader = checkpoint.SafetensorsReader

// NewSafetensorsReader opens a safetensors file and parses its header.
func NewSafetensorsReader(path string) (*SafetensorsReader, error) {
	return checkpoint.NewSafetensorsReader(path)
}
