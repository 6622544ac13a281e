// Copyright 2026 Weft ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package network provides the public API for the module trees adapters
// patch: named containers, Linear and Conv2D leaves, and removable forward
// hooks.
package network

import (
	"github.com/weft-ml/weft/internal/network"
	"github.com/weft-ml/weft/tensor"
)

// RawTensor is re-exported for hook and constructor signatures.
type RawTensor = tensor.RawTensor

// Module is a node in a network tree: it exposes its children by name.
type Module = network.Module

// Container is a Module composed of named child modules.
type Container = network.Container

// NewContainer creates an empty container.
func NewContainer() *Container {
	return network.NewContainer()
}

// Linear is a fully connected leaf module.
type Linear = network.Linear

// NewLinear creates a linear module with the given weight and optional bias.
func NewLinear(weight, bias *RawTensor) *Linear {
	return network.NewLinear(weight, bias)
}

// Conv2D is a 2D convolution leaf module.
type Conv2D = network.Conv2D

// NewConv2D creates a conv module with the given weight, optional bias and
// unit stride, no padding, unit dilation and a single group.
func NewConv2D(weight, bias *RawTensor) *Conv2D {
	return network.NewConv2D(weight, bias)
}

// HookFunc observes or replaces a module's forward output.
type HookFunc = network.HookFunc

// Hookable is a module accepting forward hooks.
type Hookable = network.Hookable

// HookHandle removes a previously registered hook.
type HookHandle = network.HookHandle
