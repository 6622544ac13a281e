// Copyright 2026 Weft ML. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package patch provides the public API for applying adapter sets to a
// network for the duration of a callback, with guaranteed teardown.
//
// Example:
//
//	session := patch.NewSession()
//	err := session.ApplyUNet(unet, []patch.Weighted{{Set: style, Weight: 0.8}}, func() error {
//		return runInference(unet)
//	})
package patch

import (
	"github.com/weft-ml/weft/internal/network"
	"github.com/weft-ml/weft/internal/patch"
)

// Adapter key prefixes used by the common checkpoint layouts.
const (
	PrefixUNet        = patch.PrefixUNet
	PrefixTextEncoder = patch.PrefixTextEncoder
)

// Weighted pairs an adapter set with its contribution strength.
type Weighted = patch.Weighted

// Session applies weighted adapter sets for the duration of a callback.
type Session = patch.Session

// NewSession returns an idle session.
func NewSession() *Session {
	return patch.NewSession()
}

// ErrSessionArmed is returned when Apply is called while a previous
// application on the same session is still running.
var ErrSessionArmed = patch.ErrSessionArmed

// KeyFormatError reports an adapter key without the expected prefix.
type KeyFormatError = patch.KeyFormatError

// ModuleResolutionError reports a key that does not resolve on the network.
type ModuleResolutionError = patch.ModuleResolutionError

// ResolveKey walks a flat adapter key onto the module tree rooted at root,
// returning the resolved module and its dot path.
func ResolveKey(root network.Module, key, prefix string) (network.Module, string, error) {
	return patch.ResolveKey(root, key, prefix)
}
