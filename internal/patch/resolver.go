// Package patch resolves flat adapter layer keys onto nested networks and
// installs adapter contributions as forward hooks for the duration of a
// session.
package patch

import (
	"strings"

	"github.com/weft-ml/weft/internal/network"
)

// Adapter key prefixes used by the common checkpoint layouts.
const (
	PrefixUNet        = "lora_unet_"
	PrefixTextEncoder = "lora_te_"
)

// ResolveKey walks a flat underscore-joined adapter key onto the module tree
// rooted at root. The key must start with prefix; the remainder is matched
// greedily against submodule names, re-joining parts with underscores when a
// shorter candidate does not resolve (module names themselves may contain
// underscores).
//
// Returns the resolved module and its dot-separated path from the root,
// leaf included.
func ResolveKey(root network.Module, key, prefix string) (network.Module, string, error) {
	flat, ok := strings.CutPrefix(key, prefix)
	if !ok {
		return nil, "", &KeyFormatError{Key: key, Prefix: prefix}
	}
	if flat == "" {
		// Well-formed prefix but nothing left to walk.
		return nil, "", &ModuleResolutionError{Key: key}
	}

	parts := strings.Split(flat, "_")
	module := root
	var path []string

	name := parts[0]
	rest := parts[1:]
	for len(rest) > 0 {
		if sub, ok := module.Submodule(name); ok {
			module = sub
			path = append(path, name)
			name = rest[0]
		} else {
			name += "_" + rest[0]
		}
		rest = rest[1:]
	}

	sub, ok := module.Submodule(name)
	if !ok {
		return nil, "", &ModuleResolutionError{Key: key, Name: name, Path: strings.Join(path, ".")}
	}
	path = append(path, name)
	return sub, strings.Join(path, "."), nil
}
