package patch

import (
	"fmt"
	"strings"
	"sync"

	"github.com/weft-ml/weft/internal/adapter"
	"github.com/weft-ml/weft/internal/network"
	"github.com/weft-ml/weft/internal/tensor"
)

// Weighted pairs an adapter set with its contribution strength.
type Weighted struct {
	Set    *adapter.Set
	Weight float32
}

// target collects every adapter layer resolved onto one network module, in
// application order, so a single hook serves all of them.
type target struct {
	module network.Hookable
	layers []weightedLayer
}

type weightedLayer struct {
	layer  adapter.Layer
	weight float32
}

// Session applies weighted adapter sets to a network for the duration of a
// callback. Hooks are torn down unconditionally when the callback returns,
// whatever its outcome, so the network always comes back unpatched.
//
// A Session is single-flight: Apply fails with ErrSessionArmed while a
// previous application is still running. A finished session can be reused.
type Session struct {
	mu    sync.Mutex
	armed bool
}

// NewSession returns an idle session.
func NewSession() *Session {
	return &Session{}
}

// Apply resolves every layer of every adapter set whose key starts with
// prefix onto the network rooted at root, installs one forward hook per
// patched module, runs fn, and removes all hooks before returning. Adapters
// contribute in argument order; layers resolved to the same module accumulate
// additively on top of the module's original output.
//
// Layers carrying a different prefix are skipped: one checkpoint commonly
// holds layers for several networks, and each Apply call patches one of them.
// Resolution happens up front: a prefixed key that does not resolve on root
// fails Apply before fn runs, with nothing left installed.
func (s *Session) Apply(root network.Module, adapters []Weighted, prefix string, fn func() error) error {
	s.mu.Lock()
	if s.armed {
		s.mu.Unlock()
		return ErrSessionArmed
	}
	s.armed = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.armed = false
		s.mu.Unlock()
	}()

	targets := make(map[string]*target)
	var order []string
	for _, wa := range adapters {
		for _, key := range wa.Set.Keys() {
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			layer, _ := wa.Set.Layer(key)
			module, path, err := ResolveKey(root, key, prefix)
			if err != nil {
				return fmt.Errorf("adapter %q: %w", wa.Set.Name(), err)
			}
			hookable, ok := module.(network.Hookable)
			if !ok {
				return fmt.Errorf("adapter %q: module %q does not accept forward hooks", wa.Set.Name(), path)
			}
			tg, ok := targets[path]
			if !ok {
				tg = &target{module: hookable}
				targets[path] = tg
				order = append(order, path)
			}
			tg.layers = append(tg.layers, weightedLayer{layer: layer, weight: wa.Weight})
		}
	}

	handles := make([]*network.HookHandle, 0, len(order))
	defer func() {
		for _, h := range handles {
			h.Remove()
		}
	}()

	for _, path := range order {
		tg := targets[path]
		handles = append(handles, tg.module.RegisterForwardHook(tg.hook))
	}

	return fn()
}

// hook adds every resolved layer's contribution to the module's output.
func (tg *target) hook(m network.Module, input, output *tensor.RawTensor) (*tensor.RawTensor, error) {
	out := output
	for _, wl := range tg.layers {
		delta, err := wl.layer.Forward(m, input, wl.weight)
		if err != nil {
			return nil, err
		}
		out, err = tensor.Add(out, delta)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", wl.layer.Key(), err)
		}
	}
	return out, nil
}

// ApplyUNet is Apply with the UNet key prefix.
func (s *Session) ApplyUNet(root network.Module, adapters []Weighted, fn func() error) error {
	return s.Apply(root, adapters, PrefixUNet, fn)
}

// ApplyTextEncoder is Apply with the text encoder key prefix.
func (s *Session) ApplyTextEncoder(root network.Module, adapters []Weighted, fn func() error) error {
	return s.Apply(root, adapters, PrefixTextEncoder, fn)
}
