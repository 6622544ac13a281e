package network

import (
	"github.com/weft-ml/weft/internal/tensor"
)

// HookFunc is a forward-output interception callback. It receives the module,
// the module's input and the output computed so far, and may return a
// replacement output. Returning nil keeps the current output. An error aborts
// the module's Forward call.
type HookFunc func(m Module, input, output *tensor.RawTensor) (*tensor.RawTensor, error)

// Hookable is implemented by modules that support forward-output
// interception.
type Hookable interface {
	Module
	RegisterForwardHook(fn HookFunc) *HookHandle
}

// HookHandle revokes a registered hook. Remove is idempotent.
type HookHandle struct {
	owner *hookSet
	id    int
}

// Remove unregisters the hook. Calling Remove more than once is a no-op.
func (h *HookHandle) Remove() {
	if h.owner == nil {
		return
	}
	h.owner.remove(h.id)
	h.owner = nil
}

// hookSet holds a module's registered hooks in registration order.
// It is embedded by leaf layers; the layer passes itself to run.
type hookSet struct {
	nextID int
	hooks  []hookEntry
}

type hookEntry struct {
	id int
	fn HookFunc
}

func (s *hookSet) register(fn HookFunc) *HookHandle {
	s.nextID++
	s.hooks = append(s.hooks, hookEntry{id: s.nextID, fn: fn})
	return &HookHandle{owner: s, id: s.nextID}
}

func (s *hookSet) remove(id int) {
	for i, e := range s.hooks {
		if e.id == id {
			s.hooks = append(s.hooks[:i], s.hooks[i+1:]...)
			return
		}
	}
}

// run invokes every hook in registration order, threading the output through.
func (s *hookSet) run(m Module, input, output *tensor.RawTensor) (*tensor.RawTensor, error) {
	for _, e := range s.hooks {
		replaced, err := e.fn(m, input, output)
		if err != nil {
			return nil, err
		}
		if replaced != nil {
			output = replaced
		}
	}
	return output, nil
}
