// Package checkpoint reads adapter checkpoints into flat state dicts.
//
// Two on-disk formats are supported: safetensors and PyTorch pickle files
// (.pt/.bin/.ckpt). Both are always loaded into CPU memory; device and dtype
// migration happen later, per adapter set.
package checkpoint

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/weft-ml/weft/internal/tensor"
)

// StateDict is a flat mapping from dotted tensor keys
// ("<layer_key>.<leaf>") to raw tensors.
type StateDict map[string]*tensor.RawTensor

// Load reads a checkpoint file into a state dict, dispatching on the file
// extension: ".safetensors" uses the safetensors reader, everything else is
// treated as a PyTorch pickle file.
func Load(path string) (StateDict, error) {
	if strings.EqualFold(filepath.Ext(path), ".safetensors") {
		return LoadSafetensors(path)
	}
	return LoadTorch(path)
}

// Name derives a human-readable checkpoint name from its file path: the base
// name without extension.
func Name(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// sizeGuard rejects implausible header sizes before allocating.
const maxHeaderSize = 100 * 1024 * 1024

func validateShape(name string, shape tensor.Shape) error {
	if err := shape.Validate(); err != nil {
		return fmt.Errorf("invalid shape for tensor %s: %w", name, err)
	}
	return nil
}
