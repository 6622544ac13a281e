package adapter

import (
	"errors"
	"fmt"

	"github.com/weft-ml/weft/internal/tensor"
)

// ErrUnknownFormat marks a grouped checkpoint entry whose leaf names match no
// known adapter variant. Set loading skips such groups with a warning instead
// of failing the whole checkpoint.
var ErrUnknownFormat = errors.New("unknown adapter layer format")

// ShapeMismatchError reports a reconstructed delta whose shape cannot be
// reshaped to the target module's weight shape.
type ShapeMismatchError struct {
	Layer string
	Got   tensor.Shape
	Want  tensor.Shape
}

// Error implements the error interface.
func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("layer %q: reconstructed delta shape %v does not match target weight shape %v",
		e.Layer, e.Got, e.Want)
}
