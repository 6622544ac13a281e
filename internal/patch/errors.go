package patch

import (
	"errors"
	"fmt"
)

// ErrSessionArmed is returned when Apply is called on a session whose hooks
// are still installed. A session may be reused once the previous application
// has fully torn down.
var ErrSessionArmed = errors.New("patch session already armed")

// KeyFormatError reports an adapter layer key that does not carry the
// expected network prefix.
type KeyFormatError struct {
	Key    string
	Prefix string
}

func (e *KeyFormatError) Error() string {
	return fmt.Sprintf("adapter key %q does not start with prefix %q", e.Key, e.Prefix)
}

// ModuleResolutionError reports a layer key whose path could not be walked
// on the target network.
type ModuleResolutionError struct {
	Key  string
	Name string // submodule name that failed to resolve
	Path string // dot path resolved so far
}

func (e *ModuleResolutionError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("adapter key %q names no module", e.Key)
	}
	if e.Path == "" {
		return fmt.Sprintf("adapter key %q: no submodule %q at network root", e.Key, e.Name)
	}
	return fmt.Sprintf("adapter key %q: no submodule %q under %q", e.Key, e.Name, e.Path)
}
