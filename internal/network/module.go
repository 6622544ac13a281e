// Package network models the consumed target network: a tree of named
// modules supporting hierarchical submodule lookup and forward-output
// interception. The adapter engine only ever walks this tree and registers
// hooks on its leaves; the network's own forward semantics stay with the
// host.
package network

// Module is the base interface for every node of a target network.
//
// A module exposes its immediate children by name. Leaf layers (Linear,
// Conv2D) have no children and report none.
type Module interface {
	// Submodule returns the immediate child registered under name.
	Submodule(name string) (Module, bool)

	// SubmoduleNames returns the names of immediate children in
	// registration order.
	SubmoduleNames() []string
}

// Container is a module with ordered named children. Child names may contain
// underscores ("down_blocks", "to_q"), which is what makes flat adapter keys
// ambiguous and forces the resolver's backtracking descent.
type Container struct {
	order    []string
	children map[string]Module
}

// NewContainer creates an empty container.
func NewContainer() *Container {
	return &Container{children: make(map[string]Module)}
}

// Add registers a child module under name, replacing any existing child with
// the same name. Returns the container for chaining while building trees.
func (c *Container) Add(name string, m Module) *Container {
	if _, exists := c.children[name]; !exists {
		c.order = append(c.order, name)
	}
	c.children[name] = m
	return c
}

// Submodule implements Module.
func (c *Container) Submodule(name string) (Module, bool) {
	m, ok := c.children[name]
	return m, ok
}

// SubmoduleNames implements Module.
func (c *Container) SubmoduleNames() []string {
	return append([]string(nil), c.order...)
}

// leaf provides the Module implementation shared by layers without children.
type leaf struct{}

func (leaf) Submodule(string) (Module, bool) { return nil, false }
func (leaf) SubmoduleNames() []string        { return nil }
