package engine

// InitialPromptVar is the variable every run starts with.
const InitialPromptVar = "InitialPrompt"

// Context holds the named values of one run. Names keep their first-bound
// order; rebinding a name overwrites its value in place. Names are never
// removed.
type Context struct {
	names  []string
	values map[string]string
}

// NewContext creates a context holding InitialPrompt.
func NewContext(initialPrompt string) *Context {
	c := &Context{values: make(map[string]string)}
	c.Set(InitialPromptVar, initialPrompt)
	return c
}

// Set binds name to value.
func (c *Context) Set(name, value string) {
	if _, ok := c.values[name]; !ok {
		c.names = append(c.names, name)
	}
	c.values[name] = value
}

// Lookup returns the value bound to name.
func (c *Context) Lookup(name string) (string, bool) {
	value, ok := c.values[name]
	return value, ok
}

// Len returns the number of bound names.
func (c *Context) Len() int {
	return len(c.names)
}

// Names returns the bound names in binding order.
func (c *Context) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Vars returns a copy of the bindings.
func (c *Context) Vars() map[string]string {
	out := make(map[string]string, len(c.values))
	for name, value := range c.values {
		out[name] = value
	}
	return out
}
