package models

// Binding is one entry of an Environment.
type Binding struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Environment is the ordered mapping of binding name to last assigned value,
// accumulated across the code blocks of one document. It also keeps the
// journal of committed snippet sources so replay-based adapters can rebuild
// interpreter state.
//
// An Environment is owned by a single verification goroutine. Adapters must
// not mutate the instance they receive; they return an updated copy.
type Environment struct {
	bindings []Binding
	index    map[string]int
	journal  []string
}

// NewEnvironment returns an empty environment.
func NewEnvironment() *Environment {
	return &Environment{index: make(map[string]int)}
}

// Clone returns a deep copy of the environment.
func (e *Environment) Clone() *Environment {
	if e == nil {
		return NewEnvironment()
	}
	c := &Environment{
		bindings: make([]Binding, len(e.bindings)),
		index:    make(map[string]int, len(e.index)),
		journal:  make([]string, len(e.journal)),
	}
	copy(c.bindings, e.bindings)
	copy(c.journal, e.journal)
	for k, v := range e.index {
		c.index[k] = v
	}
	return c
}

// Set assigns value to name. A new name is appended; an existing name keeps
// its original position.
func (e *Environment) Set(name, value string) {
	if e.index == nil {
		e.index = make(map[string]int)
	}
	if i, ok := e.index[name]; ok {
		e.bindings[i].Value = value
		return
	}
	e.index[name] = len(e.bindings)
	e.bindings = append(e.bindings, Binding{Name: name, Value: value})
}

// Get returns the value bound to name.
func (e *Environment) Get(name string) (string, bool) {
	if e == nil {
		return "", false
	}
	i, ok := e.index[name]
	if !ok {
		return "", false
	}
	return e.bindings[i].Value, true
}

// Bindings returns a copy of the bindings in declaration order.
func (e *Environment) Bindings() []Binding {
	if e == nil {
		return nil
	}
	out := make([]Binding, len(e.bindings))
	copy(out, e.bindings)
	return out
}

// Len returns the number of bindings.
func (e *Environment) Len() int {
	if e == nil {
		return 0
	}
	return len(e.bindings)
}

// Record appends a committed snippet source to the journal.
func (e *Environment) Record(source string) {
	e.journal = append(e.journal, source)
}

// Journal returns a copy of the committed sources in evaluation order.
func (e *Environment) Journal() []string {
	if e == nil {
		return nil
	}
	out := make([]string, len(e.journal))
	copy(out, e.journal)
	return out
}
