package graph

// Metadata is an ordered multi-map of string keys to string values.
// Key order is the order of first insertion; values keep their insertion
// order per key. The zero value is ready to use.
type Metadata struct {
	keys   []string
	values map[string][]string
}

// NewMetadata returns an empty Metadata.
func NewMetadata() *Metadata {
	return &Metadata{values: make(map[string][]string)}
}

// Add appends value to the list stored under key.
func (m *Metadata) Add(key, value string) {
	if m.values == nil {
		m.values = make(map[string][]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = append(m.values[key], value)
}

// Set replaces every value stored under key. Calling Set with no values
// removes the key.
func (m *Metadata) Set(key string, values ...string) {
	if len(values) == 0 {
		m.Remove(key)
		return
	}
	if m.values == nil {
		m.values = make(map[string][]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = append([]string(nil), values...)
}

// Remove deletes key and all of its values.
func (m *Metadata) Remove(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Get returns the first value stored under key.
func (m *Metadata) Get(key string) (string, bool) {
	vals := m.values[key]
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// Values returns a copy of every value stored under key.
func (m *Metadata) Values(key string) []string {
	vals := m.values[key]
	if len(vals) == 0 {
		return nil
	}
	return append([]string(nil), vals...)
}

// Names returns the keys in insertion order.
func (m *Metadata) Names() []string {
	return append([]string(nil), m.keys...)
}

// Len returns the number of distinct keys.
func (m *Metadata) Len() int {
	return len(m.keys)
}

// Clone returns a deep copy.
func (m *Metadata) Clone() *Metadata {
	c := NewMetadata()
	for _, k := range m.keys {
		c.keys = append(c.keys, k)
		c.values[k] = append([]string(nil), m.values[k]...)
	}
	return c
}
