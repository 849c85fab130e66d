package graph

import (
	"fmt"

	"github.com/ohler55/ojg/oj"
)

// MarshalMetadata encodes m as a JSON array of [key, [values...]] pairs.
// Pairs keep insertion order so equal metadata always encodes to equal bytes.
func MarshalMetadata(m *Metadata) []byte {
	pairs := make([]any, 0, m.Len())
	for _, k := range m.Names() {
		vals := m.Values(k)
		list := make([]any, len(vals))
		for i, v := range vals {
			list[i] = v
		}
		pairs = append(pairs, []any{k, list})
	}
	return []byte(oj.JSON(pairs))
}

// UnmarshalMetadata decodes the output of MarshalMetadata.
func UnmarshalMetadata(data []byte) (*Metadata, error) {
	m := NewMetadata()
	if len(data) == 0 {
		return m, nil
	}
	parsed, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse metadata json: %w", err)
	}
	pairs, ok := parsed.([]any)
	if !ok {
		return nil, fmt.Errorf("metadata json: expected array, got %T", parsed)
	}
	for _, p := range pairs {
		pair, ok := p.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("metadata json: malformed pair %v", p)
		}
		key, _ := pair[0].(string)
		vals, _ := pair[1].([]any)
		for _, v := range vals {
			s, _ := v.(string)
			m.Add(key, s)
		}
	}
	return m, nil
}
