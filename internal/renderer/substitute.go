package renderer

import (
	"bytes"
	"fmt"

	sigsyaml "sigs.k8s.io/yaml"
)

// Substitute returns a copy of m with every occurrence of placeholder in
// its encoding replaced by value. m itself is never modified.
func Substitute(m *Manifest, placeholder, value string) (*Manifest, error) {
	if m == nil {
		return nil, ErrInvalidInput
	}
	if placeholder == "" {
		return nil, fmt.Errorf("%w: empty placeholder", ErrInvalidInput)
	}

	raw := m.Raw
	if len(raw) == 0 {
		if m.Object == nil {
			return nil, fmt.Errorf("%w: manifest %s has no content", ErrInvalidInput, m.ID())
		}
		var err error
		raw, err = sigsyaml.Marshal(m.Object.Object)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", m.ID(), err)
		}
	}

	replaced := bytes.ReplaceAll(raw, []byte(placeholder), []byte(value))
	out, err := manifestFromYAML(replaced, m.Source)
	if err != nil {
		return nil, fmt.Errorf("substituting %s in %s: %w", placeholder, m.ID(), err)
	}
	return out, nil
}
