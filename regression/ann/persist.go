package ann

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Save writes the network as JSON, creating parent directories.
func (n *Network) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("ann: create dir: %w", err)
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("ann: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("ann: write %q: %w", path, err)
	}
	return nil
}

// Load reads a network written by Save and checks that its layers chain.
func Load(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ann: read %q: %w", path, err)
	}
	var n Network
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("ann: decode %q: %w", path, err)
	}
	if err := n.validate(); err != nil {
		return nil, fmt.Errorf("ann: %q: %w", path, err)
	}
	return &n, nil
}

func (n *Network) validate() error {
	if n.Meta.Kind != kind {
		return fmt.Errorf("not an ANN model (kind %q)", n.Meta.Kind)
	}
	if len(n.Layers) == 0 {
		return fmt.Errorf("no layers")
	}
	in := n.Inputs
	for i, l := range n.Layers {
		if len(l.Weights) == 0 || len(l.Biases) != len(l.Weights) {
			return fmt.Errorf("layer %d: malformed", i)
		}
		for _, row := range l.Weights {
			if len(row) != in {
				return fmt.Errorf("layer %d: has %d inputs, want %d", i, len(row), in)
			}
		}
		in = len(l.Weights)
	}
	if in != 1 {
		return fmt.Errorf("output layer has %d units, want 1", in)
	}
	return nil
}
