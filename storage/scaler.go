package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"rent-radar/models"
)

// SaveScaler persists the normalization bounds produced by the cleaner.
func SaveScaler(path string, s models.SizeScaler) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("scaler: create dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("scaler: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("scaler: write %q: %w", path, err)
	}
	return nil
}

// LoadScaler reads bounds written by SaveScaler.
func LoadScaler(path string) (models.SizeScaler, error) {
	var s models.SizeScaler
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("scaler: read %q: %w", path, err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("scaler: decode %q: %w", path, err)
	}
	return s, nil
}
