package migrate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadExport reads a SnapSpot export document from a JSON file and verifies
// its structural precondition (markers and photos collections present).
func LoadExport(path string) (*Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading export file: %w", err)
	}

	var export Export
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("parsing export %s: %w", path, err)
	}

	if export.Markers == nil {
		return nil, &InvalidExportStructureError{Side: path, Field: "markers"}
	}
	if export.Photos == nil {
		return nil, &InvalidExportStructureError{Side: path, Field: "photos"}
	}

	return &export, nil
}

// SaveExport writes an export document as indented JSON, creating parent
// directories as needed.
func SaveExport(path string, export *Export) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling export: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing export file: %w", err)
	}
	return nil
}

// LoadReferencePairs reads a JSON array of reference point pairs, one pair
// per user-picked landmark.
func LoadReferencePairs(path string) ([]ReferencePair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading reference pairs file: %w", err)
	}

	var pairs []ReferencePair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("parsing reference pairs %s: %w", path, err)
	}
	return pairs, nil
}
