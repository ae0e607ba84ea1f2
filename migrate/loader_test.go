package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadExportRoundTrip(t *testing.T) {
	e := buildExport(
		[]Marker{{ID: "m1", X: 12.5, Y: -3, Label: "Gate"}},
		[]Photo{{ID: "p1", MarkerID: "m1", FileName: "gate.jpg", CreatedDate: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}},
	)
	e.Map.ImageHash = "abc123"
	e.Map.Name = "Warehouse floor 2"

	path := filepath.Join(t.TempDir(), "nested", "export.json")
	require.NoError(t, SaveExport(path, e))

	loaded, err := LoadExport(path)
	require.NoError(t, err)

	assert.Equal(t, "abc123", loaded.Map.ImageHash)
	require.Len(t, loaded.Markers, 1)
	assert.Equal(t, "Gate", loaded.Markers[0].Label)
	assert.Equal(t, 12.5, loaded.Markers[0].X)
	require.Len(t, loaded.Photos, 1)
	assert.True(t, loaded.Photos[0].CreatedDate.Equal(e.Photos[0].CreatedDate))
	assert.Empty(t, loaded.CheckIntegrity())
}

func TestLoadExportMissingCollections(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"no markers", `{"photos": []}`, "markers"},
		{"no photos", `{"markers": []}`, "photos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "export.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0644))

			_, err := LoadExport(path)
			var serr *InvalidExportStructureError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tt.field, serr.Field)
		})
	}
}

func TestLoadExportBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadExport(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing export")
}

func TestLoadExportMissingFile(t *testing.T) {
	_, err := LoadExport(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestLoadReferencePairs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairs.json")
	body := `[
		{"source": {"x": 1, "y": 2}, "target": {"x": 10, "y": 20}},
		{"source": {"x": 3, "y": 4}, "target": {"x": 30, "y": 40}}
	]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	pairs, err := LoadReferencePairs(path)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, Point{X: 1, Y: 2}, pairs[0].Source)
	assert.Equal(t, Point{X: 30, Y: 40}, pairs[1].Target)
}

func TestLoadReferencePairsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"source": {}}`), 0644))

	_, err := LoadReferencePairs(path)
	require.Error(t, err)
}
