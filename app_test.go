package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NielsIH/SnapSpot-sub002/migrate"
)

func writeFixtures(t *testing.T) (targetPath, sourcePath, pointsPath string) {
	t.Helper()
	dir := t.TempDir()

	target := migrate.NewExport()
	target.Map.ImageHash = "target-hash"
	target.Markers = append(target.Markers, migrate.Marker{
		ID: "t1", X: 100, Y: 100, Label: "Entrance",
		PhotoIDs:    []string{"tp1"},
		CreatedDate: time.Now().UTC(),
	})
	target.Photos = append(target.Photos, migrate.Photo{
		ID: "tp1", MarkerID: "t1", FileName: "entrance.jpg",
	})

	// Source coordinates sit 50px down-left of the target's; the reference
	// pairs encode that translation.
	source := migrate.NewExport()
	source.Map.ImageHash = "source-hash"
	source.Markers = append(source.Markers,
		migrate.Marker{ID: "s1", X: 50, Y: 50, PhotoIDs: []string{"sp1"}},
		migrate.Marker{ID: "s2", X: 400, Y: 400, PhotoIDs: []string{"sp2"}},
	)
	source.Photos = append(source.Photos,
		migrate.Photo{ID: "sp1", MarkerID: "s1", FileName: "entrance.jpg"},
		migrate.Photo{ID: "sp2", MarkerID: "s2", FileName: "loading-dock.jpg"},
	)

	pairs := []migrate.ReferencePair{
		{Source: migrate.Point{X: 0, Y: 0}, Target: migrate.Point{X: 50, Y: 50}},
		{Source: migrate.Point{X: 100, Y: 0}, Target: migrate.Point{X: 150, Y: 50}},
		{Source: migrate.Point{X: 0, Y: 100}, Target: migrate.Point{X: 50, Y: 150}},
		{Source: migrate.Point{X: 100, Y: 100}, Target: migrate.Point{X: 150, Y: 150}},
	}

	targetPath = filepath.Join(dir, "target.json")
	sourcePath = filepath.Join(dir, "source.json")
	pointsPath = filepath.Join(dir, "pairs.json")
	require.NoError(t, migrate.SaveExport(targetPath, target))
	require.NoError(t, migrate.SaveExport(sourcePath, source))

	pairsJSON, err := json.Marshal(pairs)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pointsPath, pairsJSON, 0644))
	return targetPath, sourcePath, pointsPath
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app := NewApp(zerolog.Nop())
	app.TargetPath, app.SourcePath, app.PointsPath = writeFixtures(t)
	return app
}

func TestAppRunEndToEnd(t *testing.T) {
	app := newTestApp(t)
	app.OutputPath = filepath.Join(t.TempDir(), "merged.json")
	app.Tolerance = 5

	require.NoError(t, app.Run())

	merged, err := migrate.LoadExport(app.OutputPath)
	require.NoError(t, err)

	// s1 transforms onto t1 and is absorbed; s2 arrives as a new marker.
	require.Len(t, merged.Markers, 2)
	assert.Equal(t, "t1", merged.Markers[0].ID)
	assert.NotEqual(t, "s2", merged.Markers[1].ID)
	assert.InDelta(t, 450, merged.Markers[1].X, 1e-6)
	assert.InDelta(t, 450, merged.Markers[1].Y, 1e-6)

	// The shared entrance.jpg is a duplicate; only the dock photo arrives.
	assert.Len(t, merged.Photos, 2)
	assert.Empty(t, merged.CheckIntegrity())

	require.Len(t, merged.Metadata.MergedFrom, 1)
	assert.Equal(t, "source-hash", merged.Metadata.MergedFrom[0].SourceImageHash)
}

func TestAppRunStatsOnly(t *testing.T) {
	app := newTestApp(t)
	app.OutputPath = filepath.Join(t.TempDir(), "merged.json")
	app.Tolerance = 5
	app.StatsOnly = true

	require.NoError(t, app.Run())

	_, err := os.Stat(app.OutputPath)
	assert.True(t, os.IsNotExist(err), "dry run must not write the output file")
}

func TestAppRunWritesPreview(t *testing.T) {
	app := newTestApp(t)
	dir := t.TempDir()
	app.OutputPath = filepath.Join(dir, "merged.json")
	app.PreviewPath = filepath.Join(dir, "preview.png")
	app.Tolerance = 5

	require.NoError(t, app.Run())

	info, err := os.Stat(app.PreviewPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestAppRunMissingInput(t *testing.T) {
	app := NewApp(zerolog.Nop())
	app.TargetPath = filepath.Join(t.TempDir(), "absent.json")
	app.SourcePath = app.TargetPath
	app.PointsPath = app.TargetPath

	err := app.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading target export")
}

func TestAppRunDerivesToleranceFromFit(t *testing.T) {
	// With no -tolerance flag and no config, the merge tolerance comes from
	// the fit RMSE; an exact fit means exact coordinate matching, so the
	// overlapping marker still matches via its shared photo.
	app := newTestApp(t)
	app.OutputPath = filepath.Join(t.TempDir(), "merged.json")

	require.NoError(t, app.Run())

	merged, err := migrate.LoadExport(app.OutputPath)
	require.NoError(t, err)
	assert.Len(t, merged.Markers, 2)
}
