package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/NielsIH/SnapSpot-sub002/migrate"
)

// App encapsulates one migration run: load both exports and the reference
// pairs, fit the transform, preview the merge, and (unless running a dry run)
// write the merged export.
type App struct {
	Logger zerolog.Logger
	Config *migrate.Config

	TargetPath  string
	SourcePath  string
	PointsPath  string
	OutputPath  string
	PreviewPath string

	// Tolerance overrides the coordinate-matching tolerance when >= 0;
	// otherwise the tolerance is derived from the fit RMSE.
	Tolerance float64
	StatsOnly bool
}

// NewApp creates an App with an unset tolerance.
func NewApp(logger zerolog.Logger) *App {
	return &App{Logger: logger, Tolerance: -1}
}

// Run executes the migration.
func (a *App) Run() error {
	target, err := migrate.LoadExport(a.TargetPath)
	if err != nil {
		return fmt.Errorf("loading target export: %w", err)
	}
	source, err := migrate.LoadExport(a.SourcePath)
	if err != nil {
		return fmt.Errorf("loading source export: %w", err)
	}
	pairs, err := migrate.LoadReferencePairs(a.PointsPath)
	if err != nil {
		return fmt.Errorf("loading reference pairs: %w", err)
	}

	a.Logger.Info().
		Int("targetMarkers", len(target.Markers)).
		Int("sourceMarkers", len(source.Markers)).
		Int("referencePairs", len(pairs)).
		Msg("exports loaded")

	ft, err := migrate.Fit(pairs)
	if err != nil {
		return fmt.Errorf("fitting transform: %w", err)
	}

	fitOpts := a.Config.FitOptions()
	report := migrate.Validate(ft, fitOpts)
	a.Logger.Info().
		Float64("rmse", ft.Quality.RMSE).
		Float64("scaleX", ft.Quality.ScaleX).
		Float64("scaleY", ft.Quality.ScaleY).
		Float64("rotationDeg", ft.Quality.RotationDeg).
		Bool("acceptable", report.IsAcceptable).
		Msg("transform fitted")
	for _, w := range report.Warnings {
		a.Logger.Warn().Msg(w)
	}

	transformed := migrate.ApplyToExport(ft.Matrix, source)

	opts := a.Config.MergeOptions()
	opts.Logger = &a.Logger
	switch {
	case a.Tolerance >= 0:
		opts.CoordinateTolerance = a.Tolerance
	case opts.CoordinateTolerance == 0:
		opts.CoordinateTolerance = fitOpts.SuggestedTolerance(ft.Quality)
	}
	a.Logger.Info().Float64("tolerance", opts.CoordinateTolerance).Msg("coordinate tolerance")

	stats, err := migrate.GetMergeStatistics(target, transformed, opts)
	if err != nil {
		return fmt.Errorf("computing merge statistics: %w", err)
	}
	a.printStats(stats)

	if a.StatsOnly {
		return nil
	}

	result, err := migrate.MergeExports(target, transformed, opts)
	if err != nil {
		return fmt.Errorf("merging exports: %w", err)
	}
	for _, w := range result.Warnings {
		a.Logger.Warn().Msg(w)
	}

	if err := migrate.SaveExport(a.OutputPath, result.Export); err != nil {
		return fmt.Errorf("writing merged export: %w", err)
	}
	a.Logger.Info().Str("path", a.OutputPath).Msg("merged export written")

	if a.PreviewPath != "" {
		if err := a.writePreview(target, transformed, result); err != nil {
			return fmt.Errorf("writing preview: %w", err)
		}
		a.Logger.Info().Str("path", a.PreviewPath).Msg("preview written")
	}

	return nil
}

func (a *App) printStats(stats migrate.MergeStatistics) {
	fmt.Printf("Merge preview:\n")
	fmt.Printf("  new markers:       %d\n", stats.NewMarkers)
	fmt.Printf("  duplicate markers: %d\n", stats.DuplicateMarkers)
	fmt.Printf("  new photos:        %d\n", stats.NewPhotos)
	fmt.Printf("  duplicate photos:  %d\n", stats.DuplicatePhotos)
	fmt.Printf("  result totals:     %d markers, %d photos\n", stats.TotalMarkers, stats.TotalPhotos)
}

// writePreview renders the duplicate-link preview PNG. Only id-map entries
// that resolve to a pre-existing target marker are duplicate links.
func (a *App) writePreview(target, transformed *migrate.Export, result *migrate.MergeResult) error {
	targetIDs := make(map[string]struct{}, len(target.Markers))
	for _, m := range target.Markers {
		targetIDs[m.ID] = struct{}{}
	}
	matches := make(map[string]string)
	for srcID, dstID := range result.MarkerIDMap {
		if _, ok := targetIDs[dstID]; ok {
			matches[srcID] = dstID
		}
	}

	f, err := os.Create(a.PreviewPath)
	if err != nil {
		return err
	}
	defer f.Close()

	renderer := migrate.NewPreviewRenderer(target, transformed, matches)
	return renderer.RenderToPNG(f)
}
