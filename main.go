package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/NielsIH/SnapSpot-sub002/migrate"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	targetFile  = flag.String("target", "", "Path to the target export JSON (the map being migrated onto)")
	sourceFile  = flag.String("source", "", "Path to the source export JSON (markers to migrate)")
	pointsFile  = flag.String("points", "", "Path to the reference point pairs JSON")
	configFile  = flag.String("config", "", "Optional path to a migration config YAML")
	outputFile  = flag.String("output", "merged-export.json", "Output file for the merged export")
	previewFile = flag.String("preview", "", "Optional PNG path for a before-you-commit merge preview")
	statsOnly   = flag.Bool("stats-only", false, "Print merge statistics and exit without writing anything")
	tolerance   = flag.Float64("tolerance", -1, "Coordinate-matching tolerance in pixels (default: derived from fit RMSE)")
	verbose     = flag.Bool("verbose", false, "Enable debug logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("snapspot-migrate version: %s\n", Version)
		return
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if *verbose {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	if *targetFile == "" || *sourceFile == "" || *pointsFile == "" {
		fmt.Fprintln(os.Stderr, "usage: snapspot-migrate -target target.json -source source.json -points pairs.json [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	app := NewApp(logger)
	app.TargetPath = *targetFile
	app.SourcePath = *sourceFile
	app.PointsPath = *pointsFile
	app.OutputPath = *outputFile
	app.PreviewPath = *previewFile
	app.Tolerance = *tolerance
	app.StatsOnly = *statsOnly

	if *configFile != "" {
		cfg, err := migrate.LoadConfig(*configFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("loading config")
		}
		app.Config = cfg
	}

	if err := app.Run(); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}
}
