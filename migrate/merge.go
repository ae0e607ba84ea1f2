package migrate

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
)

// PhotoStrategy selects how a source photo whose filename already exists on
// the matched marker is handled.
type PhotoStrategy string

const (
	// PhotoStrategySkip drops duplicate photos (default).
	PhotoStrategySkip PhotoStrategy = "skip"

	// PhotoStrategyRename imports duplicate photos under a " (n)" suffixed
	// filename.
	PhotoStrategyRename PhotoStrategy = "rename"
)

// MergeOptions configures a merge. The zero value is not usable directly;
// start from DefaultMergeOptions or fill every field.
type MergeOptions struct {
	// CoordinateTolerance is the per-axis pixel tolerance for the coordinate
	// matcher. 0 means exact coordinate equality.
	CoordinateTolerance float64

	// DuplicatePhotoStrategy controls duplicate photo handling on matched
	// markers.
	DuplicatePhotoStrategy PhotoStrategy

	// PreserveTimestamps keeps the source entities' original createdDate
	// instead of stamping the merge time, supporting faithful historical
	// merges.
	PreserveTimestamps bool

	// IDGenerator synthesizes ids for imported markers and photos.
	IDGenerator IDGenerator

	// MatcherOrder is the duplicate-strategy cascade, evaluated in order.
	MatcherOrder []MatcherKind

	// PhotoOverlapThreshold is the shared-filename fraction for the photo
	// matcher leg.
	PhotoOverlapThreshold float64

	// Logger receives soft-inconsistency warnings. Nil disables logging;
	// warnings are always also returned on the MergeResult.
	Logger *zerolog.Logger
}

// DefaultMergeOptions returns the documented defaults: skip duplicate photos,
// preserve timestamps, UUID ids, photos -> labels -> coordinates cascade.
func DefaultMergeOptions() MergeOptions {
	return MergeOptions{
		CoordinateTolerance:    0,
		DuplicatePhotoStrategy: PhotoStrategySkip,
		PreserveTimestamps:     true,
		IDGenerator:            UUIDGenerator,
		MatcherOrder:           DefaultMatcherOrder(),
		PhotoOverlapThreshold:  DefaultPhotoOverlapThreshold,
	}
}

func (o MergeOptions) withDefaults() MergeOptions {
	if o.IDGenerator == nil {
		o.IDGenerator = UUIDGenerator
	}
	if o.MatcherOrder == nil {
		o.MatcherOrder = DefaultMatcherOrder()
	}
	if o.DuplicatePhotoStrategy == "" {
		o.DuplicatePhotoStrategy = PhotoStrategySkip
	}
	if o.PhotoOverlapThreshold == 0 {
		o.PhotoOverlapThreshold = DefaultPhotoOverlapThreshold
	}
	return o
}

func (o MergeOptions) logger() *zerolog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

// MergeResult is the outcome of MergeExports: the new collection, the
// statistics of what happened, soft-inconsistency warnings, and the full
// old-id to new-id mapping for imported entities.
type MergeResult struct {
	Export   *Export
	Stats    MergeStatistics
	Warnings []string

	// MarkerIDMap maps each source marker id to the id it ended up under in
	// the result: a freshly synthesized id for new markers, the matched
	// target marker's id for duplicates.
	MarkerIDMap map[string]string

	// PhotoIDMap maps each imported source photo id to its synthesized id.
	// Duplicate photos that were dropped do not appear.
	PhotoIDMap map[string]string
}

// IsDuplicatePhoto reports whether a photo with the candidate's exact
// fileName is already attached to the given marker. Filename comparison is
// case-sensitive with no normalization.
func IsDuplicatePhoto(existing []Photo, candidate Photo, targetMarkerID string) bool {
	for _, p := range existing {
		if p.MarkerID == targetMarkerID && p.FileName == candidate.FileName {
			return true
		}
	}
	return false
}

// MergePhotoIDs returns the set union of the two id sequences, preserving the
// order of existing ids followed by any unseen new ids.
func MergePhotoIDs(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, id := range existing {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range incoming {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// photoPlan is one source photo scheduled for import, with its filename
// already resolved against the rename strategy.
type photoPlan struct {
	photo    Photo
	fileName string
}

// markerPlan is the classification of one source marker: either matched to an
// existing target marker or scheduled as a new marker, together with the
// photo-level decisions.
type markerPlan struct {
	source     Marker
	match      *Marker // nil when the marker is new
	newPhotos  []photoPlan
	duplicates int // dropped duplicate photos
}

// validateStructure enforces the structural precondition on a merge input.
func validateStructure(e *Export, side string) error {
	if e == nil {
		return &InvalidExportStructureError{Side: side, Field: "markers"}
	}
	if e.Markers == nil {
		return &InvalidExportStructureError{Side: side, Field: "markers"}
	}
	if e.Photos == nil {
		return &InvalidExportStructureError{Side: side, Field: "photos"}
	}
	return nil
}

// classify runs the duplicate-matching cascade for every source marker and
// plans all photo imports without touching either input. MergeExports and
// GetMergeStatistics both consume this single routine, so the dry-run counts
// can never drift from the real merge.
func classify(target, source *Export, opts MergeOptions) ([]markerPlan, error) {
	if err := validateStructure(target, "target"); err != nil {
		return nil, err
	}
	if err := validateStructure(source, "source"); err != nil {
		return nil, err
	}

	photosByID := make(map[string]Photo, len(source.Photos))
	for _, p := range source.Photos {
		photosByID[p.ID] = p
	}

	// Filenames already claimed per target marker, including photos imported
	// earlier in this same merge, so two source markers matching the same
	// target marker cannot both import the same filename.
	claimed := make(map[string]map[string]struct{})
	claimedFor := func(markerID string) map[string]struct{} {
		set, ok := claimed[markerID]
		if !ok {
			set = make(map[string]struct{})
			for _, p := range target.Photos {
				if p.MarkerID == markerID {
					set[p.FileName] = struct{}{}
				}
			}
			claimed[markerID] = set
		}
		return set
	}

	plans := make([]markerPlan, 0, len(source.Markers))
	for _, candidate := range source.Markers {
		candidatePhotos := source.PhotosForMarker(candidate.ID)
		plan := markerPlan{
			source: candidate,
			match:  matchMarker(target, candidate, candidatePhotos, opts),
		}

		// Photos are imported in the marker's display order.
		for _, pid := range candidate.PhotoIDs {
			photo, ok := photosByID[pid]
			if !ok {
				continue // dangling reference in the source, nothing to import
			}

			if plan.match == nil {
				plan.newPhotos = append(plan.newPhotos, photoPlan{photo: photo, fileName: photo.FileName})
				continue
			}

			taken := claimedFor(plan.match.ID)
			if _, dup := taken[photo.FileName]; !dup {
				taken[photo.FileName] = struct{}{}
				plan.newPhotos = append(plan.newPhotos, photoPlan{photo: photo, fileName: photo.FileName})
				continue
			}

			switch opts.DuplicatePhotoStrategy {
			case PhotoStrategyRename:
				renamed := renameFileName(photo.FileName, taken)
				taken[renamed] = struct{}{}
				plan.newPhotos = append(plan.newPhotos, photoPlan{photo: photo, fileName: renamed})
			default:
				plan.duplicates++
			}
		}

		plans = append(plans, plan)
	}

	return plans, nil
}

// renameFileName appends " (n)" before the extension, picking the smallest n
// not already taken.
func renameFileName(name string, taken map[string]struct{}) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}

// MergeExports merges a source export (already transform-applied) into a
// target export and returns a brand-new collection; neither input is
// mutated. Source markers matching an existing target marker contribute only
// their unseen photos; unmatched markers are imported under fresh ids along
// with all their photos. A provenance record is appended to the result's
// metadata.
//
// A mismatched map imageHash between the inputs is reported as a warning, not
// an error: the caller just performed a deliberate coordinate transform and
// has already accepted that the maps differ.
func MergeExports(target, source *Export, opts MergeOptions) (*MergeResult, error) {
	opts = opts.withDefaults()

	plans, err := classify(target, source, opts)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := target.Clone()

	var warnings []string
	if target.Map.ImageHash != "" && source.Map.ImageHash != "" &&
		target.Map.ImageHash != source.Map.ImageHash {
		w := fmt.Sprintf("map imageHash mismatch (target %s, source %s); exports may describe different maps",
			target.Map.ImageHash, source.Map.ImageHash)
		warnings = append(warnings, w)
		opts.logger().Warn().
			Str("targetHash", target.Map.ImageHash).
			Str("sourceHash", source.Map.ImageHash).
			Msg("merging exports with mismatched map image hashes")
	}

	markerIndex := make(map[string]int, len(result.Markers))
	for i, m := range result.Markers {
		markerIndex[m.ID] = i
	}

	res := &MergeResult{
		Warnings:    warnings,
		MarkerIDMap: make(map[string]string, len(source.Markers)),
		PhotoIDMap:  make(map[string]string),
	}

	importPhoto := func(plan photoPlan, markerID string) string {
		id := opts.IDGenerator("photo")
		created := now
		if opts.PreserveTimestamps {
			created = plan.photo.CreatedDate
		}
		result.Photos = append(result.Photos, Photo{
			ID:          id,
			MarkerID:    markerID,
			FileName:    plan.fileName,
			CreatedDate: created,
		})
		res.PhotoIDMap[plan.photo.ID] = id
		return id
	}

	for _, plan := range plans {
		if plan.match != nil {
			res.MarkerIDMap[plan.source.ID] = plan.match.ID
			res.Stats.DuplicateMarkers++
			res.Stats.DuplicatePhotos += plan.duplicates

			if len(plan.newPhotos) == 0 {
				continue
			}
			idx := markerIndex[plan.match.ID]
			var incoming []string
			for _, pp := range plan.newPhotos {
				incoming = append(incoming, importPhoto(pp, plan.match.ID))
				res.Stats.NewPhotos++
			}
			result.Markers[idx].PhotoIDs = MergePhotoIDs(result.Markers[idx].PhotoIDs, incoming)
			result.Markers[idx].LastModified = now
			continue
		}

		markerID := opts.IDGenerator("marker")
		res.MarkerIDMap[plan.source.ID] = markerID
		res.Stats.NewMarkers++
		res.Stats.DuplicatePhotos += plan.duplicates

		marker := plan.source.Clone()
		marker.ID = markerID
		marker.PhotoIDs = nil
		if !opts.PreserveTimestamps {
			marker.CreatedDate = now
		}
		marker.LastModified = now

		for _, pp := range plan.newPhotos {
			marker.PhotoIDs = append(marker.PhotoIDs, importPhoto(pp, markerID))
			res.Stats.NewPhotos++
		}

		markerIndex[marker.ID] = len(result.Markers)
		result.Markers = append(result.Markers, marker)
	}

	res.Stats.TotalMarkers = len(result.Markers)
	res.Stats.TotalPhotos = len(result.Photos)

	result.Metadata.MergedFrom = append(result.Metadata.MergedFrom, MergeProvenance{
		SourceImageHash:  source.Map.ImageHash,
		SourceTimestamp:  source.Timestamp,
		MergedAt:         now,
		NewMarkers:       res.Stats.NewMarkers,
		DuplicateMarkers: res.Stats.DuplicateMarkers,
		NewPhotos:        res.Stats.NewPhotos,
		DuplicatePhotos:  res.Stats.DuplicatePhotos,
		Coverage:         markerCoverage(result.Markers),
	})
	result.Timestamp = now
	result.Map.LastModified = now

	res.Export = result
	return res, nil
}

// GetMergeStatistics is a pure dry run of MergeExports: it runs the exact
// same classification pass and reports the counts the merge would produce,
// without constructing entities or consuming ids.
func GetMergeStatistics(target, source *Export, opts MergeOptions) (MergeStatistics, error) {
	opts = opts.withDefaults()

	plans, err := classify(target, source, opts)
	if err != nil {
		return MergeStatistics{}, err
	}

	var stats MergeStatistics
	for _, plan := range plans {
		if plan.match != nil {
			stats.DuplicateMarkers++
		} else {
			stats.NewMarkers++
		}
		stats.NewPhotos += len(plan.newPhotos)
		stats.DuplicatePhotos += plan.duplicates
	}
	stats.TotalMarkers = len(target.Markers) + stats.NewMarkers
	stats.TotalPhotos = len(target.Photos) + stats.NewPhotos
	return stats, nil
}

// markerCoverage returns the bounding box [minX, minY, maxX, maxY] of the
// marker set, or a zero box for an empty set.
func markerCoverage(markers []Marker) [4]float64 {
	if len(markers) == 0 {
		return [4]float64{}
	}
	bound := orb.Point{markers[0].X, markers[0].Y}.Bound()
	for _, m := range markers[1:] {
		bound = bound.Extend(orb.Point{m.X, m.Y})
	}
	return [4]float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]}
}
