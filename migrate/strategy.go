package migrate

import (
	"math"
	"strings"
)

// MatcherKind names one leg of the cascading duplicate-marker strategy.
type MatcherKind string

const (
	// MatchByPhotos matches markers whose photo filename sets overlap by at
	// least the configured threshold.
	MatchByPhotos MatcherKind = "photos"

	// MatchByLabels matches markers with the same non-empty label or
	// description, compared case-insensitively.
	MatchByLabels MatcherKind = "labels"

	// MatchByCoordinates matches markers within the coordinate tolerance on
	// both axes.
	MatchByCoordinates MatcherKind = "coordinates"
)

// DefaultMatcherOrder is the documented precedence: photo overlap is the
// strongest signal, then labels, then plain proximity.
func DefaultMatcherOrder() []MatcherKind {
	return []MatcherKind{MatchByPhotos, MatchByLabels, MatchByCoordinates}
}

// DefaultPhotoOverlapThreshold is the fraction of shared filenames two
// markers' photo sets need for the photo leg to call them duplicates.
const DefaultPhotoOverlapThreshold = 0.7

// FindDuplicateMarker returns the first existing marker within tolerance
// pixels of the candidate on both axes independently (Chebyshev-style, not
// Euclidean), or nil if none. Tolerance 0 takes the exact-match path.
func FindDuplicateMarker(existing []Marker, candidate Marker, tolerance float64) *Marker {
	if tolerance == 0 {
		for i := range existing {
			if existing[i].X == candidate.X && existing[i].Y == candidate.Y {
				return &existing[i]
			}
		}
		return nil
	}
	for i := range existing {
		if math.Abs(existing[i].X-candidate.X) <= tolerance &&
			math.Abs(existing[i].Y-candidate.Y) <= tolerance {
			return &existing[i]
		}
	}
	return nil
}

// FindDuplicateByLabel returns the first existing marker whose label matches
// the candidate's, compared case-insensitively. Markers without a label never
// match. When both sides also carry a description, it must match too,
// preventing two distinct "Valve" markers from collapsing.
func FindDuplicateByLabel(existing []Marker, candidate Marker) *Marker {
	if candidate.Label == "" {
		return nil
	}
	for i := range existing {
		if existing[i].Label == "" {
			continue
		}
		if !strings.EqualFold(existing[i].Label, candidate.Label) {
			continue
		}
		if existing[i].Description != "" && candidate.Description != "" &&
			!strings.EqualFold(existing[i].Description, candidate.Description) {
			continue
		}
		return &existing[i]
	}
	return nil
}

// FindDuplicateByPhotoOverlap returns the first existing marker whose photo
// filename set overlaps the candidate's by at least threshold. The overlap is
// the shared filename count divided by the smaller set size, so a marker
// whose photos are a subset of another's counts as fully overlapping.
// Filenames compare case-sensitively. Markers without photos never match.
func FindDuplicateByPhotoOverlap(existing []Marker, existingPhotos []Photo, candidate Marker, candidatePhotos []Photo, threshold float64) *Marker {
	candidateNames := photoFileNames(candidatePhotos, candidate.ID)
	if len(candidateNames) == 0 {
		return nil
	}

	// Group existing photo filenames by marker once.
	byMarker := make(map[string]map[string]struct{})
	for _, p := range existingPhotos {
		set, ok := byMarker[p.MarkerID]
		if !ok {
			set = make(map[string]struct{})
			byMarker[p.MarkerID] = set
		}
		set[p.FileName] = struct{}{}
	}

	for i := range existing {
		names := byMarker[existing[i].ID]
		if len(names) == 0 {
			continue
		}
		shared := 0
		for name := range candidateNames {
			if _, ok := names[name]; ok {
				shared++
			}
		}
		smaller := len(candidateNames)
		if len(names) < smaller {
			smaller = len(names)
		}
		if float64(shared)/float64(smaller) >= threshold {
			return &existing[i]
		}
	}
	return nil
}

// photoFileNames collects the distinct filenames of photos belonging to the
// given marker.
func photoFileNames(photos []Photo, markerID string) map[string]struct{} {
	names := make(map[string]struct{})
	for _, p := range photos {
		if p.MarkerID == markerID {
			names[p.FileName] = struct{}{}
		}
	}
	return names
}

// matchMarker runs the configured matcher cascade against the target's
// markers and returns the first match, or nil.
func matchMarker(target *Export, candidate Marker, candidatePhotos []Photo, opts MergeOptions) *Marker {
	for _, kind := range opts.MatcherOrder {
		var match *Marker
		switch kind {
		case MatchByPhotos:
			match = FindDuplicateByPhotoOverlap(target.Markers, target.Photos, candidate, candidatePhotos, opts.PhotoOverlapThreshold)
		case MatchByLabels:
			match = FindDuplicateByLabel(target.Markers, candidate)
		case MatchByCoordinates:
			match = FindDuplicateMarker(target.Markers, candidate, opts.CoordinateTolerance)
		}
		if match != nil {
			return match
		}
	}
	return nil
}
