// Package migrate implements the core of the SnapSpot map migration tool:
// fitting an affine transform from user-picked reference point pairs,
// applying it to marker coordinates, and merging a transformed marker
// collection into an existing one with duplicate detection.
//
// The engines are pure: inputs are never mutated and every operation returns
// freshly allocated results, so concurrent calls over disjoint inputs are
// safe without locking.
package migrate

import (
	"fmt"
	"math"
	"time"
)

// Point represents a 2D pixel coordinate in a map image.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ReferencePair links the same physical landmark picked on the source map
// and on the target map.
type ReferencePair struct {
	Source Point `json:"source"`
	Target Point `json:"target"`
}

// AffineMatrix for 2D transforms: x' = ax + by + tx, y' = cx + dy + ty
type AffineMatrix struct {
	A  float64 `json:"a"`
	B  float64 `json:"b"`
	Tx float64 `json:"tx"`
	C  float64 `json:"c"`
	D  float64 `json:"d"`
	Ty float64 `json:"ty"`
}

// Identity returns an identity matrix (no transformation)
func Identity() AffineMatrix {
	return AffineMatrix{A: 1, B: 0, Tx: 0, C: 0, D: 1, Ty: 0}
}

// Apply maps a point through the transform. Non-finite inputs propagate to
// the output rather than panicking, so batch application never partially
// fails.
func (m AffineMatrix) Apply(p Point) Point {
	return Point{
		X: m.A*p.X + m.B*p.Y + m.Tx,
		Y: m.C*p.X + m.D*p.Y + m.Ty,
	}
}

// Determinant of the linear part.
func (m AffineMatrix) Determinant() float64 {
	return m.A*m.D - m.B*m.C
}

// Multiply composes two affine transforms: result = m * other.
// Applying the result is equivalent to applying other first, then m.
func (m AffineMatrix) Multiply(other AffineMatrix) AffineMatrix {
	return AffineMatrix{
		A:  m.A*other.A + m.B*other.C,
		B:  m.A*other.B + m.B*other.D,
		Tx: m.A*other.Tx + m.B*other.Ty + m.Tx,
		C:  m.C*other.A + m.D*other.C,
		D:  m.C*other.B + m.D*other.D,
		Ty: m.C*other.Tx + m.D*other.Ty + m.Ty,
	}
}

// Marker is a point of interest on a map image, in target-space pixel
// coordinates. PhotoIDs reference Photo records by id; the order is
// significant for display only.
type Marker struct {
	ID           string    `json:"id"`
	X            float64   `json:"x"`
	Y            float64   `json:"y"`
	Label        string    `json:"label,omitempty"`
	Description  string    `json:"description,omitempty"`
	PhotoIDs     []string  `json:"photoIds"`
	CreatedDate  time.Time `json:"createdDate"`
	LastModified time.Time `json:"lastModified"`
}

// NewMarker constructs a Marker, validating required fields.
func NewMarker(id string, x, y float64) (Marker, error) {
	if id == "" {
		return Marker{}, fmt.Errorf("marker id is required")
	}
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return Marker{}, fmt.Errorf("marker %s: coordinates must be finite, got (%v, %v)", id, x, y)
	}
	now := time.Now().UTC()
	return Marker{
		ID:           id,
		X:            x,
		Y:            y,
		PhotoIDs:     []string{},
		CreatedDate:  now,
		LastModified: now,
	}, nil
}

// Position returns the marker's coordinates as a Point.
func (m Marker) Position() Point {
	return Point{X: m.X, Y: m.Y}
}

// Clone returns a deep copy of the marker.
func (m Marker) Clone() Marker {
	c := m
	c.PhotoIDs = append([]string(nil), m.PhotoIDs...)
	return c
}

// Photo is an image attached to a marker. MarkerID is a back-reference, not
// ownership: the photo belongs to exactly one marker in the same collection.
type Photo struct {
	ID          string    `json:"id"`
	MarkerID    string    `json:"markerId"`
	FileName    string    `json:"fileName"`
	CreatedDate time.Time `json:"createdDate"`
}

// NewPhoto constructs a Photo, validating required fields.
func NewPhoto(id, markerID, fileName string) (Photo, error) {
	if id == "" {
		return Photo{}, fmt.Errorf("photo id is required")
	}
	if markerID == "" {
		return Photo{}, fmt.Errorf("photo %s: markerId is required", id)
	}
	if fileName == "" {
		return Photo{}, fmt.Errorf("photo %s: fileName is required", id)
	}
	return Photo{
		ID:          id,
		MarkerID:    markerID,
		FileName:    fileName,
		CreatedDate: time.Now().UTC(),
	}, nil
}

// MapInfo describes the map image an export belongs to.
type MapInfo struct {
	ImageHash    string    `json:"imageHash,omitempty"`
	Name         string    `json:"name,omitempty"`
	LastModified time.Time `json:"lastModified"`
}

// MergeProvenance records one merge that was folded into an export: where the
// source came from, what it contributed, and when.
type MergeProvenance struct {
	SourceImageHash  string    `json:"sourceImageHash,omitempty"`
	SourceTimestamp  time.Time `json:"sourceTimestamp"`
	MergedAt         time.Time `json:"mergedAt"`
	NewMarkers       int       `json:"newMarkers"`
	DuplicateMarkers int       `json:"duplicateMarkers"`
	NewPhotos        int       `json:"newPhotos"`
	DuplicatePhotos  int       `json:"duplicatePhotos"`

	// Coverage is the bounding box [minX, minY, maxX, maxY] of all markers
	// after the merge, for preview framing. Empty merges leave it zeroed.
	Coverage [4]float64 `json:"coverage"`
}

// ExportMetadata carries the merge provenance trail.
type ExportMetadata struct {
	MergedFrom []MergeProvenance `json:"mergedFrom"`
}

// Export is the in-memory shape of a SnapSpot export document. Marker and
// photo ids are unique within a collection; every photo's MarkerID resolves
// to a marker in Markers and every PhotoIDs entry resolves to a photo in
// Photos.
type Export struct {
	Map       MapInfo        `json:"map"`
	Markers   []Marker       `json:"markers"`
	Photos    []Photo        `json:"photos"`
	Metadata  ExportMetadata `json:"metadata"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewExport creates an empty export with initialized slices.
func NewExport() *Export {
	return &Export{
		Markers:   []Marker{},
		Photos:    []Photo{},
		Metadata:  ExportMetadata{MergedFrom: []MergeProvenance{}},
		Timestamp: time.Now().UTC(),
	}
}

// Clone returns a deep copy of the export.
func (e *Export) Clone() *Export {
	c := &Export{
		Map:       e.Map,
		Markers:   make([]Marker, 0, len(e.Markers)),
		Photos:    make([]Photo, 0, len(e.Photos)),
		Timestamp: e.Timestamp,
	}
	for _, m := range e.Markers {
		c.Markers = append(c.Markers, m.Clone())
	}
	c.Photos = append(c.Photos, e.Photos...)
	c.Metadata.MergedFrom = append([]MergeProvenance(nil), e.Metadata.MergedFrom...)
	return c
}

// PhotosForMarker returns the photos whose MarkerID matches the given marker,
// in collection order.
func (e *Export) PhotosForMarker(markerID string) []Photo {
	var out []Photo
	for _, p := range e.Photos {
		if p.MarkerID == markerID {
			out = append(out, p)
		}
	}
	return out
}

// CheckIntegrity verifies the referential invariants of the export: unique
// ids, photo back-references resolving to markers, and marker PhotoIDs
// resolving to photos. Returns a description of every violation found.
func (e *Export) CheckIntegrity() []string {
	var problems []string

	markerIDs := make(map[string]struct{}, len(e.Markers))
	for _, m := range e.Markers {
		if _, dup := markerIDs[m.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate marker id %q", m.ID))
		}
		markerIDs[m.ID] = struct{}{}
	}

	photoIDs := make(map[string]struct{}, len(e.Photos))
	for _, p := range e.Photos {
		if _, dup := photoIDs[p.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate photo id %q", p.ID))
		}
		photoIDs[p.ID] = struct{}{}
		if _, ok := markerIDs[p.MarkerID]; !ok {
			problems = append(problems, fmt.Sprintf("photo %q references missing marker %q", p.ID, p.MarkerID))
		}
	}

	for _, m := range e.Markers {
		for _, pid := range m.PhotoIDs {
			if _, ok := photoIDs[pid]; !ok {
				problems = append(problems, fmt.Sprintf("marker %q references missing photo %q", m.ID, pid))
			}
		}
	}

	return problems
}

// MergeStatistics summarizes what a merge did, or what a dry run would do.
// It never mutates the inputs it was computed from.
type MergeStatistics struct {
	NewMarkers       int `json:"newMarkers"`
	DuplicateMarkers int `json:"duplicateMarkers"`
	NewPhotos        int `json:"newPhotos"`
	DuplicatePhotos  int `json:"duplicatePhotos"`
	TotalMarkers     int `json:"totalMarkers"`
	TotalPhotos      int `json:"totalPhotos"`
}
